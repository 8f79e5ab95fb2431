package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChapterMarkup(t *testing.T) {
	raw := `<chapter seq="1" title="ignored">
<title>The Long Night</title>
<p>It began with rain.</p>
<p>Nobody noticed at first.<br>Then the lights went out.</p>
</chapter>`

	parsed := ParseChapterMarkup(raw)

	assert.Equal(t, "The Long Night", parsed.Title)
	assert.Equal(t, "It began with rain.\n\nNobody noticed at first.\nThen the lights went out.", parsed.Body)
}

func TestParseChapterMarkupLineTags(t *testing.T) {
	raw := `<chapter><line>one</line><line>two</line></chapter>`

	parsed := ParseChapterMarkup(raw)

	assert.Empty(t, parsed.Title)
	assert.Equal(t, "one\ntwo", parsed.Body)
}

func TestParseChapterMarkupBrVariants(t *testing.T) {
	for _, br := range []string{"<br>", "<br/>", "<br />"} {
		parsed := ParseChapterMarkup("a" + br + "b")
		assert.Equal(t, "a\nb", parsed.Body, "variant %s", br)
	}
}

func TestParseChapterMarkupUnknownTagsPreserved(t *testing.T) {
	raw := `<p>He whispered <em>her name</em> once.</p>`

	parsed := ParseChapterMarkup(raw)

	assert.Equal(t, "He whispered <em>her name</em> once.", parsed.Body)
}

func TestParseChapterMarkupPlainText(t *testing.T) {
	parsed := ParseChapterMarkup("no markup at all, just prose")

	assert.Empty(t, parsed.Title)
	assert.Equal(t, "no markup at all, just prose", parsed.Body)
}

func TestParseChapterMarkupUnclosedAngle(t *testing.T) {
	parsed := ParseChapterMarkup("a dangling <brac")

	assert.Equal(t, "a dangling <brac", parsed.Body)
}

func TestParseChapterMarkupCollapsesBlankRuns(t *testing.T) {
	raw := "<p>one</p>\n\n\n<p>two</p>"

	parsed := ParseChapterMarkup(raw)

	assert.Equal(t, "one\n\ntwo", parsed.Body)
}
