package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "storyloom-api/pkg/errors"
)

func TestParseTranslateOutput(t *testing.T) {
	raw := `<translated_title>第一章</translated_title>
<translated_content>夜色降临了城市。

他独自走在街上。</translated_content>
<translation_notes>kept the city name untranslated</translation_notes>`

	out, err := parseTranslateOutput(raw)
	require.NoError(t, err)
	assert.Equal(t, "第一章", out.Title)
	assert.Equal(t, "夜色降临了城市。\n\n他独自走在街上。", out.Content)
	assert.Equal(t, "kept the city name untranslated", out.Notes)
}

func TestParseTranslateOutputSurroundingNoise(t *testing.T) {
	raw := `Sure, here is the translation:
<translated_title>Kapitel Eins</translated_title>
<translated_content>Es war einmal.</translated_content>
<translation_notes></translation_notes>
I hope this helps!`

	out, err := parseTranslateOutput(raw)
	require.NoError(t, err)
	assert.Equal(t, "Kapitel Eins", out.Title)
	assert.Equal(t, "Es war einmal.", out.Content)
	assert.Empty(t, out.Notes)
}

func TestParseTranslateOutputMissingContent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no tags at all", "just plain prose output"},
		{"unclosed content tag", "<translated_content>partial"},
		{"empty content tag", "<translated_content>  </translated_content>"},
		{"title only", "<translated_title>t</translated_title>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTranslateOutput(tc.raw)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeMalformedLLMOutput))
		})
	}
}

func TestParseTranslateOutputOptionalTagsMissing(t *testing.T) {
	out, err := parseTranslateOutput("<translated_content>body</translated_content>")
	require.NoError(t, err)
	assert.Empty(t, out.Title)
	assert.Empty(t, out.Notes)
	assert.Equal(t, "body", out.Content)
}
