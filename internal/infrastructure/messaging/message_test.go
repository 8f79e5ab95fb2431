package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	// 超过上限后封顶
	assert.Equal(t, time.Minute, cfg.CalculateBackoff(10))
}

func TestMessagePayloadRoundTrip(t *testing.T) {
	msg, err := NewMessage("job-1", MsgTypeNextChapter, "story-1", ChapterJobMessage{
		JobID:     "job-1",
		StoryID:   "story-1",
		Directive: "the reader liked the pacing",
	})
	require.NoError(t, err)

	var payload ChapterJobMessage
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, "story-1", payload.StoryID)
	assert.Equal(t, "the reader liked the pacing", payload.Directive)
}

func TestDLQStreamNaming(t *testing.T) {
	assert.Equal(t, "dlq:stream:chapter:gen", StreamChapterGen.DLQStream())
	assert.Equal(t, "dlq:stream:translation:req", StreamTranslationReq.DLQStream())
}
