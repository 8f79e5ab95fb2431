package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-api/internal/infrastructure/messaging"
)

type fakePublisher struct {
	published []struct {
		MsgType string
		Job     *messaging.ChapterJobMessage
	}
	err error
}

func (p *fakePublisher) PublishChapterJob(ctx context.Context, msgType string, job *messaging.ChapterJobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, struct {
		MsgType string
		Job     *messaging.ChapterJobMessage
	}{msgType, job})
	return "1-0", nil
}

func (p *fakePublisher) QueueHealth(ctx context.Context) ([]messaging.StreamHealth, error) {
	return []messaging.StreamHealth{{Stream: "stream:chapter:gen", Length: 3}}, nil
}

func TestTriggerFirstChapter(t *testing.T) {
	pub := &fakePublisher{}
	s := NewScheduler(pub)

	jobID := s.TriggerFirstChapter(context.Background(), "s1", "a detective wakes up with no memory")
	require.NotEmpty(t, jobID)

	require.Len(t, pub.published, 1)
	assert.Equal(t, messaging.MsgTypeFirstChapter, pub.published[0].MsgType)
	assert.Equal(t, "s1", pub.published[0].Job.StoryID)
	assert.Equal(t, "a detective wakes up with no memory", pub.published[0].Job.Directive)
}

func TestTriggerFirstChapterSwallowsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	s := NewScheduler(pub)

	// 触发即忘：入队失败不升级为调用方错误
	jobID := s.TriggerFirstChapter(context.Background(), "s1", "premise")
	assert.Empty(t, jobID)
}

func TestTriggerNextChapterOnRating(t *testing.T) {
	pub := &fakePublisher{}
	s := NewScheduler(pub)

	jobID := s.TriggerNextChapterOnRating(context.Background(), "s1", RatingFeedback{
		Score:   4,
		Reasons: []string{"pacing", "dialogue"},
		Comment: "more of the sister please",
	})
	require.NotEmpty(t, jobID)

	require.Len(t, pub.published, 1)
	assert.Equal(t, messaging.MsgTypeNextChapter, pub.published[0].MsgType)

	directive := pub.published[0].Job.Directive
	assert.Contains(t, directive, "rated the previous chapter 4 out of 5")
	assert.Contains(t, directive, "pacing; dialogue")
	assert.Contains(t, directive, "more of the sister please")
}

func TestBuildContinuationDirectiveMinimal(t *testing.T) {
	directive := BuildContinuationDirective(RatingFeedback{Score: 2})

	assert.Contains(t, directive, "2 out of 5")
	assert.NotContains(t, directive, "highlighted")
	assert.NotContains(t, directive, "comment")
}
