package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-api/internal/config"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/infrastructure/llm"
	apperrors "storyloom-api/pkg/errors"
)

// fakeStore 内存仓储，记录写入顺序供断言
type fakeStore struct {
	mu       sync.Mutex
	stories  map[string]*entity.Story
	chapters map[string][]*entity.Chapter
	writeLog []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stories:  make(map[string]*entity.Story),
		chapters: make(map[string][]*entity.Chapter),
	}
}

func (s *fakeStore) Create(ctx context.Context, story *entity.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	story, ok := s.stories[id]
	if !ok {
		return nil, nil
	}
	cp := *story
	cp.ConversationHistory = append([]entity.HistoryEntry(nil), story.ConversationHistory...)
	return &cp, nil
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID string, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	return nil, nil
}

func (s *fakeStore) UpdateConversationHistory(ctx context.Context, storyID string, history []entity.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLog = append(s.writeLog, "history:"+storyID)
	s.stories[storyID].ConversationHistory = append([]entity.HistoryEntry(nil), history...)
	return nil
}

type fakeChapterRepo struct {
	store *fakeStore
}

func (r *fakeChapterRepo) Create(ctx context.Context, chapter *entity.Chapter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.writeLog = append(r.store.writeLog, fmt.Sprintf("chapter:%s:%d", chapter.StoryID, chapter.SeqNum))
	r.store.chapters[chapter.StoryID] = append(r.store.chapters[chapter.StoryID], chapter)
	return nil
}

func (r *fakeChapterRepo) GetByStoryAndSeq(ctx context.Context, storyID string, seqNum int) (*entity.Chapter, error) {
	for _, ch := range r.store.chapters[storyID] {
		if ch.SeqNum == seqNum {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChapterRepo) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	return r.store.chapters[storyID], nil
}

func (r *fakeChapterRepo) CountByStory(ctx context.Context, storyID string) (int64, error) {
	return int64(len(r.store.chapters[storyID])), nil
}

// fakeGenerator 生成固定标记文本，并记录收到的历史
type fakeGenerator struct {
	output      string
	seenHistory []entity.HistoryEntry
	seenPrompts []string
	streamWords []int
}

func (g *fakeGenerator) Generate(ctx context.Context, in *llm.ChapterInput, onWords func(int)) (*llm.ChapterOutput, error) {
	g.seenHistory = append([]entity.HistoryEntry(nil), in.History...)
	g.seenPrompts = append(g.seenPrompts, in.Directive)
	for _, w := range g.streamWords {
		if onWords != nil {
			onWords(w)
		}
	}
	return &llm.ChapterOutput{Raw: g.output}, nil
}

func longBody(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("<p>The rain kept falling over the silent harbor town while the keeper watched from the tower window.</p>")
	}
	return sb.String()
}

func newTestOrchestrator(store *fakeStore, gen ChapterGenerator) *Orchestrator {
	chapters := &fakeChapterRepo{store: store}
	return NewOrchestrator(
		store,
		chapters,
		NewHistoryManager(store, chapters),
		gen,
		&config.GenerationConfig{MinChapterRunes: 100, TargetWordCount: 2000},
	)
}

func TestGenerateFirstChapterPersistsChapterThenHistory(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1", Title: "Harbor Lights"}

	gen := &fakeGenerator{output: "<chapter><title>Arrival</title>" + longBody(3) + "</chapter>"}
	orch := newTestOrchestrator(store, gen)

	chapter, returned, err := orch.GenerateFirstChapter(context.Background(), "s1", "a lighthouse keeper finds a letter", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, chapter.SeqNum)
	assert.Equal(t, "Arrival", chapter.Title)
	assert.NotContains(t, chapter.ContentText, "<p>")
	assert.Positive(t, chapter.WordCount)

	// 先章节后历史
	require.Len(t, store.writeLog, 2)
	assert.Equal(t, "chapter:s1:1", store.writeLog[0])
	assert.Equal(t, "history:s1", store.writeLog[1])

	// 历史只收包装后的章节，不收用户指令
	history := store.stories["s1"].ConversationHistory
	require.Len(t, history, 1)
	assert.Equal(t, entity.HistoryRoleAssistant, history[0].Role)
	assert.Contains(t, history[0].Content, "<chapter seq=\"1\" title=\"Arrival\">")
	assert.Equal(t, history, returned)
}

func TestHistoryEntriesMatchChapterCount(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}
	store.chapters["s1"] = []*entity.Chapter{
		{StoryID: "s1", SeqNum: 1, Title: "One", ContentText: "first"},
		{StoryID: "s1", SeqNum: 2, Title: "Two", ContentText: "second"},
	}

	gen := &fakeGenerator{output: "<title>Three</title>" + longBody(3)}
	orch := newTestOrchestrator(store, gen)

	_, returned, err := orch.ContinueStory(context.Background(), "s1", "keep going", nil)
	require.NoError(t, err)

	// 历史条目与章节严格 1:1，全部为 assistant 角色
	history := store.stories["s1"].ConversationHistory
	require.Len(t, history, len(store.chapters["s1"]))
	require.Len(t, history, 3)
	for i, e := range history {
		assert.Equal(t, entity.HistoryRoleAssistant, e.Role)
		assert.Contains(t, e.Content, fmt.Sprintf("seq=\"%d\"", i+1))
	}
	assert.Equal(t, history, returned)
}

func TestGenerateFirstChapterRejectsExisting(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}
	store.chapters["s1"] = []*entity.Chapter{{StoryID: "s1", SeqNum: 1}}

	orch := newTestOrchestrator(store, &fakeGenerator{output: longBody(3)})

	_, _, err := orch.GenerateFirstChapter(context.Background(), "s1", "premise", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestContinueStoryRebuildsHistoryFromChapters(t *testing.T) {
	store := newFakeStore()
	// 历史缺失但章节在库：重建后应按序号升序注入生成器
	store.stories["s1"] = &entity.Story{ID: "s1"}
	store.chapters["s1"] = []*entity.Chapter{
		{StoryID: "s1", SeqNum: 2, Title: "Two", ContentText: "second"},
		{StoryID: "s1", SeqNum: 1, Title: "One", ContentText: "first"},
	}

	gen := &fakeGenerator{output: "<title>Three</title>" + longBody(3)}
	orch := newTestOrchestrator(store, gen)

	chapter, _, err := orch.ContinueStory(context.Background(), "s1", "keep going", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, chapter.SeqNum)

	require.Len(t, gen.seenHistory, 2)
	assert.Contains(t, gen.seenHistory[0].Content, `seq="1"`)
	assert.Contains(t, gen.seenHistory[1].Content, `seq="2"`)

	// 重建只读：唯一的历史写入发生在新章节之后
	require.Len(t, store.writeLog, 2)
	assert.Equal(t, "chapter:s1:3", store.writeLog[0])
	assert.Equal(t, "history:s1", store.writeLog[1])
}

func TestContinueStoryRequiresExistingChapters(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}

	orch := newTestOrchestrator(store, &fakeGenerator{output: longBody(3)})

	_, _, err := orch.ContinueStory(context.Background(), "s1", "go on", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestGenerateRejectsShortContentWithoutPersisting(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}

	orch := newTestOrchestrator(store, &fakeGenerator{output: "<p>too short</p>"})

	_, _, err := orch.GenerateFirstChapter(context.Background(), "s1", "premise", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeContentTooShort))

	// 拒绝时不得有任何持久化副作用
	assert.Empty(t, store.writeLog)
	assert.Empty(t, store.chapters["s1"])
}

func TestGeneratePrivateStorySkipsPersistence(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1", IsPrivate: true}

	orch := newTestOrchestrator(store, &fakeGenerator{output: longBody(3)})

	chapter, returned, err := orch.GenerateFirstChapter(context.Background(), "s1", "premise", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, chapter.SeqNum)

	assert.Empty(t, store.writeLog)
	assert.Empty(t, store.chapters["s1"])
	assert.Empty(t, store.stories["s1"].ConversationHistory)

	// 不落库也要返回更新后的历史
	require.Len(t, returned, 1)
	assert.Equal(t, entity.HistoryRoleAssistant, returned[0].Role)
}

func TestGenerateStoryNotFound(t *testing.T) {
	orch := newTestOrchestrator(newFakeStore(), &fakeGenerator{output: longBody(3)})

	_, _, err := orch.GenerateFirstChapter(context.Background(), "missing", "premise", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStoryNotFound))
}

func TestProgressIsMonotonicAndEndsAtHundred(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}

	gen := &fakeGenerator{
		output:      longBody(3),
		streamWords: []int{100, 500, 500, 3000, 5000},
	}
	orch := newTestOrchestrator(store, gen)

	var percents []int
	var steps []string
	_, _, err := orch.GenerateFirstChapter(context.Background(), "s1", "premise", func(p int, step string) {
		percents = append(percents, p)
		steps = append(steps, step)
	})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.Greater(t, percents[i], percents[i-1], "progress must be strictly increasing at index %d", i)
	}
	assert.LessOrEqual(t, percents[len(percents)-2], 99)
	assert.Equal(t, StepWriting, steps[len(steps)-2])
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.Equal(t, StepFinalizing, steps[len(steps)-1])
}

func TestDefaultTitleWhenMissing(t *testing.T) {
	store := newFakeStore()
	store.stories["s1"] = &entity.Story{ID: "s1"}

	orch := newTestOrchestrator(store, &fakeGenerator{output: longBody(3)})

	chapter, _, err := orch.GenerateFirstChapter(context.Background(), "s1", "premise", nil)
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1", chapter.Title)
}
