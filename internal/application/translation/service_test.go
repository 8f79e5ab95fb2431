package translation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-api/internal/config"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/infrastructure/llm"
	"storyloom-api/internal/infrastructure/persistence/localcache"
	"storyloom-api/internal/infrastructure/messaging"
	apperrors "storyloom-api/pkg/errors"
)

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.TranslationRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[string]*entity.TranslationRequest)}
}

func (r *fakeRequestRepo) CreateIfAbsent(ctx context.Context, req *entity.TranslationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.Key() == req.Key() && !existing.Status.IsTerminal() {
			return apperrors.ErrDuplicateRequest
		}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *fakeRequestRepo) GetByID(ctx context.Context, id string) (*entity.TranslationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *fakeRequestRepo) GetLatestByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.TranslationRequest
	for _, req := range r.requests {
		if req.Key() != key {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeRequestRepo) GetActiveByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.Key() == key && !req.Status.IsTerminal() {
			cp := *req
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRequestRepo) Update(ctx context.Context, req *entity.TranslationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

type fakeTranslationRepo struct {
	mu           sync.Mutex
	translations map[entity.TranslationKey]*entity.Translation
	getCalls     int
	usageCalls   int
}

func newFakeTranslationRepo() *fakeTranslationRepo {
	return &fakeTranslationRepo{translations: make(map[entity.TranslationKey]*entity.Translation)}
}

func (r *fakeTranslationRepo) Save(ctx context.Context, t *entity.Translation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	r.translations[t.Key()] = &cp
	return nil
}

func (r *fakeTranslationRepo) GetByKey(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	t, ok := r.translations[key]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTranslationRepo) IncrementUsage(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usageCalls++
	for _, t := range r.translations {
		if t.ID == id {
			t.UsageCount++
		}
	}
	return nil
}

func (r *fakeTranslationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for key, t := range r.translations {
		if t.CreatedAt.Before(cutoff) {
			delete(r.translations, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeStoryRepo struct {
	stories map[string]*entity.Story
}

func (r *fakeStoryRepo) Create(ctx context.Context, story *entity.Story) error { return nil }

func (r *fakeStoryRepo) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	return r.stories[id], nil
}

func (r *fakeStoryRepo) ListByOwner(ctx context.Context, ownerID string, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	return nil, nil
}

func (r *fakeStoryRepo) UpdateConversationHistory(ctx context.Context, storyID string, history []entity.HistoryEntry) error {
	return nil
}

type fakeChapterRepo struct {
	chapters map[string][]*entity.Chapter
}

func (r *fakeChapterRepo) Create(ctx context.Context, ch *entity.Chapter) error { return nil }

func (r *fakeChapterRepo) GetByStoryAndSeq(ctx context.Context, storyID string, seqNum int) (*entity.Chapter, error) {
	for _, ch := range r.chapters[storyID] {
		if ch.SeqNum == seqNum {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChapterRepo) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	return r.chapters[storyID], nil
}

func (r *fakeChapterRepo) CountByStory(ctx context.Context, storyID string) (int64, error) {
	return int64(len(r.chapters[storyID])), nil
}

type fakeTranslator struct {
	out   *llm.TranslateOutput
	err   error
	block bool
	calls int
}

func (t *fakeTranslator) Translate(ctx context.Context, in *llm.TranslateInput) (*llm.TranslateOutput, error) {
	t.calls++
	if t.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.out, nil
}

type fakeJobPublisher struct {
	jobs []*messaging.TranslationJobMessage
	err  error
}

func (p *fakeJobPublisher) PublishTranslationJob(ctx context.Context, job *messaging.TranslationJobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, job)
	return "1-0", nil
}

var testKey = entity.TranslationKey{StoryID: "s1", ChapterNum: 1, TargetLanguage: "ja"}

type testEnv struct {
	svc        *Service
	requests   *fakeRequestRepo
	repo       *fakeTranslationRepo
	translator *fakeTranslator
	publisher  *fakeJobPublisher
	local      *localcache.Cache
}

func newTestEnv(t *testing.T, translator *fakeTranslator) *testEnv {
	t.Helper()
	requests := newFakeRequestRepo()
	repo := newFakeTranslationRepo()
	publisher := &fakeJobPublisher{}
	local := localcache.New(10 * time.Minute)

	stories := &fakeStoryRepo{stories: map[string]*entity.Story{"s1": {ID: "s1"}}}
	chapters := &fakeChapterRepo{chapters: map[string][]*entity.Chapter{
		"s1": {{StoryID: "s1", SeqNum: 1, Title: "One", ContentText: "He opened the door and the cold night air followed him inside the empty house."}},
	}}

	svc := NewService(requests, repo, stories, chapters, translator, publisher, local, &config.TranslationConfig{
		GenerateTimeout: 2 * time.Minute,
		LocalCacheTTL:   10 * time.Minute,
		Retention:       90 * 24 * time.Hour,
	})
	return &testEnv{svc: svc, requests: requests, repo: repo, translator: translator, publisher: publisher, local: local}
}

func goodOutput() *llm.TranslateOutput {
	return &llm.TranslateOutput{
		Title:   "第一章",
		Content: "彼はドアを開けた 冷たい夜気が あとから 空き家の中へ 入ってきた のだった それきり 静かになった",
		Notes:   "kept proper nouns",
	}
}

func TestRequestAcceptsAndEnqueues(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusPending, req.Status)

	require.Len(t, env.publisher.jobs, 1)
	assert.Equal(t, req.ID, env.publisher.jobs[0].RequestID)
	assert.Equal(t, "ja", env.publisher.jobs[0].TargetLanguage)
}

func TestRequestDuplicateConflicts(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	_, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)

	_, err = env.svc.Request(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateRequest))
}

func TestRequestAllowedAfterTerminalState(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{err: errors.New("provider down")})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)

	require.Error(t, env.svc.Process(context.Background(), req.ID))

	// 失败是终态，同键可再次受理
	_, err = env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)
}

func TestRequestAfterCompletionConflicts(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(context.Background(), req.ID))

	// 译文已落库，同键不再受理也不再入队
	jobs := len(env.publisher.jobs)
	_, err = env.svc.Request(context.Background(), testKey)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateRequest))
	assert.Len(t, env.publisher.jobs, jobs)
}

func TestRequestUnknownChapter(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	_, err := env.svc.Request(context.Background(), entity.TranslationKey{StoryID: "s1", ChapterNum: 9, TargetLanguage: "ja"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterNotFound))
}

func TestProcessCompletesRequest(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)

	require.NoError(t, env.svc.Process(context.Background(), req.ID))

	stored, err := env.requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusCompleted, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	translation, err := env.repo.GetByKey(context.Background(), testKey)
	require.NoError(t, err)
	require.NotNil(t, translation)
	assert.Equal(t, "第一章", translation.TranslatedTitle)
	assert.Positive(t, translation.QualityScore)
}

func TestProcessFailureRecordsError(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{err: errors.New("provider down")})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)

	require.Error(t, env.svc.Process(context.Background(), req.ID))

	stored, err := env.requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "provider down")
}

func TestProcessTimeout(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{block: true})
	env.svc.cfg = &config.TranslationConfig{
		GenerateTimeout: 20 * time.Millisecond,
		LocalCacheTTL:   time.Minute,
		Retention:       time.Hour,
	}

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)

	err = env.svc.Process(context.Background(), req.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeTranslationTimeout))

	stored, getErr := env.requests.GetByID(context.Background(), req.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.TranslationStatusFailed, stored.Status)
	assert.Equal(t, "translation timed out", stored.ErrorMessage)
}

func TestProcessTerminalRequestIsNoop(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	req, err := env.svc.Request(context.Background(), testKey)
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(context.Background(), req.ID))

	calls := env.translator.calls
	require.NoError(t, env.svc.Process(context.Background(), req.ID))
	assert.Equal(t, calls, env.translator.calls)
}

func TestStatusPrecedence(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	// 无任何记录
	result, err := env.svc.Status(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusNotRequested, result.Status)

	// 受理后为 pending
	req, err := env.svc.Request(ctx, testKey)
	require.NoError(t, err)
	result, err = env.svc.Status(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusPending, result.Status)

	// 完成后以持久化翻译为准
	require.NoError(t, env.svc.Process(ctx, req.ID))
	result, err = env.svc.Status(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusCompleted, result.Status)
	require.NotNil(t, result.Translation)
}

func TestStatusPrefersTranslationOverFailedRequest(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	// 持久化翻译在手时，历史失败请求不影响状态
	require.NoError(t, env.repo.Save(ctx, entity.NewTranslation(testKey, "t", "c", "", 1.0)))
	failed := entity.NewTranslationRequest(testKey)
	failed.Fail("old failure")
	require.NoError(t, env.requests.CreateIfAbsent(ctx, failed))

	result, err := env.svc.Status(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, entity.TranslationStatusCompleted, result.Status)
}

func TestGetHitsLocalCacheWithoutRepo(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	require.NoError(t, env.repo.Save(ctx, entity.NewTranslation(testKey, "t", "c", "", 1.0)))

	// 首次：穿透到持久层并回填本地
	first, err := env.svc.Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, first)
	repoCalls := env.repo.getCalls

	// 二次：本地命中，不再触达持久层
	second, err := env.svc.Get(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, repoCalls, env.repo.getCalls)
	assert.Equal(t, first.TranslatedContent, second.TranslatedContent)
}

func TestGetDurableHitIncrementsUsage(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	saved := entity.NewTranslation(testKey, "t", "c", "", 1.0)
	require.NoError(t, env.repo.Save(ctx, saved))

	_, err := env.svc.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, env.repo.usageCalls)

	stored, err := env.repo.GetByKey(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UsageCount)
}

func TestGetMissReturnsNil(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})

	translation, err := env.svc.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Nil(t, translation)
}

func TestTranslateNowPopulatesBothTiers(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	translation, err := env.svc.TranslateNow(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, translation)
	assert.Equal(t, 1, env.translator.calls)

	// 持久层已有记录
	stored, err := env.repo.GetByKey(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// 再次调用命中缓存，不再触发翻译
	_, err = env.svc.TranslateNow(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, env.translator.calls)
}

func TestSweepDeletesExpired(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	old := entity.NewTranslation(testKey, "t", "c", "", 1.0)
	old.CreatedAt = time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, env.repo.Save(ctx, old))

	fresh := entity.NewTranslation(entity.TranslationKey{StoryID: "s1", ChapterNum: 1, TargetLanguage: "de"}, "t", "c", "", 1.0)
	require.NoError(t, env.repo.Save(ctx, fresh))

	deleted, err := env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := env.repo.GetByKey(ctx, fresh.Key())
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}

func TestTranslateContentInlineUsesLocalCacheOnly(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	in := translationInput()
	result, err := env.svc.TranslateContent(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, env.translator.calls)
	assert.NotZero(t, result.QualityScore)

	// 无复合键不落持久层
	assert.Zero(t, env.repo.getCalls)

	// 相同原文二次调用命中本地缓存
	_, err = env.svc.TranslateContent(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, env.translator.calls)
}

func TestTranslateContentWithKeyPersists(t *testing.T) {
	env := newTestEnv(t, &fakeTranslator{out: goodOutput()})
	ctx := context.Background()

	in := translationInput()
	in.StoryID = testKey.StoryID
	in.ChapterNum = testKey.ChapterNum

	_, err := env.svc.TranslateContent(ctx, in)
	require.NoError(t, err)

	stored, err := env.repo.GetByKey(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func translationInput() ContentInput {
	return ContentInput{
		Title:          "The Quiet Harbor",
		Content:        "The tide went out and did not come back for three days.",
		TargetLanguage: "ja",
	}
}
