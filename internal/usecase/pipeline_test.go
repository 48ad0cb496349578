package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsintel/internal/config"
	"newsintel/internal/domain"
	"newsintel/internal/session"
)

type stubSource struct {
	mu     sync.Mutex
	calls  []domain.SearchQuery
	search func(domain.SearchQuery) ([]domain.Article, error)
}

func (s *stubSource) Search(_ context.Context, query domain.SearchQuery) ([]domain.Article, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()
	if s.search == nil {
		return nil, nil
	}
	return s.search(query)
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// stubProvider counts calls and tracks in-flight requests so tests can assert
// the sequential invariant.
type stubProvider struct {
	name     string
	models   []domain.ModelInfo
	listErr  error
	generate func(call int, req domain.GenerateRequest) (string, error)

	mu            sync.Mutex
	listCalls     int
	generateCalls int
	inFlight      int
	maxInFlight   int
}

func (p *stubProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *stubProvider) ListModels(context.Context, string) ([]domain.ModelInfo, error) {
	p.mu.Lock()
	p.listCalls++
	p.mu.Unlock()
	return p.models, p.listErr
}

func (p *stubProvider) Generate(_ context.Context, req domain.GenerateRequest) (string, error) {
	p.mu.Lock()
	p.generateCalls++
	call := p.generateCalls
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	// Keep the request in flight long enough for overlap to be observable.
	time.Sleep(time.Millisecond)

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.generate == nil {
		return "summary of " + req.Prompt, nil
	}
	return p.generate(call, req)
}

func (p *stubProvider) generateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generateCalls
}

type update struct {
	index   int
	article domain.Article
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []update
}

func (r *updateRecorder) record(index int, article domain.Article) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{index: index, article: article})
}

func (r *updateRecorder) all() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

func testArticles(titles ...string) []domain.Article {
	articles := make([]domain.Article, 0, len(titles))
	for _, title := range titles {
		articles = append(articles, domain.Article{
			Title:       title,
			Link:        "https://news.example.com/" + title,
			Description: "about " + title,
		})
	}
	return articles
}

func testTuning(maxAttempts int) config.PipelineConfig {
	return config.PipelineConfig{
		MaxAttempts:      maxAttempts,
		RetryDelay:       config.Duration(5 * time.Millisecond),
		RateLimitBackoff: config.Duration(5 * time.Millisecond),
		RequestTimeout:   config.Duration(500 * time.Millisecond),
		PacingMin:        config.Duration(2 * time.Millisecond),
		PacingMax:        config.Duration(4 * time.Millisecond),
	}
}

type pipelineFixture struct {
	pipeline  *Pipeline
	source    *stubSource
	primary   *stubProvider
	secondary *stubProvider
	recorder  *updateRecorder
	session   *session.Session
}

func newPipelineFixture(t *testing.T, deps PipelineDeps) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		source:   &stubSource{},
		primary:  &stubProvider{name: "primary"},
		recorder: &updateRecorder{},
	}

	if deps.Source == nil {
		deps.Source = f.source
	} else {
		f.source, _ = deps.Source.(*stubSource)
	}
	if deps.Primary == nil {
		deps.Primary = f.primary
	} else {
		f.primary, _ = deps.Primary.(*stubProvider)
	}
	if deps.Secondary != nil {
		f.secondary, _ = deps.Secondary.(*stubProvider)
	}

	if deps.Resolver == nil {
		cache := newFakeCache()
		creds := domain.Credentials{SourceKey: "news", PrimaryKey: "gemini"}
		if f.secondary != nil {
			creds.SecondaryKey = "groq"
		}
		cache.entries["u1"] = creds
		deps.Resolver = NewResolver(cache, newFakeStore(), "", nil)
	}
	if deps.Selector == nil {
		deps.Selector = NewModelSelector("models/gemini-1.5-flash", nil)
	}
	if deps.OnUpdate == nil {
		deps.OnUpdate = f.recorder.record
	}
	if deps.Tuning.MaxAttempts == 0 {
		deps.Tuning = testTuning(2)
	}
	if deps.News.MaxArticles == 0 {
		deps.News = config.NewsConfig{MaxArticles: 10, Language: "en", Country: "ph"}
	}
	if deps.FallbackModel == "" {
		deps.FallbackModel = "mixtral-8x7b-32768"
	}

	f.pipeline = NewPipeline(deps)
	f.session = session.New(domain.User{ID: "u1"}, session.NewGate(10*time.Minute))
	return f
}

func singleBatchSource(articles []domain.Article) *stubSource {
	return &stubSource{search: func(domain.SearchQuery) ([]domain.Article, error) {
		batch := make([]domain.Article, len(articles))
		copy(batch, articles)
		return batch, nil
	}}
}

func TestAnalyzeStatusTransitions(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, PipelineDeps{
		Source: singleBatchSource(testArticles("one", "two", "three")),
	})

	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.NoError(t, err)
	require.Len(t, run.Articles, 3)

	for i, article := range run.Articles {
		assert.Equal(t, domain.StatusDone, article.Status, "article %d", i)
		assert.NotEmpty(t, article.Summary, "article %d", i)
	}

	updates := f.recorder.all()
	require.Len(t, updates, 6, "two updates per article")

	for i := 0; i < 3; i++ {
		analyzing := updates[2*i]
		done := updates[2*i+1]
		assert.Equal(t, i, analyzing.index)
		assert.Equal(t, domain.StatusAnalyzing, analyzing.article.Status)
		assert.Equal(t, i, done.index)
		assert.Equal(t, domain.StatusDone, done.article.Status)
	}
}

func TestAnalyzeSequentialInvariant(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, PipelineDeps{
		Source: singleBatchSource(testArticles("a", "b", "c", "d")),
	})

	_, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "flood"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.primary.maxInFlight, "at most one generation request in flight")
}

func TestAnalyzeCredentialsMissingBeforeAnyCall(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(newFakeCache(), newFakeStore(), "", nil)
	f := newPipelineFixture(t, PipelineDeps{Resolver: resolver})

	_, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.ErrorIs(t, err, domain.ErrCredentialsMissing)

	assert.Zero(t, f.source.callCount(), "no source call before credentials resolve")
	assert.Zero(t, f.primary.generateCount(), "no provider call before credentials resolve")
	assert.Zero(t, f.primary.listCalls, "no model listing before credentials resolve")
	assert.True(t, f.session.Gate.TryEnter(), "cooldown must be cleared on precondition failure")
}

func TestAnalyzeDatedSearchRetriesUndated(t *testing.T) {
	t.Parallel()

	src := &stubSource{search: func(q domain.SearchQuery) ([]domain.Article, error) {
		if q.Day != nil {
			return nil, nil
		}
		return testArticles("latest"), nil
	}}
	f := newPipelineFixture(t, PipelineDeps{Source: src})

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon", Day: &day})
	require.NoError(t, err)

	require.Equal(t, 2, src.callCount())
	assert.NotNil(t, src.calls[0].Day, "first query carries the date bound")
	assert.Nil(t, src.calls[1].Day, "retry drops the date bound")
	require.Len(t, run.Articles, 1)
	assert.Equal(t, domain.StatusDone, run.Articles[0].Status)
}

func TestAnalyzeNoResultsIsFatal(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, PipelineDeps{
		Source: &stubSource{search: func(domain.SearchQuery) ([]domain.Article, error) {
			return nil, nil
		}},
	})

	_, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "nothing"})
	require.ErrorIs(t, err, domain.ErrNoResults)
	assert.Zero(t, f.primary.generateCount())
	assert.True(t, f.session.Gate.TryEnter(), "cooldown must be cleared when zero articles match")
}

func rateLimitedErr(provider string) error {
	return &domain.ProviderError{Provider: provider, Kind: domain.KindRateLimited, Status: 429, Message: "quota exhausted"}
}

func TestAnalyzeRateLimitFallsBackToSecondary(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "primary", generate: func(int, domain.GenerateRequest) (string, error) {
		return "", rateLimitedErr("primary")
	}}
	secondary := &stubProvider{name: "secondary"}

	f := newPipelineFixture(t, PipelineDeps{
		Source:    singleBatchSource(testArticles("one")),
		Primary:   primary,
		Secondary: secondary,
	})

	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.NoError(t, err, "rate limiting must never abort the run")

	// Two configured attempts plus the one free rate-limit retry.
	assert.Equal(t, 3, primary.generateCount())
	assert.Equal(t, 1, secondary.generateCount(), "exactly one secondary attempt")
	require.Len(t, run.Articles, 1)
	assert.Equal(t, domain.StatusDone, run.Articles[0].Status)
	assert.NotContains(t, run.Articles[0].Summary, "unavailable")
}

func TestAnalyzeRateLimitWithoutSecondaryRecordsPlaceholder(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "primary", generate: func(int, domain.GenerateRequest) (string, error) {
		return "", rateLimitedErr("primary")
	}}

	f := newPipelineFixture(t, PipelineDeps{
		Source:  singleBatchSource(testArticles("one")),
		Primary: primary,
	})

	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.NoError(t, err)

	require.Len(t, run.Articles, 1)
	assert.Equal(t, domain.StatusDone, run.Articles[0].Status)
	assert.Contains(t, run.Articles[0].Summary, "analysis unavailable")
}

func TestAnalyzeAuthorizationAbortsRun(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "primary", generate: func(int, domain.GenerateRequest) (string, error) {
		return "", &domain.ProviderError{Provider: "primary", Kind: domain.KindAuthorization, Status: 403, Message: "bad key"}
	}}
	secondary := &stubProvider{name: "secondary"}

	f := newPipelineFixture(t, PipelineDeps{
		Source:    singleBatchSource(testArticles("one", "two", "three")),
		Primary:   primary,
		Secondary: secondary,
	})

	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.Error(t, err)
	assert.True(t, domain.IsAuthorization(err), "error must surface the credential problem")

	require.NotNil(t, run)
	assert.Equal(t, 1, primary.generateCount(), "no retries against a rejected key")
	assert.Zero(t, secondary.generateCount(), "no fallback against a rejected key")
	assert.Equal(t, domain.StatusAnalyzing, run.Articles[0].Status)
	assert.Equal(t, domain.StatusPending, run.Articles[1].Status)
	assert.Equal(t, domain.StatusPending, run.Articles[2].Status)
	assert.True(t, f.session.Gate.TryEnter(), "cooldown must be cleared on authorization failure")
}

func TestAnalyzeCooldownBlocksSecondRun(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, PipelineDeps{
		Source: singleBatchSource(testArticles("one")),
	})

	_, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.NoError(t, err)

	_, err = f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.ErrorIs(t, err, domain.ErrCooldownActive)
}

func TestAnalyzeTransientRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attemptsByTitle := map[string]int{}
	primary := &stubProvider{name: "primary", generate: func(_ int, req domain.GenerateRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.Contains(req.Prompt, "two"):
			attemptsByTitle["two"]++
			if attemptsByTitle["two"] <= 2 {
				return "", &domain.ProviderError{Provider: "primary", Kind: domain.KindTransient, Message: "timeout"}
			}
			return "summary two", nil
		default:
			return "summary", nil
		}
	}}
	secondary := &stubProvider{name: "secondary"}

	tuning := testTuning(3)
	f := newPipelineFixture(t, PipelineDeps{
		Source:    singleBatchSource(testArticles("one", "two", "three")),
		Primary:   primary,
		Secondary: secondary,
		Tuning:    tuning,
	})

	start := time.Now()
	run, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{Keyword: "typhoon"})
	elapsed := time.Since(start)
	require.NoError(t, err)

	require.Len(t, run.Articles, 3)
	for i, article := range run.Articles {
		assert.Equal(t, domain.StatusDone, article.Status, "article %d", i)
		assert.NotEmpty(t, article.Summary, "article %d", i)
	}

	assert.Zero(t, secondary.generateCount(), "primary recovered, secondary untouched")
	assert.Equal(t, 5, primary.generateCount(), "one call each for articles 1 and 3, three for article 2")

	// Two transient retries for article 2 plus two inter-article pacing waits.
	minElapsed := 2*tuning.RetryDelay.Std() + 2*tuning.PacingMin.Std()
	assert.GreaterOrEqual(t, elapsed, minElapsed)
}

func TestAnalyzeEmptyKeywordRejected(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, PipelineDeps{})
	_, err := f.pipeline.Analyze(context.Background(), f.session, AnalyzeRequest{})
	require.Error(t, err)
	assert.Zero(t, f.source.callCount())
}

func TestAnalyzeCancelledContextStopsRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	primary := &stubProvider{name: "primary", generate: func(int, domain.GenerateRequest) (string, error) {
		cancel()
		return "", &domain.ProviderError{Provider: "primary", Kind: domain.KindTransient, Message: "boom"}
	}}

	f := newPipelineFixture(t, PipelineDeps{
		Source:  singleBatchSource(testArticles("one", "two")),
		Primary: primary,
	})

	_, err := f.pipeline.Analyze(ctx, f.session, AnalyzeRequest{Keyword: "typhoon"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.generateCount())
}
