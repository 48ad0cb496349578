package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"newsintel/internal/config"
	"newsintel/internal/domain"
	"newsintel/internal/ports"
	"newsintel/internal/session"
)

// UpdateFunc receives an incremental snapshot every time an article changes
// state. Calls are strictly sequential and monotonic in index.
type UpdateFunc func(index int, article domain.Article)

// PipelineDeps wires all driven adapters into the summarization pipeline.
type PipelineDeps struct {
	Source    ports.ArticleSource
	Primary   ports.ModelProvider
	Secondary ports.ModelProvider
	Resolver  *Resolver
	Selector  *ModelSelector
	Extractor ports.Extractor
	OnUpdate  UpdateFunc
	Logger    *slog.Logger

	News          config.NewsConfig
	Tuning        config.PipelineConfig
	FallbackModel string
}

// Pipeline implements the sequential multi-provider summarization workflow:
// one article at a time, per-item retry against the primary provider with
// rate-limit backoff, a single-shot secondary fallback, and randomized pacing
// between items. At most one generation request is ever in flight.
type Pipeline struct {
	source    ports.ArticleSource
	primary   ports.ModelProvider
	secondary ports.ModelProvider
	resolver  *Resolver
	selector  *ModelSelector
	extractor ports.Extractor
	onUpdate  UpdateFunc
	logger    *slog.Logger

	news          config.NewsConfig
	tuning        config.PipelineConfig
	fallbackModel string
}

// AnalyzeRequest names one user-triggered run.
type AnalyzeRequest struct {
	Keyword string
	Day     *time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	onUpdate := deps.OnUpdate
	if onUpdate == nil {
		onUpdate = func(int, domain.Article) {}
	}

	tuning := deps.Tuning
	if tuning.MaxAttempts <= 0 {
		tuning.MaxAttempts = 2
	}

	return &Pipeline{
		source:        deps.Source,
		primary:       deps.Primary,
		secondary:     deps.Secondary,
		resolver:      deps.Resolver,
		selector:      deps.Selector,
		extractor:     deps.Extractor,
		onUpdate:      onUpdate,
		logger:        logger,
		news:          deps.News,
		tuning:        tuning,
		fallbackModel: deps.FallbackModel,
	}
}

// Analyze executes one full run for the session: cooldown check, credential
// resolution, model selection, article search, then the sequential per-item
// loop. Fatal outcomes reset the cooldown gate so the user may retry
// immediately; per-article failures never abort the run.
func (p *Pipeline) Analyze(ctx context.Context, sess *session.Session, req AnalyzeRequest) (*domain.Run, error) {
	if req.Keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}

	if !sess.Gate.TryEnter() {
		return nil, fmt.Errorf("retry in %s: %w", sess.Gate.Remaining().Round(time.Second), domain.ErrCooldownActive)
	}

	creds, err := p.resolver.Resolve(ctx, sess.User)
	if err != nil {
		sess.Gate.Reset()
		return nil, err
	}

	selection := p.selector.Select(ctx, p.primary, creds.PrimaryKey)

	p.logger.Info("searching news", "keyword", req.Keyword, "dated", req.Day != nil)
	articles, err := p.search(ctx, req, creds.SourceKey)
	if err != nil {
		sess.Gate.Reset()
		return nil, err
	}

	run := domain.NewRun(req.Keyword, req.Day, articles)
	run.Model = selection
	sess.SetRun(run)

	if err := p.process(ctx, run, creds, selection.ModelID); err != nil {
		sess.Gate.Reset()
		return run, err
	}

	p.logger.Info("analysis complete", "run", run.ID, "articles", len(run.Articles))
	return run, nil
}

// search queries the configured source, retrying once without the date bound
// when a dated query comes back empty.
func (p *Pipeline) search(ctx context.Context, req AnalyzeRequest, sourceKey string) ([]domain.Article, error) {
	query := domain.SearchQuery{
		Keyword:  req.Keyword,
		Day:      req.Day,
		Max:      p.news.MaxArticles,
		Language: p.news.Language,
		Country:  p.news.Country,
		APIKey:   sourceKey,
	}

	articles, err := p.source.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	if len(articles) == 0 && query.Day != nil {
		p.logger.Info("dated search empty, retrying latest", "keyword", req.Keyword)
		query.Day = nil
		articles, err = p.source.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search latest articles: %w", err)
		}
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("keyword %q: %w", req.Keyword, domain.ErrNoResults)
	}

	return articles, nil
}

func (p *Pipeline) process(ctx context.Context, run *domain.Run, creds domain.Credentials, model string) error {
	total := len(run.Articles)
	for i := range run.Articles {
		run.CurrentIndex = i
		article := &run.Articles[i]

		article.Status = domain.StatusAnalyzing
		p.onUpdate(i, *article)
		p.logger.Info("analyzing article", "index", i+1, "total", total, "title", article.Title)

		summary, err := p.summarize(ctx, article, creds, model)
		if err != nil {
			return err
		}

		article.Summary = summary
		article.Status = domain.StatusDone
		p.onUpdate(i, *article)

		if i < total-1 {
			if err := p.pace(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// summarize runs the per-article retry ladder. Only authorization errors and
// context cancellation escape as errors; everything else resolves to a
// summary string, possibly a diagnostic placeholder.
func (p *Pipeline) summarize(ctx context.Context, article *domain.Article, creds domain.Credentials, model string) (string, error) {
	prompt := p.buildPrompt(ctx, article)

	var lastErr error
	remaining := p.tuning.MaxAttempts
	freeRateRetry := true

	for remaining > 0 {
		text, err := p.generate(ctx, p.primary, model, creds.PrimaryKey, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("run cancelled: %w", ctx.Err())
		}

		if domain.IsAuthorization(err) {
			// The key itself is bad; burning retries or falling through to
			// the secondary would only mask it.
			return "", fmt.Errorf("primary provider rejected credentials: %w", err)
		}

		if domain.IsRateLimited(err) {
			p.logger.Warn("primary rate limited, backing off", "backoff", p.tuning.RateLimitBackoff.Std())
			if waitErr := p.wait(ctx, p.tuning.RateLimitBackoff.Std()); waitErr != nil {
				return "", waitErr
			}
			if freeRateRetry {
				freeRateRetry = false
				continue
			}
			remaining--
			continue
		}

		remaining--
		p.logger.Warn("primary attempt failed", "remaining", remaining, "error", err)
		if remaining > 0 {
			if waitErr := p.wait(ctx, p.tuning.RetryDelay.Std()); waitErr != nil {
				return "", waitErr
			}
		}
	}

	if p.secondary != nil && creds.SecondaryKey != "" {
		p.logger.Warn("primary exhausted, switching to fallback provider", "provider", p.secondary.Name())
		text, err := p.generate(ctx, p.secondary, p.fallbackModel, creds.SecondaryKey, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("run cancelled: %w", ctx.Err())
		}
		p.logger.Error("fallback provider failed", "error", err)
		return "analysis unavailable: primary and fallback providers both failed", nil
	}

	p.logger.Error("article analysis failed", "error", lastErr)
	return "analysis unavailable: primary provider failed and no fallback key is configured", nil
}

// generate issues exactly one bounded request; an empty response body counts
// as a transient failure.
func (p *Pipeline) generate(ctx context.Context, provider ports.ModelProvider, model, apiKey, prompt string) (string, error) {
	callCtx := ctx
	if timeout := p.tuning.RequestTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := provider.Generate(callCtx, domain.GenerateRequest{
		Model:  model,
		APIKey: apiKey,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", &domain.ProviderError{
			Provider: provider.Name(),
			Kind:     domain.KindTransient,
			Message:  "empty generation response",
		}
	}

	return text, nil
}

func (p *Pipeline) buildPrompt(ctx context.Context, article *domain.Article) string {
	content := article.Description
	if content == "" && p.extractor != nil {
		extractCtx := ctx
		if timeout := p.tuning.ExtractTimeout.Std(); timeout > 0 {
			var cancel context.CancelFunc
			extractCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		extracted, err := p.extractor.Extract(extractCtx, article.Link)
		if err != nil {
			p.logger.Debug("content extraction failed, using title only", "link", article.Link, "error", err)
		} else {
			content = extracted
		}
	}

	prompt := fmt.Sprintf("Summarize this Philippine news story in 3 concise sentences.\nTitle: %q", article.Title)
	if content != "" {
		prompt += "\nContent: " + content
	}
	return prompt
}

// pace sleeps a randomized delay between articles to stay under provider
// throttling thresholds.
func (p *Pipeline) pace(ctx context.Context) error {
	min := p.tuning.PacingMin.Std()
	max := p.tuning.PacingMax.Std()
	if min <= 0 && max <= 0 {
		return nil
	}
	if max < min {
		max = min
	}

	delay := min
	if span := max - min; span > 0 {
		delay += rand.N(span)
	}

	return p.wait(ctx, delay)
}

func (p *Pipeline) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("run cancelled: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
