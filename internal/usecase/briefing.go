package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsintel/internal/config"
	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

// Synthesizer produces one aggregate briefing over a run's summaries. It is a
// best-effort enrichment: the single provider call runs under a long bound
// and any failure resolves to a diagnostic briefing text instead of an error.
type Synthesizer struct {
	provider ports.ModelProvider
	cfg      config.BriefingConfig
	logger   *slog.Logger
}

// NewSynthesizer reuses the pipeline's primary provider.
func NewSynthesizer(provider ports.ModelProvider, cfg config.BriefingConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{provider: provider, cfg: cfg, logger: logger}
}

// Synthesize builds one prompt over every summarized article and issues a
// single generation call with the model the run already selected. The source
// articles are never mutated. The only error is the empty-input precondition.
func (s *Synthesizer) Synthesize(ctx context.Context, run *domain.Run, primaryKey, model string) (domain.Briefing, error) {
	briefing := domain.Briefing{Model: model, GeneratedAt: time.Now()}

	if run == nil {
		return briefing, fmt.Errorf("no run to synthesize")
	}
	summarized := run.Summarized()
	if len(summarized) == 0 {
		return briefing, fmt.Errorf("run %s has no summarized articles", run.ID)
	}

	callCtx := ctx
	if timeout := s.cfg.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := s.provider.Generate(callCtx, domain.GenerateRequest{
		Model:  model,
		APIKey: primaryKey,
		Prompt: s.buildPrompt(summarized),
	})
	if err != nil {
		s.logger.Error("briefing synthesis failed", "run", run.ID, "error", err)
		briefing.Text = fmt.Sprintf("briefing unavailable: %v", err)
		return briefing, nil
	}
	if text == "" {
		briefing.Text = "briefing unavailable: provider returned an empty response"
		return briefing, nil
	}

	briefing.Text = text
	return briefing, nil
}

func (s *Synthesizer) buildPrompt(articles []domain.Article) string {
	var b strings.Builder
	b.WriteString(s.cfg.Prompt)
	for _, a := range articles {
		b.WriteString("\n")
		b.WriteString(a.Title)
		b.WriteString(": ")
		b.WriteString(a.Summary)
	}
	return b.String()
}
