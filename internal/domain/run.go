package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is the ephemeral aggregate of one analysis pass. It lives for a single
// pipeline execution and is never persisted.
type Run struct {
	ID           string
	Keyword      string
	Day          *time.Time
	Articles     []Article
	CurrentIndex int
	Model        ModelSelection
	StartedAt    time.Time
}

// NewRun wraps freshly fetched articles into a run, marking them all pending.
func NewRun(keyword string, day *time.Time, articles []Article) *Run {
	for i := range articles {
		articles[i].Status = StatusPending
	}
	return &Run{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Day:       day,
		Articles:  articles,
		StartedAt: time.Now(),
	}
}

// Summarized returns the articles that ended up with a summary attached.
func (r *Run) Summarized() []Article {
	out := make([]Article, 0, len(r.Articles))
	for _, a := range r.Articles {
		if a.Status == StatusDone && a.Summary != "" {
			out = append(out, a)
		}
	}
	return out
}

// Briefing is an aggregate summary synthesized over one run's articles.
type Briefing struct {
	Text        string
	Model       string
	GeneratedAt time.Time
}

// ModelSelection records the model chosen for a provider, valid for one run.
type ModelSelection struct {
	Provider string
	ModelID  string
}

// ModelInfo is a normalized catalog entry from a provider's listing endpoint.
type ModelInfo struct {
	ID                 string
	SupportsGeneration bool
	Heavyweight        bool
}

// GenerateRequest is a single-turn text generation call against a provider.
type GenerateRequest struct {
	Model  string
	APIKey string
	Prompt string
}
