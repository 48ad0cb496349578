package ports

import (
	"context"

	"newsintel/internal/domain"
)

// ArticleSource searches upstream news providers for candidate articles.
type ArticleSource interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Article, error)
}

// ModelProvider is one external AI service able to list its catalog and run
// single-turn text generation. Implementations map vendor error shapes into
// domain.ProviderError.
type ModelProvider interface {
	Name() string
	ListModels(ctx context.Context, apiKey string) ([]domain.ModelInfo, error)
	Generate(ctx context.Context, req domain.GenerateRequest) (string, error)
}

// CredentialStore is the remote user-record store.
type CredentialStore interface {
	GetByID(ctx context.Context, id string) (domain.CredentialRecord, error)
	GetByEmail(ctx context.Context, email string) (domain.CredentialRecord, error)
	UpdateKeys(ctx context.Context, id string, patch domain.CredentialPatch) error
}

// CredentialCache is the durable local cache keyed by user identity.
type CredentialCache interface {
	Get(ctx context.Context, userID string) (domain.Credentials, bool, error)
	Put(ctx context.Context, userID string, creds domain.Credentials) error
	Invalidate(ctx context.Context, userID string) error
}

// Extractor pulls readable body text out of an article page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Notifier delivers a finished briefing to an outbound channel.
type Notifier interface {
	PublishBriefing(ctx context.Context, briefing domain.Briefing) error
}
