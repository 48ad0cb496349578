package source

import (
	"context"
	"fmt"

	"newsintel/internal/domain"
)

// Searcher captures a single news-source strategy (GNews, Google News, etc.).
type Searcher interface {
	Name() string
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Article, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	searchers map[string]Searcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{searchers: map[string]Searcher{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(s Searcher) {
	if r.searchers == nil {
		r.searchers = map[string]Searcher{}
	}
	r.searchers[s.Name()] = s
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Searcher, error) {
	if s, ok := r.searchers[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("news source %s is not registered", name)
}
