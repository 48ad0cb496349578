package domain

import "time"

// Article is a single news item returned by a source and enriched by the pipeline.
type Article struct {
	Title       string
	Link        string
	Description string
	Summary     string
	Status      ArticleStatus
	PublishedAt time.Time
}

// ArticleStatus enumerates the lifecycle of an article inside one run.
type ArticleStatus string

const (
	StatusPending   ArticleStatus = "pending"
	StatusAnalyzing ArticleStatus = "analyzing"
	StatusDone      ArticleStatus = "done"
)

// SearchQuery carries everything a news source needs to execute a search.
type SearchQuery struct {
	Keyword  string
	Day      *time.Time // nil means "latest", no date bound
	Max      int
	Language string
	Country  string
	APIKey   string
}
