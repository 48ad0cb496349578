package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newsintel/internal/domain"
	"newsintel/internal/source"
)

const googleNewsRSS = "https://news.google.com/rss/search"

// GoogleNewsSource searches the Google News RSS feed. It needs no API key and
// serves deployments without a GNews subscription.
type GoogleNewsSource struct {
	parser   *gofeed.Parser
	location *time.Location
}

var _ source.Searcher = (*GoogleNewsSource)(nil)

// NewGoogleNewsSource builds an RSS-backed source.
func NewGoogleNewsSource(location *time.Location) *GoogleNewsSource {
	if location == nil {
		location = time.UTC
	}
	return &GoogleNewsSource{parser: gofeed.NewParser(), location: location}
}

// Name identifies the strategy inside the registry.
func (g *GoogleNewsSource) Name() string {
	return "googlenews"
}

// Search queries the RSS endpoint, narrowing by day via the after:/before:
// query operators when a date is requested.
func (g *GoogleNewsSource) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Article, error) {
	keyword := query.Keyword
	if query.Day != nil {
		day := query.Day.In(g.location)
		keyword = fmt.Sprintf("%s after:%s before:%s",
			keyword,
			day.Format("2006-01-02"),
			day.AddDate(0, 0, 1).Format("2006-01-02"))
	}

	lang := query.Language
	if lang == "" {
		lang = "en"
	}
	country := strings.ToUpper(query.Country)
	if country == "" {
		country = "PH"
	}

	feedURL := fmt.Sprintf("%s?q=%s&hl=%s-%s&gl=%s&ceid=%s:%s",
		googleNewsRSS,
		url.QueryEscape(keyword),
		lang, country, country, country, lang)

	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse google news feed: %w", err)
	}

	max := query.Max
	if max <= 0 {
		max = 10
	}

	articles := make([]domain.Article, 0, max)
	for _, item := range feed.Items {
		if len(articles) == max {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		article := domain.Article{
			Title:  item.Title,
			Link:   item.Link,
			Status: domain.StatusPending,
		}
		if item.PublishedParsed != nil {
			article.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, article)
	}

	return articles, nil
}
