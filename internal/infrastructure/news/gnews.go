package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsintel/internal/domain"
	"newsintel/internal/source"
)

// GNewsSource searches the GNews v4 REST API.
type GNewsSource struct {
	endpoint string
	location *time.Location
	client   *http.Client
}

var _ source.Searcher = (*GNewsSource)(nil)

// NewGNewsSource wires the API root (e.g. https://gnews.io/api/v4) and the
// timezone used to expand a target day into from/to bounds.
func NewGNewsSource(endpoint string, location *time.Location, client *http.Client) *GNewsSource {
	if location == nil {
		location = time.UTC
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &GNewsSource{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		location: location,
		client:   client,
	}
}

// Name identifies the strategy inside the registry.
func (g *GNewsSource) Name() string {
	return "gnews"
}

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Search executes one keyword query; an empty result is not an error.
func (g *GNewsSource) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Article, error) {
	searchURL, err := g.buildURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gnews returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var payload gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:       a.Title,
			Link:        a.URL,
			Description: a.Description,
			Status:      domain.StatusPending,
			PublishedAt: a.PublishedAt,
		})
	}

	return articles, nil
}

func (g *GNewsSource) buildURL(query domain.SearchQuery) (string, error) {
	parsed, err := url.Parse(g.endpoint + "/search")
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", g.endpoint, err)
	}

	max := query.Max
	if max <= 0 {
		max = 10
	}

	values := parsed.Query()
	values.Set("q", query.Keyword)
	values.Set("lang", query.Language)
	values.Set("country", query.Country)
	values.Set("max", strconv.Itoa(max))
	values.Set("apikey", query.APIKey)

	if query.Day != nil {
		dayStart := time.Date(query.Day.Year(), query.Day.Month(), query.Day.Day(), 0, 0, 0, 0, g.location)
		values.Set("from", dayStart.Format(time.RFC3339))
		values.Set("to", dayStart.Add(24*time.Hour-time.Second).Format(time.RFC3339))
	}

	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}
