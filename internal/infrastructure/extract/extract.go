package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsintel/internal/ports"
)

// maxContentRunes bounds extracted text so prompts stay within sane limits.
const maxContentRunes = 2000

// PageExtractor pulls readable paragraph text out of an article page. It is
// best-effort enrichment for sources that return no description.
type PageExtractor struct {
	client *http.Client
}

var _ ports.Extractor = (*PageExtractor)(nil)

// NewPageExtractor wires an HTTP client; timeouts come from the caller's ctx.
func NewPageExtractor(client *http.Client) *PageExtractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PageExtractor{client: client}
}

// Extract fetches the page and concatenates its paragraph text, skipping
// boilerplate containers.
func (e *PageExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsintel/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 40 {
			// Skip captions, bylines, and navigation fragments.
			return
		}
		parts = append(parts, text)
	})

	if len(parts) == 0 {
		return "", fmt.Errorf("no readable paragraphs in %s", pageURL)
	}

	content := strings.Join(parts, "\n")
	runes := []rune(content)
	if len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes])
	}

	return content, nil
}
