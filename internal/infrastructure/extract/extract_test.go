package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractKeepsArticleParagraphs(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<nav><p>Home | News | Sports | Entertainment | Business | Opinion</p></nav>
		<script>window.tracker = "this script text must never leak into the prompt content";</script>
		<article>
			<p>MANILA, Philippines. The weather bureau raised storm signals over most of Luzon on Sunday.</p>
			<p>Photo: PAGASA</p>
			<p>Classes in all levels were suspended across the capital region ahead of the expected landfall.</p>
		</article>
		<footer><p>Copyright 2026. All rights reserved. Terms of use apply to this site.</p></footer>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	ext := NewPageExtractor(server.Client())
	content, err := ext.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !strings.Contains(content, "storm signals over most of Luzon") {
		t.Fatalf("content missing first paragraph: %q", content)
	}
	if !strings.Contains(content, "Classes in all levels were suspended") {
		t.Fatalf("content missing second paragraph: %q", content)
	}
	if strings.Contains(content, "tracker") {
		t.Fatal("script text leaked into content")
	}
	if strings.Contains(content, "Copyright") || strings.Contains(content, "Home | News") {
		t.Fatal("boilerplate containers leaked into content")
	}
	if strings.Contains(content, "Photo: PAGASA") {
		t.Fatal("short caption fragments must be skipped")
	}
}

func TestExtractTruncatesLongPages(t *testing.T) {
	t.Parallel()

	paragraph := "<p>" + strings.Repeat("An unusually long sentence about the storm. ", 20) + "</p>"
	page := "<html><body>" + strings.Repeat(paragraph, 10) + "</body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	ext := NewPageExtractor(server.Client())
	content, err := ext.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := utf8.RuneCountInString(content); got > maxContentRunes {
		t.Fatalf("content length = %d runes, want at most %d", got, maxContentRunes)
	}
}

func TestExtractNoParagraphsIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div>video only page</div></body></html>`))
	}))
	defer server.Close()

	ext := NewPageExtractor(server.Client())
	if _, err := ext.Extract(context.Background(), server.URL); err == nil {
		t.Fatal("Extract() expected error for page without paragraphs")
	}
}

func TestExtractHTTPErrorSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	ext := NewPageExtractor(server.Client())
	if _, err := ext.Extract(context.Background(), server.URL); err == nil {
		t.Fatal("Extract() expected error for non-200 response")
	}
}
