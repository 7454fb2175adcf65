package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"

	// maxResults caps how many hits are fetched and summarized.
	maxResults = 3

	// maxContentRunes truncates fetched page text.
	maxContentRunes = 1500
)

// WebSearch searches the web and pulls readable text out of the top hits.
type WebSearch struct {
	httpClient *http.Client
}

// NewWebSearch creates the web search tool.
func NewWebSearch() *WebSearch {
	return &WebSearch{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (w *WebSearch) Name() string {
	return "search"
}

func (w *WebSearch) Description() string {
	return "Search the web and summarize the top results"
}

// Call runs the search and renders result titles, links, and page excerpts.
func (w *WebSearch) Call(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty search query")
	}

	results, err := w.search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, res.title, res.link)

		if excerpt := w.fetchExcerpt(ctx, res.link); excerpt != "" {
			b.WriteString(excerpt)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), nil
}

type searchResult struct {
	title string
	link  string
}

func (w *WebSearch) search(ctx context.Context, query string) ([]searchResult, error) {
	form := url.Values{"q": {query}}

	req, err := http.NewRequestWithContext(ctx, "POST", searchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "warren-agent")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	var results []searchResult
	doc.Find(".result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		results = append(results, searchResult{
			title: strings.TrimSpace(s.Text()),
			link:  resolveRedirect(href),
		})
		return len(results) < maxResults
	})

	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's uddg redirect parameter when present.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}

// fetchExcerpt pulls readable paragraph text from a page, best-effort.
func (w *WebSearch) fetchExcerpt(ctx context.Context, link string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "warren-agent")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	var b strings.Builder
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
		return b.Len() < maxContentRunes*4
	})

	excerpt := []rune(strings.TrimSpace(b.String()))
	if len(excerpt) > maxContentRunes {
		excerpt = excerpt[:maxContentRunes]
	}
	return string(excerpt)
}

var _ Tool = (*WebSearch)(nil)
