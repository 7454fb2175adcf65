package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const forumEndpoint = "https://www.reddit.com/search.json"

// maxForumResults caps how many posts are rendered.
const maxForumResults = 5

// ForumSearch searches public forum posts.
type ForumSearch struct {
	httpClient *http.Client
}

// NewForumSearch creates the forum search tool.
func NewForumSearch() *ForumSearch {
	return &ForumSearch{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (f *ForumSearch) Name() string {
	return "forum"
}

func (f *ForumSearch) Description() string {
	return "Search public forum discussions"
}

type forumListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Subreddit string `json:"subreddit"`
				Permalink string `json:"permalink"`
				Selftext  string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Call searches and renders titles, communities, and post excerpts.
func (f *ForumSearch) Call(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty search query")
	}

	target := fmt.Sprintf("%s?q=%s&limit=%d", forumEndpoint, url.QueryEscape(input), maxForumResults)

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return "", fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("User-Agent", "warren-agent")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("searching forum: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("forum search returned status %d", resp.StatusCode)
	}

	var listing forumListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return "", fmt.Errorf("decoding forum results: %w", err)
	}

	if len(listing.Data.Children) == 0 {
		return "No discussions found.", nil
	}

	var b strings.Builder
	for i, child := range listing.Data.Children {
		post := child.Data
		fmt.Fprintf(&b, "%d. [%s] %s\nhttps://www.reddit.com%s\n", i+1, post.Subreddit, post.Title, post.Permalink)

		if text := strings.TrimSpace(post.Selftext); text != "" {
			excerpt := []rune(text)
			if len(excerpt) > 300 {
				excerpt = excerpt[:300]
			}
			b.WriteString(string(excerpt))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), nil
}

var _ Tool = (*ForumSearch)(nil)
