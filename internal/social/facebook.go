// Package social pulls page posts from the Facebook Graph API for ingestion
// into a course's knowledge base.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// FilePrefix marks registry entries that originate from a Facebook post.
// The post ID is appended, so syncs can tell which posts are already in.
const FilePrefix = "facebook_post_id_"

// defaultGraphURL is the Graph API endpoint and version in use.
const defaultGraphURL = "https://graph.facebook.com/v17.0"

// Post is a single page post.
type Post struct {
	ID          string `json:"id"`
	CreatedTime string `json:"created_time"`
	Message     string `json:"message"`
}

// FileID returns the registry file name for the post.
func (p *Post) FileID() string {
	return FilePrefix + p.ID
}

// Client fetches posts from one Facebook page.
type Client struct {
	pageID  string
	token   string
	baseURL string
	http    *http.Client
}

// Config configures a Client. AccessTokenEnv names the environment variable
// holding the page access token. BaseURL overrides the Graph API endpoint,
// which tests use to point at a local server.
type Config struct {
	PageID         string
	AccessTokenEnv string
	BaseURL        string
	Timeout        time.Duration
}

// NewClient creates a Graph API client for the configured page.
func NewClient(cfg Config) (*Client, error) {
	if cfg.PageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}
	token := os.Getenv(cfg.AccessTokenEnv)
	if token == "" {
		return nil, fmt.Errorf("missing access token in env %s", cfg.AccessTokenEnv)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultGraphURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		pageID:  cfg.PageID,
		token:   token,
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// PagePosts returns the page's posts, newest first as the API serves them.
func (c *Client) PagePosts(ctx context.Context) ([]*Post, error) {
	u := fmt.Sprintf("%s/%s/posts?access_token=%s", c.baseURL, c.pageID, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build posts request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page posts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page posts: %s", resp.Status)
	}

	var out struct {
		Data []*Post `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode posts response: %w", err)
	}
	return out.Data, nil
}
