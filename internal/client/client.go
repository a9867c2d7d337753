// Package client is a Go API client for the finch server. Successful
// mutations patch the attached projection cache in place; failed
// requests leave it untouched, so the cached view only ever reflects
// confirmed state (until the next full fetch reconciles it).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/finchsocial/finch/internal/domain"
	"github.com/finchsocial/finch/internal/feedcache"
)

// Client calls the finch HTTP API and maintains a feed projection
// cache.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *feedcache.Cache
}

// New creates a client for the server at baseURL. An empty token makes
// all calls anonymous.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: feedcache.New(),
	}
}

// Cache exposes the projection cache, e.g. for rendering.
func (c *Client) Cache() *feedcache.Cache {
	return c.cache
}

type feedResponse struct {
	Posts      []domain.FeedItem `json:"posts"`
	NextCursor string            `json:"nextCursor"`
}

// Feed fetches one feed page and appends it to the matching cached
// view. Pass a nil cursor for the first page; the caller must not
// advance its cursor when the fetch fails.
func (c *Client) Feed(ctx context.Context, filter domain.FeedFilter, cursor *domain.Cursor, limit int) (*domain.FeedPage, error) {
	params := url.Values{}
	if filter.AuthorID != "" {
		params.Set("author", filter.AuthorID)
	}
	if filter.FolloweesOf != "" {
		params.Set("following", "1")
	}
	if cursor != nil {
		params.Set("cursor", cursor.String())
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, "/api/feed?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	page := &domain.FeedPage{Posts: resp.Posts}
	if resp.NextCursor != "" {
		cur, err := domain.ParseCursor(resp.NextCursor)
		if err != nil {
			return nil, fmt.Errorf("server cursor: %w", err)
		}
		page.NextCursor = &cur
	}

	key := feedcache.FeedKey(filter)
	if cursor == nil {
		c.cache.ResetView(key)
	}
	c.cache.AppendPage(key, *page)
	return page, nil
}

// CreatePost creates a post and prepends it to the cached unfiltered
// view.
func (c *Client) CreatePost(ctx context.Context, content string, tags []string) (*domain.FeedItem, error) {
	body := map[string]any{"content": content}
	if len(tags) > 0 {
		body["tags"] = tags
	}

	var item domain.FeedItem
	if err := c.do(ctx, http.MethodPost, "/api/posts", body, &item); err != nil {
		return nil, err
	}
	c.cache.PrependPost(item)
	return &item, nil
}

// DeletePost deletes one of the caller's posts and drops it from the
// cached views.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID), nil, nil); err != nil {
		return err
	}
	c.cache.RemovePost(postID)
	return nil
}

// ToggleLike flips a like and patches every cached copy of the post.
func (c *Client) ToggleLike(ctx context.Context, postID string) (bool, error) {
	var resp struct {
		Added bool `json:"added"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/like", nil, &resp); err != nil {
		return false, err
	}
	c.cache.ApplyLike(postID, resp.Added)
	return resp.Added, nil
}

// ToggleRepost flips a repost and patches every cached copy of the
// post. The materialized quoted post, when present, is returned but
// not prepended; views pick it up on their next fetch.
func (c *Client) ToggleRepost(ctx context.Context, postID string) (bool, *domain.FeedItem, error) {
	var resp struct {
		Added        bool             `json:"added"`
		RepostedPost *domain.FeedItem `json:"repostedPost"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/repost", nil, &resp); err != nil {
		return false, nil, err
	}
	c.cache.ApplyRepost(postID, resp.Added)
	return resp.Added, resp.RepostedPost, nil
}

// ToggleFollow flips a follow and patches the cached profile.
func (c *Client) ToggleFollow(ctx context.Context, profileID string) (bool, error) {
	var resp struct {
		Added bool `json:"added"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/profiles/"+url.PathEscape(profileID)+"/follow", nil, &resp); err != nil {
		return false, err
	}
	c.cache.ApplyFollow(profileID, resp.Added)
	return resp.Added, nil
}

// Profile fetches a profile and caches it.
func (c *Client) Profile(ctx context.Context, profileID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(profileID), nil, &p); err != nil {
		return nil, err
	}
	c.cache.PutProfile(p)
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
