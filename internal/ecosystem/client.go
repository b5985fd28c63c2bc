// Package ecosystem talks to the ecosystem API: project listings, the public
// post feed, publishing, and vote casting.
package ecosystem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentpulse/engine/internal/domain"
	"github.com/agentpulse/engine/internal/retry"
)

// Client is the HTTP client for the ecosystem API. Write calls (publishing,
// voting) go through WritePolicy so that rate-limit signals are retried a
// bounded number of times.
type Client struct {
	BaseURL     string
	APIKey      string
	WritePolicy retry.Policy
	httpClient  *http.Client
}

// NewClient creates an ecosystem client with the standard timeout.
func NewClient(baseURL, apiKey string, writePolicy retry.Policy) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		WritePolicy: writePolicy,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Post is one entry from the public feed.
type Post struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
}

type projectPage struct {
	Projects []projectDTO `json:"projects"`
	HasMore  bool         `json:"hasMore"`
}

type projectDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RepoLink    string `json:"repoLink"`
	DemoLink    string `json:"demoLink"`
	VideoLink   string `json:"videoLink"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// ListProjects fetches every project page-by-page, newest first.
func (c *Client) ListProjects(ctx context.Context, pageSize int) ([]domain.Project, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	var all []domain.Project
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("sort", "recent")

		var body projectPage
		if err := c.get(ctx, "/api/projects?"+q.Encode(), &body); err != nil {
			return nil, fmt.Errorf("list projects page %d: %w", page, err)
		}
		for _, dto := range body.Projects {
			all = append(all, domain.Project{
				ID:          dto.ID,
				Name:        dto.Name,
				Description: dto.Description,
				RepoLink:    dto.RepoLink,
				DemoLink:    dto.DemoLink,
				VideoLink:   dto.VideoLink,
				UpdatedAt:   time.Unix(dto.UpdatedAt, 0),
			})
		}
		if !body.HasMore || len(body.Projects) == 0 {
			return all, nil
		}
	}
}

// RecentPosts fetches the latest entries from the public feed.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	var body struct {
		Posts []Post `json:"posts"`
	}
	path := "/api/posts?limit=" + strconv.Itoa(limit)
	if err := c.get(ctx, path, &body); err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return body.Posts, nil
}

// PublishPost publishes an insight and returns the created post ID.
func (c *Client) PublishPost(ctx context.Context, title, body string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	payload := map[string]string{"title": title, "body": body}
	err := c.WritePolicy.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/posts", payload, &resp)
	})
	if err != nil {
		return "", fmt.Errorf("publish post: %w", err)
	}
	return resp.ID, nil
}

// CastVote casts a vote for a project with the computed score and a short
// rationale.
func (c *Client) CastVote(ctx context.Context, projectID string, score float64, rationale string) error {
	payload := map[string]any{
		"projectId": projectID,
		"score":     score,
		"rationale": rationale,
	}
	err := c.WritePolicy.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/votes", payload, nil)
	})
	if err != nil {
		return fmt.Errorf("cast vote for %s: %w", projectID, err)
	}
	return nil
}

// RateLimited reports whether an error carries the upstream throttle signal.
// The retry policy for write calls keys on this.
func RateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapAgentError(domain.ErrEcosystemFetch.Code, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.WrapAgentError(domain.ErrEcosystemFetch.Code, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, req.URL.Path)
	case resp.StatusCode >= 400:
		return domain.NewAgentError(domain.ErrEcosystemFetch.Code,
			fmt.Sprintf("%s returned %d: %s", req.URL.Path, resp.StatusCode, truncate(raw, 200)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapAgentError(domain.ErrEcosystemFetch.Code, "decode response", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
