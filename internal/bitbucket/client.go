// internal/bitbucket/client.go
package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bhardwajvicky/DevView/internal/apperrors"
)

const (
	maxRetries     = 5
	initialBackoff = 1 * time.Second
)

// Session is the cached bearer credential obtained from the OAuth
// client-credentials exchange. It is created once by Authenticate and
// reused for the life of the process.
type Session struct {
	Token    string
	IssuedAt time.Time
}

// Client talks to the Bitbucket Cloud REST API. It owns the auth session,
// follows paginated resources via their embedded absolute next-page URLs,
// and absorbs 429 responses with retry-after/backoff sleeps.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	creds      clientcredentials.Config
	logger     *slog.Logger

	mu               sync.Mutex
	session          *Session
	rateLimitedUntil time.Time
}

// NewClient creates a Client. The transport stack is httpcache's in-memory
// cache transport so unchanged resources are answered from cache across
// repeated sync passes.
func NewClient(baseURL, tokenURL, consumerKey, consumerSecret string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Transport: httpcache.NewMemoryCacheTransport(), Timeout: 60 * time.Second},
		creds: clientcredentials.Config{
			ClientID:     consumerKey,
			ClientSecret: consumerSecret,
			TokenURL:     tokenURL,
		},
		logger: logger,
	}, nil
}

// Authenticate performs the client-credentials exchange and caches the
// bearer token. Calling it again is a no-op once a session exists.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return nil
	}

	tok, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	c.session = &Session{Token: tok.AccessToken, IssuedAt: time.Now()}
	c.logger.Info("Authenticated against Bitbucket API")
	return nil
}

// IsRateLimited reports whether the last upstream response asked us to back
// off and that wait has not elapsed yet.
func (c *Client) IsRateLimited() bool {
	return c.RateLimitWaitTime() > 0
}

// RateLimitWaitTime returns how long callers would have to wait before the
// upstream accepts requests again; zero when not rate limited.
func (c *Client) RateLimitWaitTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining := time.Until(c.rateLimitedUntil); remaining > 0 {
		return remaining
	}
	return 0
}

func (c *Client) setRateLimitedFor(d time.Duration) {
	c.mu.Lock()
	c.rateLimitedUntil = time.Now().Add(d)
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// resolve accepts either a resource path relative to the API base or the
// absolute next-page URL the API embeds in paginated responses.
func (c *Client) resolve(pathOrURL string) (string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL, nil
	}
	ref, err := url.Parse(strings.TrimPrefix(pathOrURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing resource path %q: %w", pathOrURL, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Get performs an authenticated GET against a relative resource path or an
// absolute URL and returns the raw body. Transient failures (429, 5xx,
// network errors) are retried with bounded exponential backoff; other 4xx
// responses fail immediately.
func (c *Client) Get(ctx context.Context, pathOrURL string) ([]byte, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	fullURL, err := c.resolve(pathOrURL)
	if err != nil {
		return nil, err
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, retryable, wait, err := c.doOnce(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if wait <= 0 {
			wait = backoff
			backoff *= 2
			// A 429 without Retry-After still rate-limits us for the
			// computed backoff, so wait-time queries and the final error
			// report the real remaining wait.
			var he *apperrors.HTTPError
			if errors.As(err, &he) && he.StatusCode == http.StatusTooManyRequests {
				c.setRateLimitedFor(wait)
			}
		}
		c.logger.Warn("Transient upstream failure, backing off",
			"url", fullURL, "attempt", attempt, "wait", wait.String(), "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	var he *apperrors.HTTPError
	if errors.As(lastErr, &he) && he.StatusCode == http.StatusTooManyRequests {
		return nil, &apperrors.RateLimitError{RetryAfter: c.RateLimitWaitTime(), Attempts: maxRetries}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

// doOnce performs a single attempt. It returns the wait the upstream asked
// for (via Retry-After) when the attempt should be retried.
func (c *Client) doOnce(ctx context.Context, fullURL string) (body []byte, retryable bool, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, 0, err
		}
		return b, false, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp)
		if wait > 0 {
			c.setRateLimitedFor(wait)
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, true, wait, &apperrors.HTTPError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(snippet)}

	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, true, 0, &apperrors.HTTPError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(snippet)}

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, 0, &apperrors.HTTPError{StatusCode: resp.StatusCode, URL: fullURL, Body: string(snippet)}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// getPage fetches and decodes one paginated response.
func getPage[T any](ctx context.Context, c *Client, pathOrURL string) (Page[T], error) {
	var page Page[T]
	body, err := c.Get(ctx, pathOrURL)
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, fmt.Errorf("decoding paginated response from %s: %w", pathOrURL, err)
	}
	return page, nil
}

// WorkspaceMembers returns one page of workspace members. Pass the previous
// page's Next URL to continue, or empty for the first page.
func (c *Client) WorkspaceMembers(ctx context.Context, workspace, nextURL string) (Page[WorkspaceMembership], error) {
	path := nextURL
	if path == "" {
		path = fmt.Sprintf("workspaces/%s/members", workspace)
	}
	return getPage[WorkspaceMembership](ctx, c, path)
}

// WorkspaceRepositories returns one page of the workspace's repositories.
func (c *Client) WorkspaceRepositories(ctx context.Context, workspace, nextURL string) (Page[Repository], error) {
	path := nextURL
	if path == "" {
		path = fmt.Sprintf("repositories/%s", workspace)
	}
	return getPage[Repository](ctx, c, path)
}

// Commits returns one page of a repository's commit history, newest first.
func (c *Client) Commits(ctx context.Context, workspace, slug, nextURL string) (Page[Commit], error) {
	path := nextURL
	if path == "" {
		path = fmt.Sprintf("repositories/%s/%s/commits", workspace, slug)
	}
	return getPage[Commit](ctx, c, path)
}

// CommitDiff returns the raw unified-diff text for one commit.
func (c *Client) CommitDiff(ctx context.Context, workspace, slug, hash string) (string, error) {
	body, err := c.Get(ctx, fmt.Sprintf("repositories/%s/%s/diff/%s", workspace, slug, hash))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PullRequests returns one page of pull requests whose updated-on timestamp
// falls inside [start, end], all states included.
func (c *Client) PullRequests(ctx context.Context, workspace, slug string, start, end time.Time, nextURL string) (Page[PullRequest], error) {
	path := nextURL
	if path == "" {
		q := fmt.Sprintf("updated_on >= %s AND updated_on <= %s",
			start.UTC().Format("2006-01-02T15:04:05Z"), end.UTC().Format("2006-01-02T15:04:05Z"))
		path = fmt.Sprintf("repositories/%s/%s/pullrequests?state=OPEN&state=MERGED&state=DECLINED&state=SUPERSEDED&q=%s",
			workspace, slug, url.QueryEscape(q))
	}
	return getPage[PullRequest](ctx, c, path)
}

// PullRequestCommits returns one page of a pull request's commits.
func (c *Client) PullRequestCommits(ctx context.Context, workspace, slug string, prID int, nextURL string) (Page[Commit], error) {
	path := nextURL
	if path == "" {
		path = fmt.Sprintf("repositories/%s/%s/pullrequests/%d/commits", workspace, slug, prID)
	}
	return getPage[Commit](ctx, c, path)
}

// PullRequestActivity returns one page of a pull request's activity stream.
func (c *Client) PullRequestActivity(ctx context.Context, workspace, slug string, prID int, nextURL string) (Page[Activity], error) {
	path := nextURL
	if path == "" {
		path = fmt.Sprintf("repositories/%s/%s/pullrequests/%d/activity", workspace, slug, prID)
	}
	return getPage[Activity](ctx, c, path)
}
