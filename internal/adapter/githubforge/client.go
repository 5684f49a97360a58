// Package githubforge implements the forge.Client capability against the
// GitHub REST API.
package githubforge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/ratelimit"
	"github.com/strob0t/sprintsync/internal/resilience"
)

const (
	defaultAPIVersion = "2022-11-28"
	perPage           = 100
)

// Client talks to the GitHub REST API on behalf of one bearer token.
type Client struct {
	baseURL       string
	token         string
	apiVersion    string
	httpClient    *http.Client
	breaker       *resilience.Breaker
	limiter       *ratelimit.Limiter
	retryAttempts int
	retryBackoff  time.Duration
	sleep         func(time.Duration) // swappable for testing
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithBreaker attaches a circuit breaker wrapping every outbound call.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithHTTPClient overrides the default *http.Client (e.g. for its Timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter attaches the shared token bucket that gates every
// outbound request this Client issues, including every page of a
// paginated list call.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry overrides the default retry attempts and backoff duration.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) { c.retryAttempts = attempts; c.retryBackoff = backoff }
}

// WithAPIVersion overrides the X-GitHub-Api-Version header value.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// NewClient builds a forge.Factory bound to baseURL, so a forge.Registry can
// construct per-token clients on demand.
func NewClient(baseURL string, opts ...Option) forge.Factory {
	return func(token string) forge.Client {
		c := &Client{
			baseURL:       strings.TrimSuffix(baseURL, "/"),
			token:         token,
			apiVersion:    defaultAPIVersion,
			httpClient:    &http.Client{Timeout: 60 * time.Second},
			retryAttempts: 3,
			retryBackoff:  5 * time.Second,
			sleep:         time.Sleep,
		}
		for _, opt := range opts {
			opt(c)
		}
		return c
	}
}

// page is one fetched response: decoded body plus the parsed Link header.
type page struct {
	body []byte
	link linkHeader
}

// do performs one HTTP call, wrapped in the circuit breaker and retried up
// to retryAttempts times with a fixed backoff on transient transport errors.
// Does not retry 4xx responses: those are not transient. Every call, whether
// it's a one-shot lookup or one page of a paginated list, consumes one
// rate-limit token before the request goes out.
func (c *Client) do(ctx context.Context, method, rawURL string) (page, error) {
	if c.token == "" {
		return page{}, forge.ErrMissingToken
	}
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return page{}, fmt.Errorf("acquire rate limit token: %w", err)
		}
	}

	var result page
	call := func() error {
		var lastErr error
		for attempt := 0; attempt <= c.retryAttempts; attempt++ {
			p, err := c.doOnce(ctx, method, rawURL)
			if err == nil {
				result = p
				return nil
			}
			if !isTransient(err) {
				return err
			}
			lastErr = err
			if attempt < c.retryAttempts {
				c.sleep(c.retryBackoff)
			}
		}
		return fmt.Errorf("github: exhausted %d retries: %w", c.retryAttempts, lastErr)
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return page{}, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return page{}, err
	}
	return result, nil
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, transientError{err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, transientError{fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return page{}, transientError{fmt.Errorf("github API error %d: %s", resp.StatusCode, string(data))}
	}
	if resp.StatusCode >= 400 {
		return page{}, fmt.Errorf("github API error %d: %s", resp.StatusCode, string(data))
	}

	link := parseLinkHeader(resp.Header.Get("Link"))
	if link.next != "" {
		// A relative next-page reference is resolved against this request's URL.
		if ref, err := url.Parse(link.next); err == nil {
			link.next = req.URL.ResolveReference(ref).String()
		}
	}
	return page{body: data, link: link}, nil
}

type transientError struct{ err error }

func (t transientError) Error() string { return t.err.Error() }
func (t transientError) Unwrap() error { return t.err }

func isTransient(err error) bool {
	var t transientError
	return asTransient(err, &t)
}

func asTransient(err error, target *transientError) bool {
	for err != nil {
		if te, ok := err.(transientError); ok { //nolint:errorlint // sentinel wrapper check, not a stdlib sentinel
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// linkHeader holds the parsed rel values of a GitHub pagination Link header.
type linkHeader struct {
	next string
	last int // 0 if absent or unparsable
}

var linkEntryRE = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)
var pageParamRE = regexp.MustCompile(`[?&]page=(\d+)`)

func parseLinkHeader(raw string) linkHeader {
	var lh linkHeader
	if raw == "" {
		return lh
	}
	for _, part := range strings.Split(raw, ",") {
		m := linkEntryRE.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			continue
		}
		u, rel := m[1], m[2]
		switch rel {
		case "next":
			lh.next = u
		case "last":
			if pm := pageParamRE.FindStringSubmatch(u); pm != nil {
				if n, err := strconv.Atoi(pm[1]); err == nil {
					lh.last = n
				}
			}
		}
	}
	return lh
}

// ListCommits pages through /repos/{owner}/{repo}/commits, optionally bounded
// by opts.Since and opts.Max. Terminates when a page is empty, the next-page
// link is absent, or Max commits have been collected.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, opts forge.ListOptions) ([]forge.Commit, error) {
	var out []forge.Commit
	path := fmt.Sprintf("%s/repos/%s/%s/commits", c.baseURL, owner, repo)
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	next := path + "?" + q.Encode()

	for next != "" {
		p, err := c.do(ctx, http.MethodGet, next)
		if err != nil {
			return nil, fmt.Errorf("list commits %s/%s: %w", owner, repo, err)
		}

		var raw []ghCommitSummary
		if err := json.Unmarshal(p.body, &raw); err != nil {
			return nil, fmt.Errorf("parse commits %s/%s: %w", owner, repo, err)
		}
		if len(raw) == 0 {
			break
		}
		for i := range raw {
			out = append(out, raw[i].toCommit())
			if opts.Max > 0 && len(out) >= opts.Max {
				return out, nil
			}
		}
		next = p.link.next
	}
	return out, nil
}

// GetCommit fetches one full commit with stats and files.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (forge.Commit, error) {
	path := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, repo, sha)
	p, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return forge.Commit{}, fmt.Errorf("get commit %s/%s@%s: %w", owner, repo, sha, err)
	}
	var raw ghCommitDetail
	if err := json.Unmarshal(p.body, &raw); err != nil {
		return forge.Commit{}, fmt.Errorf("parse commit %s/%s@%s: %w", owner, repo, sha, err)
	}
	return raw.toCommit(), nil
}

// CountCommits is a fast probe: request per_page=1&page=1 and parse the
// Link rel="last" page number. Falls back to pagination counting when the
// header is absent.
func (c *Client) CountCommits(ctx context.Context, owner, repo string) (int, error) {
	path := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1&page=1", c.baseURL, owner, repo)
	p, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return 0, fmt.Errorf("count commits %s/%s: %w", owner, repo, err)
	}
	if p.link.last > 0 {
		return p.link.last, nil
	}

	// Fallback: no Link header present (e.g. fewer than 2 pages); count by
	// paginating at full page size.
	commits, err := c.ListCommits(ctx, owner, repo, forge.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("count commits %s/%s (fallback): %w", owner, repo, err)
	}
	return len(commits), nil
}

// ListContributors returns a single authenticated page of contributors.
func (c *Client) ListContributors(ctx context.Context, owner, repo string) ([]forge.Contributor, error) {
	path := fmt.Sprintf("%s/repos/%s/%s/contributors", c.baseURL, owner, repo)
	p, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, fmt.Errorf("list contributors %s/%s: %w", owner, repo, err)
	}
	var raw []ghContributor
	if err := json.Unmarshal(p.body, &raw); err != nil {
		return nil, fmt.Errorf("parse contributors %s/%s: %w", owner, repo, err)
	}
	out := make([]forge.Contributor, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toContributor())
	}
	return out, nil
}

// ListPulls paginates state=all pull requests, filtering by created_at client
// side, stopping early once created_at < opts.Since (the list is newest-first).
func (c *Client) ListPulls(ctx context.Context, owner, repo string, opts forge.ListOptions) ([]forge.PullRequest, error) {
	var out []forge.PullRequest
	next := fmt.Sprintf("%s/repos/%s/%s/pulls?state=all&per_page=%d&page=1", c.baseURL, owner, repo, perPage)

	for next != "" {
		p, err := c.do(ctx, http.MethodGet, next)
		if err != nil {
			return nil, fmt.Errorf("list pulls %s/%s: %w", owner, repo, err)
		}
		var raw []ghPull
		if err := json.Unmarshal(p.body, &raw); err != nil {
			return nil, fmt.Errorf("parse pulls %s/%s: %w", owner, repo, err)
		}
		if len(raw) == 0 {
			break
		}
		done := false
		for _, r := range raw {
			if !opts.Since.IsZero() && r.CreatedAt.Before(opts.Since) {
				done = true
				break
			}
			if !opts.Until.IsZero() && r.CreatedAt.After(opts.Until) {
				continue
			}
			out = append(out, r.toPullRequest())
		}
		if done {
			break
		}
		next = p.link.next
	}
	return out, nil
}

// ListIssues paginates state=all issues, filtering out entries that carry a
// pull_request field (PRs duplicated on the issues feed).
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts forge.ListOptions) ([]forge.Issue, error) {
	var out []forge.Issue
	q := url.Values{}
	q.Set("state", "all")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	next := fmt.Sprintf("%s/repos/%s/%s/issues?%s", c.baseURL, owner, repo, q.Encode())

	for next != "" {
		p, err := c.do(ctx, http.MethodGet, next)
		if err != nil {
			return nil, fmt.Errorf("list issues %s/%s: %w", owner, repo, err)
		}
		var raw []ghIssue
		if err := json.Unmarshal(p.body, &raw); err != nil {
			return nil, fmt.Errorf("parse issues %s/%s: %w", owner, repo, err)
		}
		if len(raw) == 0 {
			break
		}
		for _, r := range raw {
			if r.PullRequest != nil {
				continue // duplicated on the issues feed
			}
			out = append(out, r.toIssue())
		}
		next = p.link.next
	}
	return out, nil
}
