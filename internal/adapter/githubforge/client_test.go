package githubforge_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/strob0t/sprintsync/internal/adapter/githubforge"
	"github.com/strob0t/sprintsync/internal/port/forge"
)

func newClient(t *testing.T, srv *httptest.Server, token string) forge.Client {
	t.Helper()
	factory := githubforge.NewClient(srv.URL)
	return factory(token)
}

func TestListCommitsSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/commits" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "token test-pat" {
			t.Fatalf("unexpected auth header: %q", auth)
		}
		if v := r.Header.Get("X-GitHub-Api-Version"); v != "2022-11-28" {
			t.Fatalf("unexpected api version header: %q", v)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[
			{"sha":"a","commit":{"message":"feat: a","author":{"name":"A","email":"a@x.com","date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"author":{"login":"alice"},"parents":[]},
			{"sha":"b","commit":{"message":"fix: b","author":{"name":"B","email":"b@x.com","date":"2026-01-02T00:00:00Z"},"committer":{"date":"2026-01-02T00:00:00Z"}},"author":{"login":"bob"},"parents":[{"sha":"a"}]}
		]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	commits, err := client.ListCommits(context.Background(), "acme", "widget", forge.ListOptions{})
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].SHA != "a" || commits[0].AuthorLogin != "alice" {
		t.Errorf("unexpected first commit: %+v", commits[0])
	}
	if commits[1].ParentSHAs[0] != "a" {
		t.Errorf("expected parent sha a, got %v", commits[1].ParentSHAs)
	}
}

func TestListCommitsFollowsLinkHeaderAndRespectsMax(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1", "":
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next", <%s?page=3>; rel="last"`, r.URL.Path, r.URL.Path))
			_, _ = fmt.Fprint(w, `[{"sha":"a","commit":{"message":"m","author":{"date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"parents":[]}]`)
		case "2":
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=3>; rel="next", <%s?page=3>; rel="last"`, r.URL.Path, r.URL.Path))
			_, _ = fmt.Fprint(w, `[{"sha":"b","commit":{"message":"m","author":{"date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"parents":[]}]`)
		default:
			_, _ = fmt.Fprint(w, `[{"sha":"c","commit":{"message":"m","author":{"date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"parents":[]}]`)
		}
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	commits, err := client.ListCommits(context.Background(), "acme", "widget", forge.ListOptions{Max: 2})
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected exactly 2 commits (Max), got %d", len(commits))
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 page fetches before hitting Max, got %d", calls)
	}
}

func TestListCommitsTerminatesOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	commits, err := client.ListCommits(context.Background(), "acme", "widget", forge.ListOptions{})
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected 0 commits, got %d", len(commits))
	}
}

func TestGetCommitIncludesStatsAndFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/commits/deadbeef" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"sha":"deadbeef",
			"commit":{"message":"fix: thing","author":{"name":"A","email":"a@x.com","date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},
			"parents":[],
			"stats":{"additions":10,"deletions":2,"total":12},
			"files":[{"filename":"a.go","additions":10,"deletions":2,"changes":12,"patch":"@@ ..."}]
		}`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	commit, err := client.GetCommit(context.Background(), "acme", "widget", "deadbeef")
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if commit.TotalChanges != 12 {
		t.Errorf("expected total changes 12, got %d", commit.TotalChanges)
	}
	if len(commit.Files) != 1 || commit.Files[0].Path != "a.go" {
		t.Errorf("unexpected files: %+v", commit.Files)
	}
}

func TestCountCommitsUsesLinkHeaderLast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "1" {
			t.Fatalf("expected per_page=1, got %s", r.URL.Query().Get("per_page"))
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next", <%s?page=347>; rel="last"`, r.URL.Path, r.URL.Path))
		_, _ = fmt.Fprint(w, `[{"sha":"a","commit":{"message":"m","author":{"date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"parents":[]}]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	count, err := client.CountCommits(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("CountCommits: %v", err)
	}
	if count != 347 {
		t.Errorf("expected count 347, got %d", count)
	}
}

func TestCountCommitsFallsBackWithoutLinkHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"sha":"a","commit":{"message":"m","author":{"date":"2026-01-01T00:00:00Z"},"committer":{"date":"2026-01-01T00:00:00Z"}},"parents":[]}]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	count, err := client.CountCommits(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("CountCommits: %v", err)
	}
	if count != 1 {
		t.Errorf("expected fallback count 1, got %d", count)
	}
}

func TestListPullsStopsEarlyOnSinceBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[
			{"number":3,"title":"c","state":"open","user":{"login":"x"},"created_at":"2026-03-01T00:00:00Z"},
			{"number":2,"title":"b","state":"open","user":{"login":"x"},"created_at":"2026-02-01T00:00:00Z"},
			{"number":1,"title":"a","state":"open","user":{"login":"x"},"created_at":"2026-01-01T00:00:00Z"}
		]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	since := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	pulls, err := client.ListPulls(context.Background(), "acme", "widget", forge.ListOptions{Since: since})
	if err != nil {
		t.Fatalf("ListPulls: %v", err)
	}
	if len(pulls) != 2 {
		t.Fatalf("expected 2 pulls above the since boundary, got %d", len(pulls))
	}
}

func TestListPullsMarksMergedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"number":1,"title":"a","state":"closed","user":{"login":"x"},"created_at":"2026-01-01T00:00:00Z","merged_at":"2026-01-02T00:00:00Z"}]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	pulls, err := client.ListPulls(context.Background(), "acme", "widget", forge.ListOptions{})
	if err != nil {
		t.Fatalf("ListPulls: %v", err)
	}
	if len(pulls) != 1 || pulls[0].State != "merged" {
		t.Fatalf("expected state rewritten to merged, got %+v", pulls)
	}
}

func TestListIssuesFiltersOutPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[
			{"number":1,"title":"real issue","state":"open","user":{"login":"x"},"created_at":"2026-01-01T00:00:00Z"},
			{"number":2,"title":"actually a pr","state":"open","user":{"login":"x"},"created_at":"2026-01-01T00:00:00Z","pull_request":{"url":"..."}}
		]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	issues, err := client.ListIssues(context.Background(), "acme", "widget", forge.ListOptions{})
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 1 || issues[0].Number != 1 {
		t.Fatalf("expected only the real issue, got %+v", issues)
	}
}

func TestListContributors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/contributors" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"id":42,"login":"alice","name":"Alice","email":"alice@x.com","avatar_url":"http://x/a.png"}]`)
	}))
	defer srv.Close()

	client := newClient(t, srv, "test-pat")
	contributors, err := client.ListContributors(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("ListContributors: %v", err)
	}
	if len(contributors) != 1 || contributors[0].ExternalID != "42" {
		t.Fatalf("unexpected contributors: %+v", contributors)
	}
}

func TestMissingTokenIsFatalConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should never be sent without a token")
	}))
	defer srv.Close()

	client := newClient(t, srv, "")
	_, err := client.ListCommits(context.Background(), "acme", "widget", forge.ListOptions{})
	if err == nil {
		t.Fatal("expected missing-token error")
	}
}

func TestServerErrorReturnsAfterRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	factory := githubforge.NewClient(srv.URL, githubforge.WithRetry(2, time.Millisecond))
	client := factory("test-pat")

	_, err := client.ListCommits(context.Background(), "acme", "widget", forge.ListOptions{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 1 initial attempt + 2 retries = 3, got %d", attempts)
	}
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	factory := githubforge.NewClient(srv.URL, githubforge.WithRetry(3, time.Millisecond))
	client := factory("test-pat")

	_, err := client.GetCommit(context.Background(), "acme", "widget", "deadbeef")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a 4xx response, got %d", attempts)
	}
}
