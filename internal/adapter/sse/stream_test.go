package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strob0t/sprintsync/internal/adapter/sse"
	domsync "github.com/strob0t/sprintsync/internal/domain/sync"
)

// sequenceStore returns a different Session on each call, advancing through
// a fixed sequence and then holding on the last entry.
type sequenceStore struct {
	calls    int32
	sessions []domsync.Session
}

func (s *sequenceStore) GetSession(_ context.Context, _ string) (domsync.Session, error) {
	n := atomic.AddInt32(&s.calls, 1) - 1
	idx := int(n)
	if idx >= len(s.sessions) {
		idx = len(s.sessions) - 1
	}
	return s.sessions[idx], nil
}

func readLines(t *testing.T, resp *http.Response, want []string, timeout time.Duration) {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	done := make(chan struct{})
	var got []string

	go func() {
		defer close(done)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			got = append(got, line)
			if len(got) >= len(want) {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %d lines, got %v", len(want), got)
	}

	for i, w := range want {
		if i >= len(got) || !strings.Contains(got[i], w) {
			t.Fatalf("line %d: expected to contain %q, got %v", i, w, got)
		}
	}
}

func TestStreamEmitsCompleteWhenSessionTerminates(t *testing.T) {
	store := &sequenceStore{
		sessions: []domsync.Session{
			{ID: "s1", Status: domsync.StatusRunning, CurrentPhase: domsync.PhaseFetchingList, TotalCommits: 2},
			{ID: "s1", Status: domsync.StatusRunning, CurrentPhase: domsync.PhaseProcessingSprint, TotalCommits: 2, ProcessedCommits: 1},
			{ID: "s1", Status: domsync.StatusCompleted, CurrentPhase: domsync.PhaseComplete, TotalCommits: 2, ProcessedCommits: 2, NewCommits: 2},
		},
	}
	stream := sse.New(store, 5*time.Millisecond, time.Second, 2*time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.ServeHTTP(w, r, "s1")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	readLines(t, resp, []string{`"status":"running"`, `"status":"running"`, `event: complete`}, 2*time.Second)
}

func TestStreamEmitsTimeoutWhenSessionNeverTerminates(t *testing.T) {
	store := &sequenceStore{
		sessions: []domsync.Session{
			{ID: "s1", Status: domsync.StatusRunning, CurrentPhase: domsync.PhaseFetchingList, TotalCommits: 0},
		},
	}
	stream := sse.New(store, 5*time.Millisecond, 500*time.Millisecond, 20*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.ServeHTTP(w, r, "s1")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	readLines(t, resp, []string{`"status":"running"`, `event: timeout`}, 2*time.Second)
}
