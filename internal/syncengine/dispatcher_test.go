package syncengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	domsync "github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/syncengine"
)

func newTestRegistry() *forge.Registry {
	reg := forge.NewRegistry()
	reg.Register("github", func(token string) forge.Client {
		return &fakeForge{}
	})
	return reg
}

func TestDispatchRejectsNonManager(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	o := syncengine.NewOrchestrator(st, newTestLimiter())
	d := syncengine.NewDispatcher(st, newTestRegistry(), o, nil, 3)

	_, err := d.Dispatch(ctx, "team-1", syncengine.Caller{Role: syncengine.RoleMember, Provider: domsync.ProviderGitHub})
	if err == nil {
		t.Fatal("expected admission error for non-manager caller")
	}
}

func TestDispatchRejectsEmptyRepositorySet(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	o := syncengine.NewOrchestrator(st, newTestLimiter())
	d := syncengine.NewDispatcher(st, newTestRegistry(), o, nil, 3)

	_, err := d.Dispatch(ctx, "team-empty", syncengine.Caller{Role: syncengine.RoleManager, Provider: domsync.ProviderGitHub})
	if err == nil {
		t.Fatal("expected admission error for team with no repositories")
	}
}

func TestDispatchRejectsOverAdmissionCeiling(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	repo, _, err := st.GetOrCreateRepository(ctx, domsync.Repository{
		Provider: domsync.ProviderGitHub, OwnerSlug: "acme", RepoSlug: "widget", TeamID: "team-1",
	})
	if err != nil {
		t.Fatalf("seed repo: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.CreateSession(ctx, "team-1", repo.ID); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	o := syncengine.NewOrchestrator(st, newTestLimiter())
	d := syncengine.NewDispatcher(st, newTestRegistry(), o, nil, 2)

	_, err = d.Dispatch(ctx, "team-1", syncengine.Caller{Role: syncengine.RoleManager, Provider: domsync.ProviderGitHub})
	if err == nil {
		t.Fatal("expected admission error at the concurrency ceiling")
	}
}

func TestDispatchCreatesOneSessionPerRepository(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	if _, _, err := st.GetOrCreateRepository(ctx, domsync.Repository{
		Provider: domsync.ProviderGitHub, OwnerSlug: "acme", RepoSlug: "widget", TeamID: "team-1",
	}); err != nil {
		t.Fatalf("seed repo 1: %v", err)
	}
	if _, _, err := st.GetOrCreateRepository(ctx, domsync.Repository{
		Provider: domsync.ProviderGitHub, OwnerSlug: "acme", RepoSlug: "gadget", TeamID: "team-1",
	}); err != nil {
		t.Fatalf("seed repo 2: %v", err)
	}

	o := syncengine.NewOrchestrator(st, newTestLimiter())
	d := syncengine.NewDispatcher(st, newTestRegistry(), o, nil, 3)

	sessionIDs, err := d.Dispatch(ctx, "team-1", syncengine.Caller{Role: syncengine.RoleManager, Provider: domsync.ProviderGitHub})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sessionIDs) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessionIDs))
	}

	// Allow the detached orchestrator goroutines to reach a terminal state
	// before the test exits.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done := true
		for _, id := range sessionIDs {
			s, err := st.GetSession(ctx, id)
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if !s.Status.Terminal() {
				done = false
			}
		}
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sessions did not reach a terminal state in time")
}

func TestDispatchUnsupportedProviderFails(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	if _, _, err := st.GetOrCreateRepository(ctx, domsync.Repository{
		Provider: domsync.ProviderGitLab, OwnerSlug: "acme", RepoSlug: "widget", TeamID: "team-1",
	}); err != nil {
		t.Fatalf("seed repo: %v", err)
	}

	o := syncengine.NewOrchestrator(st, newTestLimiter())
	d := syncengine.NewDispatcher(st, newTestRegistry(), o, nil, 3)

	_, err := d.Dispatch(ctx, "team-1", syncengine.Caller{Role: syncengine.RoleManager, Provider: domsync.ProviderGitLab})
	if !errors.Is(err, forge.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
