package syncengine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/strob0t/sprintsync/internal/domain"
	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/enrich/classify"
	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/port/store"
	"github.com/strob0t/sprintsync/internal/teamsettings"
)

// Role is the caller's permission level on a team, resolved upstream of the
// Dispatcher (auth/membership is out of this subsystem's scope).
type Role string

const (
	RoleManager  Role = "manager"
	RoleMember   Role = "member"
	RoleReadOnly Role = "readonly"
)

// Caller identifies who is requesting a sync and the credentials to use
// against the forge on their behalf.
type Caller struct {
	ID         string
	Role       Role
	Provider   sync.Provider
	ForgeToken string
}

// Dispatcher is the HTTP-facing entry point for starting a sync: it
// authorizes the caller, applies admission control, and launches one
// detached Orchestrator run per team repository.
type Dispatcher struct {
	store        store.Store
	registry     *forge.Registry
	orchestrator *Orchestrator
	resolver     *teamsettings.Resolver
	maxPerTeam   int
}

// NewDispatcher creates a Dispatcher. maxConcurrentPerTeam is the admission
// ceiling (default 3). resolver may be nil, in which case every session runs
// under the Orchestrator's own default classification rules.
func NewDispatcher(st store.Store, registry *forge.Registry, orch *Orchestrator, resolver *teamsettings.Resolver, maxConcurrentPerTeam int) *Dispatcher {
	if maxConcurrentPerTeam <= 0 {
		maxConcurrentPerTeam = 3
	}
	return &Dispatcher{store: st, registry: registry, orchestrator: orch, resolver: resolver, maxPerTeam: maxConcurrentPerTeam}
}

// Dispatch authorizes caller against teamID, lists the team's repositories,
// applies admission control, and spawns one detached Orchestrator run per
// repository. It returns the session IDs created, in repository order.
func (d *Dispatcher) Dispatch(ctx context.Context, teamID string, caller Caller) ([]string, error) {
	if caller.Role != RoleManager {
		return nil, fmt.Errorf("%w: caller is not a team manager", domain.ErrAdmission)
	}

	repos, err := d.store.ListRepositoriesByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list repositories for team %s: %w", teamID, err)
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("%w: team %s has no linked repositories", domain.ErrAdmission, teamID)
	}

	active, err := d.store.GetActiveSessionsByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("count active sessions for team %s: %w", teamID, err)
	}
	if len(active) >= d.maxPerTeam {
		return nil, fmt.Errorf("%w: team %s already has %d active sessions (max %d)",
			domain.ErrAdmission, teamID, len(active), d.maxPerTeam)
	}

	client, err := d.registry.Build(string(caller.Provider), caller.ForgeToken)
	if err != nil {
		return nil, fmt.Errorf("build forge client: %w", err)
	}

	// Snapshot the team's effective commit_classification rules once, up
	// front, and reuse the same snapshot across every repository's session
	// so they classify identically within one dispatch.
	rules := d.resolveClassificationRules(ctx, teamID)

	sessionIDs := make([]string, 0, len(repos))
	for _, repo := range repos {
		session, err := d.store.CreateSession(ctx, teamID, repo.ID)
		if err != nil {
			return sessionIDs, fmt.Errorf("create session for repository %s: %w", repo.FullName(), err)
		}
		sessionIDs = append(sessionIDs, session.ID)

		go d.runDetached(session.ID, client, repo, rules)
	}

	return sessionIDs, nil
}

// resolveClassificationRules snapshots the team's effective
// commit_classification rule set. It falls back to nil (the Orchestrator's
// own default) when no resolver is configured or resolution fails.
func (d *Dispatcher) resolveClassificationRules(ctx context.Context, teamID string) []classify.Rule {
	if d.resolver == nil {
		return nil
	}
	resolved, err := d.resolver.Resolve(ctx, teamID)
	if err != nil {
		slog.Warn("resolve team settings failed, using default classification rules", "team_id", teamID, "error", err)
		return nil
	}
	return resolved.ClassificationRules
}

// runDetached runs one Orchestrator session on a background goroutine with
// its own context, independent of the HTTP request that triggered it.
func (d *Dispatcher) runDetached(sessionID string, client forge.Client, repo sync.Repository, rules []classify.Rule) {
	ctx := context.Background()
	if err := d.orchestrator.Run(ctx, sessionID, client, repo, rules); err != nil {
		slog.Error("orchestrator run exited with error", "session_id", sessionID, "repository", repo.FullName(), "error", err)
	}
}
