// Package syncengine drives a SyncSession from queued to terminal (the
// Orchestrator) and admits new sessions onto the system (the
// Dispatcher).
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	cfotel "github.com/strob0t/sprintsync/internal/adapter/otel"
	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/enrich/classify"
	"github.com/strob0t/sprintsync/internal/enrich/ignore"
	"github.com/strob0t/sprintsync/internal/enrich/language"
	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/port/store"
	"github.com/strob0t/sprintsync/internal/ratelimit"
)

// Orchestrator runs one SyncSession end to end: list discovery, sprint/
// archive partitioning, per-commit enrichment and persistence, and PR/issue
// backfill.
type Orchestrator struct {
	store      store.Store
	limiter    *ratelimit.Limiter
	ignore     *ignore.Filter
	lang       *language.Detector
	rules      []classify.Rule
	maxWorkers int
	sprintDays int
	now        func() time.Time
	metrics    *cfotel.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxWorkers overrides the per-session worker pool size (default 5).
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithSprintDays overrides the sprint/archive partition cutoff (default 14).
func WithSprintDays(days int) Option {
	return func(o *Orchestrator) {
		if days > 0 {
			o.sprintDays = days
		}
	}
}

// WithIgnoreFilter supplies the ignore filter used to drop vendored or
// generated files before they reach persistence.
func WithIgnoreFilter(f *ignore.Filter) Option {
	return func(o *Orchestrator) { o.ignore = f }
}

// WithClassificationRules supplies the default commit-classifier rule set,
// used only when a Run call receives no per-session rules of its own.
func WithClassificationRules(rules []classify.Rule) Option {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithMetrics attaches OTel instruments recording session and commit
// throughput. Nil is safe and disables recording.
func WithMetrics(m *cfotel.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an Orchestrator backed by st for persistence and
// limiter for pacing outbound forge calls.
func NewOrchestrator(st store.Store, limiter *ratelimit.Limiter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		limiter:    limiter,
		ignore:     ignore.New(nil),
		lang:       language.NewDetector(),
		maxWorkers: 5,
		sprintDays: 14,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes sessionID against repo using client, from queued through to
// a terminal state. rules is the effective commit-classification rule set
// for this session's team, snapshotted by the Dispatcher at admission time;
// a nil rules falls back to the Orchestrator's own default set. The
// returned error is nil even when the session ends in failed: failure is
// recorded on the session row, not propagated to the caller, since Run is
// invoked from a detached goroutine.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, client forge.Client, repo sync.Repository, rules []classify.Rule) error {
	log := slog.With("session_id", sessionID, "repository", repo.FullName())

	if rules == nil {
		rules = o.rules
	}

	ctx, span := cfotel.StartSessionSpan(ctx, sessionID, repo.TeamID, repo.FullName())
	defer span.End()

	startedAt := o.now()
	if err := o.store.MarkRunning(ctx, sessionID, startedAt); err != nil {
		return fmt.Errorf("mark session %s running: %w", sessionID, err)
	}
	if o.metrics != nil {
		o.metrics.RecordSessionStarted(ctx)
	}

	discovered, err := client.ListCommits(ctx, repo.OwnerSlug, repo.RepoSlug, forge.ListOptions{})
	if err != nil {
		o.fail(ctx, sessionID, fmt.Errorf("list commits: %w", err))
		return nil
	}

	total := len(discovered)
	phase := sync.PhaseFetchingList
	if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{
		CurrentPhase: &phase, TotalCommits: &total,
	}); err != nil {
		log.Warn("update progress after list fetch failed", "error", err)
	}

	cutoff := o.now().AddDate(0, 0, -o.sprintDays)
	sprintCommits, archiveCommits := partition(discovered, cutoff)

	contributors, err := o.prepareContributors(ctx, client, repo)
	if err != nil {
		log.Warn("contributor prep failed, continuing unattributed", "error", err)
		contributors = map[string]string{}
	}

	var processed, newCommits int
	var mu sync.Mutex
	var sessionErrors []string

	recordError := func(sha, msg string) {
		entry := fmt.Sprintf("%s: %s", sha, msg)
		mu.Lock()
		sessionErrors = append(sessionErrors, entry)
		mu.Unlock()
		if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{AppendError: &entry}); err != nil {
			log.Warn("append session error failed", "error", err)
		}
	}

	runPartition := func(commits []forge.Commit, phaseName sync.Phase) {
		p := phaseName
		if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{CurrentPhase: &p}); err != nil {
			log.Warn("update phase failed", "error", err)
		}

		shas := make([]string, len(commits))
		for i, c := range commits {
			shas[i] = c.SHA
		}
		existing, err := o.store.ExistingSHAs(ctx, repo.ID, shas)
		if err != nil {
			log.Warn("existing sha check failed, processing all", "error", err)
			existing = map[string]bool{}
		}

		sem := semaphore.NewWeighted(int64(o.maxWorkers))
		var wg sync.WaitGroup
		for _, c := range commits {
			if existing[c.SHA] {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(c forge.Commit) {
				defer sem.Release(1)
				defer wg.Done()

				created, err := o.processCommit(ctx, sessionID, client, repo, contributors, c, rules)
				if err != nil {
					recordError(c.SHA, err.Error())
				}

				mu.Lock()
				processed++
				if created {
					newCommits++
				}
				p := processed
				mu.Unlock()

				if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{ProcessedCommits: &p}); err != nil {
					log.Warn("update processed count failed", "error", err)
				}
			}(c)
		}
		wg.Wait()
	}

	runPartition(sprintCommits, sync.PhaseProcessingSprint)

	sprintDone := true
	if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{SprintCommitsDone: &sprintDone}); err != nil {
		log.Warn("mark sprint commits done failed", "error", err)
	}

	runPartition(archiveCommits, sync.PhaseProcessingArchive)

	if err := o.backfillPullsAndIssues(ctx, client, repo, contributors); err != nil {
		log.Warn("pr/issue backfill failed", "error", err)
	}

	completePhase := sync.PhaseComplete
	if err := o.store.UpdateProgress(ctx, sessionID, store.ProgressUpdate{CurrentPhase: &completePhase}); err != nil {
		log.Warn("mark phase complete failed", "error", err)
	}

	completedAt := o.now()
	result := fmt.Sprintf("processed=%d new=%d", processed, newCommits)
	if err := o.store.MarkCompleted(ctx, sessionID, completedAt, result, newCommits, sessionErrors); err != nil {
		return fmt.Errorf("mark session %s completed: %w", sessionID, err)
	}
	if o.metrics != nil {
		o.metrics.RecordSessionCompleted(ctx, completedAt.Sub(startedAt).Seconds())
		o.metrics.RecordCommitsProcessed(ctx, processed)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, sessionID string, cause error) {
	if err := o.store.MarkFailed(ctx, sessionID, o.now(), []string{cause.Error()}); err != nil {
		slog.Error("mark session failed also failed", "session_id", sessionID, "cause", cause, "error", err)
	}
	if o.metrics != nil {
		o.metrics.RecordSessionFailed(ctx)
	}
}

// prepareContributors lists a repository's contributors, upserts each
// through get_or_create, and returns a login -> contributor_id mapping.
func (o *Orchestrator) prepareContributors(ctx context.Context, client forge.Client, repo sync.Repository) (map[string]string, error) {
	raw, err := client.ListContributors(ctx, repo.OwnerSlug, repo.RepoSlug)
	if err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}

	out := make(map[string]string, len(raw))
	for _, c := range raw {
		rec, _, err := o.store.GetOrCreateContributor(ctx, sync.Contributor{
			Provider:   repo.Provider,
			ExternalID: c.ExternalID,
			Login:      c.Login,
			Name:       c.Name,
			Email:      c.Email,
			AvatarURL:  c.AvatarURL,
		})
		if err != nil {
			slog.Warn("upsert contributor failed", "login", c.Login, "error", err)
			continue
		}
		out[c.Login] = rec.ID
	}
	return out, nil
}

// processCommit fetches full commit detail (the Forge Client itself acquires
// the rate-limit token for that call), runs the ignore filter and language
// detector over its files, classifies it, and persists the result in a
// single logical unit of work. The returned bool reports whether the base
// commit row was newly created.
func (o *Orchestrator) processCommit(ctx context.Context, sessionID string, client forge.Client, repo sync.Repository, contributors map[string]string, summary forge.Commit, rules []classify.Rule) (bool, error) {
	ctx, span := cfotel.StartCommitSpan(ctx, sessionID, summary.SHA)
	defer span.End()

	detail, err := client.GetCommit(ctx, repo.OwnerSlug, repo.RepoSlug, summary.SHA)
	if err != nil {
		return false, fmt.Errorf("get commit: %w", err)
	}

	var kept []sync.CommitFile
	for _, f := range detail.Files {
		if o.ignore.Ignored(f.Path) {
			continue
		}
		kept = append(kept, sync.CommitFile{
			Path:      f.Path,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Changes:   f.Changes,
			Language:  o.lang.Detect(f.Path),
			Patch:     f.Patch,
		})
	}

	enr := classify.Classify(classify.Input{
		Message:      detail.Message,
		ParentSHAs:   detail.ParentSHAs,
		FilesChanged: len(detail.Files),
		FilesKnown:   true,
	}, rules)

	commitRow, created, err := o.store.GetOrCreateCommit(ctx, repo.ID, detail.SHA)
	if err != nil {
		return false, fmt.Errorf("get or create commit: %w", err)
	}

	contributorID := contributors[detail.AuthorLogin]
	authoredAt, committedAt := detail.AuthoredAt, detail.CommittedAt
	additions, deletions, totalChanges := detail.Additions, detail.Deletions, detail.TotalChanges
	filesChanged := len(detail.Files)
	parentsCount := len(detail.ParentSHAs)
	message, authorName, authorEmail := detail.Message, detail.AuthorName, detail.AuthorEmail

	err = o.store.UpdateCommitDetails(ctx, commitRow.ID, store.CommitDetails{
		ContributorID: &contributorID,
		Message:       &message,
		AuthorName:    &authorName,
		AuthorEmail:   &authorEmail,
		AuthoredAt:    &authoredAt,
		CommittedAt:   &committedAt,
		Additions:     &additions,
		Deletions:     &deletions,
		TotalChanges:  &totalChanges,
		FilesChanged:  &filesChanged,
		ParentsCount:  &parentsCount,
		Enrichment:    &enr,
	})
	if err != nil {
		return created, fmt.Errorf("update commit details: %w", err)
	}

	if err := o.store.DeleteCommitFilesByCommitID(ctx, commitRow.ID); err != nil {
		return created, fmt.Errorf("clear commit files: %w", err)
	}
	if err := o.store.BulkCreateCommitFiles(ctx, commitRow.ID, kept); err != nil {
		return created, fmt.Errorf("bulk create commit files: %w", err)
	}

	return created, nil
}

// backfillPullsAndIssues paginates pull requests and issues and upserts each
// by (repository_id, number). Failures here never abort the session.
func (o *Orchestrator) backfillPullsAndIssues(ctx context.Context, client forge.Client, repo sync.Repository, contributors map[string]string) error {
	pulls, err := client.ListPulls(ctx, repo.OwnerSlug, repo.RepoSlug, forge.ListOptions{})
	if err != nil {
		return fmt.Errorf("list pulls: %w", err)
	}
	for _, p := range pulls {
		_, _, err := o.store.GetOrCreatePullRequest(ctx, sync.PullRequest{
			RepositoryID:  repo.ID,
			ContributorID: contributors[p.AuthorLogin],
			Number:        p.Number,
			Title:         p.Title,
			State:         sync.PRState(p.State),
			AuthorLogin:   p.AuthorLogin,
			AuthorAvatar:  p.AuthorAvatar,
			CreatedAt:     p.CreatedAt,
			ClosedAt:      p.ClosedAt,
			MergedAt:      p.MergedAt,
		})
		if err != nil {
			slog.Warn("upsert pull request failed", "number", p.Number, "error", err)
		}
	}

	issues, err := client.ListIssues(ctx, repo.OwnerSlug, repo.RepoSlug, forge.ListOptions{})
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	for _, i := range issues {
		_, _, err := o.store.GetOrCreateIssue(ctx, sync.Issue{
			RepositoryID:  repo.ID,
			ContributorID: contributors[i.AuthorLogin],
			Number:        i.Number,
			Title:         i.Title,
			State:         sync.PRState(i.State),
			AuthorLogin:   i.AuthorLogin,
			AuthorAvatar:  i.AuthorAvatar,
			CreatedAt:     i.CreatedAt,
			ClosedAt:      i.ClosedAt,
		})
		if err != nil {
			slog.Warn("upsert issue failed", "number", i.Number, "error", err)
		}
	}
	return nil
}

// partition splits commits by authored date against cutoff, preserving
// order within each partition. Commits with a zero (missing/unparsable)
// AuthoredAt are classified as archive.
func partition(commits []forge.Commit, cutoff time.Time) (sprint, archive []forge.Commit) {
	for _, c := range commits {
		if c.AuthoredAt.IsZero() || c.AuthoredAt.Before(cutoff) {
			archive = append(archive, c)
			continue
		}
		sprint = append(sprint, c)
	}
	return sprint, archive
}
