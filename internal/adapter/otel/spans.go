package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sprintsync"

// StartSessionSpan starts a span covering one sync session's full run, from
// MarkRunning through its terminal state.
func StartSessionSpan(ctx context.Context, sessionID, teamID, repository string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "sync.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("team.id", teamID),
			attribute.String("repository", repository),
		),
	)
}

// StartCommitSpan starts a span for processing a single commit within a
// session: fetch, filter, classify, and persist.
func StartCommitSpan(ctx context.Context, sessionID, sha string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "sync.commit",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("commit.sha", sha),
		),
	)
}
