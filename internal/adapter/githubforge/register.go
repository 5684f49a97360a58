package githubforge

import (
	"net/http"
	"time"

	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/ratelimit"
	"github.com/strob0t/sprintsync/internal/resilience"
)

// Register wires the GitHub variant into reg under the "github" provider tag.
// There is no separate probe deadline: CountCommits uses the same HTTP
// client, and so the same callTimeout, as every other call. limiter is shared across every
// client this factory builds, so every call from every session draws from
// the same bucket.
func Register(reg *forge.Registry, baseURL string, breaker *resilience.Breaker, limiter *ratelimit.Limiter, callTimeout time.Duration, retryAttempts int, retryBackoff time.Duration) {
	reg.Register("github", NewClient(baseURL,
		WithBreaker(breaker),
		WithRateLimiter(limiter),
		WithRetry(retryAttempts, retryBackoff),
		WithHTTPClient(&http.Client{Timeout: callTimeout}),
	))
}
