// Package http implements the HTTP surface described in the external
// interfaces section: team sync control, progress streaming, sprint
// analytics, and per-team settings.
package http

import (
	"time"

	"github.com/strob0t/sprintsync/internal/adapter/sse"
	"github.com/strob0t/sprintsync/internal/analytics"
	"github.com/strob0t/sprintsync/internal/config"
	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/port/store"
	"github.com/strob0t/sprintsync/internal/secrets"
	"github.com/strob0t/sprintsync/internal/syncengine"
	"github.com/strob0t/sprintsync/internal/teamsettings"
)

const maxSyncBodyBytes = 1 << 16 // 64 KiB

// Handlers holds every dependency the route handlers need: the sync
// subsystem's store, the dispatcher, the progress stream, the
// update probe, the analytics engine, the settings resolver,
// and the forge client registry used to authenticate outbound calls.
type Handlers struct {
	store      store.Store
	dispatcher *syncengine.Dispatcher
	stream     *sse.Stream
	probe      *syncengine.UpdateProbe
	analytics  *analytics.Analytics
	resolver   *teamsettings.Resolver
	registry   *forge.Registry
	vault      *secrets.Vault
	devToken   string
	now        func() time.Time
}

// NewHandlers wires a Handlers from its constituent components. vault may
// be nil, in which case only cfg.Token is available as a dev-mode PAT.
func NewHandlers(
	st store.Store,
	dispatcher *syncengine.Dispatcher,
	stream *sse.Stream,
	probe *syncengine.UpdateProbe,
	an *analytics.Analytics,
	resolver *teamsettings.Resolver,
	registry *forge.Registry,
	vault *secrets.Vault,
	cfg config.Forge,
) *Handlers {
	return &Handlers{
		store:      st,
		dispatcher: dispatcher,
		stream:     stream,
		probe:      probe,
		analytics:  an,
		resolver:   resolver,
		registry:   registry,
		vault:      vault,
		devToken:   cfg.Token,
		now:        time.Now,
	}
}

// resolveToken picks the forge PAT to authenticate a call for teamID: the
// value passed explicitly by the caller, else the team's vault-stored
// token, else the dev-mode default from config.Forge.Token.
func (h *Handlers) resolveToken(teamID, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if h.vault != nil {
		if t := h.vault.Get("forge_token:" + teamID); t != "" {
			return t
		}
	}
	return h.devToken
}
