package visibility

import (
	"io"
	"log/slog"

	"github.com/1broseidon/displayd/internal/token"
)

// Suppressor is the host service that hides the default UI while a token
// is outstanding. Implementations must treat EndSuppression(token.Invalid)
// as a no-op and absorb their own failures.
type Suppressor interface {
	BeginSuppression()
	RequestToken(previous token.Token) token.Token
	EndSuppression(t token.Token)
}

// Phase represents where a coordinator is in its activation cycle.
type Phase int

const (
	// PhaseUnarmed means no token has been requested yet.
	PhaseUnarmed Phase = iota
	// PhaseArmed means a token is held and not yet released.
	PhaseArmed
	// PhaseReleased means release was requested for the current cycle.
	PhaseReleased
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseUnarmed:
		return "unarmed"
	case PhaseArmed:
		return "armed"
	case PhaseReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Coordinator holds at most one suppression token for a session and
// guarantees the token is handed back exactly once per activation, whatever
// order the "UI ready" and "data ready" signals arrive in.
//
// A Coordinator is not safe for concurrent use.
type Coordinator struct {
	suppressor Suppressor
	logger     *slog.Logger
	phase      Phase
	token      token.Token
}

// NewCoordinator creates an unarmed coordinator. logger may be nil.
func NewCoordinator(suppressor Suppressor, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		suppressor: suppressor,
		logger:     logger,
		phase:      PhaseUnarmed,
		token:      token.Invalid,
	}
}

// OnActivationReady enters suppressed mode and acquires a fresh token,
// handing any previously held token back to the suppressor. It may be
// called repeatedly and re-arms a released coordinator.
func (c *Coordinator) OnActivationReady() {
	c.suppressor.BeginSuppression()
	previous := c.token
	c.token = c.suppressor.RequestToken(previous)
	c.phase = PhaseArmed
	c.logger.Debug("suppression armed", "token", c.token, "previous", previous)
}

// OnDataReady releases immediately when the data turned out not to need
// suppression. Otherwise release is left to an explicit Release call.
func (c *Coordinator) OnDataReady(dataAlreadySuppressible bool) {
	if dataAlreadySuppressible {
		return
	}
	c.Release()
}

// Release ends suppression for the held token. Repeated calls, and calls
// before any token was acquired, do not reach the suppressor.
func (c *Coordinator) Release() {
	if c.phase == PhaseReleased {
		return
	}
	held := c.token
	c.phase = PhaseReleased
	c.token = token.Invalid
	if !held.Valid() {
		c.logger.Debug("release before activation")
		return
	}
	c.suppressor.EndSuppression(held)
	c.logger.Debug("suppression released", "token", held)
}

// HasReleased reports whether release was requested in the current cycle.
func (c *Coordinator) HasReleased() bool {
	return c.phase == PhaseReleased
}

// HasAcquired reports whether a token is currently held.
func (c *Coordinator) HasAcquired() bool {
	return c.token.Valid()
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	return c.phase
}

// Token returns the held token, or token.Invalid.
func (c *Coordinator) Token() token.Token {
	return c.token
}
