package daemon

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/displayd/internal/visibility"
	"github.com/google/uuid"
)

// ErrUnknownSession is returned for session ids that were never begun or
// have been pruned.
var ErrUnknownSession = errors.New("unknown session")

// Session is one presentation surface driving a visibility coordinator.
type Session struct {
	ID         string
	Source     string
	CreatedAt  time.Time
	ArmedAt    time.Time
	ReleasedAt time.Time
	coord      *visibility.Coordinator
}

// Phase returns the coordinator phase.
func (s *Session) Phase() visibility.Phase {
	return s.coord.Phase()
}

// Coordinator returns the session's coordinator.
func (s *Session) Coordinator() *visibility.Coordinator {
	return s.coord
}

// Sessions is the table of presentation sessions. Like the coordinators it
// holds, it is not safe for concurrent use; the daemon confines it to Loop.
type Sessions struct {
	suppressor visibility.Suppressor
	logger     *slog.Logger
	now        func() time.Time
	sessions   map[string]*Session
}

// NewSessions creates an empty session table over suppressor.
func NewSessions(suppressor visibility.Suppressor, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sessions{
		suppressor: suppressor,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Begin signals activation for session id, creating it when unknown. An
// empty id creates a session with a fresh uuid. Beginning an armed session
// replaces its token; beginning a released one re-arms it.
func (s *Sessions) Begin(id, source string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:        id,
			Source:    source,
			CreatedAt: s.now(),
			coord:     visibility.NewCoordinator(s.suppressor, s.logger.With("session", id)),
		}
		s.sessions[id] = sess
		s.logger.Debug("session created", "session", id, "source", source)
	}
	sess.coord.OnActivationReady()
	sess.ArmedAt = s.now()
	sess.ReleasedAt = time.Time{}
	return sess
}

// DataReady forwards the readiness signal for session id.
func (s *Sessions) DataReady(id string, suppressible bool) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	wasReleased := sess.coord.HasReleased()
	sess.coord.OnDataReady(suppressible)
	if !wasReleased && sess.coord.HasReleased() {
		sess.ReleasedAt = s.now()
	}
	return sess, nil
}

// Release ends suppression for session id. Releasing twice is harmless.
func (s *Sessions) Release(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	s.release(sess)
	return sess, nil
}

func (s *Sessions) release(sess *Session) {
	if sess.coord.HasReleased() {
		return
	}
	sess.coord.Release()
	sess.ReleasedAt = s.now()
}

// Get returns session id.
func (s *Sessions) Get(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns all sessions ordered by creation time.
func (s *Sessions) List() []*Session {
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of sessions.
func (s *Sessions) Len() int {
	return len(s.sessions)
}

// Armed returns the number of sessions currently holding suppression.
func (s *Sessions) Armed() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.coord.Phase() == visibility.PhaseArmed {
			n++
		}
	}
	return n
}

// ExpireHeld force-releases sessions armed for at least maxHold and returns
// their ids. A non-positive maxHold disables expiry.
func (s *Sessions) ExpireHeld(now time.Time, maxHold time.Duration) []string {
	if maxHold <= 0 {
		return nil
	}
	var expired []string
	for _, sess := range s.List() {
		if sess.coord.Phase() != visibility.PhaseArmed {
			continue
		}
		if now.Sub(sess.ArmedAt) < maxHold {
			continue
		}
		s.release(sess)
		expired = append(expired, sess.ID)
		s.logger.Warn("session held too long, released", "session", sess.ID, "held", now.Sub(sess.ArmedAt))
	}
	return expired
}

// Prune drops released sessions whose release is at least ttl old and
// returns how many were removed.
func (s *Sessions) Prune(now time.Time, ttl time.Duration) int {
	removed := 0
	for id, sess := range s.sessions {
		if !sess.coord.HasReleased() || sess.ReleasedAt.IsZero() {
			continue
		}
		if now.Sub(sess.ReleasedAt) < ttl {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// ReleaseAll releases every session, used on shutdown so no window stays
// hidden.
func (s *Sessions) ReleaseAll() {
	for _, sess := range s.List() {
		s.release(sess)
	}
}
