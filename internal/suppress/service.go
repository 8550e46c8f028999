package suppress

import (
	"io"
	"log/slog"

	"github.com/1broseidon/displayd/internal/token"
	"github.com/1broseidon/displayd/internal/visibility"
)

// Surface is the default UI that gets hidden while suppression is active.
type Surface interface {
	Hide() error
	Show() error
}

// Service hides a Surface while at least one token is outstanding.
type Service struct {
	surface Surface
	holder  *token.Holder
	hidden  bool
	logger  *slog.Logger
}

var _ visibility.Suppressor = (*Service)(nil)

// NewService creates a suppression service for surface. logger may be nil.
func NewService(surface Surface, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{
		surface: surface,
		logger:  logger,
	}
	s.holder = token.NewHolder(s.onTokensChanged)
	return s
}

// BeginSuppression announces that a token request follows. The surface is
// hidden by RequestToken so a begin that never gets a token cannot leave it
// hidden.
func (s *Service) BeginSuppression() {
	s.logger.Debug("suppression requested", "outstanding", s.holder.Len())
}

// RequestToken issues a token and drops previous in one step.
func (s *Service) RequestToken(previous token.Token) token.Token {
	return s.holder.Acquire(previous)
}

// EndSuppression drops t. The surface comes back once no tokens remain.
// Invalid and unknown tokens are ignored.
func (s *Service) EndSuppression(t token.Token) {
	if !t.Valid() || !s.holder.Holds(t) {
		return
	}
	s.holder.Release(t)
}

// Suppressed reports whether the surface is currently hidden.
func (s *Service) Suppressed() bool {
	return s.hidden
}

// Outstanding returns the number of tokens not yet released.
func (s *Service) Outstanding() int {
	return s.holder.Len()
}

func (s *Service) onTokensChanged(hasTokens bool) {
	if hasTokens {
		s.hide()
		return
	}
	s.show()
}

func (s *Service) hide() {
	if s.hidden {
		return
	}
	s.hidden = true
	if err := s.surface.Hide(); err != nil {
		s.logger.Warn("failed to hide surface", "error", err)
		return
	}
	s.logger.Info("default surface suppressed")
}

func (s *Service) show() {
	if !s.hidden {
		return
	}
	s.hidden = false
	if err := s.surface.Show(); err != nil {
		s.logger.Warn("failed to restore surface", "error", err)
		return
	}
	s.logger.Info("default surface restored")
}
