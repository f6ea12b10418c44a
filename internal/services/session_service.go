package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"astroconnect_go_backend/internal/metrics"
	"astroconnect_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionAlreadyActive  = errors.New("a session is already active")
	ErrInsufficientFunds     = errors.New("wallet is empty, add funds to start a session")
	ErrAstrologerUnavailable = errors.New("astrologer is not available")
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingFunds
	StateActive
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFunds:
		return "awaiting_funds"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

type TerminationReason int

const (
	UserInitiated TerminationReason = iota
	BalanceExhausted
	AstrologerUnavailable
)

func (r TerminationReason) String() string {
	switch r {
	case UserInitiated:
		return "user_initiated"
	case BalanceExhausted:
		return "balance_exhausted"
	case AstrologerUnavailable:
		return "astrologer_unavailable"
	}
	return "unknown"
}

// SessionInfo is a snapshot of the controller state for the API surface.
type SessionInfo struct {
	SessionID    string     `json:"session_id,omitempty"`
	AstrologerID string     `json:"astrologer_id,omitempty"`
	State        string     `json:"state"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// SessionService is the composition root for live chat: astrologer selection,
// session id issuance, wallet metering, and the message stream subscription.
// One session is active per user context at a time.
type SessionService struct {
	wallet      *WalletService
	stream      *ChatStreamService
	astrologers AstrologerLister
	sessions    SessionStore
	scheduler   Scheduler
	metrics     *metrics.Metrics
	log         zerolog.Logger

	// transitions serializes StartSession against endSession. The end path
	// persists over the network between its two state updates; without this
	// lock a start admitted in that gap would have its metering and feed
	// subscription clobbered by the tail of the old end.
	transitions sync.Mutex

	mu         sync.Mutex
	state      SessionState
	sessionID  string
	astrologer *models.Astrologer
	startedAt  time.Time
	endedAt    *time.Time
}

func NewSessionService(
	wallet *WalletService,
	stream *ChatStreamService,
	astrologers AstrologerLister,
	sessions SessionStore,
	scheduler Scheduler,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		wallet:      wallet,
		stream:      stream,
		astrologers: astrologers,
		sessions:    sessions,
		scheduler:   scheduler,
		metrics:     m,
		log:         logger.With().Str("component", "session").Logger(),
		state:       StateIdle,
	}
}

// newSessionID issues a fresh id unique within this user's lifetime of the
// app: millisecond timestamp plus a random suffix.
func (s *SessionService) newSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session-%d-%s", s.scheduler.Now().UnixMilli(), suffix)
}

// StartSession moves Idle -> Active, or Idle -> AwaitingFunds when the wallet
// is empty (in which case no session is created and ErrInsufficientFunds is
// returned so the caller can prompt for funds).
func (s *SessionService) StartSession(ctx context.Context, astrologerID string) (*SessionInfo, error) {
	astrologer, err := s.astrologers.GetAstrologer(ctx, astrologerID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if !astrologer.IsOnline {
		return nil, ErrAstrologerUnavailable
	}

	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	if s.state == StateActive {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	if s.wallet.IsEmpty() {
		s.state = StateAwaitingFunds
		s.mu.Unlock()
		return nil, ErrInsufficientFunds
	}

	sessionID := s.newSessionID()
	s.state = StateActive
	s.sessionID = sessionID
	s.astrologer = astrologer
	s.startedAt = s.scheduler.Now()
	s.endedAt = nil
	s.mu.Unlock()

	s.stream.Clear()
	s.stream.Subscribe(ctx, sessionID)

	if err := s.sessions.SaveSession(ctx, &models.ChatSession{
		SessionID:    sessionID,
		AstrologerID: astrologer.AstrologerID,
		IsActive:     true,
		StartedAt:    s.startedAt,
	}); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist session start")
	}

	s.wallet.StartMetering(astrologer.PricePerMin, func() {
		s.endSession(context.Background(), sessionID, BalanceExhausted)
	})

	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.log.Info().
		Str("session_id", sessionID).
		Str("astrologer_id", astrologer.AstrologerID).
		Str("rate_per_minute", astrologer.PricePerMin.StringFixed(2)).
		Msg("session started")

	return s.Info(), nil
}

// CancelAwaitingFunds returns AwaitingFunds to Idle without creating a session.
func (s *SessionService) CancelAwaitingFunds() {
	s.mu.Lock()
	if s.state == StateAwaitingFunds {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// EndSession performs the Active -> Ended transition for an explicit user
// action.
func (s *SessionService) EndSession(ctx context.Context, sessionID string) error {
	return s.endSession(ctx, sessionID, UserInitiated)
}

// endSession is the single exit path. Every caller that deactivates the
// session also stops metering and releases the feed; the transition is
// idempotent so the exhaustion callback racing an explicit end is harmless.
// Holding transitions across the whole exit keeps a concurrent StartSession
// out until the final reset to Idle has happened.
func (s *SessionService) endSession(ctx context.Context, sessionID string, reason TerminationReason) error {
	s.transitions.Lock()
	defer s.transitions.Unlock()

	s.mu.Lock()
	if s.state != StateActive || s.sessionID != sessionID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	s.state = StateEnded
	now := s.scheduler.Now()
	s.endedAt = &now
	s.mu.Unlock()

	s.wallet.StopMetering()
	s.stream.Unsubscribe()

	if err := s.sessions.EndSession(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist session end")
	}

	if s.metrics != nil {
		s.metrics.SessionsEnded.WithLabelValues(reason.String()).Inc()
	}
	s.log.Info().
		Str("session_id", sessionID).
		Str("reason", reason.String()).
		Msg("session ended")

	// Ended is terminal for this session instance; the controller is ready
	// for a brand-new session under a fresh id.
	s.mu.Lock()
	s.state = StateIdle
	s.sessionID = ""
	s.astrologer = nil
	s.mu.Unlock()

	return nil
}

// Info returns a snapshot of the controller state.
func (s *SessionService) Info() *SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SessionService) snapshotLocked() *SessionInfo {
	info := &SessionInfo{
		State:     s.state.String(),
		SessionID: s.sessionID,
		EndedAt:   s.endedAt,
	}
	if s.astrologer != nil {
		info.AstrologerID = s.astrologer.AstrologerID
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		info.StartedAt = &t
	}
	return info
}

// IsActive reports whether a session is currently active.
func (s *SessionService) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// ActiveSessionID returns the bound session id, or empty when none is active.
func (s *SessionService) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ""
	}
	return s.sessionID
}

// Stream exposes the message stream bound to the current session.
func (s *SessionService) Stream() *ChatStreamService {
	return s.stream
}

// Wallet exposes the wallet ledger.
func (s *SessionService) Wallet() *WalletService {
	return s.wallet
}
