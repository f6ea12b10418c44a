package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/services"
	"astroconnect_go_backend/internal/utils/broker"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type sessionFixture struct {
	service  *services.SessionService
	wallet   *services.WalletService
	stream   *services.ChatStreamService
	store    *MockMessageStore
	sessions *MockSessionStore
	sched    *manualScheduler
}

func newSessionFixture(t *testing.T, initialBalance int64) *sessionFixture {
	t.Helper()

	sched := newManualScheduler()
	store := new(MockMessageStore)
	store.On("Query", mock.Anything, mock.Anything).Return([]models.Message{}, nil).Maybe()
	sessions := new(MockSessionStore)
	sessions.On("SaveSession", mock.Anything, mock.Anything).Return(nil).Maybe()
	sessions.On("EndSession", mock.Anything, mock.Anything).Return(nil).Maybe()

	wallet := services.NewWalletService(newMemKV(), sched, nil, zerolog.Nop(), walletConfig(initialBalance))
	stream := services.NewChatStreamService(store, broker.NewBroker(), sched, nil, zerolog.Nop(), 5*time.Second)
	astrologers := &stubAstrologers{roster: []models.Astrologer{
		{AstrologerID: "1", Name: "Pandit Rajesh Sharma", PricePerMin: decimal.NewFromInt(25), IsOnline: true},
		{AstrologerID: "3", Name: "Guruji Anand", PricePerMin: decimal.NewFromInt(20), IsOnline: false},
	}}

	service := services.NewSessionService(wallet, stream, astrologers, sessions, sched, nil, zerolog.Nop())
	return &sessionFixture{
		service:  service,
		wallet:   wallet,
		stream:   stream,
		store:    store,
		sessions: sessions,
		sched:    sched,
	}
}

func TestStartSessionWithEmptyWalletAwaitsFunds(t *testing.T) {
	f := newSessionFixture(t, 0)

	info, err := f.service.StartSession(context.Background(), "1")
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
	assert.Nil(t, info)
	assert.Equal(t, "awaiting_funds", f.service.Info().State)

	// No session was created and no timer started.
	assert.Equal(t, 0, f.sched.tickerCount())
	assert.Empty(t, f.service.ActiveSessionID())

	f.service.CancelAwaitingFunds()
	assert.Equal(t, "idle", f.service.Info().State)
}

func TestStartSessionIssuesFreshIDAndStartsMetering(t *testing.T) {
	f := newSessionFixture(t, 500)

	info, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)
	assert.Equal(t, "active", info.State)
	assert.True(t, strings.HasPrefix(info.SessionID, "session-"))
	assert.Equal(t, "1", info.AstrologerID)

	// Stream is bound to the new session and metering is running.
	assert.Equal(t, info.SessionID, f.stream.SessionID())
	assert.Equal(t, 1, f.sched.tickerCount())

	// 25/min over 10 ticks deducts 2.5 per tick.
	assert.True(t, f.sched.ticker(0).tick(time.Second))
	assert.Eventually(t, func() bool {
		return f.wallet.Balance().StringFixed(2) == "497.50"
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, f.service.EndSession(context.Background(), info.SessionID))
}

func TestStartSessionRejectsOfflineAstrologer(t *testing.T) {
	f := newSessionFixture(t, 500)

	_, err := f.service.StartSession(context.Background(), "3")
	assert.ErrorIs(t, err, services.ErrAstrologerUnavailable)
}

func TestStartSessionRejectsUnknownAstrologer(t *testing.T) {
	f := newSessionFixture(t, 500)

	_, err := f.service.StartSession(context.Background(), "who")
	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestSecondStartWhileActiveIsRejected(t *testing.T) {
	f := newSessionFixture(t, 500)

	info, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)

	_, err = f.service.StartSession(context.Background(), "1")
	assert.ErrorIs(t, err, services.ErrSessionAlreadyActive)

	assert.NoError(t, f.service.EndSession(context.Background(), info.SessionID))
}

func TestEndSessionStopsMeteringAndReleasesStream(t *testing.T) {
	f := newSessionFixture(t, 500)

	info, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)

	assert.NoError(t, f.service.EndSession(context.Background(), info.SessionID))
	assert.False(t, f.service.IsActive())
	assert.Empty(t, f.stream.SessionID())
	assert.True(t, f.sched.ticker(0).stopped)

	// No further balance change after the session ends.
	f.sched.ticker(0).tick(100 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "500.00", f.wallet.Balance().StringFixed(2))

	// Ending twice reports the session as gone.
	assert.ErrorIs(t, f.service.EndSession(context.Background(), info.SessionID), services.ErrSessionNotFound)
	f.sessions.AssertCalled(t, "EndSession", mock.Anything, info.SessionID)
}

func TestExhaustionTerminatesSession(t *testing.T) {
	// 5 in the wallet at 25/min: two ticks and the session must end itself.
	f := newSessionFixture(t, 5)

	info, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)

	assert.True(t, f.sched.ticker(0).tick(time.Second))
	assert.True(t, f.sched.ticker(0).tick(time.Second))

	assert.Eventually(t, func() bool {
		return !f.service.IsActive()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "0.00", f.wallet.Balance().StringFixed(2))
	assert.Empty(t, f.stream.SessionID())

	// Metering must not outlive the session.
	assert.False(t, f.sched.ticker(0).tick(100*time.Millisecond))

	f.sessions.AssertCalled(t, "EndSession", mock.Anything, info.SessionID)
}

// stallSessions blocks EndSession persistence until released, exposing the
// window between a session's deactivation and its final reset.
type stallSessions struct {
	entered chan string
	release chan struct{}
}

func (s *stallSessions) SaveSession(ctx context.Context, session *models.ChatSession) error {
	return nil
}

func (s *stallSessions) EndSession(ctx context.Context, sessionID string) error {
	s.entered <- sessionID
	<-s.release
	return nil
}

func TestStartDuringInFlightEndWaitsAndKeepsMetering(t *testing.T) {
	sched := newManualScheduler()
	store := new(MockMessageStore)
	store.On("Query", mock.Anything, mock.Anything).Return([]models.Message{}, nil).Maybe()
	sessions := &stallSessions{entered: make(chan string, 2), release: make(chan struct{})}

	wallet := services.NewWalletService(newMemKV(), sched, nil, zerolog.Nop(), walletConfig(500))
	stream := services.NewChatStreamService(store, broker.NewBroker(), sched, nil, zerolog.Nop(), 5*time.Second)
	astrologers := &stubAstrologers{roster: []models.Astrologer{
		{AstrologerID: "1", Name: "Pandit Rajesh Sharma", PricePerMin: decimal.NewFromInt(25), IsOnline: true},
	}}
	svc := services.NewSessionService(wallet, stream, astrologers, sessions, sched, nil, zerolog.Nop())

	first, err := svc.StartSession(context.Background(), "1")
	assert.NoError(t, err)

	endDone := make(chan error, 1)
	go func() {
		endDone <- svc.EndSession(context.Background(), first.SessionID)
	}()
	assert.Equal(t, first.SessionID, <-sessions.entered)

	startDone := make(chan *services.SessionInfo, 1)
	startErr := make(chan error, 1)
	go func() {
		info, err := svc.StartSession(context.Background(), "1")
		startErr <- err
		startDone <- info
	}()

	// The new start must not be admitted while the end is mid-flight.
	select {
	case <-startDone:
		t.Fatal("StartSession completed during an in-flight EndSession")
	case <-time.After(50 * time.Millisecond):
	}

	close(sessions.release)
	assert.NoError(t, <-endDone)
	assert.NoError(t, <-startErr)
	second := <-startDone
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// The controller reports the second session, and its metering survived
	// the tail of the first session's teardown.
	assert.Equal(t, "active", svc.Info().State)
	assert.Equal(t, second.SessionID, svc.ActiveSessionID())
	assert.True(t, sched.ticker(0).stopped)
	assert.False(t, sched.ticker(1).stopped)

	assert.True(t, sched.ticker(1).tick(time.Second))
	assert.Eventually(t, func() bool {
		return wallet.Balance().StringFixed(2) == "497.50"
	}, time.Second, 5*time.Millisecond)

	// The second session is endable, and ending it stops its timer.
	assert.NoError(t, svc.EndSession(context.Background(), second.SessionID))
	assert.True(t, sched.ticker(1).stopped)
	assert.Equal(t, "idle", svc.Info().State)
}

func TestNewSessionAfterEndGetsFreshID(t *testing.T) {
	f := newSessionFixture(t, 500)

	first, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)
	assert.NoError(t, f.service.EndSession(context.Background(), first.SessionID))

	second, err := f.service.StartSession(context.Background(), "1")
	assert.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	assert.NoError(t, f.service.EndSession(context.Background(), second.SessionID))
}
