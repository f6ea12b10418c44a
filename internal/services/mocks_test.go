package services_test

import (
	"context"
	"sync"
	"time"

	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/services"

	"github.com/stretchr/testify/mock"
)

type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKVStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Insert(ctx context.Context, sessionID, sender, content string) error {
	args := m.Called(ctx, sessionID, sender, content)
	return args.Error(0)
}

func (m *MockMessageStore) Query(ctx context.Context, sessionID string) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]models.Message), args.Error(1)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) SaveSession(ctx context.Context, session *models.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) EndSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, systemPrompt string, history []services.ChatTurn) (string, error) {
	args := m.Called(ctx, systemPrompt, history)
	return args.String(0), args.Error(1)
}

// stubAstrologers serves a fixed roster without a database.
type stubAstrologers struct {
	roster []models.Astrologer
}

func (s *stubAstrologers) ListAstrologers(ctx context.Context) ([]models.Astrologer, error) {
	return s.roster, nil
}

func (s *stubAstrologers) GetAstrologer(ctx context.Context, astrologerID string) (*models.Astrologer, error) {
	for i := range s.roster {
		if s.roster[i].AstrologerID == astrologerID {
			return &s.roster[i], nil
		}
	}
	return nil, services.ErrSessionNotFound
}

// memKV is an always-working in-memory key-value store.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// manualScheduler drives time by hand so metering ticks and confirmation
// timeouts are deterministic in tests.
type manualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	timers  []*manualTimer
}

type manualTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped = true }

type manualTimer struct {
	f       func()
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Unix(1700000000, 0)}
}

func (s *manualScheduler) NewTicker(d time.Duration) services.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	s.tickers = append(s.tickers, t)
	return t
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) services.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

// ticker returns the i-th ticker created through the scheduler.
func (s *manualScheduler) ticker(i int) *manualTicker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickers[i]
}

func (s *manualScheduler) tickerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickers)
}

// tick delivers one tick to the ticker, or gives up if nothing consumes it
// within the timeout (a stopped metering loop no longer reads its channel).
func (t *manualTicker) tick(timeout time.Duration) bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}

// fireTimers runs every pending AfterFunc callback that has not been stopped.
func (s *manualScheduler) fireTimers() {
	s.mu.Lock()
	pending := make([]*manualTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			t.fired = true
			pending = append(pending, t)
		}
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.f()
	}
}
