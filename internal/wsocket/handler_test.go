package wsocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/services"
	"astroconnect_go_backend/internal/utils/broker"
	"astroconnect_go_backend/internal/wsocket"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool { return !t.stopped }

// fakeScheduler hands out inert tickers and collects AfterFunc callbacks to
// be fired by hand.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []func()
}

func (s *fakeScheduler) NewTicker(d time.Duration) services.Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) services.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, f)
	return &fakeTimer{}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

func (s *fakeScheduler) fireTimers() {
	s.mu.Lock()
	pending := s.timers
	s.timers = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

// splitStore accepts the first insert without ever echoing it on the feed
// and rejects every later insert, so one message sits pending while another
// lands in the log immediately.
type splitStore struct {
	mu      sync.Mutex
	inserts int
}

func (s *splitStore) Insert(ctx context.Context, sessionID, sender, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.inserts == 1 {
		return nil
	}
	return assert.AnError
}

func (s *splitStore) Query(ctx context.Context, sessionID string) ([]models.Message, error) {
	return nil, nil
}

type noopSessions struct{}

func (noopSessions) SaveSession(ctx context.Context, session *models.ChatSession) error { return nil }
func (noopSessions) EndSession(ctx context.Context, sessionID string) error             { return nil }

type mapKV struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *mapKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type onlineRoster struct{}

func (onlineRoster) ListAstrologers(ctx context.Context) ([]models.Astrologer, error) {
	return []models.Astrologer{
		{AstrologerID: "1", Name: "Pandit Rajesh Sharma", PricePerMin: decimal.NewFromInt(25), IsOnline: true},
	}, nil
}

func (onlineRoster) GetAstrologer(ctx context.Context, astrologerID string) (*models.Astrologer, error) {
	return &models.Astrologer{AstrologerID: "1", Name: "Pandit Rajesh Sharma", PricePerMin: decimal.NewFromInt(25), IsOnline: true}, nil
}

func TestPushLoopDeliversPromotedMessageExactlyOnce(t *testing.T) {
	sched := &fakeScheduler{now: time.Unix(1700000000, 0)}

	cfg := services.WalletConfig{
		InitialBalance: decimal.NewFromInt(500),
		LowBalanceMark: decimal.NewFromInt(50),
		TickInterval:   time.Minute,
		TicksPerMinute: 10,
		PersistTimeout: time.Second,
	}
	wallet := services.NewWalletService(&mapKV{values: map[string]string{}}, sched, nil, zerolog.Nop(), cfg)
	stream := services.NewChatStreamService(&splitStore{}, broker.NewBroker(), sched, nil, zerolog.Nop(), 5*time.Second)
	sessionService := services.NewSessionService(wallet, stream, onlineRoster{}, noopSessions{}, sched, nil, zerolog.Nop())

	info, err := sessionService.StartSession(context.Background(), "1")
	assert.NoError(t, err)

	handler := wsocket.NewHandler(sessionService, services.NewAstroAIService(nil, nil, zerolog.Nop()), websocket.Upgrader{}, 10*time.Millisecond, sched, zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?sessionId=" + info.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer conn.Close()

	// First send is accepted remotely and stays pending; second send fails
	// remotely and is appended right away with a later timestamp.
	assert.NoError(t, stream.Send(context.Background(), "pending reply", models.SenderAstrologer))
	assert.NoError(t, stream.Send(context.Background(), "visible message", models.SenderUser))

	counts := map[string]int{}
	readUntil := func(content string, deadline time.Duration) bool {
		limit := time.Now().Add(deadline)
		for time.Now().Before(limit) {
			conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			var frame wsocket.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return false
			}
			if frame.Type == "chat_message" && frame.Message != nil {
				counts[frame.Message.Content]++
				if frame.Message.Content == content {
					return true
				}
			}
		}
		return false
	}

	assert.True(t, readUntil("visible message", 2*time.Second))

	// The confirmation timeout fires now; the promoted message carries the
	// earlier timestamp and sorts before what the client already has.
	sched.fireTimers()

	assert.True(t, readUntil("pending reply", 2*time.Second))

	// Drain a little longer to catch any duplicate delivery.
	readUntil("never matches", 300*time.Millisecond)

	assert.Equal(t, 1, counts["visible message"])
	assert.Equal(t, 1, counts["pending reply"])
}
