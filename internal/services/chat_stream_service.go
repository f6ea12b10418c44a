package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"astroconnect_go_backend/internal/metrics"
	"astroconnect_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrEmptyMessage = errors.New("message content is empty")

// ChatStreamService tracks the ordered message log for one session at a
// time, merging the locally originated optimistic write with the external
// feed and deduplicating by message id.
//
// The send path is deliberately asymmetric. With no session bound the log is
// purely local, so a send appends immediately. With a session bound, a
// successful remote insert relies on the feed to deliver the canonical copy;
// appending speculatively there would race the feed and duplicate the
// message. Only on insert failure does the local copy go straight into the
// log. A confirmation timeout promotes an unconfirmed remote write into the
// log if the feed never delivers it.
type ChatStreamService struct {
	store     MessageStore
	feed      MessageFeed
	scheduler Scheduler
	metrics   *metrics.Metrics
	log       zerolog.Logger

	confirmTimeout time.Duration

	mu        sync.Mutex
	sessionID string
	messages  []models.Message
	feedCh    <-chan models.Message
	feedDone  chan struct{}
	pending   map[string]*pendingSend
}

// pendingSend tracks a remote insert awaiting feed confirmation.
type pendingSend struct {
	msg      models.Message
	timer    Timer
	promoted bool
}

func NewChatStreamService(store MessageStore, feed MessageFeed, scheduler Scheduler, m *metrics.Metrics, logger zerolog.Logger, confirmTimeout time.Duration) *ChatStreamService {
	return &ChatStreamService{
		store:          store,
		feed:           feed,
		scheduler:      scheduler,
		metrics:        m,
		log:            logger.With().Str("component", "chat_stream").Logger(),
		confirmTimeout: confirmTimeout,
		pending:        make(map[string]*pendingSend),
	}
}

// Subscribe binds the stream to sessionID and begins consuming the feed.
// An empty sessionID puts the stream in pure local-simulation mode. Any
// prior subscription is torn down first.
func (s *ChatStreamService) Subscribe(ctx context.Context, sessionID string) {
	s.mu.Lock()
	s.teardownFeedLocked()
	s.sessionID = sessionID
	s.mu.Unlock()

	if sessionID == "" {
		return
	}

	s.fetchHistory(ctx, sessionID)

	ch := s.feed.Subscribe(sessionID)
	done := make(chan struct{})

	s.mu.Lock()
	// Subscribe may race with another Subscribe/Unsubscribe; only install
	// the feed if this session is still the bound one.
	if s.sessionID != sessionID {
		s.mu.Unlock()
		s.feed.Unsubscribe(sessionID, ch)
		return
	}
	s.feedCh = ch
	s.feedDone = done
	s.mu.Unlock()

	go s.consumeFeed(sessionID, ch, done)
}

// Unsubscribe stops tracking and releases the feed connection. Observed
// messages remain in the log until Clear.
func (s *ChatStreamService) Unsubscribe() {
	s.mu.Lock()
	s.teardownFeedLocked()
	s.sessionID = ""
	s.mu.Unlock()
}

// teardownFeedLocked releases the current feed subscription and cancels all
// pending confirmation timers. Idempotent.
func (s *ChatStreamService) teardownFeedLocked() {
	if s.feedCh != nil {
		close(s.feedDone)
		s.feed.Unsubscribe(s.sessionID, s.feedCh)
		s.feedCh = nil
		s.feedDone = nil
	}
	for id, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.pending, id)
	}
}

func (s *ChatStreamService) consumeFeed(sessionID string, ch <-chan models.Message, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.OnExternalMessage(msg)
		}
	}
}

// fetchHistory loads persisted messages once at subscribe time. A transport
// failure means "no prior history", never a fatal error.
func (s *ChatStreamService) fetchHistory(ctx context.Context, sessionID string) {
	history, err := s.store.Query(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to fetch message history")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != sessionID {
		return
	}
	for _, msg := range history {
		s.appendLocked(msg)
	}
}

// Send validates and routes a message. Returns ErrEmptyMessage for blank
// content; transport failures are absorbed by the local fallback and never
// surfaced to the caller.
func (s *ChatStreamService) Send(ctx context.Context, content, sender string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()

	msg := models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: s.scheduler.Now(),
	}

	// Local-simulation mode: the optimistic append is terminal, there is
	// no feed to reconcile against.
	if sessionID == "" {
		s.appendMessage(msg, "local")
		return nil
	}

	if err := s.store.Insert(ctx, sessionID, sender, content); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("remote insert failed, keeping local copy")
		s.appendMessage(msg, "fallback")
		return nil
	}

	// Remote insert succeeded: the feed delivers the canonical copy. Track
	// the local copy so it can be promoted if the feed stays silent.
	s.trackPending(msg)
	return nil
}

// trackPending registers a confirmation timer for a successfully inserted
// message. If the feed delivers a matching message first, the timer is
// cancelled; otherwise the local copy is promoted into the log.
func (s *ChatStreamService) trackPending(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != msg.SessionID {
		return
	}

	p := &pendingSend{msg: msg}
	s.pending[msg.ID] = p
	p.timer = s.scheduler.AfterFunc(s.confirmTimeout, func() {
		s.promotePending(msg.ID)
	})
}

func (s *ChatStreamService) promotePending(localID string) {
	s.mu.Lock()
	p, ok := s.pending[localID]
	if !ok || p.promoted {
		s.mu.Unlock()
		return
	}
	p.promoted = true
	s.appendLocked(p.msg)
	// The absorb window for the late canonical copy is bounded; once it
	// lapses the entry is dropped so it cannot swallow an identical message
	// from a later send.
	p.timer = s.scheduler.AfterFunc(s.confirmTimeout, func() {
		s.mu.Lock()
		if cur, ok := s.pending[localID]; ok && cur.promoted {
			delete(s.pending, localID)
		}
		s.mu.Unlock()
	})
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.MessagesAppended.WithLabelValues("promoted").Inc()
	}
	s.log.Info().Str("message_id", localID).Msg("feed never confirmed message, promoted local copy")
}

// OnExternalMessage merges a feed delivery into the log. Idempotent on
// message id, which covers feed redelivery; a canonical copy of a promoted
// local write is absorbed by sender+content matching so it cannot surface
// as a content duplicate.
func (s *ChatStreamService) OnExternalMessage(msg models.Message) {
	s.mu.Lock()
	if s.sessionID != msg.SessionID {
		s.mu.Unlock()
		return
	}

	for id, p := range s.pending {
		if p.msg.Sender == msg.Sender && p.msg.Content == msg.Content {
			promoted := p.promoted
			if p.timer != nil {
				p.timer.Stop()
			}
			delete(s.pending, id)
			if promoted {
				// The local copy is already in the log; swallow the
				// canonical duplicate.
				s.mu.Unlock()
				return
			}
			break
		}
	}

	appended := s.appendLocked(msg)
	s.mu.Unlock()

	if appended && s.metrics != nil {
		s.metrics.MessagesAppended.WithLabelValues("feed").Inc()
	}
}

// appendLocked inserts msg unless a message with the same id already exists.
// The log stays sorted ascending by CreatedAt, stable on ties.
func (s *ChatStreamService) appendLocked(msg models.Message) bool {
	for _, existing := range s.messages {
		if existing.ID == msg.ID {
			return false
		}
	}
	s.messages = append(s.messages, msg)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	return true
}

func (s *ChatStreamService) appendMessage(msg models.Message, origin string) {
	s.mu.Lock()
	appended := s.appendLocked(msg)
	s.mu.Unlock()

	if appended && s.metrics != nil {
		s.metrics.MessagesAppended.WithLabelValues(origin).Inc()
	}
}

// Messages returns a copy of the current log.
func (s *ChatStreamService) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the in-memory log. Used when a fresh session starts.
func (s *ChatStreamService) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

// SessionID returns the currently bound session id, empty in simulation mode.
func (s *ChatStreamService) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
