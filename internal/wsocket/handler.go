package wsocket

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"astroconnect_go_backend/internal/models"
	"astroconnect_go_backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	sessionService *services.SessionService
	astroAIService *services.AstroAIService
	upgrader       websocket.Upgrader
	statusInterval time.Duration
	scheduler      services.Scheduler
	log            zerolog.Logger
}

type Frame struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
}

// connWriter funnels all frames through one mutex; gorilla/websocket permits
// only a single concurrent writer per connection, and frames originate from
// both the read loop and the push loop.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

func (w *connWriter) writeFrame(frame Frame) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(frame); err != nil {
		w.log.Debug().Err(err).Msg("websocket write failed")
		return false
	}
	return true
}

func NewHandler(
	sessionService *services.SessionService,
	astroAIService *services.AstroAIService,
	upgrader websocket.Upgrader,
	statusInterval time.Duration,
	scheduler services.Scheduler,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		sessionService: sessionService,
		astroAIService: astroAIService,
		upgrader:       upgrader,
		statusInterval: statusInterval,
		scheduler:      scheduler,
		log:            logger.With().Str("component", "wsocket").Logger(),
	}
}

// HandleWebSocket serves a live chat connection for an active session. The
// connection receives feed messages, periodic wallet snapshots with
// low-balance warnings, and a session_ended push when metering exhausts
// the wallet or the user terminates.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "No sessionId provided", http.StatusBadRequest)
		return
	}
	if h.sessionService.ActiveSessionID() != sessionID {
		http.Error(w, "Session is not active", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	writer := &connWriter{conn: conn, log: h.log}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ticker := time.NewTicker(h.statusInterval)
	defer ticker.Stop()

	go h.pushLoop(ctx, writer, sessionID, ticker)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket read ended")
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.log.Warn().Err(err).Msg("malformed websocket frame")
			continue
		}

		switch frame.Type {
		case "message":
			h.handleChatMessage(ctx, writer, sessionID, frame.Content)
		case "terminate":
			if err := h.sessionService.EndSession(ctx, sessionID); err != nil {
				h.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to end session")
				continue
			}
			writer.writeFrame(Frame{Type: "session_ended", SessionID: sessionID, Content: "Chat session ended."})
			return
		default:
			h.log.Debug().Str("type", frame.Type).Msg("unknown websocket frame type")
		}
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, writer *connWriter, sessionID, content string) {
	stream := h.sessionService.Stream()
	if err := stream.Send(ctx, content, models.SenderUser); err != nil {
		writer.writeFrame(Frame{Type: "error", SessionID: sessionID, Content: err.Error()})
		return
	}

	// Simulated astrologer typing delay before the canned reply.
	delay := 1500*time.Millisecond + time.Duration(rand.Intn(2000))*time.Millisecond
	h.scheduler.AfterFunc(delay, func() {
		if h.sessionService.ActiveSessionID() != sessionID {
			return
		}
		reply := h.astroAIService.SimulatedLiveReply()
		if err := stream.Send(context.Background(), reply, models.SenderAstrologer); err != nil {
			h.log.Warn().Err(err).Msg("failed to send astrologer reply")
		}
	})
}

// pushLoop forwards newly observed messages and wallet status to the client.
// Delivery is tracked per message id: the log is re-sorted on append, so a
// late-promoted message can land in the middle and a plain count would skip
// it while repeating the tail.
func (h *Handler) pushLoop(ctx context.Context, writer *connWriter, sessionID string, ticker *time.Ticker) {
	stream := h.sessionService.Stream()
	wallet := h.sessionService.Wallet()
	delivered := make(map[string]bool)
	endedNotified := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, msg := range stream.Messages() {
				if delivered[msg.ID] {
					continue
				}
				msg := msg
				if !writer.writeFrame(Frame{Type: "chat_message", SessionID: sessionID, Message: &msg}) {
					return
				}
				delivered[msg.ID] = true
			}

			status := struct {
				Balance string `json:"balance"`
				IsLow   bool   `json:"isLow"`
				IsEmpty bool   `json:"isEmpty"`
			}{
				Balance: wallet.Balance().StringFixed(2),
				IsLow:   wallet.IsLow(),
				IsEmpty: wallet.IsEmpty(),
			}
			statusJSON, _ := json.Marshal(status)
			if !writer.writeFrame(Frame{Type: "wallet_status", SessionID: sessionID, Content: string(statusJSON)}) {
				return
			}
			if wallet.IsLow() && !wallet.IsEmpty() {
				writer.writeFrame(Frame{Type: "low_balance", SessionID: sessionID, Content: "Your balance is running low."})
			}

			// An inbound message landing in the same tick as termination is
			// still forwarded above, under the ended banner.
			if h.sessionService.ActiveSessionID() != sessionID && !endedNotified {
				endedNotified = true
				writer.writeFrame(Frame{Type: "session_ended", SessionID: sessionID, Content: "Your session has ended."})
			}
		}
	}
}
