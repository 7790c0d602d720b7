package handlers

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jjudge-oj/practice/internal/session"
	"go.uber.org/zap"
)

const (
	eventsWriteWait    = 10 * time.Second
	eventsPingInterval = 30 * time.Second
	eventsPongWait     = 2 * eventsPingInterval
)

// SessionEvent is pushed to the browser whenever the session changes.
type SessionEvent struct {
	Type    string           `json:"type"`
	Session session.Session  `json:"session"`
	Access  session.Decision `json:"access"`
}

// EventsHandler streams session snapshots over a websocket so a tab learns
// about a verification or logout done elsewhere.
type EventsHandler struct {
	notifier *session.Notifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler accepts handshakes from allowedOrigins, or from any origin
// when the list is empty.
func NewEventsHandler(notifier *session.Notifier, allowedOrigins []string, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		notifier: notifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	current := SessionFromContext(r.Context())
	if !current.Present() {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:    "login required",
			Code:     "unauthenticated",
			Redirect: string(session.LoginView),
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	userID := current.UserID()
	h.logger.Debug("session events connected", zap.Int("user_id", userID))

	updates := make(chan session.Session, 1)
	holder := session.NewHolder(current, h.notifier, func(next session.Session) {
		offerLatest(updates, next)
	})
	defer holder.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("session events read error", zap.Error(err))
				}
				return
			}
		}
	}()

	h.writeLoop(ctx, conn, current, updates)
	cancel()
	_ = conn.Close()
	wg.Wait()
	h.logger.Debug("session events disconnected", zap.Int("user_id", userID))
}

func (h *EventsHandler) writeLoop(ctx context.Context, conn *websocket.Conn, initial session.Session, updates <-chan session.Session) {
	ticker := time.NewTicker(eventsPingInterval)
	defer ticker.Stop()

	if err := writeSessionEvent(conn, initial); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-updates:
			if err := writeSessionEvent(conn, next); err != nil {
				return
			}
			if !next.Present() {
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logged out"))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSessionEvent(conn *websocket.Conn, s session.Session) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
	return conn.WriteJSON(SessionEvent{Type: "session", Session: s, Access: session.CanAccess(s)})
}

// offerLatest leaves only the newest snapshot in ch.
func offerLatest(ch chan session.Session, s session.Session) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
