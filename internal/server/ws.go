package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidquery/vidquery/internal/navigation"
	"github.com/vidquery/vidquery/internal/overlay"
)

const (
	defaultPingPeriod = 25 * time.Second
	defaultWriteWait  = 5 * time.Second
	outboxSize        = 16
)

type wsSettings struct {
	pingPeriod time.Duration
	writeWait  time.Duration
	pongWait   time.Duration
}

func newWSSettings(ping, write time.Duration) wsSettings {
	if ping <= 0 {
		ping = defaultPingPeriod
	}
	if write <= 0 {
		write = defaultWriteWait
	}
	return wsSettings{pingPeriod: ping, writeWait: write, pongWait: ping * 2}
}

// pushMessage is sent to the browser. Type is "state" or "seek".
type pushMessage struct {
	Type  string           `json:"type"`
	State *navigation.View `json:"state,omitempty"`
	Seek  *overlay.Seek    `json:"seek,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWebSocket streams state changes and seek commands for the session.
// The browser sends nothing but control frames; the connection ends when
// it closes or stops answering pings.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "error", err)
		return
	}

	done := make(chan struct{})
	outbox, stop := openStream(sess.Controller, sess.Player, done, sess.ID.String())

	slog.Info("ws: client connected", "session_id", sess.ID)
	go s.readPump(conn, done)
	s.writePump(conn, outbox, done)

	stop()
	_ = conn.Close()
	slog.Info("ws: client disconnected", "session_id", sess.ID)
}

type viewSource interface {
	View() navigation.View
	Subscribe(fn func(navigation.View)) func()
}

type seekSource interface {
	OnSeek(fn func(overlay.Seek)) func()
}

// openStream subscribes to state and seek changes and queues the current
// view. Sends never block: when the outbox is full the message is dropped.
func openStream(views viewSource, seeks seekSource, done <-chan struct{}, sessionID string) (<-chan pushMessage, func()) {
	outbox := make(chan pushMessage, outboxSize)
	enqueue := func(msg pushMessage) {
		select {
		case outbox <- msg:
		case <-done:
		default:
			slog.Warn("ws: client too slow, dropping message", "session_id", sessionID, "type", msg.Type)
		}
	}

	stopState := views.Subscribe(func(v navigation.View) {
		enqueue(pushMessage{Type: "state", State: &v})
	})
	stopSeek := seeks.OnSeek(func(seek overlay.Seek) {
		enqueue(pushMessage{Type: "seek", Seek: &seek})
	})

	initial := views.View()
	enqueue(pushMessage{Type: "state", State: &initial})

	return outbox, func() {
		stopState()
		stopSeek()
	}
}

// readPump consumes control frames and closes done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(s.ws.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.ws.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read ended", "error", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, outbox <-chan pushMessage, done <-chan struct{}) {
	ticker := time.NewTicker(s.ws.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(s.ws.writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("ws: write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.ws.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
