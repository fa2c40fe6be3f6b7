package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssd-technologies/cumulus/internal/ratelimit"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// wsMessage is the JSON frame exchanged on /api/events. Clients may send
// {"type":"ping"}; the server answers with "pong" and pushes change events.
type wsMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents handles GET /api/events: a websocket stream of change
// events for the owner.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe()
	defer cancel()

	// The reader goroutine owns inbound frames; only this goroutine writes.
	replies := make(chan wsMessage, 4)
	done := make(chan struct{})
	go s.readEvents(conn, replies, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(m wsMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(m); err != nil {
			s.log.Debug("websocket write", "error", err)
			return false
		}
		return true
	}

	if !write(wsMessage{Type: "hello", Payload: map[string]int64{"owner": s.owner}}) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case e, ok := <-events:
			if !ok || !write(wsMessage{Type: "event", Payload: e}) {
				return
			}
		case m := <-replies:
			if !write(m) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readEvents(conn *websocket.Conn, replies chan<- wsMessage, done chan<- struct{}) {
	defer close(done)

	limiter := ratelimit.New(60, time.Minute)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var reply wsMessage
		switch {
		case !limiter.Allow():
			reply = wsMessage{Type: "error", Payload: map[string]string{"error": "rate limit exceeded"}}
		case msg.Type == "ping":
			reply = wsMessage{Type: "pong"}
		default:
			reply = wsMessage{Type: "error", Payload: map[string]string{"error": "unknown message type: " + msg.Type}}
		}
		select {
		case replies <- reply:
		default:
		}
	}
}
