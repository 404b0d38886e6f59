package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// frame is the wire envelope of a pushed event.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Session is one upgraded websocket connection. Frames are queued on send and written
// by writePump; Send never blocks.
type Session struct {
	id      string
	actorID string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func newSession(conn *websocket.Conn, actorID string) *Session {
	conn.SetReadLimit(maxMessageSize)
	return &Session{
		id:      uuid.NewString(),
		actorID: actorID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Send(event string, payload []byte) bool {
	msg, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		log.Printf("encode frame for %s: %v", s.actorID, err)
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Close stops the pumps. It is safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

// readPump drains client frames to service pings and detect disconnects. onClose runs
// once the connection is gone.
func (s *Session) readPump(onClose func()) {
	defer func() {
		_ = s.Close()
		onClose()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("close connection for %s: %v", s.actorID, err)
		}
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error actor=%s conn=%s: %v", s.actorID, s.id, err)
			}
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				log.Printf("websocket write error actor=%s conn=%s: %v", s.actorID, s.id, err)
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) write(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func isExpectedCloseError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
