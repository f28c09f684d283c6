package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errNoIdentity = fmt.Errorf("%w: connection has not sent register", ErrClientNotRegistered)

// wsHandle is the ClientHandle of one websocket connection. The identity is
// whatever the client asserted in its last register message.
type wsHandle struct {
	connID string
	ws     *websocket.Conn

	mu       sync.Mutex
	clientID string
	closed   bool
	send     chan []byte
}

func newWSHandle(ws *websocket.Conn) *wsHandle {
	return &wsHandle{
		connID: uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *wsHandle) Identity() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientID == "" {
		return "", errNoIdentity
	}
	return c.clientID, nil
}

func (c *wsHandle) setIdentity(id string) {
	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()
}

func (c *wsHandle) NotifyReset(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.enqueue(Envelope{Type: msgTypeReset, Payload: mustJSON(ResetPayload{Message: message})})
}

// enqueue never blocks: a slow reader loses messages instead of stalling
// the sender.
func (c *wsHandle) enqueue(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrHandleClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsHandle) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (c *wsHandle) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWS serves the four game operations over one websocket:
// register, buy_trials, make_guess, get_score. Reset pushes arrive on the
// same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	cc := newWSHandle(ws)
	if !s.trackConn(cc) {
		cc.Close()
		return
	}
	defer s.untrackConn(cc)
	log := s.log.With("conn_id", cc.connID)
	log.Debug("websocket connected", "remote", r.RemoteAddr)

	go cc.writeLoop()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.replyError(cc, "", "bad_json", "invalid json")
			continue
		}
		s.dispatch(cc, env)
	}

	// the account outlives the connection; later pushes to it just fail
	cc.Close()
	log.Debug("websocket disconnected")
}

func (s *Server) dispatch(cc *wsHandle, env Envelope) {
	switch env.Type {
	case msgTypeRegister:
		var p RegisterPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ClientID == "" {
			s.replyError(cc, env.ID, "bad_input", "clientId is required")
			return
		}
		prev, _ := cc.Identity()
		if prev != "" && prev != p.ClientID {
			// the session stored for prev holds this very handle
			s.replyError(cc, env.ID, "already_registered", fmt.Sprintf("connection is already registered as %s", prev))
			return
		}
		cc.setIdentity(p.ClientID)
		score, err := s.RegisterClient(cc)
		if err != nil {
			cc.setIdentity(prev)
			s.replyError(cc, env.ID, errorCode(err), err.Error())
			return
		}
		s.reply(cc, env.ID, msgTypeRegistered, RegisteredPayload{ClientID: p.ClientID, Score: score})

	case msgTypeBuyTrials:
		var p BuyTrialsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.replyError(cc, env.ID, "bad_input", "invalid payload")
			return
		}
		score, err := s.BuyTrials(cc, p.Count)
		if err != nil {
			s.replyError(cc, env.ID, errorCode(err), err.Error())
			return
		}
		s.reply(cc, env.ID, msgTypeScore, ScorePayload{Score: score})

	case msgTypeMakeGuess:
		var p MakeGuessPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.replyError(cc, env.ID, "bad_input", "invalid payload")
			return
		}
		res, err := s.MakeGuess(cc, p.Guess)
		if err != nil {
			s.replyError(cc, env.ID, errorCode(err), err.Error())
			return
		}
		s.reply(cc, env.ID, msgTypeGuessResult, res)

	case msgTypeGetScore:
		score, err := s.GetScore(cc)
		if err != nil {
			s.replyError(cc, env.ID, errorCode(err), err.Error())
			return
		}
		s.reply(cc, env.ID, msgTypeScore, ScorePayload{Score: score})

	default:
		s.replyError(cc, env.ID, "unknown_type", "unknown message type")
	}
}

func (s *Server) reply(cc *wsHandle, id, typ string, payload any) {
	if err := cc.enqueue(Envelope{Type: typ, ID: id, Payload: mustJSON(payload)}); err != nil {
		s.log.Warn("websocket reply dropped", "conn_id", cc.connID, "type", typ, "error", err)
	}
}

func (s *Server) replyError(cc *wsHandle, id, code, message string) {
	s.reply(cc, id, msgTypeError, ErrorPayload{Code: code, Message: message})
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
