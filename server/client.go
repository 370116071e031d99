package main

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 60
)

// Client represents a WebSocket connection. Its participant id is assigned
// on connect and stays fixed for the connection's lifetime.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	quit       chan struct{}
	quitOnce   sync.Once
	id         string
	joined     atomic.Bool
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	log        *zap.Logger
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, id, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		quit:       make(chan struct{}),
		id:         id,
		remoteAddr: remoteAddr,
		log:        hub.log.With(zap.String("participant", id), zap.String("remote", remoteAddr)),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read error", zap.Error(err))
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn("rate limit exceeded, disconnecting")
			break
		}

		if msgType == websocket.BinaryMessage {
			if intent, ok := decodeBinaryInput(message); ok {
				c.enqueueInput(intent)
			}
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			// Flush what is already queued (typically the reason for
			// the disconnect), then close.
			c.flushQueued()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
			return
		}
	}
}

func (c *Client) flushQueued() {
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.write(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// write sends one queued message. A 0xFF prefix marks a binary frame.
func (c *Client) write(message []byte) error {
	if len(message) > 0 && message[0] == 0xFF {
		return c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal error", zap.Error(err))
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// Disconnect closes the connection once queued messages are written.
func (c *Client) Disconnect() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// fail reports err to the peer and disconnects it.
func (c *Client) fail(err error) {
	c.log.Info("disconnecting peer", zap.Error(err))
	c.SendJSON(Envelope{T: MsgServerError, Data: ErrorMsg{Msg: err.Error()}})
	c.Disconnect()
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("unmarshal error", zap.Error(err))
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgAdminLogin:
		c.handleAdminLogin(env.D)
	case MsgKickOut:
		c.handleKickOut(env.D)
	}
	if !c.joined.Load() {
		return
	}
	switch env.T {
	case MsgInput:
		c.handleInput(env.D)
	case MsgSettings:
		c.handleSettings(env.D)
	case MsgFightJoin:
		c.hub.game.FightJoin(c.id)
	case MsgFightAction:
		c.handleFightAction(env.D)
	case MsgRestart:
		c.hub.game.Restart(c.id)
	case MsgRestartPosition:
		c.hub.game.RestartPosition(c.id)
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	msg, err := decodePayload[JoinMsg](data)
	if err != nil {
		c.fail(err)
		return
	}
	err = c.hub.game.Join(c.id, msg.Settings, c, msg.Binary, func(err error) {
		if err != nil {
			c.fail(err)
			return
		}
		c.joined.Store(true)
	})
	if err != nil {
		c.fail(err)
	}
}

func (c *Client) handleInput(data json.RawMessage) {
	intent, err := decodePayload[MovementIntent](data)
	if err != nil {
		c.log.Debug("bad input", zap.Error(err))
		return
	}
	c.enqueueInput(intent)
}

func (c *Client) enqueueInput(intent MovementIntent) {
	if !c.joined.Load() {
		return
	}
	if err := c.hub.game.EnqueueInput(c.id, intent); err != nil {
		c.log.Debug("input dropped", zap.Error(err))
	}
}

// handleSettings rejects a bad update with a server-error; unlike a bad
// join the connection stays open.
func (c *Client) handleSettings(data json.RawMessage) {
	s, err := decodePayload[Settings](data)
	if err == nil {
		err = c.hub.game.UpdateSettings(c.id, s)
	}
	if err == nil {
		return
	}
	if errors.Is(err, ErrValidation) {
		c.log.Debug("settings update rejected", zap.Error(err))
		c.SendJSON(Envelope{T: MsgServerError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.log.Debug("settings update ignored", zap.Error(err))
}

func (c *Client) handleFightAction(data json.RawMessage) {
	var msg FightActionMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("bad fight action", zap.Error(err))
			return
		}
	}
	c.hub.game.FightAction(c.id, msg.Orientation)
}

func (c *Client) handleAdminLogin(data json.RawMessage) {
	msg, err := decodePayload[AdminLoginMsg](data)
	if err != nil {
		return
	}
	token, err := c.hub.auth.Login(msg.Password, c.remoteAddr)
	if err != nil {
		c.log.Warn("admin login failed", zap.Error(err))
		c.SendJSON(Envelope{T: MsgServerError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.SendJSON(Envelope{T: MsgAdminOK, Data: AdminOKMsg{Token: token}})
}

func (c *Client) handleKickOut(data json.RawMessage) {
	msg, err := decodePayload[KickOutMsg](data)
	if err != nil {
		return
	}
	if err := c.hub.auth.ValidateToken(msg.Token); err != nil {
		c.SendJSON(Envelope{T: MsgServerError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.log.Info("admin kick-out", zap.String("target", msg.ID))
	c.hub.game.KickOut(msg.ID)
}
