package chathub

import (
	"context"
	"encoding/json"
	"time"

	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Frame is the JSON envelope of every WebSocket message in both directions.
type Frame struct {
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// WebSocketClient is a Client on a gorilla/websocket connection.
type WebSocketClient struct {
	*ChannelClient
	Conn *websocket.Conn
	Hub  *Manager
}

func NewWebSocketClient(hub *Manager, conn *websocket.Conn, userID uint) *WebSocketClient {
	return &WebSocketClient{
		ChannelClient: newChannelClient(userID, "websocket", config.ClientSendBuffer),
		Conn:          conn,
		Hub:           hub,
	}
}

// Run registers the client and starts its pumps.
func (c *WebSocketClient) Run() {
	c.Hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn().Err(err).Str("client_id", c.ID()).Msg("WebSocket read failed")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.Hub.log.Debug().Err(err).Str("client_id", c.ID()).Msg("Error decoding frame")
			continue
		}

		if err := c.Hub.HandleInbound(context.Background(), c, frame.Event, frame.Data); err != nil {
			c.Send(ErrorEvent(frame.Event, err))
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Events():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(toFrame(ev)); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toFrame(ev models.RealtimeEvent) Frame {
	data, _ := json.Marshal(ev.Payload)
	return Frame{Channel: ev.Channel, Event: ev.Event, Data: data}
}
