package chathub

import (
	"context"
	"encoding/json"
	"strings"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/config"

	socketio "github.com/googollee/go-socket.io"
)

// TokenAuthenticator resolves a bearer token to a user id.
type TokenAuthenticator func(token string) (uint, error)

// SocketIOClient is a Client on a Socket.IO connection. Events are emitted under their own name
// with the payload as the single argument.
type SocketIOClient struct {
	*ChannelClient
	conn socketio.Conn
}

func newSocketIOClient(conn socketio.Conn, userID uint) *SocketIOClient {
	return &SocketIOClient{
		ChannelClient: newChannelClient(userID, "socketio", config.ClientSendBuffer),
		conn:          conn,
	}
}

func (c *SocketIOClient) pump() {
	for ev := range c.Events() {
		c.conn.Emit(ev.Event, ev.Payload)
	}
	c.conn.Close()
}

// NewSocketIOServer serves the same inbound events as the WebSocket transport for Socket.IO
// clients. The token comes from the "token" query parameter or an Authorization header.
func NewSocketIOServer(hub *Manager, authenticate TokenAuthenticator) *socketio.Server {
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(s socketio.Conn) error {
		userID, err := authenticateSocket(s, authenticate)
		if err != nil {
			hub.log.Debug().Err(err).Str("sid", s.ID()).Msg("Socket.IO connection rejected")
			s.Emit(EventError, ErrorEvent("connect", err).Payload)
			s.Close()
			return err
		}

		client := newSocketIOClient(s, userID)
		s.SetContext(client)
		hub.Register(client)
		go client.pump()
		return nil
	})

	for _, event := range []string{EventJoinUser, EventIdentify, EventJoinRoom, EventLeaveRoom, EventSendMessage} {
		event := event
		server.OnEvent("/", event, func(s socketio.Conn, msg interface{}) {
			client, ok := s.Context().(*SocketIOClient)
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err == nil {
				err = hub.HandleInbound(context.Background(), client, event, data)
			}
			if err != nil {
				client.Send(ErrorEvent(event, err))
			}
		})
	}

	server.OnError("/", func(s socketio.Conn, err error) {
		hub.log.Warn().Err(err).Msg("Socket.IO error")
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if client, ok := s.Context().(*SocketIOClient); ok {
			hub.Unregister(client)
		}
	})

	return server
}

func socketToken(s socketio.Conn) string {
	u := s.URL()
	if token := u.Query().Get("token"); token != "" {
		return token
	}
	header := s.RemoteHeader().Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func authenticateSocket(s socketio.Conn, authenticate TokenAuthenticator) (uint, error) {
	token := socketToken(s)
	if token == "" {
		return 0, apperrors.New(apperrors.ErrUnauthorized, "missing token")
	}
	return authenticate(token)
}
