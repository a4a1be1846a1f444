package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/metrics"
	"mentorbridge/backend/internal/models"

	"github.com/rs/zerolog"
)

// Inbound realtime events.
const (
	EventJoinUser    = "join_user"
	EventIdentify    = "identify"
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventError       = "error"
)

// ParticipantChecker tells whether a user belongs to the accepted connection behind a room.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, roomID string, userID uint) (bool, error)
}

// MessageSink stores and broadcasts a chat message sent over a realtime transport.
type MessageSink interface {
	Append(ctx context.Context, senderID uint, draft models.MessageDraft) (*models.Message, error)
}

// Relay carries events between server processes.
type Relay interface {
	PublishEvent(ctx context.Context, event models.RealtimeEvent) error
	SubscribeEvents(ctx context.Context) (<-chan models.RealtimeEvent, error)
}

// Manager is the process-local registry of realtime clients and the channels they joined.
// Channels are "user_<id>" for notifications and room ids for chat.
type Manager struct {
	mu          sync.RWMutex
	clients     map[string]Client
	channels    map[string]map[string]Client
	memberships map[string]map[string]struct{}

	relay Relay
	rooms ParticipantChecker

	Messages MessageSink
	Metrics  metrics.MetricsCollector
	log      zerolog.Logger
}

// NewManager creates a hub. relay may be nil for a single-process deployment; rooms may be nil
// to skip room membership checks.
func NewManager(relay Relay, rooms ParticipantChecker) *Manager {
	return &Manager{
		clients:     make(map[string]Client),
		channels:    make(map[string]map[string]Client),
		memberships: make(map[string]map[string]struct{}),
		relay:       relay,
		rooms:       rooms,
		Metrics:     metrics.Nop{},
		log:         logger.With("chathub"),
	}
}

// SetRooms sets the room membership check. The connection service needs the hub to publish, and
// the hub needs the service to authorise joins, so one side is wired after construction.
func (m *Manager) SetRooms(rooms ParticipantChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = rooms
}

func (m *Manager) Register(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[c.ID()]; ok {
		return
	}
	m.clients[c.ID()] = c
	m.memberships[c.ID()] = make(map[string]struct{})
	m.Metrics.RecordClientConnected(c.Transport())
	m.log.Debug().Str("client_id", c.ID()).Uint("user_id", c.UserID()).Str("transport", c.Transport()).Msg("Client registered")
}

// Unregister removes the client from every channel and closes it. Repeated calls are no-ops.
func (m *Manager) Unregister(c Client) {
	m.mu.Lock()
	if _, ok := m.clients[c.ID()]; !ok {
		m.mu.Unlock()
		return
	}
	for channel := range m.memberships[c.ID()] {
		m.removeLocked(c.ID(), channel)
	}
	delete(m.memberships, c.ID())
	delete(m.clients, c.ID())
	m.mu.Unlock()

	c.Close()
	m.Metrics.RecordClientDisconnected(c.Transport())
	m.log.Debug().Str("client_id", c.ID()).Uint("user_id", c.UserID()).Msg("Client unregistered")
}

// Join subscribes the client to a channel. A client may join only its own user channel, and
// only rooms whose accepted connection it is part of.
func (m *Manager) Join(ctx context.Context, c Client, channel string) error {
	if err := m.authorize(ctx, c, channel); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	joined, ok := m.memberships[c.ID()]
	if !ok {
		return apperrors.New(apperrors.ErrUnauthorized, "client is not registered")
	}
	subs, ok := m.channels[channel]
	if !ok {
		subs = make(map[string]Client)
		m.channels[channel] = subs
	}
	subs[c.ID()] = c
	joined[channel] = struct{}{}
	return nil
}

func (m *Manager) authorize(ctx context.Context, c Client, channel string) error {
	if channel == "" {
		return apperrors.New(apperrors.ErrValidation, "channel is required")
	}
	if strings.HasPrefix(channel, "user_") {
		if channel != models.UserChannel(c.UserID()) {
			return apperrors.New(apperrors.ErrUnauthorized, "cannot join another user's channel")
		}
		return nil
	}

	m.mu.RLock()
	rooms := m.rooms
	m.mu.RUnlock()
	if rooms == nil {
		return nil
	}

	ok, err := rooms.IsParticipant(ctx, channel, c.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.ErrUnauthorized, "not a participant of this room")
	}
	return nil
}

func (m *Manager) Leave(c Client, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if joined, ok := m.memberships[c.ID()]; ok {
		delete(joined, channel)
	}
	m.removeLocked(c.ID(), channel)
}

func (m *Manager) removeLocked(clientID, channel string) {
	subs, ok := m.channels[channel]
	if !ok {
		return
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(m.channels, channel)
	}
}

// Subscribers returns how many local clients are on channel.
func (m *Manager) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channel])
}

// Publish broadcasts an event to a channel and never blocks on slow clients. With a relay the
// event goes through Redis so every process delivers it; if the relay fails it is delivered
// locally only.
func (m *Manager) Publish(ctx context.Context, channel, event string, payload interface{}) {
	ev := models.RealtimeEvent{Channel: channel, Event: event, Payload: payload}

	if m.relay != nil {
		err := m.relay.PublishEvent(ctx, ev)
		if err == nil {
			return
		}
		m.Metrics.RecordRelayError()
		m.log.Warn().Err(err).Str("channel", channel).Str("event", event).Msg("Relay publish failed, delivering locally")
	}
	m.Deliver(ev)
}

// Deliver hands ev to every local subscriber of its channel. A client whose queue is full
// misses the event and is disconnected.
func (m *Manager) Deliver(ev models.RealtimeEvent) {
	m.mu.RLock()
	subs := make([]Client, 0, len(m.channels[ev.Channel]))
	for _, c := range m.channels[ev.Channel] {
		subs = append(subs, c)
	}
	m.mu.RUnlock()

	for _, c := range subs {
		if c.Send(ev) {
			m.Metrics.RecordEventDelivered(ev.Event)
			continue
		}
		m.Metrics.RecordEventDropped(ev.Event)
		m.log.Warn().Str("client_id", c.ID()).Uint("user_id", c.UserID()).Str("event", ev.Event).Msg("Client queue full, disconnecting")
		m.Unregister(c)
	}
}

// HandleInbound applies one event received from a client.
func (m *Manager) HandleInbound(ctx context.Context, c Client, event string, data json.RawMessage) error {
	switch event {
	case EventJoinUser, EventIdentify:
		id, err := decodeUserID(data)
		if err != nil {
			return err
		}
		return m.Join(ctx, c, models.UserChannel(id))
	case EventJoinRoom:
		roomID, err := decodeString(data)
		if err != nil {
			return err
		}
		return m.Join(ctx, c, roomID)
	case EventLeaveRoom:
		roomID, err := decodeString(data)
		if err != nil {
			return err
		}
		m.Leave(c, roomID)
		return nil
	case EventSendMessage:
		if m.Messages == nil {
			return apperrors.New(apperrors.ErrUnavailable, "messaging is not enabled on this transport")
		}
		var draft models.MessageDraft
		if err := json.Unmarshal(data, &draft); err != nil {
			return apperrors.New(apperrors.ErrValidation, "malformed message")
		}
		draft.SenderID = c.UserID()
		_, err := m.Messages.Append(ctx, c.UserID(), draft)
		return err
	default:
		return apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown event %q", event))
	}
}

// ErrorEvent is what a client receives when one of its inbound events fails.
func ErrorEvent(event string, err error) models.RealtimeEvent {
	return models.RealtimeEvent{
		Event: EventError,
		Payload: map[string]string{
			"event":   event,
			"code":    apperrors.Code(err),
			"message": err.Error(),
		},
	}
}

// decodeUserID accepts a JSON number or a numeric string.
func decodeUserID(data json.RawMessage) (uint, error) {
	var n uint
	if err := json.Unmarshal(data, &n); err == nil && n != 0 {
		return n, nil
	}
	s, err := decodeString(data)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "user_"), 10, 0)
	if err != nil || id == 0 {
		return 0, apperrors.New(apperrors.ErrValidation, "malformed user id")
	}
	return uint(id), nil
}

func decodeString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return "", apperrors.New(apperrors.ErrValidation, "expected a non-empty string")
	}
	return s, nil
}
