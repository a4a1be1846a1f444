package message

import (
	"context"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"

	"github.com/rs/zerolog"
)

// RoomResolver resolves a room id to its accepted connection.
type RoomResolver interface {
	Participants(ctx context.Context, roomID string) (*models.Connection, error)
}

// Publisher fans a realtime event out to the subscribers of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{})
}

// Service is the append-only chat log. A message is published on its room channel only after
// it has been stored.
type Service struct {
	storage   storage.Storage
	rooms     RoomResolver
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(s storage.Storage, rooms RoomResolver, p Publisher) *Service {
	return &Service{
		storage:   s,
		rooms:     rooms,
		publisher: p,
		now:       time.Now,
		log:       logger.With("message"),
	}
}

// Append validates the draft, stores it as a message from senderID and broadcasts it to the
// room, the sender's own connections included.
func (s *Service) Append(ctx context.Context, senderID uint, draft models.MessageDraft) (*models.Message, error) {
	payload, err := draft.Payload()
	if err != nil {
		return nil, err
	}

	conn, err := s.rooms.Participants(ctx, draft.RoomID)
	if err != nil {
		return nil, err
	}
	if !conn.Involves(senderID) {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "sender is not a participant of this room")
	}

	msg := models.NewMessage(draft.RoomID, senderID, payload, s.now().UnixMilli())
	if err := s.storage.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.log.Debug().Str("room_id", msg.RoomID).Uint("sender_id", senderID).Str("type", string(msg.Type)).Msg("Message stored")
	s.publisher.Publish(ctx, msg.RoomID, models.EventMessage, msg)
	return msg, nil
}

// ListByRoom returns the room history, oldest first.
func (s *Service) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	return s.storage.GetChatHistory(ctx, roomID)
}
