package chathub_test

import (
	"context"

	"mentorbridge/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockRelay struct {
	mock.Mock
	events chan models.RealtimeEvent
}

func (m *MockRelay) PublishEvent(ctx context.Context, event models.RealtimeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockRelay) SubscribeEvents(ctx context.Context) (<-chan models.RealtimeEvent, error) {
	args := m.Called(ctx)
	return m.events, args.Error(0)
}

type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) IsParticipant(ctx context.Context, roomID string, userID uint) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Append(ctx context.Context, senderID uint, draft models.MessageDraft) (*models.Message, error) {
	args := m.Called(ctx, senderID, draft)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}
