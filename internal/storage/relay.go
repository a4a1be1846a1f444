package storage

import (
	"context"
	"encoding/json"
	"errors"

	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/models"
)

// ErrNoRedis is returned by relay methods when the service has no Redis client.
var ErrNoRedis = errors.New("redis relay not configured")

// PublishEvent publishes a realtime event on the shared Redis channel so every server process
// can deliver it to its own subscribers.
func (s *Service) PublishEvent(ctx context.Context, event models.RealtimeEvent) error {
	if s.Redis == nil {
		return ErrNoRedis
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, config.RelayChannel, data).Err()
}

// SubscribeEvents streams relayed events until ctx is cancelled. Undecodable payloads are
// logged and skipped.
func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.RealtimeEvent, error) {
	if s.Redis == nil {
		return nil, ErrNoRedis
	}

	pubsub := s.Redis.Subscribe(ctx, config.RelayChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	log := logger.With("relay")
	out := make(chan models.RealtimeEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.RealtimeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Error().Err(err).Msg("Error unmarshalling Redis event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
