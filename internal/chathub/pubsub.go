package chathub

import (
	"context"
	"errors"
)

var errRelayClosed = errors.New("relay subscription closed")

// Run delivers relayed events to local subscribers until ctx is cancelled. Without a relay it
// just waits.
func (m *Manager) Run(ctx context.Context) error {
	if m.relay == nil {
		<-ctx.Done()
		return nil
	}

	events, err := m.relay.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	m.log.Info().Msg("Listening for relayed events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errRelayClosed
			}
			m.Deliver(ev)
		}
	}
}
