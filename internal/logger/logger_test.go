package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"mentorbridge/backend/internal/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Configure(logger.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { logger.Configure(logger.Config{Level: "info", Pretty: true}) })

	hub := logger.With("hub")
	hub.Info().Str("channel", "user_2").Msg("joined")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hub", entry["component"])
	assert.Equal(t, "user_2", entry["channel"])
	assert.Equal(t, "joined", entry["message"])
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger.Configure(logger.Config{Level: "verbose", Output: &buf})
	t.Cleanup(func() { logger.Configure(logger.Config{Level: "info", Pretty: true}) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
