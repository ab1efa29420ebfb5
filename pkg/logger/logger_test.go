package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.name))
		})
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info"}, &buf)

	l.Info().Str("symbol", "AAPL").Msg("ticker refreshed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ticker refreshed", entry["message"])
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Pretty: true}, &buf)

	l.Debug().Msg("cycle started")

	assert.Contains(t, buf.String(), "cycle started")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "error"}, &buf)

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter(Config{Level: "info"}, &buf), "pipeline")

	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"pipeline"`)
}
