package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	ml := Module(l, "ledger")
	ml.Debug().Str("flight", "ND1309").Msg("flight registered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "ledger", entry[ModuleKey])
	assert.Equal(t, "ND1309", entry["flight"])
	assert.Equal(t, "flight registered", entry["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestTemporalLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	tl := NewTemporalLogger(l).With("WorkflowID", "oracle-request-1")
	tl.Error("activity failed", "Error", errors.New("boom"), "Attempt", 2, "dangling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "oracle-request-1", entry["WorkflowID"])
	assert.Equal(t, "boom", entry["Error"])
	assert.Equal(t, float64(2), entry["Attempt"])
	assert.Equal(t, "MISSING", entry["dangling"])
}
