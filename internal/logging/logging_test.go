package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaggleelt/internal/config"
)

func TestSetupFanout(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "elt.log")
	closeFn, err := Setup(config.LogConfig{Level: "debug", Format: "text", File: file}, &buf)
	require.NoError(t, err)

	slog.Debug("loaded table", "table", "vehicles")
	require.NoError(t, closeFn())

	assert.Contains(t, buf.String(), "table=vehicles")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"table":"vehicles"`)
}

func TestSetupLevelFilters(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, err := Setup(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	slog.Info("hidden")
	slog.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestSetupErrors(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = Setup(config.LogConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}
