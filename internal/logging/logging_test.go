package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StderrOnly(t *testing.T) {
	var buf bytes.Buffer
	w, c, err := writer(&buf, "")
	require.NoError(t, err)
	defer c.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buf.String())
}

func TestWriter_TeesIntoRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "game.log")

	w, c, err := writer(&buf, path)
	require.NoError(t, err)

	logger := zerolog.New(w)
	logger.Info().Str("outcome", "low").Msg("guess")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line))
	assert.Equal(t, "low", line["outcome"])
	assert.Equal(t, "guess", line["message"])
}

func TestSetup(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "app.log")
	c, err := Setup(zerolog.WarnLevel, path)
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Msg("kept")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"message":"kept"`)
	assert.Contains(t, string(data), `"service":"guessnumber"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
