package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSetsLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Init("warn", "json", "")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Init("bogus", "json", "")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWriterTeesToFile(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "loader.log")

	l := zerolog.New(Writer("json", path, &stdout))
	l.Info().Str("source_key", "/data").Msg("Study load completed")

	assert.Contains(t, stdout.String(), `"source_key":"/data"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Study load completed")
}
