package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closeFn, err := New("info", dir)
	require.NoError(t, err)

	logger.Debugw("hidden")
	logger.Warnw("skipping row", "table", "study", "index", 3)
	closeFn()

	files, err := filepath.Glob(filepath.Join(dir, "log_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")

	var last map[string]any
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.NotEmpty(t, lines)
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	assert.Equal(t, "skipping row", last["msg"])
	assert.Equal(t, "warn", last["level"])
	assert.Equal(t, "study", last["table"])
	assert.EqualValues(t, 3, last["index"])
}

func TestNewBadLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}
