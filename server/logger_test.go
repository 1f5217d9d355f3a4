package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerWritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "arena.log")
	require.NoError(t, InitLogger(path, zapcore.InfoLevel))
	Log.Infow("player online", "conn", "c1", "player", 10)
	Log.Debugw("hidden below level")
	_ = SyncLogger()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "player online")
	assert.Contains(t, out, "c1")
	assert.NotContains(t, out, "hidden below level")
}
