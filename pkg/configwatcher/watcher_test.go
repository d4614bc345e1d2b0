package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"techacademy_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchConfig_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: info\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loads := make(chan string, 4)
	load := func(d string) (*config.Config, error) {
		loads <- d
		return &config.Config{Log: config.LogConfig{Level: "warn"}}, nil
	}
	reloaded := make(chan *config.Config, 4)

	require.NoError(t, WatchConfig(ctx, file, load, func(cfg *config.Config) { reloaded <- cfg }))

	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: warn\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "warn", cfg.Log.Level)
		resolved, _ := filepath.Abs(dir)
		assert.Equal(t, resolved, <-loads)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestWatchConfig_MissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "config.yaml"), nil, func(*config.Config) {})
	assert.Error(t, err)
}
