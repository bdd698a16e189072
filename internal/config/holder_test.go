package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	require.NoError(t, NewLoaderAt(path).Save(cfg))
}

func TestHolderReloadSwapsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, Defaults())

	loader := NewLoaderAt(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	var got *Config
	h.OnReload(func(c *Config) { got = c })

	next := Defaults()
	next.Thresholds.CPU = Threshold{Warning: 40, Critical: 60}
	writeConfig(t, path, next)

	require.NoError(t, h.Reload(context.Background()))
	require.NotNil(t, got)
	assert.Equal(t, 40.0, got.Thresholds.CPU.Warning)
	assert.Equal(t, 40.0, h.Get().Thresholds.CPU.Warning)
}

func TestHolderReloadKeepsOldOnInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, Defaults())

	loader := NewLoaderAt(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	called := false
	h.OnReload(func(*Config) { called = true })

	bad := Defaults()
	bad.Thresholds.CPU = Threshold{Warning: 95, Critical: 90}
	writeConfig(t, path, bad)

	err = h.Reload(context.Background())
	require.ErrorIs(t, err, ErrInvalidThresholds)
	assert.False(t, called)
	assert.Equal(t, 70.0, h.Get().Thresholds.CPU.Warning)
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, Defaults())

	loader := NewLoaderAt(path)
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	h.debounce = 20 * time.Millisecond

	reloaded := make(chan *Config, 4)
	h.OnReload(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.StartWatcher(ctx))
	t.Cleanup(func() {
		cancel()
		h.Wait()
	})

	data := []byte("agent:\n  process_interval: 2000\n")
	require.NoError(t, os.WriteFile(path, data, 0600))

	select {
	case c := <-reloaded:
		assert.Equal(t, 2000, c.Agent.ProcessInterval)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded after write")
	}
}
