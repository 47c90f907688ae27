package config

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher("", func(*Config) {}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewWatcher("/tmp/some.json", nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"data_dir": "`+dir+`", "logging": {"level": "info"}}`)

	var mu sync.Mutex
	var reloaded *Config
	onChange := func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = cfg
	}

	w, err := NewWatcher(path, onChange, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "`+dir+`", "logging": {"level": "debug"}}`), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.Logging.Level == "debug"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcher_KeepsPreviousConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"data_dir": "`+dir+`"}`)

	var mu sync.Mutex
	calls := 0
	onChange := func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}

	w, err := NewWatcher(path, onChange, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	// A broken file must not reach the callback
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0644))

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `{"data_dir": "`+dir+`"}`)

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(dir+"/other.json", []byte(`{}`), 0644))

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()
}
