package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o600))

	changes := make(chan Config, 64)
	w, err := NewWatcher(path, func(cfg Config) {
		select {
		case changes <- cfg:
		default:
		}
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// broken file is ignored
	require.NoError(t, os.WriteFile(path, []byte("tracking: [\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("updating_channels: [webchat]\n"), 0o600))

	// a truncated file can be seen mid-write, so wait for the final content
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if !cfg.IsUpdating("webchat") {
				continue
			}
			assert.False(t, cfg.IsUpdating("slack"))
			return
		case <-deadline:
			t.Fatal("policy change not observed")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o600))

	w, err := NewWatcher(path, func(Config) { t.Error("unexpected reload") }, nil)
	require.NoError(t, err)
	defer w.watcher.Close()

	w.handle(fsnotifyWrite(filepath.Join(dir, "other.yaml")))
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "policy.yaml"), nil, nil)
	require.Error(t, err)
}

func fsnotifyWrite(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}
