package policy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/davidahmann/cardkit/internal/logger"
)

// Watcher reloads a policy file when it changes on disk. A file that fails to
// load is logged and the previous policy stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	log      *logger.Logger
}

// NewWatcher watches the directory holding path, so editors that replace the
// file by rename are picked up too.
func NewWatcher(path string, onChange func(Config), log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch policy: %w", err)
	}
	return &Watcher{path: abs, watcher: fw, onChange: onChange, log: log}, nil
}

// Run blocks until ctx is done or the watcher fails, then releases it.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("policy watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("policy reload failed, keeping current policy", "path", w.path, "error", err)
		return
	}
	hash, _ := cfg.Hash()
	w.log.Info("policy reloaded", "path", w.path, "hash", hash)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
