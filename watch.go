package termsuggest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const configDebounce = 200 * time.Millisecond

// ConfigWatcher reloads the config file when it changes on disk.
// The parent directory is watched because editors usually replace the file.
type ConfigWatcher struct {
	path     string
	onChange func(*Config)
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	doneCh chan struct{}
}

// NewConfigWatcher creates a watcher for path. onChange receives every successfully
// parsed config; parse failures are logged and the previous config stays in effect.
func NewConfigWatcher(path string, onChange func(*Config), logger *zap.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create config watcher")
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger.Named("config"),
		watcher:  w,
		doneCh:   make(chan struct{}),
	}, nil
}

// Run processes file events until ctx is cancelled or Close is called.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer close(cw.doneCh)

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			cw.debounce()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("config watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

// debounce delays the reload until changes settle.
func (cw *ConfigWatcher) debounce() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(configDebounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfigFile(cw.path)
	if err != nil {
		cw.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
		return
	}
	for _, w := range ValidateConfig(cfg) {
		cw.logger.Warn("config warning", zap.String("warning", w))
	}
	cw.logger.Info("config reloaded", zap.String("path", cw.path))
	cw.onChange(cfg)
}

// Close stops watching. It is safe to call before Run has started.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}

// Done is closed when Run returns.
func (cw *ConfigWatcher) Done() <-chan struct{} {
	return cw.doneCh
}
