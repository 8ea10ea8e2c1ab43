package replication

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfigFile applies the contents of path now and again whenever the
// file is written. The directory is watched so editors that replace the
// file on save are picked up. It returns once the watch is set up; the
// watch ends with ctx.
func (m *Manager) WatchConfigFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	m.applyFile(ctx, abs)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					m.applyFile(ctx, abs)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("replication config watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (m *Manager) applyFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read replication config file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	st, err := m.Apply(ctx, string(data))
	if err != nil {
		m.logger.Warn("rejected replication config file", zap.String("path", path), zap.Error(err))
		return
	}
	m.logger.Info("applied replication config file",
		zap.String("path", path),
		zap.String("mode", string(st.Mode)),
		zap.Bool("connected", st.Connected))
}
