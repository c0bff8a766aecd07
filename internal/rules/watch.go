package rules

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the rules file whenever it changes and hands the result to onChange.
// A file that fails to parse is reported with a nil engine; the caller keeps its
// previous engine. The watch stops when ctx is done.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(*Engine, error)) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and config-map mounts replace the file by rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				engine, err := LoadFile(path, log)
				if err != nil {
					log.Error("rules reload failed, keeping previous rules", zap.String("path", path), zap.Error(err))
					onChange(nil, err)
					continue
				}
				log.Info("rules reloaded",
					zap.String("path", path),
					zap.Int("badges", len(engine.badges)),
					zap.Int("characters", len(engine.characters)),
				)
				onChange(engine, nil)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("rules watch error", zap.Error(err))
			}
		}
	}()
	return nil
}
