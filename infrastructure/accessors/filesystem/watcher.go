package filesystem

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ignoreWatcher rebuilds the compiled ignore matcher when the root's
// ignore files change, so long-lived accessors do not serve stale
// exclusion rules.
type ignoreWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stopCh  chan struct{}
}

func newIgnoreWatcher(root string, matcher *ignoreMatcher, logger *zap.Logger) (*ignoreWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the root directory; create/remove of the ignore files
	// themselves only produces events on the parent.
	if err := fsWatcher.Add(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &ignoreWatcher{
		watcher: fsWatcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	go func() {
		for {
			select {
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if name == gitignoreName || name == bbignoreName {
					logger.Debug("ignore file changed, recompiling matcher",
						zap.String("file", event.Name),
						zap.String("op", event.Op.String()),
					)
					matcher.Reload()
				}
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Warn("ignore watcher error", zap.Error(err))
			case <-w.stopCh:
				return
			}
		}
	}()

	return w, nil
}

// Close stops the watcher goroutine.
func (w *ignoreWatcher) Close() error {
	close(w.stopCh)
	return w.watcher.Close()
}
