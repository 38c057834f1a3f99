package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
)

// DefaultDebounce coalesces bursts of file events into one notification.
const DefaultDebounce = 200 * time.Millisecond

// FileFetcher reads the feed from a local file, e.g. one dropped by another
// downloader or a recorded payload for replay.
type FileFetcher struct {
	path     string
	dir      string
	base     string
	debounce time.Duration
}

func NewFileFetcher(path string) (*FileFetcher, error) {
	if path == "" {
		return nil, errors.New("feed file path is required")
	}
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	return &FileFetcher{path: path, dir: dir, base: filepath.Base(path), debounce: DefaultDebounce}, nil
}

// Fetch reads and decodes the file once; there is nothing to retry locally.
func (f *FileFetcher) Fetch(ctx context.Context) (model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	ds, stats, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode feed file %s: %w", f.path, err)
	}
	logStats(stats)
	return ds, nil
}

// Watch calls onChange after the feed file is written or replaced.
// It watches the parent directory (not the file) so atomic replace sequences (temp+rename)
// are still observed on Linux and Windows. Events are filtered by basename and
// debounced to avoid double triggers on write+chmod/rename cycles. The caller owns the
// provided context: cancel it to stop the goroutine and close the watcher cleanly.
func (f *FileFetcher) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return errors.New("onChange callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	log := logger.WithComponent("feed-watch")
	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(f.debounce, onChange)
		}
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != f.base {
					continue
				}
				// Write/Create cover edits and the final step of an atomic replace.
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Debugf("feed file event %s", event.Op)
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("watcher error: %v", err)
			}
		}
	}()
	log.Infof("watching %s for changes", f.path)
	return nil
}
