package devserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"c3addon-builder/internal/logging"
	"c3addon-builder/internal/walkwalk"
)

// DefaultDebounce is the quiet period after the last change before a
// rebuild is requested.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports changes below a source root. Dot-files and dot-directories
// are ignored; directories created while watching are picked up.
type Watcher struct {
	w        *fsnotify.Watcher
	root     string
	debounce time.Duration
	log      *zap.Logger
}

// watchOptions mirror the directories the pipeline reads sources from.
var watchOptions = walkwalk.Options{Exclude: []string{"node_modules"}, UseGitignore: true}

// NewWatcher watches every directory below root that is not ignored.
func NewWatcher(root string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	wt := &Watcher{w: fw, root: abs, debounce: debounce, log: logging.OrNop(log)}
	dirs, err := walkwalk.Dirs(abs, watchOptions)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return wt, nil
}

// Run calls notify once per burst of changes until ctx is done. It closes
// the underlying watcher before returning.
func (wt *Watcher) Run(ctx context.Context, notify func(path string)) error {
	defer wt.w.Close()

	timer := time.NewTimer(wt.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	last := ""

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-wt.w.Events:
			if !ok {
				return nil
			}
			if !wt.relevant(ev) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				wt.addIfDir(ev.Name)
			}
			wt.log.Debug("source changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			last = ev.Name
			timer.Reset(wt.debounce)

		case err, ok := <-wt.w.Errors:
			if !ok {
				return nil
			}
			wt.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			notify(last)
		}
	}
}

func (wt *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(wt.root, ev.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if walkwalk.IsHidden(part) {
			return false
		}
	}
	return true
}

func (wt *Watcher) addIfDir(path string) {
	st, err := os.Stat(path)
	if err != nil || !st.IsDir() {
		return
	}
	// Re-list from the root so the .gitignore patterns keep their anchor.
	// Adding an already watched directory is a no-op.
	dirs, err := walkwalk.Dirs(wt.root, watchOptions)
	if err != nil {
		return
	}
	for _, d := range dirs {
		if err := wt.w.Add(d); err != nil {
			wt.log.Warn("watch directory", zap.String("dir", d), zap.Error(err))
		}
	}
}
