package internal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a watched file must stay quiet before the callback fires.
const DefaultSettleDelay = 100 * time.Millisecond

// FileWatcher watches a single file and calls onChange once writes to it have settled.
// The parent directory is watched rather than the file itself so that editors which replace
// the file (write temp + rename) are still picked up.
type FileWatcher struct {
	dir      string
	filename string
	onChange func(path string)
	settle   time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	closeC  chan struct{}
	started atomic.Bool
}

// NewFileWatcher creates a watcher for path. A zero settle uses DefaultSettleDelay.
func NewFileWatcher(path string, settle time.Duration, logger *slog.Logger, onChange func(path string)) *FileWatcher {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		dir:      filepath.Dir(path),
		filename: filepath.Base(path),
		onChange: onChange,
		settle:   settle,
		logger:   logger,
	}
}

func (fw *FileWatcher) Start() error {
	if !fw.started.CompareAndSwap(false, true) {
		fw.logger.Debug("File watcher already started", "file", fw.filename)
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fw.started.Store(false)
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := watcher.Add(fw.dir); err != nil {
		watcher.Close()
		fw.started.Store(false)
		return fmt.Errorf("watch %s: %w", fw.dir, err)
	}
	fw.watcher = watcher
	fw.closeC = make(chan struct{})
	fw.logger.Debug("Watching file", "dir", fw.dir, "file", fw.filename)
	go fw.watchLoop()
	return nil
}

// Close stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Close() error {
	if !fw.started.CompareAndSwap(true, false) {
		return nil
	}
	close(fw.closeC)
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop() {
	var (
		timer   *time.Timer
		timerMu sync.Mutex
		path    = filepath.Join(fw.dir, fw.filename)
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != fw.filename {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			fw.logger.Log(context.Background(), LevelTrace, "File modified", "file", event.Name, "op", event.Op.String())

			// writes arrive in chunks; restart the timer on every event and fire once it is quiet.
			timerMu.Lock()
			if timer == nil {
				timer = time.AfterFunc(fw.settle, func() {
					timerMu.Lock()
					timer = nil
					timerMu.Unlock()
					if fw.started.Load() {
						fw.onChange(path)
					}
				})
			} else {
				timer.Reset(fw.settle)
			}
			timerMu.Unlock()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Error watching file", "file", fw.filename, "error", err)
		case <-fw.closeC:
			return
		}
	}
}
