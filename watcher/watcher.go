// Package watcher implements C3, the File Watcher: a recursive filesystem
// observer that coalesces raw fsnotify events into debounced
// content-changed callbacks.
package watcher

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/logging"
)

// ChangeEvent is delivered to the callback once per debounce window per
// path that genuinely changed.
type ChangeEvent struct {
	Path    string
	Deleted bool
}

// Config configures a Watcher.
type Config struct {
	Root        string
	Extensions  []string // allow-list, e.g. []string{".go", ".py"}; empty means allow all
	Excludes    []string // gitignore-style glob patterns, relative to Root
	Debounce    time.Duration
	OnChange    func(ChangeEvent)
}

// Watcher recursively observes Root, debouncing bursts of edits to the same
// path into a single callback.
type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher
	log *logging.ContextLogger

	mu      sync.Mutex
	hashes  map[string][32]byte
	pending map[string]bool // path -> deleted
	stopped bool

	timer    *time.Timer
	timerWG  sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Watcher rooted at cfg.Root. Call Start to begin observing.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 1000 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Storage("watcher", "New", "create fsnotify watcher", err)
	}
	return &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		log:     logging.ServiceLogger("watcher").WithField("root", cfg.Root),
		hashes:  make(map[string][32]byte),
		pending: make(map[string]bool),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start registers recursive watches under Root and begins the event loop.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.cfg.Root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop cancels the pending debounce timer synchronously and shuts down the
// event loop. No callback fires after Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()

	w.mu.Lock()
	w.stopped = true
	if w.timer != nil && w.timer.Stop() {
		// Cancelled before it fired: release the slot its fire() would have.
		w.timerWG.Done()
	}
	w.mu.Unlock()

	// Wait for any debounce fire already in flight to observe the stopped
	// flag and return without invoking a callback.
	w.timerWG.Wait()

	w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if w.isExcluded(path) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			_ = w.addRecursive(event.Name)
		}
		return
	}

	if !w.passesFilter(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.hashes, event.Name)
		w.mu.Unlock()
		w.scheduleCallback(event.Name, true)

	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		data, err := os.ReadFile(event.Name)
		if err != nil {
			return // missing-file reads are swallowed
		}
		sum := sha256.Sum256(data)

		w.mu.Lock()
		prev, existed := w.hashes[event.Name]
		changed := !existed || prev != sum
		w.hashes[event.Name] = sum
		w.mu.Unlock()

		if changed {
			w.scheduleCallback(event.Name, false)
		}
	}
}

func (w *Watcher) passesFilter(path string) bool {
	if w.isExcluded(path) {
		return false
	}
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.cfg.Extensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) isExcluded(path string) bool {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// also match any path component, so "node_modules" excludes
		// "node_modules/foo/bar.js" and "src/node_modules" without
		// requiring "**/node_modules/**".
		if ok, _ := doublestar.Match("**/"+pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+pattern+"/**", rel); ok {
			return true
		}
	}
	return false
}

// scheduleCallback adds path to the pending set and (re)arms the debounce
// timer. A burst of edits to one path within the window collapses to one
// callback.
func (w *Watcher) scheduleCallback(path string, deleted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.pending[path] = deleted

	if w.timer != nil && w.timer.Stop() {
		// Cancelled before it fired: that pending fire() call will never
		// run, so release the WaitGroup slot reserved for it.
		w.timerWG.Done()
	}
	w.timerWG.Add(1)
	w.timer = time.AfterFunc(w.cfg.Debounce, w.fire)
}

func (w *Watcher) fire() {
	defer w.timerWG.Done()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	snapshot := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for path, deleted := range snapshot {
		if w.cfg.OnChange != nil {
			w.cfg.OnChange(ChangeEvent{Path: path, Deleted: deleted})
		}
	}
}
