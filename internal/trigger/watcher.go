// Package trigger turns files dropped into a directory into operator
// commands.
//
// Creating a file named after a command (calibrate, launch, stop,
// shutdown) in the watched directory emits that command once the file has
// been quiet for the debounce interval. The file is removed after it is
// read so the same command can be triggered again. Other files are
// ignored.
package trigger

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/podctl/internal/sim"
)

// Debounce is how long a trigger file must be quiet before it fires.
const Debounce = 100 * time.Millisecond

// Watcher monitors a trigger directory using fsnotify.
type Watcher struct {
	Dir      string
	Commands <-chan sim.Command

	commands chan sim.Command
	quit     chan struct{}
	done     chan struct{}
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher creates a watcher for dir. A nil logger uses slog.Default().
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ch := make(chan sim.Command, 16)
	return &Watcher{
		Dir:      dir,
		Commands: ch,
		commands: ch,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		logger:   logger.With("component", "trigger", "dir", dir),
	}, nil
}

// Start fires trigger files already present in the directory and begins
// watching it.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		w.watcher.Close()
		return err
	}

	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		w.watcher.Close()
		return err
	}
	var existing []string
	for _, e := range entries {
		if !e.IsDir() {
			existing = append(existing, filepath.Join(w.Dir, e.Name()))
		}
	}

	go w.loop(existing)
	return nil
}

// Stop closes the watcher and the Commands channel. It must only be called
// after a successful Start. Trigger files still waiting out the debounce
// are dropped.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	<-w.done
	close(w.commands)
}

func (w *Watcher) loop(existing []string) {
	defer close(w.done)

	pending := make(map[string]time.Time)
	start := time.Now()
	for _, file := range existing {
		pending[file] = start
	}
	ticker := time.NewTicker(Debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= Debounce {
					delete(pending, file)
					w.fire(file)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) fire(file string) {
	cmd, err := sim.ParseCommand(filepath.Base(file))
	if err != nil {
		w.logger.Debug("ignoring file", "file", filepath.Base(file))
		return
	}
	if err := os.Remove(file); err != nil {
		// Already consumed by an earlier event for the same file.
		if os.IsNotExist(err) {
			return
		}
		w.logger.Warn("remove trigger file", "file", file, "error", err)
	}

	w.logger.Info("command triggered", "command", cmd.String())
	select {
	case w.commands <- cmd:
	case <-w.quit:
	}
}
