package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/lumen/engine/core"
)

// MultisampleChange is delivered when a reloaded configuration changes the
// renderer's sampling settings.
type MultisampleChange struct {
	Enabled bool
	Samples int
}

// Watcher reloads the configuration file when it changes on disk and
// reports sampling changes. Other settings only take effect on restart.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	last    MultisampleChange
	changes chan MultisampleChange
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher watches path, starting from the settings in current.
func NewWatcher(path string, current *Config) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace the file, so watch its directory
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		fs:      fsWatch,
		last:    MultisampleChange{Enabled: current.Renderer.MSAA, Samples: current.Renderer.Samples},
		changes: make(chan MultisampleChange, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Changes delivers sampling changes. It is closed by Close.
func (w *Watcher) Changes() <-chan MultisampleChange {
	return w.changes
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
		close(w.changes)
	})
	return err
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// a half written file fails to parse, the next write event retries
		core.LogWarn("config reload failed: %s", err.Error())
		return
	}
	next := MultisampleChange{Enabled: cfg.Renderer.MSAA, Samples: cfg.Renderer.Samples}
	if next == w.last {
		return
	}
	w.last = next
	core.LogInfo("config reloaded: msaa=%t samples=%d", next.Enabled, next.Samples)
	select {
	case w.changes <- next:
	case <-w.done:
	}
}
