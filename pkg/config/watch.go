package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
)

// Watcher reloads a config file whenever it changes on disk and hands every
// valid new version to a callback. Invalid versions are logged and skipped.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching path. The directory rather than the file is watched
// so editors that replace the file through a rename are still observed.
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, dberror.IOFailure("WatchConfig", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, dberror.IOFailure("WatchConfig", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, dberror.IOFailure("WatchConfig", err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	log := logging.WithComponent("config")

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				log.Warn("ignoring invalid config change", "path", w.path, "error", err)
				continue
			}
			log.Info("config reloaded", "config", cfg.String())
			w.onChange(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
