package config

import (
	"sync"

	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/internal/workspace"
	"github.com/codecoder/codecoder/pkg/types"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadSubscriber is notified with the new and old config after a
// successful hot-reload.
type ReloadSubscriber func(newCfg, oldCfg *types.Config)

// Watcher watches a workspace's config.json and overlay files for changes
// and reloads the merged config on write, notifying subscribers.
type Watcher struct {
	fsw     *fsnotify.Watcher
	layout  *workspace.Layout
	current *types.Config

	mu   sync.RWMutex
	subs []*ReloadSubscriber

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewWatcher loads the initial config and sets up (but does not start) a
// watcher on layout.Root.
func NewWatcher(layout *workspace.Layout) (*Watcher, error) {
	cfg, err := Load(layout)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(layout.Root); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		fsw:     fsw,
		layout:  layout,
		current: cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *types.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe registers fn to run after each successful reload. The returned
// func removes the subscription.
func (w *Watcher) Subscribe(fn ReloadSubscriber) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry := &fn
	w.subs = append(w.subs, entry)
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, s := range w.subs {
			if s == entry {
				w.subs = append(w.subs[:i], w.subs[i+1:]...)
				return
			}
		}
	}
}

// Start begins watching for filesystem changes in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	newCfg, err := Load(w.layout)
	if err != nil {
		log.Error().Err(err).Msg("config reload failed, keeping previous config")
		event.Publish(event.Event{Type: event.ConfigReloadError, Data: event.ConfigReloadErrorData{Error: err.Error()}})
		return
	}

	w.mu.Lock()
	oldCfg := w.current
	w.current = newCfg
	subs := make([]*ReloadSubscriber, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	for _, fn := range subs {
		(*fn)(newCfg, oldCfg)
	}
	event.Publish(event.Event{Type: event.ConfigReloaded, Data: event.ConfigReloadedData{New: newCfg, Old: oldCfg}})
}

// Stop stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.fsw.Close()
}
