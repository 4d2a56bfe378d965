package hotkey

import (
	"context"
	"sync"
	"time"

	"keytalk/log"
)

const edgeBuffer = 16

// Watcher monitors devices concurrently and merges their activation key
// edges into one channel. Each device keeps its own event order; there is
// no ordering across devices.
type Watcher struct {
	src   Source
	code  uint16
	edges chan Edge

	mu       sync.Mutex
	watching map[string]bool
	wg       sync.WaitGroup

	hotplugDir    string
	hotplugFilter string
	settle        time.Duration
}

func NewWatcher(src Source, code uint16) *Watcher {
	return &Watcher{
		src:      src,
		code:     code,
		edges:    make(chan Edge, edgeBuffer),
		watching: make(map[string]bool),
		settle:   500 * time.Millisecond,
	}
}

// Edges is closed once every device monitor (and the hotplug watcher, if
// enabled) has stopped.
func (w *Watcher) Edges() <-chan Edge {
	return w.edges
}

// EnableHotplug makes Start also watch dir for new keyboards matching
// filter. Must be called before Start.
func (w *Watcher) EnableHotplug(dir, filter string) {
	w.hotplugDir = dir
	w.hotplugFilter = filter
}

// Start launches one monitor per device.
func (w *Watcher) Start(ctx context.Context, devices []Device) {
	for _, dev := range devices {
		w.watch(ctx, dev)
	}
	if w.hotplugDir != "" {
		w.startHotplug(ctx)
	}
	go func() {
		w.wg.Wait()
		close(w.edges)
	}()
}

// watch must only be called from Start or while the hotplug monitor holds
// its own slot in wg.
func (w *Watcher) watch(ctx context.Context, dev Device) bool {
	w.mu.Lock()
	if w.watching[dev.Path] {
		w.mu.Unlock()
		return false
	}
	w.watching[dev.Path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchDevice(ctx, dev)
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.watching, path)
	w.mu.Unlock()
}

func (w *Watcher) watchDevice(ctx context.Context, dev Device) {
	defer w.wg.Done()
	defer w.release(dev.Path)

	in, err := w.src.Open(dev.Path)
	if err != nil {
		log.Errorf("error monitoring device %s (%s): %v", dev.Name, dev.Path, err)
		return
	}
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer func() {
		if stop() {
			in.Close()
		}
	}()

	log.Infof("waiting for %s on %s (%s)", KeyName(w.code), dev.Name, dev.Path)

	for {
		ev, err := in.Next()
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("error monitoring device %s (%s): %v", dev.Name, dev.Path, err)
			}
			return
		}
		if ev.Type != EvKey || ev.Code != w.code {
			continue
		}

		var down bool
		switch ev.Value {
		case KeyDown:
			down = true
			log.Debugf("%s pressed on %s", KeyName(w.code), dev.Path)
		case KeyUp:
			log.Debugf("%s released on %s", KeyName(w.code), dev.Path)
		default:
			continue
		}

		select {
		case w.edges <- Edge{Device: dev, Down: down}:
		case <-ctx.Done():
			return
		}
	}
}
