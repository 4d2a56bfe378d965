package hotkey

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"keytalk/log"
)

// startHotplug watches the device directory and starts a monitor for each
// keyboard that appears after startup.
func (w *Watcher) startHotplug(ctx context.Context) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("hotplug disabled: %v", err)
		return
	}
	if err := fsw.Add(w.hotplugDir); err != nil {
		fsw.Close()
		log.Warnf("hotplug disabled: watching %s: %v", w.hotplugDir, err)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()
		w.hotplugLoop(ctx, fsw)
	}()
}

func (w *Watcher) hotplugLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) || !strings.HasPrefix(filepath.Base(ev.Name), "event") {
				continue
			}
			// udev fixes permissions shortly after the node appears
			select {
			case <-time.After(w.settle):
			case <-ctx.Done():
				return
			}
			dev, ok := probe(w.src, ev.Name)
			if !ok || !matches(w.hotplugFilter, dev.Name) {
				continue
			}
			if w.watch(ctx, dev) {
				log.Infof("keyboard connected: %s (%s)", dev.Name, dev.Path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("hotplug watcher: %v", err)
		}
	}
}
