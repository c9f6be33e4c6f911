package events

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/video-stream/annotator/internal/storage"
)

// MediaChange is the payload of media.added and media.removed events.
type MediaChange struct {
	Path string `json:"path"` // relative to the media root
	Name string `json:"name"`
}

// MediaWatcher publishes videos appearing in or leaving the media library.
type MediaWatcher struct {
	root    string
	publish func(Event)
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchMedia watches root and every non-hidden directory below it.
func WatchMedia(root string, publish func(Event)) (*MediaWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &MediaWatcher{root: absRoot, publish: publish, watcher: watcher, done: make(chan struct{})}
	if err := w.addTree(absRoot); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.loop()
	log.Printf("[events] watching media library %s", absRoot)
	return w, nil
}

func (w *MediaWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *MediaWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("[events] cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *MediaWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[events] media watcher error: %v", err)
		}
	}
}

func (w *MediaWatcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.addTree(event.Name)
			return
		}
		if storage.IsVideoFile(name) {
			w.emit(TypeMediaAdded, event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if storage.IsVideoFile(name) {
			w.emit(TypeMediaRemoved, event.Name)
		}
	}
}

func (w *MediaWatcher) emit(eventType, path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	w.publish(Event{
		Type: eventType,
		Data: MediaChange{Path: filepath.ToSlash(rel), Name: filepath.Base(path)},
	})
}
