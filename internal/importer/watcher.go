package importer

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LinkDrop represents a link file that appeared in the watched directory.
type LinkDrop struct {
	File string // Absolute path of the dropped file
	Link string // First non-empty line of the file
}

// Watcher monitors a drop directory for link files (.url, .link, .txt) using
// fsnotify. Each dropped file yields at most one LinkDrop; writes are
// debounced so editors that write in bursts produce a single event.
type Watcher struct {
	Dir   string
	Drops <-chan LinkDrop // Read-only external channel

	drops   chan LinkDrop // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given drop directory.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan LinkDrop, 16)
	w := &Watcher{
		Dir:     dir,
		Drops:   ch,
		drops:   ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start begins watching the drop directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.drops)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	const debounce = 200 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.emitDrop(file)
				}
				return
			}

			if !w.isLinkFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.emitDrop(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isLinkFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".url", ".link", ".txt":
		return true
	}
	return false
}

// emitDrop reads the dropped file and forwards its first non-empty line.
// Unreadable or empty files are ignored; the file may already be gone.
func (w *Watcher) emitDrop(file string) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return
	}
	link := firstLink(string(raw))
	if link == "" {
		return
	}

	select {
	case w.drops <- LinkDrop{File: file, Link: link}:
	default:
		// Nobody is reading and the buffer is full. Drop the event instead
		// of wedging the event loop; a blocked loop would also hang Stop.
	}
}

// firstLink extracts the first usable link line. Windows .url shortcut files
// carry the link as a "URL=" property; plain files carry it bare.
func firstLink(contents string) string {
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "[InternetShortcut]" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "URL="); ok {
			return strings.TrimSpace(rest)
		}
		if strings.Contains(line, ".") {
			return line
		}
	}
	return ""
}
