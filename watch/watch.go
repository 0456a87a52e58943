package watch

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kjk/diary/log"
	"github.com/kjk/diary/tsv"
	"github.com/kjk/diary/u"
)

// DefaultDebounce is how long we wait for writes to settle before
// re-loading the diary
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports entries changed in a diary file by other processes
// (or an editor)
type Watcher struct {
	// Path of the diary file
	Path string

	load     func() tsv.Collection
	onChange func(dates []string)

	fsw       *fsnotify.Watcher
	debouncer *u.Debouncer

	mu   sync.Mutex
	last tsv.Collection
	// set by Close, a pending debounced reload must not report changes
	closed bool
}

// New watches diary file at path. load is called to read the file and
// onChange is called with sorted dates of entries that were added or
// changed since the last load.
func New(path string, load func() tsv.Collection, onChange func(dates []string)) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// we watch the directory because saving replaces the file with rename,
	// which would end a watch on the file itself
	if err = fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		Path:      path,
		load:      load,
		onChange:  onChange,
		fsw:       fsw,
		debouncer: &u.Debouncer{Timeout: DefaultDebounce},
		last:      load(),
	}
	return w, nil
}

// Diff returns sorted dates of entries in cur that are not in prev or
// have different title or content
func Diff(prev, cur tsv.Collection) []string {
	var res []string
	for date, e := range cur {
		p := prev[date]
		if p == nil || p.Title != e.Title || p.Content != e.Content {
			res = append(res, date)
		}
	}
	sort.Strings(res)
	return res
}

// reload holds mu while calling onChange so that once Close returns,
// onChange is not running and won't be called again
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	c := w.load()
	changed := Diff(w.last, c)
	w.last = c
	if len(changed) > 0 {
		log.Verbosef("watch: %d entries changed in %s\n", len(changed), w.Path)
		w.onChange(changed)
	}
}

func (w *Watcher) isDiaryChange(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.Path {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)
}

// Run processes file system events until ctx is cancelled or the
// watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.markClosed()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.isDiaryChange(ev) {
				w.debouncer.Debounce(w.reload)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch: %s\n", err)
		}
	}
}

func (w *Watcher) markClosed() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Close stops watching. onChange is not called after Close returns.
func (w *Watcher) Close() error {
	w.markClosed()
	return w.fsw.Close()
}
