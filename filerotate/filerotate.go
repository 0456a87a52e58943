package filerotate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kjk/diary/u"
)

type Config struct {
	DidClose           func(path string, didRotate bool)
	PathIfShouldRotate func(creationTime time.Time, now time.Time) string
	// if > 0, after rotating we delete the oldest files in the directory
	// of the new file for which Match returns true, keeping Keep most recent
	Keep  int
	Match func(name string) bool
	// for tests, defaults to time.Now
	Now func() time.Time
}

type File struct {
	sync.Mutex

	// Path is the path of the current file
	Path string

	creationTime time.Time

	config Config
	file   *os.File
}

// IsSameDay returns true if t1 and t2 are the same calendar day
func IsSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func New(config *Config) (*File, error) {
	if nil == config {
		return nil, fmt.Errorf("must provide config")
	}
	if config.PathIfShouldRotate == nil {
		return nil, fmt.Errorf("must provide config.PathIfShouldRotate")
	}
	file := &File{
		config: *config,
	}
	if file.config.Now == nil {
		file.config.Now = time.Now
	}
	err := file.reopenIfNeeded()
	if err != nil {
		return nil, err
	}
	return file, nil
}

// MakeDailyRotateInDir returns PathIfShouldRotate that creates
// a new file <dir>/<prefix>YYYY-MM-DD.txt every day
func MakeDailyRotateInDir(dir string, prefix string) func(time.Time, time.Time) string {
	return func(creationTime time.Time, now time.Time) string {
		if IsSameDay(creationTime, now) {
			return ""
		}
		name := prefix + now.Format("2006-01-02") + ".txt"
		return filepath.Join(dir, name)
	}
}

// NewDaily creates a new file, rotating daily in a given directory.
// If keep > 0, only keep most recent daily files are retained.
func NewDaily(dir string, prefix string, keep int, didClose func(path string, didRotate bool)) (*File, error) {
	config := Config{
		DidClose:           didClose,
		PathIfShouldRotate: MakeDailyRotateInDir(dir, prefix),
		Keep:               keep,
		Match:              u.MatchPrefixSuffix(prefix, ".txt"),
	}
	return New(&config)
}

func (f *File) close(didRotate bool) error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err == nil && f.config.DidClose != nil {
		f.config.DidClose(f.Path, didRotate)
	}
	return err
}

func (f *File) open(path string) error {
	f.Path = path
	f.creationTime = f.config.Now()
	// we can't assume that the dir for the file already exists
	dir := filepath.Dir(f.Path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	// would be easier to open with os.O_APPEND but Seek() doesn't work in that case
	flag := os.O_CREATE | os.O_WRONLY
	f.file, err = os.OpenFile(f.Path, flag, 0644)
	if err != nil {
		return err
	}
	_, err = f.file.Seek(0, io.SeekEnd)
	return err
}

// prune deletes old files, keeping config.Keep most recent.
// Errors are ignored: failing to delete an old file must not
// prevent writing to a new one.
func (f *File) prune() {
	if f.config.Keep <= 0 || f.config.Match == nil {
		return
	}
	files, err := u.ListFilesNewestFirst(filepath.Dir(f.Path), f.config.Match)
	if err != nil {
		return
	}
	for i := f.config.Keep; i < len(files); i++ {
		if files[i].Path == f.Path {
			continue
		}
		_ = os.Remove(files[i].Path)
	}
}

func (f *File) reopenIfNeeded() error {
	now := f.config.Now()
	newPath := f.config.PathIfShouldRotate(f.creationTime, now)
	if newPath == "" {
		if f.file != nil {
			return nil
		}
		// re-open after Close()
		return f.open(f.Path)
	}
	err := f.close(true)
	if err != nil {
		return err
	}
	err = f.open(newPath)
	if err != nil {
		return err
	}
	f.prune()
	return nil
}

// Write writes data to a file
func (f *File) Write(d []byte) (int, error) {
	f.Lock()
	defer f.Unlock()

	err := f.reopenIfNeeded()
	if err != nil {
		return 0, err
	}
	return f.file.Write(d)
}

func (f *File) Close() error {
	f.Lock()
	defer f.Unlock()

	return f.close(false)
}

// Flush flushes the file
func (f *File) Flush() error {
	f.Lock()
	defer f.Unlock()

	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}
