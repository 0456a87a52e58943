package diary

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kjk/diary/atomicfile"
	"github.com/kjk/diary/log"
	"github.com/kjk/diary/tsv"
	"github.com/kjk/diary/u"
)

type Entry = tsv.Entry
type Collection = tsv.Collection

const DefaultBackupLimit = 5

// SaveState is a step of Save
type SaveState int

const (
	StateIdle SaveState = iota
	StateBackingUp
	StateSerializing
	StateWritingTemp
	StateRenaming
	StateDone
	StateFailed
)

var stateNames = []string{"Idle", "BackingUp", "Serializing", "WritingTemp", "Renaming", "Done", "Failed"}

func (s SaveState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("SaveState(%d)", int(s))
	}
	return stateNames[s]
}

// Result is returned by operations that modify the diary.
// They never panic or return a Go error, the outcome is in Result.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// State is where a failed save stopped, StateDone on success and
	// StateIdle if input was rejected before saving
	State SaveState `json:"-"`
	Err   error     `json:"-"`
}

func failed(state SaveState, err error) Result {
	msg := err.Error()
	if state != StateIdle {
		msg = state.String() + ": " + msg
	}
	return Result{
		Error: msg,
		State: state,
		Err:   err,
	}
}

type Options struct {
	// how many backups to keep, DefaultBackupLimit if <= 0
	BackupLimit int
	// for tests, defaults to time.Now
	Now func() time.Time
}

// tempFile is what Save needs from atomicfile.File
type tempFile interface {
	io.Writer
	Sync() error
	Close() error
	RemoveIfNotClosed()
}

func openAtomic(path string) (tempFile, error) {
	f, err := atomicfile.New(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Store is a diary kept in a single tsv file
type Store struct {
	// Path is the canonical diary file
	Path        string
	BackupLimit int

	now      func() time.Time
	openTemp func(path string) (tempFile, error)
	copyFile func(dst, src string) error
	remove   func(path string) error

	// serializes read-modify-write within the process
	mu sync.Mutex
}

// Open returns a store for diary file at path. The directory and a
// header-only file are created if they don't exist.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		Path:        path,
		BackupLimit: opts.BackupLimit,
		now:         opts.Now,
		openTemp:    openAtomic,
		copyFile:    u.CopyFile,
		remove:      os.Remove,
	}
	if s.BackupLimit <= 0 {
		s.BackupLimit = DefaultBackupLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, fmt.Errorf("creating diary directory: %w", err)
	}
	if !u.PathExists(path) {
		err = atomicfile.WriteFile(path, tsv.Marshal(nil))
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		log.Logf("diary: created %s\n", path)
	}
	return s, nil
}

// Dir returns directory with the diary file and its backups
func (s *Store) Dir() string {
	return filepath.Dir(s.Path)
}

// load reads all entries. A missing file is an empty diary, any other
// read error is returned.
func (s *Store) load() (Collection, error) {
	d, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Logf("diary: %s doesn't exist\n", s.Path)
			return Collection{}, nil
		}
		return nil, err
	}
	if len(d) > 0 && !tsv.HasHeader(d) {
		log.Logf("diary: %s doesn't start with a header line\n", s.Path)
	}
	return tsv.Parse(d), nil
}

// Load reads all entries. Failure to read the file is logged and
// results in an empty collection.
func (s *Store) Load() Collection {
	c, err := s.load()
	if err != nil {
		log.Errorf("diary: os.ReadFile('%s') failed with '%s'\n", s.Path, err)
		return Collection{}
	}
	return c
}

// ListAll returns all entries
func (s *Store) ListAll() Collection {
	return s.Load()
}

// GetOne returns entry for date or nil if there's none
func (s *Store) GetOne(date string) *Entry {
	return s.Load()[date]
}

// Upsert adds e or replaces the entry with the same date and saves
// the whole diary
func (s *Store) Upsert(e *Entry) Result {
	if err := Validate(e); err != nil {
		return failed(StateIdle, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// saving over a diary we couldn't read would lose all other entries
	c, err := s.load()
	if err != nil {
		log.Errorf("diary: os.ReadFile('%s') failed with '%s'\n", s.Path, err)
		return failed(StateIdle, err)
	}
	c[e.Date] = &Entry{
		Date:    e.Date,
		Title:   e.Title,
		Content: e.Content,
	}
	return s.save(c)
}

// Save replaces the diary with c, after backing up the current file
func (s *Store) Save(c Collection) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(c)
}

// checkKeys makes sure c serializes to what it says: each entry stored
// under its own date, and no date that would break the line structure
func checkKeys(c Collection) error {
	for date, e := range c {
		if e == nil {
			return fmt.Errorf("%w: no entry for '%s'", ErrInvalidDate, date)
		}
		if e.Date != date {
			return fmt.Errorf("%w: entry '%s' stored under '%s'", ErrInvalidDate, e.Date, date)
		}
		if date == "" || strings.ContainsAny(date, "\t\n\r") {
			return fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
	}
	return nil
}

func (s *Store) save(c Collection) Result {
	now := s.now()

	// StateBackingUp: a failed backup must not prevent saving
	backupName, err := s.backup(now)
	if err != nil {
		log.Errorf("diary: backup of %s failed with '%s'\n", s.Path, err)
	}

	state := StateSerializing
	if err = checkKeys(c); err != nil {
		return s.saveFailed(state, err)
	}
	d := tsv.Marshal(c)

	state = StateWritingTemp
	f, err := s.openTemp(s.Path)
	if err != nil {
		return s.saveFailed(state, err)
	}
	// removes the temp file on early return
	defer f.RemoveIfNotClosed()
	if _, err = f.Write(d); err != nil {
		return s.saveFailed(state, err)
	}
	if err = f.Sync(); err != nil {
		return s.saveFailed(state, err)
	}

	state = StateRenaming
	if err = f.Close(); err != nil {
		return s.saveFailed(state, err)
	}

	log.Event("diary.save", "file", s.Path, "entries", len(c), "bytes", len(d), "backup", backupName)
	return Result{Success: true, State: StateDone}
}

func (s *Store) saveFailed(state SaveState, err error) Result {
	log.Errorf("diary: saving %s failed in %s with '%s'\n", s.Path, state, err)
	log.Event("diary.save.failed", "file", s.Path, "state", state.String(), "error", err.Error())
	return failed(state, err)
}

// RestoreData replaces the diary with d, which must be a diary file.
// source is only used for logging.
func (s *Store) RestoreData(d []byte, source string) Result {
	if !tsv.HasHeader(d) {
		return failed(StateIdle, fmt.Errorf("%w: %s", ErrBadHeader, source))
	}
	c := tsv.Parse(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.save(c)
	if res.Success {
		log.Logf("diary: restored %d entries from %s\n", len(c), source)
		log.Event("diary.restore", "file", s.Path, "source", source, "entries", len(c))
	}
	return res
}

// Restore replaces the diary with a backup created by Save. name is the
// file name as returned by Backups. The current diary is backed up first
// so a restore can itself be undone.
func (s *Store) Restore(name string) Result {
	if name != filepath.Base(name) || !s.isBackupName(name) {
		return failed(StateIdle, fmt.Errorf("%w: '%s'", ErrNotBackup, name))
	}
	d, err := os.ReadFile(filepath.Join(s.Dir(), name))
	if err != nil {
		return failed(StateIdle, err)
	}
	return s.RestoreData(d, name)
}
