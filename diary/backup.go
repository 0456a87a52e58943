package diary

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kjk/diary/log"
	"github.com/kjk/diary/u"
)

/*
Before every save we copy the current diary file to:

	<dir>/<name>_<timestamp>.bak.tsv

where <name> is the diary file name without extension and <timestamp>
is save time in UTC with second precision, e.g.:

	diary_2025-01-02T03-04-05.bak.tsv

If there are 2 saves in the same second, the second backup gets -1 suffix
(diary_2025-01-02T03-04-05-1.bak.tsv) etc. The counter is always one more
than the highest existing one, even if earlier backups were deleted.

We only keep BackupLimit most recently modified backups.
*/

const backupSuffix = ".bak.tsv"

// Backup describes a backup file
type Backup struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

func backupTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}

func (s *Store) backupPrefix() string {
	name := filepath.Base(s.Path)
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_"
}

func (s *Store) isBackupName(name string) bool {
	return u.MatchPrefixSuffix(s.backupPrefix(), backupSuffix)(name)
}

// backupSeq returns the collision counter of a backup name, 0 if there's none
func (s *Store) backupSeq(name string) int {
	name = strings.TrimSuffix(name, backupSuffix)
	name = strings.TrimPrefix(name, s.backupPrefix())
	// <timestamp>-<n>
	rest, ok := strings.CutPrefix(name[min(len(name), len(backupTimestamp(time.Time{}))):], "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

// lastBackupSeq returns the highest collision counter of existing backups
// named <base>[-N].bak.tsv, -1 if there are none
func (s *Store) lastBackupSeq(base string) (int, error) {
	files, err := s.listBackups()
	if err != nil {
		return -1, err
	}
	res := -1
	for _, fi := range files {
		name := strings.TrimSuffix(fi.Name, backupSuffix)
		if name != base && !strings.HasPrefix(name, base+"-") {
			continue
		}
		res = max(res, s.backupSeq(fi.Name))
	}
	return res, nil
}

func (s *Store) listBackups() ([]u.FileInfo, error) {
	files, err := u.ListFilesNewestFirst(s.Dir(), s.isBackupName)
	if err != nil {
		return nil, err
	}
	// with coarse mtime, -2 is newer than -1 which is newer than no suffix
	sort.SliceStable(files, func(i, j int) bool {
		t1, t2 := files[i].ModTime, files[j].ModTime
		if t1.Equal(t2) {
			return s.backupSeq(files[i].Name) > s.backupSeq(files[j].Name)
		}
		return t1.After(t2)
	})
	return files, nil
}

// backup copies the diary file to a new backup and deletes old backups.
// Returns name of the backup, "" if there was nothing to back up.
func (s *Store) backup(now time.Time) (string, error) {
	if !u.FileExists(s.Path) {
		return "", nil
	}
	base := s.backupPrefix() + backupTimestamp(now)
	seq, err := s.lastBackupSeq(base)
	if err != nil {
		return "", err
	}
	// a name freed by pruning is never reused, it would rank as the oldest
	var name, path string
	for seq++; ; seq++ {
		name = base + backupSuffix
		if seq > 0 {
			name = fmt.Sprintf("%s-%d%s", base, seq, backupSuffix)
		}
		path = filepath.Join(s.Dir(), name)
		if !u.PathExists(path) {
			break
		}
	}
	err = s.copyFile(path, s.Path)
	if err != nil {
		return "", fmt.Errorf("copying to %s: %w", name, err)
	}
	// rotation is by modification time so it must be the time of backup,
	// not copied from the diary file
	if err = os.Chtimes(path, now, now); err != nil {
		log.Errorf("diary: os.Chtimes('%s') failed with '%s'\n", path, err)
	}
	log.Event("diary.backup", "name", name)
	s.pruneBackups()
	return name, nil
}

// pruneBackups deletes all but BackupLimit most recent backups
func (s *Store) pruneBackups() {
	files, err := s.listBackups()
	if err != nil {
		log.Errorf("diary: listing backups in %s failed with '%s'\n", s.Dir(), err)
		return
	}
	for i := s.BackupLimit; i < len(files); i++ {
		err = s.remove(files[i].Path)
		if err != nil {
			log.Errorf("diary: os.Remove('%s') failed with '%s'\n", files[i].Path, err)
			continue
		}
		log.Verbosef("diary: deleted old backup %s\n", files[i].Name)
	}
}

// Backups returns backups, most recent first
func (s *Store) Backups() ([]Backup, error) {
	files, err := s.listBackups()
	if err != nil {
		return nil, err
	}
	res := []Backup{}
	for _, fi := range files {
		b := Backup{
			Name:    fi.Name,
			Size:    fi.Size,
			ModTime: fi.ModTime,
		}
		res = append(res, b)
	}
	return res, nil
}
