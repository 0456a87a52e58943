package u

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PathExists returns true if path exists
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// FileExists returns true if path exists and is a regular file
func FileExists(path string) bool {
	st, err := os.Lstat(path)
	return err == nil && st.Mode().IsRegular()
}

// DirExists returns true if path exists and is a directory
func DirExists(path string) bool {
	st, err := os.Lstat(path)
	return err == nil && st.IsDir()
}

// CopyFile copies a file from src to dst
// It'll create destination directory if necessary
// If copying fails, partially written dst is removed
func CopyFile(dst string, src string) error {
	err := os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return err
	}
	fin, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fin.Close()
	fout, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(fout, fin)
	err2 := fout.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(dst)
	}
	return err
}

// FileInfo describes a file found by ListFilesNewestFirst
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ListFilesNewestFirst returns regular files in dir for which match(name)
// returns true, most recently modified first. Files with the same
// modification time are sorted by name, descending.
func ListFilesNewestFirst(dir string, match func(name string) bool) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var res []FileInfo
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !match(name) {
			continue
		}
		st, err := e.Info()
		if err != nil {
			// file might have been deleted since ReadDir
			continue
		}
		fi := FileInfo{
			Name:    name,
			Path:    filepath.Join(dir, name),
			Size:    st.Size(),
			ModTime: st.ModTime(),
		}
		res = append(res, fi)
	}
	sort.Slice(res, func(i, j int) bool {
		t1, t2 := res[i].ModTime, res[j].ModTime
		if t1.Equal(t2) {
			return res[i].Name > res[j].Name
		}
		return t1.After(t2)
	})
	return res, nil
}

// MatchPrefixSuffix returns a matcher for ListFilesNewestFirst
func MatchPrefixSuffix(prefix, suffix string) func(string) bool {
	return func(name string) bool {
		return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
	}
}

// ExpandTildeInPath replaces leading ~ with user's home directory
func ExpandTildeInPath(s string) string {
	if s == "~" || strings.HasPrefix(s, "~/") || strings.HasPrefix(s, `~\`) {
		dir, err := os.UserHomeDir()
		if err != nil {
			return s
		}
		return dir + s[1:]
	}
	return s
}

// FormatSize formats a number in a human-readable form e.g. 1.24 kB
func FormatSize(n int64) string {
	sizes := []int64{1024 * 1024 * 1024, 1024 * 1024, 1024}
	suffixes := []string{"GB", "MB", "kB"}
	for i, size := range sizes {
		if n >= size {
			s := fmt.Sprintf("%.2f", float64(n)/float64(size))
			return strings.TrimSuffix(s, ".00") + " " + suffixes[i]
		}
	}
	return fmt.Sprintf("%d bytes", n)
}
