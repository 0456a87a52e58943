package diary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjk/diary/atomicfile"
	"github.com/kjk/diary/tsv"
)

// every call advances the clock by 1 second
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func openTestStore(t *testing.T) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "GaengniDiary", "diary.tsv")
	s, err := Open(path, &Options{Now: clock.Now})
	require.NoError(t, err)
	return s, clock
}

func readFile(t *testing.T, path string) string {
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(d)
}

func backupNames(t *testing.T, s *Store) []string {
	backups, err := s.Backups()
	require.NoError(t, err)
	var res []string
	for _, b := range backups {
		res = append(res, b.Name)
	}
	return res
}

func assertNoTempFiles(t *testing.T, dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpenCreatesHeaderOnlyFile(t *testing.T) {
	s, _ := openTestStore(t)
	assert.Equal(t, tsv.Header+"\n", readFile(t, s.Path))
	assert.Empty(t, s.Load())

	// opening again doesn't touch existing file
	res := s.Upsert(&Entry{Date: "20250101", Title: "A"})
	require.True(t, res.Success, res.Error)
	exp := readFile(t, s.Path)
	_, err := Open(s.Path, nil)
	require.NoError(t, err)
	assert.Equal(t, exp, readFile(t, s.Path))
}

func TestUpsertOverwrite(t *testing.T) {
	s, _ := openTestStore(t)
	res := s.Upsert(&Entry{Date: "20250101", Title: "A", Content: "x"})
	assert.True(t, res.Success)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Error)
	res = s.Upsert(&Entry{Date: "20250101", Title: "B", Content: "y"})
	assert.True(t, res.Success)

	e := s.GetOne("20250101")
	require.NotNil(t, e)
	assert.Equal(t, &Entry{Date: "20250101", Title: "B", Content: "y"}, e)
	assert.Len(t, s.ListAll(), 1)
}

func TestGetOneMissing(t *testing.T) {
	s, _ := openTestStore(t)
	assert.Nil(t, s.GetOne("20250101"))
	s.Upsert(&Entry{Date: "20250102", Title: "A"})
	assert.Nil(t, s.GetOne("20250101"))

	// missing file is not an error either
	require.NoError(t, os.Remove(s.Path))
	c := s.Load()
	assert.NotNil(t, c)
	assert.Empty(t, c)
	assert.Nil(t, s.GetOne("20250102"))
}

func TestSaveSortedAndIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	for _, date := range []string{"20250310", "20241231", "20250101", "20250209"} {
		res := s.Upsert(&Entry{Date: date, Title: "t " + date, Content: "line 1\nline\t2\\"})
		require.True(t, res.Success, res.Error)
	}
	d1 := readFile(t, s.Path)
	lines := strings.Split(d1, "\n")
	assert.Equal(t, tsv.Header, lines[0])
	assert.Equal(t, "", lines[len(lines)-1], "file must end with a newline")
	lines = lines[1 : len(lines)-1]
	require.Len(t, lines, 4)
	assert.True(t, sort.StringsAreSorted(lines))
	for _, line := range lines {
		assert.Len(t, strings.Split(line, "\t"), 3)
	}

	res := s.Save(s.Load())
	require.True(t, res.Success)
	d2 := readFile(t, s.Path)
	assert.Equal(t, d1, d2)

	e := s.GetOne("20250101")
	assert.Equal(t, "line 1\nline\t2\\", e.Content)
}

func TestBackslashTTitle(t *testing.T) {
	s, _ := openTestStore(t)
	res := s.Upsert(&Entry{Date: "20250101", Title: `\t`, Content: `C:\notes\new`})
	require.True(t, res.Success)
	e := s.GetOne("20250101")
	assert.Equal(t, `\t`, e.Title)
	assert.Equal(t, `C:\notes\new`, e.Content)
}

func TestMalformedLines(t *testing.T) {
	s, _ := openTestStore(t)
	d := tsv.Header + "\n" +
		"20250101\tonly two\n" +
		"\n" +
		"20250102\tok\tcontent\n" +
		"20250103\tempty content\t\r\n" +
		"20250104\textra\tfields\tignored\n"
	require.NoError(t, os.WriteFile(s.Path, []byte(d), 0644))

	c := s.Load()
	assert.Equal(t, []string{"20250102", "20250103", "20250104"}, c.Dates())
	assert.Equal(t, "", c["20250103"].Content)
	assert.Equal(t, "fields", c["20250104"].Content)
}

func TestBackupRotation(t *testing.T) {
	s, clock := openTestStore(t)
	start := clock.t
	for i := 1; i <= 7; i++ {
		res := s.Upsert(&Entry{Date: "20250101", Title: fmt.Sprintf("save %d", i)})
		require.True(t, res.Success, res.Error)
	}
	var exp []string
	for i := 7; i >= 3; i-- {
		ts := start.Add(time.Duration(i) * time.Second)
		exp = append(exp, "diary_"+ts.Format("2006-01-02T15-04-05")+".bak.tsv")
	}
	assert.Equal(t, exp, backupNames(t, s))
	assert.Equal(t, "diary_2025-01-02T03-04-12.bak.tsv", exp[0])

	// the newest backup has the content from before the last save
	bak := readFile(t, filepath.Join(s.Dir(), exp[0]))
	assert.Contains(t, bak, "save 6")
	assert.NotContains(t, bak, "save 7")
	assertNoTempFiles(t, s.Dir())
}

func TestBackupSameSecond(t *testing.T) {
	tm := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "diary.tsv")
	s, err := Open(path, &Options{
		BackupLimit: 10,
		Now:         func() time.Time { return tm },
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res := s.Upsert(&Entry{Date: "20250101", Title: fmt.Sprintf("save %d", i)})
		require.True(t, res.Success)
	}
	// same mtime, newest by counter first
	exp := []string{
		"diary_2025-01-02T03-04-05-2.bak.tsv",
		"diary_2025-01-02T03-04-05-1.bak.tsv",
		"diary_2025-01-02T03-04-05.bak.tsv",
	}
	assert.Equal(t, exp, backupNames(t, s))

	s.BackupLimit = 2
	s.pruneBackups()
	assert.Equal(t, exp[:2], backupNames(t, s))
}

func TestBackupSameSecondAfterPrune(t *testing.T) {
	tm := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "diary.tsv")
	s, err := Open(path, &Options{
		BackupLimit: 2,
		Now:         func() time.Time { return tm },
	})
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		res := s.Upsert(&Entry{Date: "20250101", Title: fmt.Sprintf("save %d", i)})
		require.True(t, res.Success)
	}
	// the unsuffixed name was pruned but is not used again
	exp := []string{
		"diary_2025-01-02T03-04-05-3.bak.tsv",
		"diary_2025-01-02T03-04-05-2.bak.tsv",
	}
	names := backupNames(t, s)
	require.Equal(t, exp, names)
	assert.Contains(t, readFile(t, filepath.Join(s.Dir(), names[0])), "save 3")
	assert.Contains(t, readFile(t, filepath.Join(s.Dir(), names[1])), "save 2")
	assert.Contains(t, readFile(t, s.Path), "save 4")
}

func TestBackupCopyFails(t *testing.T) {
	s, _ := openTestStore(t)
	s.copyFile = func(dst, src string) error {
		return errors.New("disk full")
	}
	res := s.Upsert(&Entry{Date: "20250101", Title: "A", Content: "saved anyway"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, backupNames(t, s))
	assert.Contains(t, readFile(t, s.Path), "saved anyway")
}

func TestPruneContinuesAfterRemoveFailure(t *testing.T) {
	s, _ := openTestStore(t)
	s.BackupLimit = 10
	for i := 0; i < 4; i++ {
		require.True(t, s.Upsert(&Entry{Date: "20250101", Title: fmt.Sprintf("save %d", i)}).Success)
	}
	names := backupNames(t, s)
	require.Len(t, names, 4)

	var tried []string
	s.remove = func(path string) error {
		name := filepath.Base(path)
		tried = append(tried, name)
		if name == names[1] {
			return errors.New("file is busy")
		}
		return os.Remove(path)
	}
	s.BackupLimit = 1
	s.pruneBackups()
	assert.Equal(t, names[1:], tried)
	assert.Equal(t, names[:2], backupNames(t, s))

	// and a save still succeeds when pruning fails
	res := s.Upsert(&Entry{Date: "20250102", Title: "B"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "B", s.GetOne("20250102").Title)
}

func TestNoBackupWithoutFile(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.Remove(s.Path))
	res := s.Upsert(&Entry{Date: "20250101", Title: "A"})
	require.True(t, res.Success)
	assert.Empty(t, backupNames(t, s))
	assert.Equal(t, "A", s.GetOne("20250101").Title)
}

func TestUpsertValidation(t *testing.T) {
	s, _ := openTestStore(t)
	before := readFile(t, s.Path)
	entries := []*Entry{
		nil,
		{Date: "2025-01-01"},
		{Date: "20250230"},
		{Date: "20250101", Title: strings.Repeat("a", MaxTitleLen+1)},
		{Date: "20250101", Content: strings.Repeat("a", MaxContentLen+1)},
	}
	for _, e := range entries {
		res := s.Upsert(e)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
		assert.Equal(t, StateIdle, res.State)
		assert.True(t, IsValidationError(res.Err), res.Error)
	}
	assert.Equal(t, before, readFile(t, s.Path))
	assert.Empty(t, backupNames(t, s))
}

func TestSaveSerializingFails(t *testing.T) {
	s, _ := openTestStore(t)
	before := readFile(t, s.Path)
	c := Collection{
		"20250101": {Date: "20250102", Title: "wrong key"},
	}
	res := s.Save(c)
	assert.False(t, res.Success)
	assert.Equal(t, StateSerializing, res.State)
	assert.True(t, strings.HasPrefix(res.Error, "Serializing: "), res.Error)

	c = Collection{
		"2025\n0101": {Date: "2025\n0101"},
	}
	res = s.Save(c)
	assert.Equal(t, StateSerializing, res.State)
	assert.Equal(t, before, readFile(t, s.Path))
}

var errDiskFull = errors.New("disk full")

type failingWriteFile struct {
	*atomicfile.File
}

func (f *failingWriteFile) Write(d []byte) (int, error) {
	return 0, errDiskFull
}

func TestSaveWritingTempFails(t *testing.T) {
	s, _ := openTestStore(t)
	res := s.Upsert(&Entry{Date: "20250101", Title: "A"})
	require.True(t, res.Success)
	before := readFile(t, s.Path)

	var tmpPath string
	s.openTemp = func(path string) (tempFile, error) {
		f, err := atomicfile.New(path)
		if err != nil {
			return nil, err
		}
		tmpPath = f.TmpPath()
		return &failingWriteFile{f}, nil
	}
	res = s.Upsert(&Entry{Date: "20250101", Title: "B"})
	assert.False(t, res.Success)
	assert.Equal(t, StateWritingTemp, res.State)
	assert.Equal(t, "WritingTemp: disk full", res.Error)
	assert.ErrorIs(t, res.Err, errDiskFull)
	assert.False(t, IsValidationError(res.Err))

	require.NotEmpty(t, tmpPath)
	_, err := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(err))
	assertNoTempFiles(t, s.Dir())
	assert.Equal(t, before, readFile(t, s.Path))
	assert.Equal(t, "A", s.GetOne("20250101").Title)
}

func TestSaveWritingTempFailsMissingDir(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, os.RemoveAll(s.Dir()))
	res := s.Upsert(&Entry{Date: "20250101", Title: "A"})
	assert.False(t, res.Success)
	assert.Equal(t, StateWritingTemp, res.State)
}

func TestSaveRenamingFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diary.tsv")
	// can't rename a file over a non-empty directory
	require.NoError(t, os.MkdirAll(filepath.Join(path, "sub"), 0755))
	s, err := Open(path, nil)
	require.NoError(t, err)

	c := Collection{"20250101": {Date: "20250101", Title: "A"}}
	res := s.Save(c)
	assert.False(t, res.Success)
	assert.Equal(t, StateRenaming, res.State)
	assert.True(t, strings.HasPrefix(res.Error, "Renaming: "), res.Error)
	assertNoTempFiles(t, dir)
	assert.DirExists(t, filepath.Join(path, "sub"))
}

func TestUpsertUnreadableDiary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diary.tsv")
	// reading a directory fails with an error other than "doesn't exist"
	require.NoError(t, os.MkdirAll(filepath.Join(path, "sub"), 0755))
	s, err := Open(path, nil)
	require.NoError(t, err)

	res := s.Upsert(&Entry{Date: "20250101", Title: "A"})
	assert.False(t, res.Success)
	assert.Equal(t, StateIdle, res.State)
	assert.Error(t, res.Err)
	assert.Empty(t, backupNames(t, s))
	assertNoTempFiles(t, dir)
	assert.DirExists(t, filepath.Join(path, "sub"))
}

func TestRestore(t *testing.T) {
	s, _ := openTestStore(t)
	require.True(t, s.Upsert(&Entry{Date: "20250101", Title: "A"}).Success)
	require.True(t, s.Upsert(&Entry{Date: "20250101", Title: "B"}).Success)
	names := backupNames(t, s)
	require.Len(t, names, 2)

	res := s.Restore(names[0])
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "A", s.GetOne("20250101").Title)

	// restore backed up the state before restoring
	names = backupNames(t, s)
	require.Len(t, names, 3)
	res = s.Restore(names[0])
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "B", s.GetOne("20250101").Title)

	res = s.Restore("../diary_2025-01-02T03-04-05.bak.tsv")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrNotBackup)
	res = s.Restore("diary.tsv")
	assert.ErrorIs(t, res.Err, ErrNotBackup)
	res = s.Restore("diary_1999-01-01T00-00-00.bak.tsv")
	assert.False(t, res.Success)
	assert.False(t, IsValidationError(res.Err))
}

func TestRestoreDataBadHeader(t *testing.T) {
	s, _ := openTestStore(t)
	res := s.RestoreData([]byte("20250101\tA\tB\n"), "notes.txt")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrBadHeader)
	assert.Empty(t, backupNames(t, s))

	d := tsv.Marshal(Collection{"20250105": {Date: "20250105", Title: "imported"}})
	res = s.RestoreData(d, "export.tsv")
	require.True(t, res.Success)
	assert.Equal(t, "imported", s.GetOne("20250105").Title)
}

func TestConcurrentUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diary.tsv")
	s, err := Open(path, nil)
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			date := fmt.Sprintf("202501%02d", day)
			res := s.Upsert(&Entry{Date: date, Title: date})
			assert.True(t, res.Success, res.Error)
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.ListAll(), 10)
	assert.Len(t, backupNames(t, s), DefaultBackupLimit)
}
