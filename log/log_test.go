package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDailyLog(t *testing.T, dir string, kind string) string {
	name := time.Now().Format("2006-01-02") + ".txt"
	d, err := os.ReadFile(filepath.Join(dir, kind, name))
	require.NoError(t, err)
	return string(d)
}

func TestLogToFiles(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	Output = &out
	defer func() { Output = os.Stdout }()

	var forwarded []string
	err := Init(&Config{
		Dir:   dir,
		Keep:  7,
		OnLog: func(s string) { forwarded = append(forwarded, s) },
	})
	require.NoError(t, err)

	Logf("loaded %d entries\n", 3)
	Verbosef("not logged\n")
	Errorf("save failed: %s", "disk full")
	Event("diary.save", "entries", 3, "file", "diary.tsv")
	assert.False(t, IfErrf(nil))
	Close()

	assert.Contains(t, out.String(), "loaded 3 entries\n")
	assert.NotContains(t, out.String(), "not logged")
	assert.Len(t, forwarded, 2)

	s := readDailyLog(t, dir, "log")
	assert.True(t, strings.HasPrefix(s, "loaded 3 entries\n"), "%s", s)
	assert.Contains(t, s, "save failed: disk full\n")

	s = readDailyLog(t, dir, "errors")
	assert.True(t, strings.HasPrefix(s, "save failed: disk full\n"), "%s", s)
	assert.NotContains(t, s, "loaded")
	// callstack
	assert.Contains(t, s, "log_test.go:")

	s = readDailyLog(t, dir, "events")
	assert.True(t, strings.HasPrefix(s, "--- "), "%s", s)
	assert.Contains(t, s, " diary.save\n")
	assert.Contains(t, s, "entries")
	assert.Contains(t, s, "diary.tsv")

	// after Close we still log to Output
	out.Reset()
	Logf("after close\n")
	assert.Equal(t, "after close\n", out.String())
}

func TestMarshalEvent(t *testing.T) {
	tm := time.UnixMilli(1735689600123)
	got := marshalEvent("diary.backup", tm, []byte("name: diary_x.bak.tsv"))
	exp := "--- 21 1735689600123 diary.backup\nname: diary_x.bak.tsv\n"
	assert.Equal(t, exp, string(got))

	got = marshalEvent("diary.restore", tm, nil)
	assert.Equal(t, "--- 0 1735689600123 diary.restore\n", string(got))
}

func TestEventData(t *testing.T) {
	_, err := EventData("odd")
	assert.Error(t, err)
	d, err := EventData()
	assert.NoError(t, err)
	assert.Nil(t, d)
	assert.Panics(t, func() {
		_, _ = EventData([]string{"a"}, 1)
	})
}
