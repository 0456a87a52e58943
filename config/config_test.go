package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("DIARY_DIR", "")
	t.Setenv("DIARY_LISTEN", "")
	c, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultDir(), c.Dir)
	assert.Equal(t, "diary.tsv", c.FileName)
	assert.Equal(t, 5, c.BackupLimit)
	assert.Equal(t, "", c.LogDir)
	assert.Equal(t, filepath.Join(c.Dir, "logs"), c.LogPath())
	assert.Equal(t, "127.0.0.1:8427", c.Listen)
	assert.False(t, c.Verbose)
	assert.Equal(t, filepath.Join(DefaultDir(), "diary.tsv"), c.DiaryPath())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("DIARY_DIR", "")
	t.Setenv("DIARY_LISTEN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	s := `dir: /data/diary
file_name: days.tsv
backup_limit: 10
verbose: true
`
	require.NoError(t, os.WriteFile(path, []byte(s), 0644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/diary", c.Dir)
	assert.Equal(t, "/data/diary/days.tsv", c.DiaryPath())
	assert.Equal(t, 10, c.BackupLimit)
	assert.Equal(t, "/data/diary/logs", c.LogPath())
	assert.True(t, c.Verbose)

	c.SetDir("/other")
	assert.Equal(t, "/other/days.tsv", c.DiaryPath())
	assert.Equal(t, "/other/logs", c.LogPath())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dir: /from/file\nlisten: 127.0.0.1:1\n"), 0644))
	t.Setenv("DIARY_DIR", "/from/env")
	t.Setenv("DIARY_LISTEN", ":9000")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", c.Dir)
	assert.Equal(t, ":9000", c.Listen)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup_limit: [1, 2\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	t.Setenv("DIARY_DIR", "")
	t.Setenv("DIARY_LISTEN", "")
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	c := Default()
	c.Dir = "/tmp/diary-test"
	c.LogDir = "/var/log/diary"
	c.BackupLimit = 3
	require.NoError(t, c.Save(path))

	c2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}
