package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kjk/diary/atomicfile"
	"github.com/kjk/diary/u"
)

const (
	AppName = "gaengni-diary"

	DefaultFileName    = "diary.tsv"
	DefaultBackupLimit = 5
	DefaultListen      = "127.0.0.1:8427"
)

// Config is read from config.yaml. Empty values mean defaults.
type Config struct {
	// directory with the diary file and its backups
	Dir         string `yaml:"dir"`
	FileName    string `yaml:"file_name"`
	BackupLimit int    `yaml:"backup_limit"`
	// defaults to <dir>/logs
	LogDir string `yaml:"log_dir"`
	// address of http server for "diary serve"
	Listen  string `yaml:"listen"`
	Verbose bool   `yaml:"verbose"`
}

// DefaultDir returns ~/Documents/GaengniDiary
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "GaengniDiary"
	}
	return filepath.Join(home, "Documents", "GaengniDiary")
}

// DefaultPath returns path of config file in user's config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(DefaultDir(), "config.yaml")
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Default returns config with all values set to defaults
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
	c.Dir = u.ExpandTildeInPath(c.Dir)
	if c.FileName == "" {
		c.FileName = DefaultFileName
	}
	if c.BackupLimit <= 0 {
		c.BackupLimit = DefaultBackupLimit
	}
	c.LogDir = u.ExpandTildeInPath(c.LogDir)
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

// ApplyEnv overrides values from DIARY_DIR and DIARY_LISTEN
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("DIARY_DIR"); v != "" {
		c.Dir = v
	}
	if v := getenv("DIARY_LISTEN"); v != "" {
		c.Listen = v
	}
}

// Load reads config from path (DefaultPath() if empty).
// A missing file is not an error, we use defaults.
// Values from environment override values from the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	c := &Config{}
	d, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err = yaml.Unmarshal(d, c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	c.ApplyEnv(os.Getenv)
	c.setDefaults()
	return c, nil
}

// Save writes config as yaml
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomicfile.WriteFile(path, d)
}

// DiaryPath returns path of the diary file
func (c *Config) DiaryPath() string {
	return filepath.Join(c.Dir, c.FileName)
}

// LogPath returns directory for log files
func (c *Config) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.Dir, "logs")
}

// SetDir changes diary directory e.g. from a command line flag
func (c *Config) SetDir(dir string) {
	c.Dir = u.ExpandTildeInPath(dir)
}
