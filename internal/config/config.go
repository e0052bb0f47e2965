package config

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultRC       = "~/.config/ade/launchd.rc"
	defaultSettings = "~/.config/ade/settings.yaml"
	defaultDataDirs = "/usr/local/share:/usr/share"
)

// Config holds the static environment settings and the rc file contents
type Config struct {
	static  Env
	dynamic rc
	rcPath  string
}

type (
	// Env is the environment part of the configuration
	Env struct {
		Path            string `envconfig:"PATH"`
		Terminal        string `envconfig:"ADE_DEFAULT_TERM"`
		UnixSocket      string `envconfig:"ADE_LAUNCHD_SOCK"`
		Workers         int    `envconfig:"ADE_LAUNCHD_WORKERS" default:"4"`
		ListLimit       int    `envconfig:"ADE_LAUNCHD_LIST_LIMIT" default:"128"`
		DataDir         string `envconfig:"ADE_LAUNCHD_DATA_DIR"`
		RCFile          string `envconfig:"ADE_LAUNCHD_RC"`
		SettingsFile    string `envconfig:"ADE_LAUNCHD_SETTINGS"`
		ScanExecutables bool   `envconfig:"ADE_LAUNCHD_SCAN_EXECUTABLES" default:"true"`
		LogLevel        string `envconfig:"ADE_LAUNCHD_LOG_LEVEL" default:"info"`
		LogFile         string `envconfig:"ADE_LAUNCHD_LOG_FILE"`
		LCAll           string `envconfig:"LC_ALL"`
		LCMessages      string `envconfig:"LC_MESSAGES"`
		Lang            string `envconfig:"LANG"`
		XDGDataHome     string `envconfig:"XDG_DATA_HOME"`
		XDGDataDirs     string `envconfig:"XDG_DATA_DIRS"`
	}
	rc struct {
		sync.RWMutex
		additionalPaths []string
	}
)

// Load reads the environment and the rc file
func Load() (*Config, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	c := New(env)
	if err := c.loadRC(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", c.rcPath, err)
	}
	return c, nil
}

// New builds a configuration from env without reading the process
// environment or the rc file.
func New(env Env) *Config {
	c := &Config{static: env}

	// Set default socket path if not provided
	if c.static.UnixSocket == "" {
		uid := fmt.Sprint(os.Getuid())
		if currentUser, err := user.Current(); err == nil {
			uid = currentUser.Uid
		}
		c.static.UnixSocket = fmt.Sprintf("/tmp/ade-%s/launchd", uid)
	}
	c.static.UnixSocket = ExpandPath(c.static.UnixSocket)

	rcPath := c.static.RCFile
	if rcPath == "" {
		rcPath = defaultRC
	}
	c.rcPath = ExpandPath(rcPath)

	return c
}

// RCFile returns the path of the rc file
func (c *Config) RCFile() string {
	return c.rcPath
}

func (c *Config) loadRC() error {
	// Create directory if it doesn't exist
	rcDir := filepath.Dir(c.rcPath)
	if err := os.MkdirAll(rcDir, 0750); err != nil {
		return err
	}

	file, err := os.Open(c.rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty file
			file, err = os.Create(c.rcPath)
			if err != nil {
				return err
			}
			return file.Close()
		}
		return err
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, ExpandPath(line))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	c.dynamic.Lock()
	c.dynamic.additionalPaths = paths
	c.dynamic.Unlock()
	return nil
}

// Watch reloads the rc file whenever it is written and calls onChange
// after each successful reload. It returns once the watcher is set up.
func (c *Config) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, editors replace the file on save
	if err := watcher.Add(filepath.Dir(c.rcPath)); err != nil {
		watcher.Close()
		return err
	}

	go c.watchLoop(ctx, watcher, logger, onChange)
	return nil
}

func (c *Config) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, logger *slog.Logger, onChange func()) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != c.rcPath || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			if err := c.loadRC(); err != nil {
				logger.Error("reloading config", "file", c.rcPath, "error", err)
				continue
			}
			logger.Info("config reloaded", "file", c.rcPath, "paths", len(c.AdditionalPaths()))
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

// Path returns all paths to search (PATH + additional paths from rc)
func (c *Config) Path() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	paths := filepath.SplitList(c.static.Path)
	// Filter empty paths
	filtered := make([]string, 0, len(paths)+len(c.dynamic.additionalPaths))
	for _, p := range paths {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	filtered = append(filtered, c.dynamic.additionalPaths...)
	return filtered
}

// AdditionalPaths returns the paths read from the rc file
func (c *Config) AdditionalPaths() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()
	return append([]string(nil), c.dynamic.additionalPaths...)
}

// DesktopDirs returns the directories holding .desktop files, most
// specific first: $XDG_DATA_HOME then each of $XDG_DATA_DIRS.
func (c *Config) DesktopDirs() []string {
	home := c.static.XDGDataHome
	if home == "" {
		home = "~/.local/share"
	}

	dataDirs := c.static.XDGDataDirs
	if dataDirs == "" {
		dataDirs = defaultDataDirs
	}

	dirs := []string{filepath.Join(ExpandPath(home), "applications")}
	for _, d := range filepath.SplitList(dataDirs) {
		if d != "" {
			dirs = append(dirs, filepath.Join(ExpandPath(d), "applications"))
		}
	}
	return dirs
}

// Terminal returns the default terminal command
func (c *Config) Terminal() string {
	if c.static.Terminal != "" {
		return c.static.Terminal
	}
	// Fallback to TERM env var
	if term := os.Getenv("TERM"); term != "" {
		return term
	}
	return "xterm" // Ultimate fallback
}

// UnixSocket returns the Unix socket path
func (c *Config) UnixSocket() string {
	return c.static.UnixSocket
}

// LockFile returns the path of the single instance lock
func (c *Config) LockFile() string {
	return c.static.UnixSocket + ".lock"
}

// Workers returns the number of worker goroutines for indexing
func (c *Config) Workers() int {
	if c.static.Workers <= 0 {
		return 4 // Default
	}
	return c.static.Workers
}

// ListLimit returns the configured list limit
func (c *Config) ListLimit() int {
	if c.static.ListLimit <= 0 {
		return 128 // Default
	}
	return c.static.ListLimit
}

// DataDir returns the root directory of the usage database,
// empty to use the user cache directory.
func (c *Config) DataDir() string {
	return ExpandPath(c.static.DataDir)
}

// SettingsFile returns the path of the settings catalog
func (c *Config) SettingsFile() string {
	if c.static.SettingsFile == "" {
		return ExpandPath(defaultSettings)
	}
	return ExpandPath(c.static.SettingsFile)
}

// ScanExecutables reports whether PATH executables are indexed
func (c *Config) ScanExecutables() bool {
	return c.static.ScanExecutables
}

// Locale returns the locale used for display names
func (c *Config) Locale() string {
	for _, l := range []string{c.static.LCAll, c.static.LCMessages, c.static.Lang} {
		if l != "" && l != "C" && l != "POSIX" {
			return l
		}
	}
	return ""
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() slog.Level {
	return ParseLevel(c.static.LogLevel)
}

// LogFile returns the JSON log file, empty for none
func (c *Config) LogFile() string {
	return ExpandPath(c.static.LogFile)
}

// ExpandPath replaces a leading ~ with the home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
