// Package config provides configuration management for palette.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all the path configurations for palette.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/palette)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/palette)
	DataDir string

	// CacheDir is the directory for cache files (~/.cache/palette)
	CacheDir string
}

// DefaultPaths returns the default paths based on XDG Base Directory spec.
// On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir: filepath.Join(appData, "palette"),
			DataDir:   filepath.Join(localAppData, "palette"),
			CacheDir:  filepath.Join(localAppData, "palette", "cache"),
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	return &Paths{
		ConfigDir: filepath.Join(configHome, "palette"),
		DataDir:   filepath.Join(dataHome, "palette"),
		CacheDir:  filepath.Join(cacheHome, "palette"),
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// CommandsFile returns the path to the default command catalog.
func (p *Paths) CommandsFile() string {
	return filepath.Join(p.ConfigDir, "commands.yaml")
}

// DatabaseFile returns the path to the SQLite state database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "state.db")
}

// StateFile returns the path to the JSON state file used by the file backend.
func (p *Paths) StateFile() string {
	return filepath.Join(p.DataDir, "state.json")
}

// LogFile returns the path to the default log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.DataDir, "logs", "palette.log")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
