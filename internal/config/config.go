package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultHistoryCapacity is the number of recently used commands kept when
// nothing else is configured.
const DefaultHistoryCapacity = 50

// Config represents the palette configuration.
type Config struct {
	Palette     PaletteConfig     `yaml:"palette"`
	History     HistoryConfig     `yaml:"history"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
	Keybindings map[string]string `yaml:"keybindings"` // key chord -> command id
}

// PaletteConfig holds commands palette settings.
type PaletteConfig struct {
	ShowAlias          bool     `yaml:"show_alias"`           // Show alias highlights next to labels
	SuggestedCommands  []string `yaml:"suggested_commands"`   // Curated "commonly used" ids, in order
	DeveloperCategory  string   `yaml:"developer_category"`   // Category sorted last
	MergeDelayMs       int      `yaml:"merge_delay_ms"`       // Hold fast results this long (0 = show now)
	RelatedEnabled     bool     `yaml:"related_enabled"`      // Query the related-commands source
	RelatedDebounceMs  int      `yaml:"related_debounce_ms"`  // Debounce before related lookup
	RelatedMaxPicks    int      `yaml:"related_max_picks"`    // Cap on related picks
	RelatedSparseBelow int      `yaml:"related_sparse_below"` // Only look up related picks below this many results
	FallbackScorer     string   `yaml:"fallback_scorer"`      // tfidf or bleve
	CommandsFile       string   `yaml:"commands_file"`        // Command catalog (empty = default path)
}

// HistoryConfig holds command history settings.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"` // Max remembered commands (0 = disabled)
}

// StorageConfig holds durable storage settings.
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, file, or memory
	Path    string `yaml:"path"`    // Storage path (empty = default)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file (empty = stderr)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Palette: PaletteConfig{
			ShowAlias:          false,
			DeveloperCategory:  "Developer",
			MergeDelayMs:       0,
			RelatedEnabled:     true,
			RelatedDebounceMs:  200,
			RelatedMaxPicks:    5,
			RelatedSparseBelow: 5,
			FallbackScorer:     "tfidf",
		},
		History: HistoryConfig{
			Capacity: DefaultHistoryCapacity,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
		Keybindings: map[string]string{},
	}
}

// MergeDelay returns the merge delay as a duration.
func (p PaletteConfig) MergeDelay() time.Duration {
	return time.Duration(p.MergeDelayMs) * time.Millisecond
}

// RelatedDebounce returns the related lookup debounce as a duration.
func (p PaletteConfig) RelatedDebounce() time.Duration {
	return time.Duration(p.RelatedDebounceMs) * time.Millisecond
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Keybindings == nil {
		cfg.Keybindings = map[string]string{}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Palette.SuggestedCommands = append([]string(nil), c.Palette.SuggestedCommands...)
	out.Keybindings = make(map[string]string, len(c.Keybindings))
	for k, v := range c.Keybindings {
		out.Keybindings[k] = v
	}
	return &out
}

// Get retrieves a configuration value by dot-separated key.
// For example: "history.capacity" or "palette.show_alias"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "palette":
		return c.getPaletteField(field)
	case "history":
		return c.getHistoryField(field)
	case "storage":
		return c.getStorageField(field)
	case "log":
		return c.getLogField(field)
	case "keybindings":
		return c.Keybindings[field], nil
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "palette":
		return c.setPaletteField(field, value)
	case "history":
		return c.setHistoryField(field, value)
	case "storage":
		return c.setStorageField(field, value)
	case "log":
		return c.setLogField(field, value)
	case "keybindings":
		if c.Keybindings == nil {
			c.Keybindings = map[string]string{}
		}
		if value == "" {
			delete(c.Keybindings, field)
		} else {
			c.Keybindings[field] = value
		}
		return nil
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	// Key chords may contain dots; only sections without subkeys are strict.
	if section != "keybindings" && strings.Contains(field, ".") {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return section, field, nil
}

func (c *Config) getPaletteField(field string) (string, error) {
	switch field {
	case "show_alias":
		return strconv.FormatBool(c.Palette.ShowAlias), nil
	case "suggested_commands":
		return strings.Join(c.Palette.SuggestedCommands, ","), nil
	case "developer_category":
		return c.Palette.DeveloperCategory, nil
	case "merge_delay_ms":
		return strconv.Itoa(c.Palette.MergeDelayMs), nil
	case "related_enabled":
		return strconv.FormatBool(c.Palette.RelatedEnabled), nil
	case "related_debounce_ms":
		return strconv.Itoa(c.Palette.RelatedDebounceMs), nil
	case "related_max_picks":
		return strconv.Itoa(c.Palette.RelatedMaxPicks), nil
	case "related_sparse_below":
		return strconv.Itoa(c.Palette.RelatedSparseBelow), nil
	case "fallback_scorer":
		return c.Palette.FallbackScorer, nil
	case "commands_file":
		return c.Palette.CommandsFile, nil
	default:
		return "", fmt.Errorf("unknown field: palette.%s", field)
	}
}

func (c *Config) setPaletteField(field, value string) error {
	switch field {
	case "show_alias":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for show_alias: %w", err)
		}
		c.Palette.ShowAlias = v
	case "suggested_commands":
		c.Palette.SuggestedCommands = splitList(value)
	case "developer_category":
		c.Palette.DeveloperCategory = value
	case "merge_delay_ms":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Palette.MergeDelayMs = v
	case "related_enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for related_enabled: %w", err)
		}
		c.Palette.RelatedEnabled = v
	case "related_debounce_ms":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Palette.RelatedDebounceMs = v
	case "related_max_picks":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Palette.RelatedMaxPicks = v
	case "related_sparse_below":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Palette.RelatedSparseBelow = v
	case "fallback_scorer":
		if !isValidScorer(value) {
			return fmt.Errorf("invalid fallback_scorer: %s (must be tfidf or bleve)", value)
		}
		c.Palette.FallbackScorer = value
	case "commands_file":
		c.Palette.CommandsFile = value
	default:
		return fmt.Errorf("unknown field: palette.%s", field)
	}
	return nil
}

func (c *Config) getHistoryField(field string) (string, error) {
	switch field {
	case "capacity":
		return strconv.Itoa(c.History.Capacity), nil
	default:
		return "", fmt.Errorf("unknown field: history.%s", field)
	}
}

func (c *Config) setHistoryField(field, value string) error {
	switch field {
	case "capacity":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.History.Capacity = v
	default:
		return fmt.Errorf("unknown field: history.%s", field)
	}
	return nil
}

func (c *Config) getStorageField(field string) (string, error) {
	switch field {
	case "backend":
		return c.Storage.Backend, nil
	case "path":
		return c.Storage.Path, nil
	default:
		return "", fmt.Errorf("unknown field: storage.%s", field)
	}
}

func (c *Config) setStorageField(field, value string) error {
	switch field {
	case "backend":
		if !isValidBackend(value) {
			return fmt.Errorf("invalid backend: %s (must be sqlite, file, or memory)", value)
		}
		c.Storage.Backend = value
	case "path":
		c.Storage.Path = value
	default:
		return fmt.Errorf("unknown field: storage.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.History.Capacity < 0 {
		return errors.New("history.capacity must be >= 0")
	}

	if c.Palette.MergeDelayMs < 0 {
		return errors.New("palette.merge_delay_ms must be >= 0")
	}

	if c.Palette.RelatedDebounceMs < 0 {
		return errors.New("palette.related_debounce_ms must be >= 0")
	}

	if c.Palette.RelatedMaxPicks < 0 {
		return errors.New("palette.related_max_picks must be >= 0")
	}

	if !isValidScorer(c.Palette.FallbackScorer) {
		return fmt.Errorf("palette.fallback_scorer must be tfidf or bleve (got: %s)", c.Palette.FallbackScorer)
	}

	if !isValidBackend(c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be sqlite, file, or memory (got: %s)", c.Storage.Backend)
	}

	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}

	for key, id := range c.Keybindings {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("keybindings.%s has no command id", key)
		}
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidScorer(scorer string) bool {
	switch scorer {
	case "tfidf", "bleve":
		return true
	default:
		return false
	}
}

func isValidBackend(backend string) bool {
	switch backend {
	case "sqlite", "file", "memory":
		return true
	default:
		return false
	}
}

func parseNonNegative(field, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid value for %s: must be >= 0", field)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PALETTE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("PALETTE_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
	if v := os.Getenv("PALETTE_HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.History.Capacity = n
		}
	}
	if v := os.Getenv("PALETTE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
}

// ListKeys returns user-facing configuration keys.
func ListKeys() []string {
	keys := []string{
		"palette.show_alias",
		"palette.suggested_commands",
		"palette.developer_category",
		"palette.merge_delay_ms",
		"palette.related_enabled",
		"palette.related_debounce_ms",
		"palette.related_max_picks",
		"palette.related_sparse_below",
		"palette.fallback_scorer",
		"palette.commands_file",
		"history.capacity",
		"storage.backend",
		"storage.path",
		"log.level",
		"log.file",
	}
	sort.Strings(keys)
	return keys
}
