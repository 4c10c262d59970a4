package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appDirName          = "keevault"
	DefaultVaultFile    = "vault.kdbx"
	DefaultLegacyFile   = "data.json"
	DefaultSettingsFile = "settings.db"
	DefaultConfigFile   = "config.json"
	DefaultTheme        = "default"
	DefaultLanguage     = "en"
	DefaultLogLevel     = "info"
	DefaultSyncTimeout  = 30 * time.Second
)

// Config holds runtime settings and user preferences.
//
// File names are relative to DataDir unless absolute. AutoLockTimeout of
// zero disables auto-lock.
type Config struct {
	DataDir         string
	ConfigFile      string
	VaultFile       string
	LegacyFile      string
	SettingsFile    string
	LogLevel        string
	SyncTimeout     time.Duration
	Theme           string
	Language        string
	AutoLockTimeout time.Duration

	// LoadErr is set when the JSON file existed but could not be used; the
	// remaining sources were still applied.
	LoadErr error
}

// defaultDataDir is a seam for tests.
var defaultDataDir = func() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(os.TempDir(), appDirName)
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.ConfigFile = ""
	c.VaultFile = DefaultVaultFile
	c.LegacyFile = DefaultLegacyFile
	c.SettingsFile = DefaultSettingsFile
	c.LogLevel = DefaultLogLevel
	c.SyncTimeout = DefaultSyncTimeout
	c.Theme = DefaultTheme
	c.Language = DefaultLanguage
	c.AutoLockTimeout = 0
}

// LoadConfig builds a Config from defaults, then the JSON file, then flags
// in args. The JSON file is the one named by -c/-config, or config.json in
// the data directory when present. Only invalid flags are fatal.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	// flags first so -d can move the default config file
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	cfg.LoadErr = parseJSON(cfg, args)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c *Config) VaultPath() string    { return c.resolve(c.VaultFile) }
func (c *Config) LegacyPath() string   { return c.resolve(c.LegacyFile) }
func (c *Config) SettingsPath() string { return c.resolve(c.SettingsFile) }

// ConfigPath is where preferences are read from and saved to.
func (c *Config) ConfigPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	return c.resolve(DefaultConfigFile)
}
