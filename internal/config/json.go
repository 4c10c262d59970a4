package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/filex"
	"github.com/dmitrijs2005/keevault/internal/flagx"
	"github.com/dmitrijs2005/keevault/internal/timex"
)

// JsonConfig is the on-disk form of Config. Pointer fields distinguish
// "absent" from zero values so a partial file only overrides what it names.
type JsonConfig struct {
	DataDir         *string         `json:"data_dir,omitempty"`
	DBPath          *string         `json:"db_path,omitempty"`
	LogLevel        *string         `json:"log_level,omitempty"`
	SyncTimeout     *timex.Duration `json:"sync_timeout,omitempty"`
	Theme           *string         `json:"theme,omitempty"`
	Language        *string         `json:"language,omitempty"`
	AutoLockTimeout *uint64         `json:"auto_lock_timeout,omitempty"`
}

// parseJSON overlays cfg with the JSON config file. A missing default file
// is not an error; any other failure leaves cfg untouched and is returned.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	explicit := path != ""
	if explicit {
		cfg.ConfigFile = path
	} else {
		path = cfg.ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %v: %w", path, err, common.ErrInvalidFormat)
	}
	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	if jc.DataDir != nil {
		cfg.DataDir = *jc.DataDir
	}
	if jc.DBPath != nil && *jc.DBPath != "" {
		cfg.VaultFile = *jc.DBPath
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	if jc.SyncTimeout != nil {
		cfg.SyncTimeout = jc.SyncTimeout.Duration
	}
	if jc.Theme != nil {
		cfg.Theme = *jc.Theme
	}
	if jc.Language != nil {
		cfg.Language = *jc.Language
	}
	if jc.AutoLockTimeout != nil {
		cfg.AutoLockTimeout = time.Duration(*jc.AutoLockTimeout) * time.Minute
	}
}

// Save writes the user preferences to ConfigPath.
func (c *Config) Save() error {
	minutes := uint64(c.AutoLockTimeout / time.Minute)
	jc := JsonConfig{
		LogLevel:        &c.LogLevel,
		SyncTimeout:     &timex.Duration{Duration: c.SyncTimeout},
		Theme:           &c.Theme,
		Language:        &c.Language,
		AutoLockTimeout: &minutes,
	}
	if c.VaultFile != DefaultVaultFile {
		jc.DBPath = &c.VaultFile
	}

	data, err := json.MarshalIndent(jc, "", "  ")
	if err != nil {
		return err
	}
	path := c.ConfigPath()
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}
