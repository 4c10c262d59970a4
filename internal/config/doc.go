// Package config loads runtime configuration and user preferences.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. JSON file: the path given with -c or -config, otherwise config.json in
//     the data directory if it exists. An unreadable or invalid file is
//     reported through Config.LoadErr and otherwise ignored.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   data directory
//	-l string   log level
//	-t int      sync timeout (seconds)
//
// # JSON schema
//
//	{
//	  "data_dir": "/home/me/.config/keevault",
//	  "db_path": "/mnt/usb/vault.kdbx",
//	  "log_level": "info",
//	  "sync_timeout": "30s",
//	  "theme": "default",
//	  "language": "en",
//	  "auto_lock_timeout": 5
//	}
//
// auto_lock_timeout is in minutes; 0 disables auto-lock. sync_timeout takes
// a duration string or integer nanoseconds.
package config
