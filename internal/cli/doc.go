// Package cli is the interactive keevault shell.
//
// It wires configuration, the settings database, the vault and sync
// services, and runs a read-eval-print loop on stdin. Commands are thin:
// they prompt for input, call a service and print the result. Business rules
// live in internal/services.
//
// Typical session:
//
//	init | unlock       create or open the vault
//	add, list, show     work with entries
//	sync-config, upload keep a remote copy
//	lock, exit
//
// The vault locks itself after the configured idle time when
// auto_lock_timeout is set.
package cli
