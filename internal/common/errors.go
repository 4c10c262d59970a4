// Package common defines sentinel errors shared by every keevault layer.
// Callers should use errors.Is to match these values; concrete errors wrap
// them with the identifier or context that failed.
package common

import "errors"

var (
	// Lookup errors (entry, group, provider, container, remote object).
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation would break a tree invariant,
	// such as deleting a group that still holds entries.
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// Session errors.
	ErrLocked          = errors.New("vault is locked")
	ErrUnauthenticated = errors.New("not authenticated")

	// Decode / validation errors (container, base32, csv, legacy json, configs).
	ErrInvalidFormat = errors.New("invalid format")
)
