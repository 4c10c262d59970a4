// Package legacy converts the JSON storage used before the KDBX container
// (data.json) into a container file.
//
// A legacy file is either plaintext JSON ({"groups": [...], "entries": [...]}
// or a bare array of entries), or an envelope
//
//	{"master_password_hash": "$argon2id$...", "encrypted_data": "<b64>", "nonce": "<b64>"}
//
// whose ciphertext decrypts to one of the plaintext shapes. Migration runs
// once: when the container is missing and the legacy file is present. It
// either completes (container written, legacy file renamed to *.backup) or
// leaves everything as it was.
package legacy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/container"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/filex"
	"github.com/dmitrijs2005/keevault/internal/logging"
	"github.com/dmitrijs2005/keevault/internal/vault"
	"github.com/google/uuid"
)

// BackupSuffix is appended to the legacy file name after a migration.
const BackupSuffix = ".backup"

// StorageContainer is the encrypted legacy envelope.
type StorageContainer struct {
	MasterPasswordHash string `json:"master_password_hash,omitempty"`
	EncryptedData      string `json:"encrypted_data"`
	Nonce              string `json:"nonce"`
}

type legacyGroup struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Icon      *string `json:"icon"`
	Color     *string `json:"color"`
	SortOrder *int64  `json:"sort_order"`
	CreatedAt *int64  `json:"created_at"`
}

type legacyEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	URL        []string `json:"url"`
	Notes      *string  `json:"notes"`
	TOTPSecret *string  `json:"totp_secret"`
	Tags       []string `json:"tags"`
	GroupID    *string  `json:"group_id"`
	SortOrder  *int64   `json:"sort_order"`
	CreatedAt  *int64   `json:"created_at"`
	UpdatedAt  *int64   `json:"updated_at"`
}

type payload struct {
	Groups  []json.RawMessage `json:"groups"`
	Entries []json.RawMessage `json:"entries"`
}

// Report summarises a migration.
type Report struct {
	Entries    int
	Groups     int
	Skipped    int
	BackupPath string
}

type Migrator struct {
	log logging.Logger
	now func() time.Time
}

func NewMigrator(log logging.Logger) *Migrator {
	return &Migrator{log: log, now: time.Now}
}

// NeedsMigration reports whether the container is absent while a legacy file
// exists.
func NeedsMigration(containerPath, legacyPath string) bool {
	return !filex.Exists(containerPath) && filex.Exists(legacyPath)
}

// Migrate converts legacyPath into a new container at containerPath keyed by
// passphrase, then renames the legacy file. A wrong passphrase yields
// common.ErrUnauthenticated (hash mismatch) or cryptox.ErrAuthFailed
// (ciphertext does not open).
func (m *Migrator) Migrate(ctx context.Context, legacyPath, containerPath string, passphrase []byte) (*Report, error) {
	if container.Exists(containerPath) {
		return nil, fmt.Errorf("container %s: %w", containerPath, common.ErrAlreadyExists)
	}

	raw, err := os.ReadFile(legacyPath)
	if err != nil {
		return nil, fmt.Errorf("read legacy file: %w", err)
	}

	plain, err := m.open(raw, passphrase)
	if err != nil {
		return nil, err
	}
	defer cryptox.Wipe(plain)

	p, err := parsePayload(plain)
	if err != nil {
		return nil, err
	}

	tree, report := m.build(ctx, p)

	if err := container.Save(containerPath, tree, passphrase); err != nil {
		return nil, fmt.Errorf("write container: %w", err)
	}

	backup, err := retire(legacyPath, m.now())
	if err != nil {
		return nil, fmt.Errorf("rename legacy file: %w", err)
	}
	report.BackupPath = backup

	m.log.Info(ctx, "legacy data migrated",
		"entries", report.Entries, "groups", report.Groups, "skipped", report.Skipped, "backup", backup)
	return report, nil
}

// open returns the plaintext JSON of a legacy file, decrypting the envelope
// when there is one.
func (m *Migrator) open(raw, passphrase []byte) ([]byte, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		// a bare array is plaintext; anything else is garbage
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("legacy file is not JSON: %w", common.ErrInvalidFormat)
		}
		return raw, nil
	}

	var encrypted string
	if v, ok := top["encrypted_data"]; !ok || json.Unmarshal(v, &encrypted) != nil {
		return raw, nil
	}

	var env StorageContainer
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("legacy envelope: %w", common.ErrInvalidFormat)
	}
	return Decrypt(env, passphrase)
}

// Decrypt verifies the envelope's password hash (when present) and returns
// the decrypted JSON.
func Decrypt(env StorageContainer, passphrase []byte) ([]byte, error) {
	if env.MasterPasswordHash != "" {
		ok, err := cryptox.VerifyPassword(passphrase, env.MasterPasswordHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.ErrUnauthenticated
		}
	}

	if env.Nonce == "" {
		return nil, fmt.Errorf("missing nonce in encrypted data: %w", common.ErrInvalidFormat)
	}
	ct, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("encrypted data encoding: %w", common.ErrInvalidFormat)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce encoding: %w", common.ErrInvalidFormat)
	}
	if len(nonce) != cryptox.NonceSize {
		return nil, fmt.Errorf("invalid nonce size %d: %w", len(nonce), common.ErrInvalidFormat)
	}

	key := cryptox.DeriveLegacyKey(passphrase)
	defer cryptox.Wipe(key)

	return cryptox.Decrypt(ct, nonce, key)
}

// Encrypt builds an envelope for plaintext. Only tests and tooling that
// produce legacy fixtures need it.
func Encrypt(plaintext, passphrase []byte) (StorageContainer, error) {
	hash, err := cryptox.HashPassword(passphrase, cryptox.DefaultHashParams)
	if err != nil {
		return StorageContainer{}, err
	}

	key := cryptox.DeriveLegacyKey(passphrase)
	defer cryptox.Wipe(key)

	ct, nonce, err := cryptox.Encrypt(plaintext, key)
	if err != nil {
		return StorageContainer{}, err
	}
	return StorageContainer{
		MasterPasswordHash: hash,
		EncryptedData:      base64.StdEncoding.EncodeToString(ct),
		Nonce:              base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// parsePayload accepts {groups, entries} first and a bare entry array second.
func parsePayload(data []byte) (*payload, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err == nil {
		return &p, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err == nil {
		return &payload{Entries: entries}, nil
	}

	return nil, fmt.Errorf("legacy data has neither groups/entries nor an entry list: %w", common.ErrInvalidFormat)
}

func (m *Migrator) build(ctx context.Context, p *payload) (*vault.Tree, *Report) {
	now := m.now().UnixMilli()
	tree := vault.NewTree()
	report := &Report{}

	for i, raw := range p.Groups {
		var lg legacyGroup
		if err := json.Unmarshal(raw, &lg); err != nil || lg.ID == "" {
			m.log.Warn(ctx, "skipping unreadable legacy group", "index", i)
			report.Skipped++
			continue
		}
		g := vault.PasswordGroup{
			ID:        lg.ID,
			Name:      lg.Name,
			Icon:      deref(lg.Icon, vault.DefaultGroupIcon),
			Color:     deref(lg.Color, ""),
			SortOrder: deref(lg.SortOrder, 0),
			CreatedAt: deref(lg.CreatedAt, now),
		}
		if err := tree.AddGroup(g); err != nil {
			m.log.Warn(ctx, "skipping legacy group", "index", i, "error", err)
			report.Skipped++
			continue
		}
		report.Groups++
	}

	for i, raw := range p.Entries {
		var le legacyEntry
		if err := json.Unmarshal(raw, &le); err != nil {
			m.log.Warn(ctx, "skipping unreadable legacy entry", "index", i)
			report.Skipped++
			continue
		}
		if le.ID == "" {
			le.ID = uuid.NewString()
		}

		e := vault.PasswordEntry{
			ID:         le.ID,
			Title:      le.Title,
			Username:   le.Username,
			Password:   le.Password,
			URLs:       le.URL,
			Notes:      deref(le.Notes, ""),
			TOTPSecret: deref(le.TOTPSecret, ""),
			Tags:       le.Tags,
			SortOrder:  le.SortOrder,
			CreatedAt:  deref(le.CreatedAt, now),
		}
		e.UpdatedAt = max(deref(le.UpdatedAt, now), e.CreatedAt)

		// unknown or missing group: root
		if gid := deref(le.GroupID, ""); gid != "" {
			if _, err := tree.Group(gid); err == nil {
				e.GroupID = gid
			}
		}

		if err := tree.AddEntry(e); err != nil {
			m.log.Warn(ctx, "skipping legacy entry", "index", i, "error", err)
			report.Skipped++
			continue
		}
		report.Entries++
	}
	return tree, report
}

// retire renames the legacy file to <path>.backup, or to a timestamped
// variant when an older backup already exists.
func retire(path string, now time.Time) (string, error) {
	backup := path + BackupSuffix
	err := filex.RenameNoClobber(path, backup)
	if errors.Is(err, os.ErrExist) {
		backup = path + BackupSuffix + "." + strconv.FormatInt(now.Unix(), 10)
		err = filex.RenameNoClobber(path, backup)
	}
	if err != nil {
		return "", err
	}
	return backup, nil
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
