// Package services contains the keevault engine. VaultService owns the
// unlocked vault session and every operation on it; SyncService moves the
// container to and from remote storage on top of it.
package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/container"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/filex"
	"github.com/dmitrijs2005/keevault/internal/legacy"
	"github.com/dmitrijs2005/keevault/internal/logging"
	"github.com/dmitrijs2005/keevault/internal/otp"
	"github.com/dmitrijs2005/keevault/internal/shared"
	"github.com/dmitrijs2005/keevault/internal/vault"
	"github.com/google/uuid"
)

// Values stamped on entries imported from a Chrome password export.
const (
	ChromeTag   = "Chrome"
	ChromeNotes = "Imported from Chrome"
)

// VaultService is the engine API used by the CLI.
//
// Every method is safe for concurrent use; a single lock serializes them.
// Methods that need the decrypted vault return common.ErrLocked while it is
// locked. Mutations are applied to a copy of the tree which replaces the live
// one only after the container has been written, so a failed save leaves both
// disk and memory unchanged.
type VaultService interface {
	Exists() bool
	Create(ctx context.Context, passphrase []byte) error
	Unlock(ctx context.Context, passphrase []byte) (bool, error)
	Verify(ctx context.Context, passphrase []byte) (bool, error)
	Lock(ctx context.Context)
	IsUnlocked() bool

	Entries(ctx context.Context) ([]vault.PasswordEntry, error)
	Entry(ctx context.Context, id string) (vault.PasswordEntry, error)
	AddEntry(ctx context.Context, e vault.PasswordEntry) (vault.PasswordEntry, error)
	UpdateEntry(ctx context.Context, e vault.PasswordEntry) (vault.PasswordEntry, error)
	DeleteEntry(ctx context.Context, id string) error

	Groups(ctx context.Context) ([]vault.PasswordGroup, error)
	AddGroup(ctx context.Context, g vault.PasswordGroup) (vault.PasswordGroup, error)
	UpdateGroup(ctx context.Context, g vault.PasswordGroup) error
	DeleteGroup(ctx context.Context, id string) error
	Tree(ctx context.Context) (*vault.Tree, error)

	ChangePassphrase(ctx context.Context, oldPass, newPass []byte) error
	Export(ctx context.Context) (string, error)
	ImportChromeCSV(ctx context.Context, data []byte) (int, error)
	ImportEncrypted(ctx context.Context, b64 string, passphrase []byte) (int, error)
	GenerateTOTP(ctx context.Context, id string) (string, error)

	Snapshot(ctx context.Context) ([]byte, error)
	ReplaceContainer(ctx context.Context, data []byte) error
	DeriveKey(ctx context.Context, salt []byte) ([]byte, error)
}

// session is the state of an unlocked vault.
type session struct {
	tree       *vault.Tree
	passphrase []byte
}

func (s *session) wipe() {
	s.tree.Wipe()
	cryptox.Wipe(s.passphrase)
}

type vaultService struct {
	mu         sync.Mutex
	sess       *session
	vaultPath  string
	legacyPath string
	migrator   *legacy.Migrator
	log        logging.Logger
	now        func() time.Time
}

// NewVaultService returns a locked VaultService for the container at
// vaultPath. legacyPath is the pre-container data file migrated on first
// unlock; it may be empty.
func NewVaultService(vaultPath, legacyPath string, log logging.Logger) VaultService {
	return &vaultService{
		vaultPath:  vaultPath,
		legacyPath: legacyPath,
		migrator:   legacy.NewMigrator(log),
		log:        log,
		now:        time.Now,
	}
}

// Exists reports whether a vault is set up, either as a container or as a
// legacy file awaiting migration.
func (s *vaultService) Exists() bool {
	return container.Exists(s.vaultPath) || (s.legacyPath != "" && filex.Exists(s.legacyPath))
}

func checkPassphrase(p []byte) error {
	if len(p) == 0 {
		return fmt.Errorf("passphrase must not be empty: %w", common.ErrInvalidFormat)
	}
	return nil
}

// Create writes a new empty vault and leaves it unlocked.
func (s *vaultService) Create(ctx context.Context, passphrase []byte) error {
	if err := checkPassphrase(passphrase); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists() {
		return fmt.Errorf("vault %s: %w", s.vaultPath, common.ErrAlreadyExists)
	}

	tree := vault.NewTree()
	if err := container.Save(s.vaultPath, tree, passphrase); err != nil {
		return err
	}
	s.replaceSession(&session{tree: tree, passphrase: shared.CloneBytes(passphrase)})
	s.log.Info(ctx, "vault created", "path", s.vaultPath)
	return nil
}

// isWrongPassphrase reports errors that only mean "this passphrase does not
// open the vault".
func isWrongPassphrase(err error) bool {
	return errors.Is(err, cryptox.ErrAuthFailed) || errors.Is(err, common.ErrUnauthenticated)
}

// Unlock opens the vault, migrating a legacy file first when no container
// exists yet. A wrong passphrase is (false, nil).
func (s *vaultService) Unlock(ctx context.Context, passphrase []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.legacyPath != "" && legacy.NeedsMigration(s.vaultPath, s.legacyPath) {
		report, err := s.migrator.Migrate(ctx, s.legacyPath, s.vaultPath, passphrase)
		if isWrongPassphrase(err) {
			s.log.Warn(ctx, "legacy migration rejected passphrase")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("migrate legacy data: %w", err)
		}
		s.log.Info(ctx, "legacy data migrated",
			"entries", report.Entries, "groups", report.Groups,
			"skipped", report.Skipped, "backup", report.BackupPath)
	}

	tree, err := container.Load(s.vaultPath, passphrase)
	if isWrongPassphrase(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.replaceSession(&session{tree: tree, passphrase: shared.CloneBytes(passphrase)})
	s.log.Info(ctx, "vault unlocked", "entries", tree.CountEntries(), "groups", tree.CountGroups())
	return true, nil
}

// Verify checks passphrase without changing the lock state.
func (s *vaultService) Verify(ctx context.Context, passphrase []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		return subtle.ConstantTimeCompare(s.sess.passphrase, passphrase) == 1, nil
	}

	tree, err := container.Load(s.vaultPath, passphrase)
	if isWrongPassphrase(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tree.Wipe()
	return true, nil
}

// Lock drops the decrypted tree and the passphrase.
func (s *vaultService) Lock(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		s.replaceSession(nil)
		s.log.Info(ctx, "vault locked")
	}
}

func (s *vaultService) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

// replaceSession wipes the current session, if any, and installs next.
// Callers hold s.mu.
func (s *vaultService) replaceSession(next *session) {
	if s.sess != nil {
		s.sess.wipe()
	}
	s.sess = next
}

// read runs fn against the live tree under the lock.
func (s *vaultService) read(fn func(t *vault.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return common.ErrLocked
	}
	return fn(s.sess.tree)
}

// mutate applies fn to a copy of the tree, saves it and swaps it in.
func (s *vaultService) mutate(ctx context.Context, op string, fn func(t *vault.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return common.ErrLocked
	}

	next := s.sess.tree.Clone()
	if err := fn(next); err != nil {
		next.Wipe()
		return err
	}
	if err := container.Save(s.vaultPath, next, s.sess.passphrase); err != nil {
		next.Wipe()
		s.log.Error(ctx, "vault save failed", "op", op, "error", err)
		return err
	}

	prev := s.sess.tree
	s.sess.tree = next
	prev.Wipe()
	s.log.Debug(ctx, "vault saved", "op", op)
	return nil
}

func (s *vaultService) Entries(ctx context.Context) ([]vault.PasswordEntry, error) {
	var out []vault.PasswordEntry
	err := s.read(func(t *vault.Tree) error {
		out = t.Entries()
		return nil
	})
	return out, err
}

func (s *vaultService) Entry(ctx context.Context, id string) (vault.PasswordEntry, error) {
	var out vault.PasswordEntry
	err := s.read(func(t *vault.Tree) (err error) {
		out, err = t.Entry(id)
		return err
	})
	return out, err
}

// AddEntry stores e, assigning an id and timestamps when missing, and
// returns the stored entry.
func (s *vaultService) AddEntry(ctx context.Context, e vault.PasswordEntry) (vault.PasswordEntry, error) {
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.now()
	if e.CreatedAt == 0 {
		e.CreatedAt = now.UnixMilli()
	}
	e.Touch(now)

	err := s.mutate(ctx, "add entry", func(t *vault.Tree) error {
		return t.AddEntry(e)
	})
	if err != nil {
		return vault.PasswordEntry{}, err
	}
	return e, nil
}

// UpdateEntry replaces the entry with e's id, moving it when e.GroupID
// changed. The previous username, password and notes are appended to the
// history when any of them changes. CreatedAt and the history itself are
// always taken from the stored entry.
func (s *vaultService) UpdateEntry(ctx context.Context, e vault.PasswordEntry) (vault.PasswordEntry, error) {
	e = e.Clone()
	err := s.mutate(ctx, "update entry", func(t *vault.Tree) error {
		old, err := t.Entry(e.ID)
		if err != nil {
			return err
		}
		now := s.now()
		e.CreatedAt = old.CreatedAt
		e.History = old.History
		if old.Password != e.Password || old.Username != e.Username || old.Notes != e.Notes {
			e.History = append(e.History, vault.HistoryItem{
				Timestamp: now.UnixMilli(),
				Password:  old.Password,
				Username:  old.Username,
				Notes:     old.Notes,
			})
		}
		e.Touch(now)
		return t.UpdateEntry(e)
	})
	if err != nil {
		return vault.PasswordEntry{}, err
	}
	return e, nil
}

func (s *vaultService) DeleteEntry(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete entry", func(t *vault.Tree) error {
		return t.RemoveEntry(id)
	})
}

func (s *vaultService) Groups(ctx context.Context) ([]vault.PasswordGroup, error) {
	var out []vault.PasswordGroup
	err := s.read(func(t *vault.Tree) error {
		out = t.Groups()
		return nil
	})
	return out, err
}

func (s *vaultService) AddGroup(ctx context.Context, g vault.PasswordGroup) (vault.PasswordGroup, error) {
	if strings.TrimSpace(g.Name) == "" {
		return vault.PasswordGroup{}, fmt.Errorf("group name must not be empty: %w", common.ErrInvalidFormat)
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = s.now().UnixMilli()
	}
	if g.Icon == "" {
		g.Icon = vault.DefaultGroupIcon
	}

	err := s.mutate(ctx, "add group", func(t *vault.Tree) error {
		return t.AddGroup(g)
	})
	if err != nil {
		return vault.PasswordGroup{}, err
	}
	return g, nil
}

func (s *vaultService) UpdateGroup(ctx context.Context, g vault.PasswordGroup) error {
	return s.mutate(ctx, "update group", func(t *vault.Tree) error {
		return t.UpdateGroup(g)
	})
}

// DeleteGroup removes a group and its empty subgroups. It fails with
// common.ErrConflict while any entry lives below the group.
func (s *vaultService) DeleteGroup(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete group", func(t *vault.Tree) error {
		return t.RemoveGroup(id)
	})
}

// Tree returns a private copy of the whole hierarchy.
func (s *vaultService) Tree(ctx context.Context) (*vault.Tree, error) {
	var out *vault.Tree
	err := s.read(func(t *vault.Tree) error {
		out = t.Clone()
		return nil
	})
	return out, err
}

// ChangePassphrase re-encrypts the vault under newPass. oldPass must match
// the passphrase the vault was unlocked with.
func (s *vaultService) ChangePassphrase(ctx context.Context, oldPass, newPass []byte) error {
	if err := checkPassphrase(newPass); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return common.ErrLocked
	}
	if subtle.ConstantTimeCompare(s.sess.passphrase, oldPass) != 1 {
		return fmt.Errorf("old passphrase: %w", common.ErrUnauthenticated)
	}

	if err := container.Save(s.vaultPath, s.sess.tree, newPass); err != nil {
		return err
	}
	cryptox.Wipe(s.sess.passphrase)
	s.sess.passphrase = shared.CloneBytes(newPass)
	s.log.Info(ctx, "passphrase changed")
	return nil
}

// Export returns the container file encoded as standard base64.
func (s *vaultService) Export(ctx context.Context) (string, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// chromeColumns are the columns of a Chrome password export that are
// imported; any others are ignored.
var chromeColumns = []string{"name", "url", "username", "password"}

// ImportChromeCSV adds one root entry per row of a Chrome password export.
// Rows are matched to columns by the header line. A malformed row fails the
// whole import with an error naming the row.
func (s *vaultService) ImportChromeCSV(ctx context.Context, data []byte) (int, error) {
	entries, err := parseChromeCSV(data, s.now())
	if err != nil {
		return 0, err
	}

	err = s.mutate(ctx, "import chrome csv", func(t *vault.Tree) error {
		for _, e := range entries {
			if err := t.AddEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "chrome passwords imported", "count", len(entries))
	return len(entries), nil
}

func parseChromeCSV(data []byte, now time.Time) ([]vault.PasswordEntry, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %v: %w", err, common.ErrInvalidFormat)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, len(chromeColumns))
	for i, name := range chromeColumns {
		c, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("csv header: missing column %q: %w", name, common.ErrInvalidFormat)
		}
		cols[i] = c
	}

	ts := now.UnixMilli()
	var out []vault.PasswordEntry
	for row := 1; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %v: %w", row, err, common.ErrInvalidFormat)
		}
		field := func(i int) (string, error) {
			if cols[i] >= len(rec) {
				return "", fmt.Errorf("row %d: missing %s: %w", row, chromeColumns[i], common.ErrInvalidFormat)
			}
			return rec[cols[i]], nil
		}

		var vals [4]string
		for i := range vals {
			if vals[i], err = field(i); err != nil {
				return nil, err
			}
		}

		e := vault.PasswordEntry{
			ID:        uuid.NewString(),
			Title:     vals[0],
			Username:  vals[2],
			Password:  vals[3],
			Notes:     ChromeNotes,
			Tags:      []string{ChromeTag},
			SortOrder: vault.Int64(int64(len(out))),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if vals[1] != "" {
			e.URLs = []string{vals[1]}
		}
		out = append(out, e)
	}
	return out, nil
}

// ImportEncrypted merges entries from another container, given as base64,
// into the root group. Entries whose id already exists are skipped. It
// returns the number of entries added.
func (s *vaultService) ImportEncrypted(ctx context.Context, b64 string, passphrase []byte) (int, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return 0, fmt.Errorf("import data is not base64: %w", common.ErrInvalidFormat)
	}
	foreign, err := container.DecodeBytes(data, passphrase)
	if err != nil {
		return 0, fmt.Errorf("open imported container: %w", err)
	}
	defer foreign.Wipe()

	var added int
	err = s.mutate(ctx, "import container", func(t *vault.Tree) error {
		added = 0
		for _, e := range foreign.Entries() {
			if _, err := t.Entry(e.ID); err == nil {
				continue
			}
			e.GroupID = ""
			e.SortOrder = vault.Int64(int64(added))
			if err := t.AddEntry(e); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "container imported", "added", added, "total", foreign.CountEntries())
	return added, nil
}

// GenerateTOTP returns the current one-time code of the entry.
func (s *vaultService) GenerateTOTP(ctx context.Context, id string) (string, error) {
	e, err := s.Entry(ctx, id)
	if err != nil {
		return "", err
	}
	if e.TOTPSecret == "" {
		return "", fmt.Errorf("entry %q has no OTP secret: %w", e.Title, common.ErrNotFound)
	}
	return otp.GenerateAt(e.TOTPSecret, s.now())
}

// Snapshot returns the current container bytes.
func (s *vaultService) Snapshot(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, common.ErrLocked
	}
	data, err := os.ReadFile(s.vaultPath)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}
	return data, nil
}

// ReplaceContainer installs data as the vault file, typically after a
// download. data must open with the current passphrase.
func (s *vaultService) ReplaceContainer(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return common.ErrLocked
	}

	tree, err := container.DecodeBytes(data, s.sess.passphrase)
	if err != nil {
		return fmt.Errorf("replacement container: %w", err)
	}
	if err := filex.WriteFileAtomic(s.vaultPath, data, 0o600); err != nil {
		tree.Wipe()
		return fmt.Errorf("write container: %w", err)
	}

	prev := s.sess.tree
	s.sess.tree = tree
	prev.Wipe()
	s.log.Info(ctx, "container replaced", "entries", tree.CountEntries())
	return nil
}

// DeriveKey derives a key from the session passphrase and salt.
func (s *vaultService) DeriveKey(ctx context.Context, salt []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, common.ErrLocked
	}
	return cryptox.DeriveKey(s.sess.passphrase, salt), nil
}
