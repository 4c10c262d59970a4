package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/filex"
	"github.com/dmitrijs2005/keevault/internal/vault"
	"github.com/tobischo/gokeepasslib/v3"
)

// DatabaseName is written into the KDBX metadata of every saved vault.
const DatabaseName = "keevault"

// signature is the KeePass file magic shared by KDBX 3.1 and 4.
var signature = []byte{0x03, 0xD9, 0xA2, 0x9A, 0x67, 0xFB, 0x4B, 0xB5}

// IsContainer reports whether data starts with the KDBX file signature.
func IsContainer(data []byte) bool {
	return bytes.HasPrefix(data, signature)
}

// Encode writes tree as a KDBX 4 database protected by passphrase. Each call
// produces a fresh random master seed and KDF salt.
func Encode(wr io.Writer, tree *vault.Tree, passphrase []byte) error {
	db := gokeepasslib.NewDatabase(gokeepasslib.WithDatabaseKDBXVersion4())
	db.Content.Meta.DatabaseName = DatabaseName
	db.Credentials = gokeepasslib.NewPasswordCredentials(string(passphrase))

	root, err := buildGroup(tree, tree.Root(), "")
	if err != nil {
		return err
	}
	db.Content.Root = &gokeepasslib.RootData{Groups: []gokeepasslib.Group{root}}

	if err := db.LockProtectedEntries(); err != nil {
		return fmt.Errorf("protect fields: %w", err)
	}
	if err := gokeepasslib.NewEncoder(wr).Encode(db); err != nil {
		return fmt.Errorf("encode container: %w", err)
	}
	return nil
}

func buildGroup(tree *vault.Tree, g vault.PasswordGroup, id string) (gokeepasslib.Group, error) {
	rec := toGroupRecord(g)

	entries, err := tree.EntriesIn(id)
	if err != nil {
		return rec, err
	}
	for _, e := range entries {
		rec.Entries = append(rec.Entries, toRecord(e))
	}

	children, err := tree.Children(id)
	if err != nil {
		return rec, err
	}
	for _, cid := range children {
		child, err := tree.Group(cid)
		if err != nil {
			return rec, err
		}
		sub, err := buildGroup(tree, child, cid)
		if err != nil {
			return rec, err
		}
		rec.Groups = append(rec.Groups, sub)
	}
	return rec, nil
}

// EncodeBytes is Encode into memory.
func EncodeBytes(tree *vault.Tree, passphrase []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, tree, passphrase); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a KDBX database. Input that is not a KDBX file fails with
// common.ErrInvalidFormat; a wrong passphrase or corrupted body fails with
// cryptox.ErrAuthFailed, without telling the two apart.
func Decode(r io.Reader, passphrase []byte) (*vault.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}
	return DecodeBytes(data, passphrase)
}

// DecodeBytes is Decode from memory. A panic inside the KDBX decoder, seen
// on some corrupted bodies, is reported as cryptox.ErrAuthFailed.
func DecodeBytes(data []byte, passphrase []byte) (tree *vault.Tree, err error) {
	if !IsContainer(data) {
		return nil, fmt.Errorf("not a KDBX container: %w", common.ErrInvalidFormat)
	}
	defer func() {
		if recover() != nil {
			tree, err = nil, cryptox.ErrAuthFailed
		}
	}()

	db := gokeepasslib.NewDatabase()
	db.Credentials = gokeepasslib.NewPasswordCredentials(string(passphrase))
	if err := gokeepasslib.NewDecoder(bytes.NewReader(data)).Decode(db); err != nil {
		return nil, cryptox.ErrAuthFailed
	}
	if err := db.UnlockProtectedEntries(); err != nil {
		return nil, cryptox.ErrAuthFailed
	}
	if db.Content == nil || db.Content.Root == nil || len(db.Content.Root.Groups) == 0 {
		return nil, fmt.Errorf("container has no root group: %w", common.ErrInvalidFormat)
	}

	now := vault.NowMillis()
	groups := db.Content.Root.Groups
	tree = vault.NewTreeWithRoot(fromGroupRecord(&groups[0], now))
	if err := fill(tree, &groups[0], "", now); err != nil {
		return nil, err
	}

	// extra top-level groups from other writers become children of the root
	for i := 1; i < len(groups); i++ {
		g := fromGroupRecord(&groups[i], now)
		if err := tree.AddGroup(g); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, common.ErrInvalidFormat)
		}
		if err := fill(tree, &groups[i], g.ID, now); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func fill(tree *vault.Tree, rec *gokeepasslib.Group, groupID string, now int64) error {
	for i := range rec.Entries {
		e := fromRecord(&rec.Entries[i], now)
		e.GroupID = groupID
		if err := tree.AddEntry(e); err != nil {
			return fmt.Errorf("entry %q: %v: %w", e.Title, err, common.ErrInvalidFormat)
		}
	}
	for i := range rec.Groups {
		g := fromGroupRecord(&rec.Groups[i], now)
		g.ParentID = groupID
		if err := tree.AddGroup(g); err != nil {
			return fmt.Errorf("group %q: %v: %w", g.Name, err, common.ErrInvalidFormat)
		}
		if err := fill(tree, &rec.Groups[i], g.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a container file is present at path.
func Exists(path string) bool {
	return filex.Exists(path)
}

// Save encodes tree and atomically replaces the file at path. If anything
// fails the previous file stays as it was.
func Save(path string, tree *vault.Tree, passphrase []byte) error {
	data, err := EncodeBytes(tree, passphrase)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("save container: %w", err)
	}
	return nil
}

// Load reads and decodes the container at path. A missing file is
// common.ErrNotFound.
func Load(path string, passphrase []byte) (*vault.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("container %s: %w", path, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read container: %w", err)
	}
	return DecodeBytes(data, passphrase)
}
