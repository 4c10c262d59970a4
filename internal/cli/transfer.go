package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/keevault/internal/filex"
)

// Export writes the container as base64 text to a file.
func (a *App) Export(ctx context.Context, args []string) error {
	path, err := oneArg(args, "export <file>")
	if err != nil {
		return err
	}
	text, err := a.vault.Export(ctx)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, []byte(text+"\n"), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.printf("Vault exported to %s\n", path)
	return nil
}

// ImportChrome adds the rows of a Chrome password CSV export.
func (a *App) ImportChrome(ctx context.Context, args []string) error {
	path, err := oneArg(args, "import-chrome <file>")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	n, err := a.vault.ImportChromeCSV(ctx, data)
	if err != nil {
		return err
	}
	a.printf("Imported %d entries\n", n)
	return nil
}

// ImportEncrypted merges the entries of a file produced by 'export'. The
// file's passphrase may differ from the open vault's.
func (a *App) ImportEncrypted(ctx context.Context, args []string) error {
	path, err := oneArg(args, "import <file>")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pass, err := GetPassword(a.out, "Passphrase of the exported vault")
	if err != nil {
		return err
	}
	defer wipe(pass)

	n, err := a.vault.ImportEncrypted(ctx, strings.TrimSpace(string(data)), pass)
	if err != nil {
		return err
	}
	a.printf("Imported %d entries\n", n)
	return nil
}
