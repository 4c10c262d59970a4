package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/keevault/internal/common"
)

// Init creates a new vault and leaves it unlocked.
func (a *App) Init(ctx context.Context) error {
	if a.vault.Exists() {
		a.printf("A vault already exists at %s, use 'unlock'\n", a.config.VaultPath())
		return nil
	}
	pass, err := GetNewPassword(a.out, "Master passphrase")
	if err != nil {
		return err
	}
	defer wipe(pass)

	if err := a.vault.Create(ctx, pass); err != nil {
		return err
	}
	a.printf("Vault created at %s\n", a.config.VaultPath())
	return nil
}

// Unlock opens the vault, trying a remembered passphrase before prompting.
// A legacy data file is migrated on the way.
func (a *App) Unlock(ctx context.Context) error {
	if a.vault.IsUnlocked() {
		a.printf("Already unlocked\n")
		return nil
	}
	if !a.vault.Exists() {
		a.printf("No vault found, run 'init' to create one\n")
		return nil
	}

	if pass, err := a.keychain.Load(a.config.VaultPath()); err == nil {
		ok, err := a.vault.Unlock(ctx, pass)
		wipe(pass)
		if err != nil {
			return err
		}
		if ok {
			a.printf("Unlocked with remembered passphrase\n")
			a.notifyUpdates(ctx)
			return nil
		}
		a.log.Warn(ctx, "remembered passphrase rejected, forgetting it")
		_ = a.keychain.Forget(a.config.VaultPath())
	} else if !errors.Is(err, common.ErrNotFound) {
		a.log.Warn(ctx, "keychain unavailable", "error", err)
	}

	pass, err := GetPassword(a.out, "Master passphrase")
	if err != nil {
		return err
	}
	defer wipe(pass)

	ok, err := a.vault.Unlock(ctx, pass)
	if err != nil {
		return err
	}
	if !ok {
		a.printf("Wrong passphrase\n")
		return nil
	}
	a.printf("Unlocked\n")
	a.notifyUpdates(ctx)
	return nil
}

// notifyUpdates tells the user about enabled sync targets holding a newer
// container. Failures are only logged.
func (a *App) notifyUpdates(ctx context.Context) {
	configs, err := a.sync.Configs(ctx)
	if err != nil {
		a.log.Warn(ctx, "reading sync configs", "error", err)
		return
	}
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		newer, err := a.sync.CheckUpdate(ctx, c.Provider)
		if err != nil {
			a.log.Debug(ctx, "update check failed", "provider", c.Provider, "error", err)
			continue
		}
		if newer {
			a.printf("A newer copy is available at %s, run 'download %s'\n", c.Provider, c.Provider)
		}
	}
}

func (a *App) Lock(ctx context.Context) error {
	a.vault.Lock(ctx)
	a.printf("Locked\n")
	return nil
}

// ChangePassphrase replaces the master passphrase, re-encrypts stored sync
// configs and refreshes a remembered passphrase.
func (a *App) ChangePassphrase(ctx context.Context) error {
	if !a.vault.IsUnlocked() {
		return common.ErrLocked
	}
	oldPass, err := GetPassword(a.out, "Current passphrase")
	if err != nil {
		return err
	}
	defer wipe(oldPass)
	newPass, err := GetNewPassword(a.out, "New passphrase")
	if err != nil {
		return err
	}
	defer wipe(newPass)

	if err := a.sync.Rekey(ctx, oldPass, newPass); err != nil {
		return err
	}

	if a.keychain.Has(a.config.VaultPath()) {
		if err := a.keychain.Save(a.config.VaultPath(), newPass); err != nil {
			a.log.Warn(ctx, "updating keychain", "error", err)
		}
	}
	a.printf("Passphrase changed\n")
	return nil
}

// Remember stores the passphrase in the OS keychain after checking it
// against the vault.
func (a *App) Remember(ctx context.Context) error {
	if !a.vault.IsUnlocked() {
		return common.ErrLocked
	}
	pass, err := GetPassword(a.out, "Master passphrase")
	if err != nil {
		return err
	}
	defer wipe(pass)

	ok, err := a.vault.Verify(ctx, pass)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthenticated
	}
	if err := a.keychain.Save(a.config.VaultPath(), pass); err != nil {
		return err
	}
	a.printf("Passphrase stored in the system keychain\n")
	return nil
}

func (a *App) Forget(ctx context.Context) error {
	if err := a.keychain.Forget(a.config.VaultPath()); err != nil {
		return err
	}
	a.printf("Remembered passphrase removed\n")
	return nil
}
