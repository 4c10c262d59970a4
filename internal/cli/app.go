package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/keevault/internal/config"
	"github.com/dmitrijs2005/keevault/internal/dbx"
	"github.com/dmitrijs2005/keevault/internal/filex"
	"github.com/dmitrijs2005/keevault/internal/keychain"
	"github.com/dmitrijs2005/keevault/internal/logging"
	"github.com/dmitrijs2005/keevault/internal/services"
	"github.com/dmitrijs2005/keevault/internal/syncx"
)

// passphraseCache is the keychain as seen by the shell.
type passphraseCache interface {
	Save(vaultPath string, passphrase []byte) error
	Load(vaultPath string) ([]byte, error)
	Forget(vaultPath string) error
	Has(vaultPath string) bool
}

type App struct {
	config   *config.Config
	vault    services.VaultService
	sync     services.SyncService
	keychain passphraseCache
	db       *sql.DB
	log      logging.Logger
	reader   *bufio.Reader
	out      io.Writer

	mu           sync.Mutex
	lastActivity time.Time
	watching     bool
	now          func() time.Time
}

// NewApp prepares the data directory and settings database and builds the
// services. The vault starts locked.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dir

	db, err := dbx.Open(ctx, c.SettingsPath(), log)
	if err != nil {
		log.Error(ctx, "error initializing settings database", "error", err)
		return nil, err
	}

	vs := services.NewVaultService(c.VaultPath(), c.LegacyPath(), log)
	providers := syncx.NewDefaultManager(&http.Client{Timeout: c.SyncTimeout})
	ss := services.NewSyncService(db, vs, providers, c.SyncTimeout, log)

	return &App{
		config:   c,
		vault:    vs,
		sync:     ss,
		keychain: keychain.New(),
		db:       db,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}, nil
}

// Run starts the auto-lock watcher and the REPL and blocks until the user
// exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close(ctx)

	a.printf("Welcome to keevault (type 'help' for commands)\n")
	if a.config.LoadErr != nil {
		a.printf("Config ignored: %v\n", a.config.LoadErr)
	}
	a.touch()
	a.ensureWatcher(ctx)
	runREPL(ctx, a, a.status, a.reader)
}

// Close locks the vault and releases the settings database.
func (a *App) Close(ctx context.Context) {
	a.vault.Lock(ctx)
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) isUnlocked() bool {
	return a.vault.IsUnlocked()
}

func (a *App) status() string {
	if a.vault.IsUnlocked() {
		return "unlocked"
	}
	return "locked"
}

// touch records user activity for auto-lock.
func (a *App) touch() {
	a.mu.Lock()
	a.lastActivity = a.now()
	a.mu.Unlock()
}

func (a *App) idleFor() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now().Sub(a.lastActivity)
}

// autoLock locks the vault when it has been idle longer than the configured
// timeout. It reports whether it locked.
func (a *App) autoLock(ctx context.Context) bool {
	timeout := a.config.AutoLockTimeout
	if timeout <= 0 || !a.vault.IsUnlocked() || a.idleFor() < timeout {
		return false
	}
	a.vault.Lock(ctx)
	a.log.Info(ctx, "vault auto-locked", "idle", timeout)
	return true
}

// ensureWatcher starts the auto-lock watcher once auto-lock is enabled.
func (a *App) ensureWatcher(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watching || a.config.AutoLockTimeout <= 0 {
		return
	}
	a.watching = true
	go a.StartAutoLockWatcher(ctx, time.Second)
}

// StartAutoLockWatcher checks for idleness every interval until ctx ends.
func (a *App) StartAutoLockWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.autoLock(ctx) {
				a.printf("\nVault locked after %s of inactivity\n", a.config.AutoLockTimeout)
			}
		case <-ctx.Done():
			return
		}
	}
}
