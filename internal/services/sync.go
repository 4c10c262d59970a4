package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/cryptox"
	"github.com/dmitrijs2005/keevault/internal/dbx"
	"github.com/dmitrijs2005/keevault/internal/logging"
	"github.com/dmitrijs2005/keevault/internal/repositories/metadata"
	"github.com/dmitrijs2005/keevault/internal/repositories/syncconfig"
	"github.com/dmitrijs2005/keevault/internal/syncx"
)

// SyncStatus is what the settings database knows about past syncs.
type SyncStatus struct {
	LocalVersion int64
	LastSyncAt   int64
	LastProvider string
}

// SyncService stores provider configurations and moves the container
// between the vault and a provider.
//
// Configurations are encrypted with a key derived from the vault passphrase
// and a per-install salt, so every method needs an unlocked vault. Network
// calls never run while the vault lock is held.
type SyncService interface {
	SaveConfig(ctx context.Context, provider, config string, enabled bool) error
	Config(ctx context.Context, provider string) (*syncx.SyncConfig, error)
	Configs(ctx context.Context) ([]*syncx.SyncConfig, error)
	DeleteConfig(ctx context.Context, provider string) error
	Providers() []string
	Rekey(ctx context.Context, oldPass, newPass []byte) error

	TestConnection(ctx context.Context, provider string) error
	Upload(ctx context.Context, provider string) (*syncx.Result, error)
	Download(ctx context.Context, provider string) error
	CheckUpdate(ctx context.Context, provider string) (bool, error)
	Status(ctx context.Context) (*SyncStatus, error)
}

// sealedConfig is the plaintext of an encrypted sync_configs row.
type sealedConfig struct {
	Config string `json:"config"`
}

// containerSource is the part of VaultService sync needs.
type containerSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
	ReplaceContainer(ctx context.Context, data []byte) error
	DeriveKey(ctx context.Context, salt []byte) ([]byte, error)
	ChangePassphrase(ctx context.Context, oldPass, newPass []byte) error
}

type syncService struct {
	db        *sql.DB
	vault     containerSource
	providers *syncx.Manager
	timeout   time.Duration
	log       logging.Logger
	now       func() time.Time
	repoFor   func(db dbx.DBTX) syncconfig.Repository
}

// NewSyncService wires sync on top of vault. timeout bounds every provider
// call; zero disables it.
func NewSyncService(db *sql.DB, vault containerSource, providers *syncx.Manager, timeout time.Duration, log logging.Logger) SyncService {
	return &syncService{
		db:        db,
		vault:     vault,
		providers: providers,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
		repoFor:   newConfigRepo,
	}
}

func (s *syncService) metadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

func newConfigRepo(db dbx.DBTX) syncconfig.Repository {
	return syncconfig.NewSQLiteRepository(db)
}

func (s *syncService) configRepo() syncconfig.Repository {
	return s.repoFor(s.db)
}

// installSalt returns the salt for config encryption, creating it on first
// use.
func (s *syncService) installSalt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		existing, err := repo.Get(ctx, metadata.KeyInstallSalt)
		if err != nil {
			return err
		}
		if existing != nil {
			salt = existing
			return nil
		}
		if salt, err = cryptox.NewSalt(); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyInstallSalt, salt)
	})
	if err != nil {
		return nil, fmt.Errorf("install salt: %w", err)
	}
	return salt, nil
}

func (s *syncService) configKey(ctx context.Context) ([]byte, error) {
	salt, err := s.installSalt(ctx)
	if err != nil {
		return nil, err
	}
	return s.vault.DeriveKey(ctx, salt)
}

func (s *syncService) Providers() []string {
	return s.providers.Names()
}

// SaveConfig encrypts and stores config for provider.
func (s *syncService) SaveConfig(ctx context.Context, provider, config string, enabled bool) error {
	if _, err := s.providers.Get(provider); err != nil {
		return err
	}
	key, err := s.configKey(ctx)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(key)

	ct, nonce, err := cryptox.EncryptJSON(sealedConfig{Config: config}, key)
	if err != nil {
		return fmt.Errorf("encrypt sync config: %w", err)
	}
	rec := &syncconfig.Record{
		ProviderName: provider,
		Enabled:      enabled,
		Ciphertext:   ct,
		Nonce:        nonce,
		UpdatedAt:    s.now().UnixMilli(),
	}
	if err := s.configRepo().Upsert(ctx, rec); err != nil {
		return err
	}
	s.log.Info(ctx, "sync config saved", "provider", provider, "enabled", enabled)
	return nil
}

func (s *syncService) decryptRecord(rec *syncconfig.Record, key []byte) (*syncx.SyncConfig, error) {
	var sealed sealedConfig
	if err := cryptox.DecryptJSON(rec.Ciphertext, rec.Nonce, key, &sealed); err != nil {
		return nil, fmt.Errorf("sync config %q: %w", rec.ProviderName, err)
	}
	return &syncx.SyncConfig{
		Provider:  rec.ProviderName,
		Enabled:   rec.Enabled,
		Config:    sealed.Config,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Config returns the decrypted configuration of provider, or
// common.ErrNotFound.
func (s *syncService) Config(ctx context.Context, provider string) (*syncx.SyncConfig, error) {
	rec, err := s.configRepo().Get(ctx, provider)
	if err != nil {
		return nil, err
	}
	key, err := s.configKey(ctx)
	if err != nil {
		return nil, err
	}
	defer cryptox.Wipe(key)
	return s.decryptRecord(rec, key)
}

func (s *syncService) Configs(ctx context.Context) ([]*syncx.SyncConfig, error) {
	recs, err := s.configRepo().List(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	key, err := s.configKey(ctx)
	if err != nil {
		return nil, err
	}
	defer cryptox.Wipe(key)

	out := make([]*syncx.SyncConfig, 0, len(recs))
	for _, rec := range recs {
		c, err := s.decryptRecord(rec, key)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *syncService) DeleteConfig(ctx context.Context, provider string) error {
	return s.configRepo().Delete(ctx, provider)
}

// Rekey replaces the vault passphrase and re-encrypts every stored config
// under the key derived from newPass. The new ciphertexts are built before
// the passphrase changes; if writing them fails the old passphrase is put
// back so configs and vault stay under the same secret.
func (s *syncService) Rekey(ctx context.Context, oldPass, newPass []byte) error {
	configs, err := s.Configs(ctx)
	if err != nil {
		return err
	}

	var recs []*syncconfig.Record
	if len(configs) > 0 {
		salt, err := s.installSalt(ctx)
		if err != nil {
			return err
		}
		key := cryptox.DeriveKey(newPass, salt)
		defer cryptox.Wipe(key)
		for _, c := range configs {
			ct, nonce, err := cryptox.EncryptJSON(sealedConfig{Config: c.Config}, key)
			if err != nil {
				return fmt.Errorf("encrypt sync config: %w", err)
			}
			recs = append(recs, &syncconfig.Record{
				ProviderName: c.Provider,
				Enabled:      c.Enabled,
				Ciphertext:   ct,
				Nonce:        nonce,
				UpdatedAt:    c.UpdatedAt,
			})
		}
	}

	if err := s.vault.ChangePassphrase(ctx, oldPass, newPass); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repoFor(tx)
		for _, rec := range recs {
			if err := repo.Upsert(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	s.log.Error(ctx, "rewriting sync configs, restoring passphrase", "error", err)
	if rerr := s.vault.ChangePassphrase(ctx, newPass, oldPass); rerr != nil {
		return errors.Join(err, fmt.Errorf("restore passphrase: %w", rerr))
	}
	return err
}

// target resolves provider and its enabled configuration.
func (s *syncService) target(ctx context.Context, provider string) (syncx.Provider, string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, "", err
	}
	c, err := s.Config(ctx, provider)
	if err != nil {
		return nil, "", err
	}
	if !c.Enabled {
		return nil, "", fmt.Errorf("sync with %q is disabled: %w", provider, common.ErrConflict)
	}
	return p, c.Config, nil
}

func (s *syncService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *syncService) TestConnection(ctx context.Context, provider string) error {
	p, cfg, err := s.target(ctx, provider)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return p.TestConnection(ctx, cfg)
}

// Upload sends the current container and records the resulting version as
// the local version.
func (s *syncService) Upload(ctx context.Context, provider string) (*syncx.Result, error) {
	p, cfg, err := s.target(ctx, provider)
	if err != nil {
		return nil, err
	}
	data, err := s.vault.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	netCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := p.Upload(netCtx, data, cfg)
	if err != nil {
		s.log.Error(ctx, "upload failed", "provider", provider, "error", err)
		return nil, err
	}

	if err := s.recordSync(ctx, provider, res.Version); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "container uploaded", "provider", provider, "version", res.Version, "bytes", len(data))
	return res, nil
}

// Download fetches the remote container and installs it. The remote copy
// must open with the current passphrase.
func (s *syncService) Download(ctx context.Context, provider string) error {
	p, cfg, err := s.target(ctx, provider)
	if err != nil {
		return err
	}

	netCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	version, ok, err := p.RemoteVersion(netCtx, cfg)
	if err != nil {
		return err
	}
	if !ok {
		return syncx.ErrRemoteNotFound
	}
	data, err := p.Download(netCtx, cfg)
	if err != nil {
		return err
	}

	if err := s.vault.ReplaceContainer(ctx, data); err != nil {
		return err
	}
	if err := s.recordSync(ctx, provider, version); err != nil {
		return err
	}
	s.log.Info(ctx, "container downloaded", "provider", provider, "version", version)
	return nil
}

// CheckUpdate reports whether the remote copy is newer than the last version
// this install uploaded or downloaded.
func (s *syncService) CheckUpdate(ctx context.Context, provider string) (bool, error) {
	p, cfg, err := s.target(ctx, provider)
	if err != nil {
		return false, err
	}
	local, _, err := metadata.GetInt64(ctx, s.metadataRepo(), metadata.KeyLocalVersion)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return p.CheckUpdate(ctx, local, cfg)
}

func (s *syncService) recordSync(ctx context.Context, provider string, version int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := metadata.SetInt64(ctx, repo, metadata.KeyLocalVersion, version); err != nil {
			return err
		}
		if err := metadata.SetInt64(ctx, repo, metadata.KeyLastSyncAt, s.now().Unix()); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyLastProvider, []byte(provider))
	})
}

func (s *syncService) Status(ctx context.Context) (*SyncStatus, error) {
	repo := s.metadataRepo()
	st := &SyncStatus{}
	var err error
	if st.LocalVersion, _, err = metadata.GetInt64(ctx, repo, metadata.KeyLocalVersion); err != nil {
		return nil, err
	}
	if st.LastSyncAt, _, err = metadata.GetInt64(ctx, repo, metadata.KeyLastSyncAt); err != nil {
		return nil, err
	}
	last, err := repo.Get(ctx, metadata.KeyLastProvider)
	if err != nil {
		return nil, err
	}
	st.LastProvider = string(last)
	return st, nil
}

// IsRemoteMissing reports whether err means nothing has been uploaded yet.
func IsRemoteMissing(err error) bool {
	return errors.Is(err, syncx.ErrRemoteNotFound)
}
