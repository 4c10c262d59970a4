package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/syncx"
)

const defaultObjectPath = "keevault/vault.kdbx"

// providerArg picks the provider named in args, falling back to the only
// registered one.
func (a *App) providerArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if names := a.sync.Providers(); len(names) == 1 {
		return names[0]
	}
	return syncx.ObjectStorageName
}

// SyncConfig prompts for and stores the configuration of a provider.
// "sync-config -d <provider>" deletes it instead.
func (a *App) SyncConfig(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "-d" {
		provider := a.providerArg(args[1:])
		if err := a.sync.DeleteConfig(ctx, provider); err != nil {
			return err
		}
		a.printf("Sync config for %s removed\n", provider)
		return nil
	}

	if !a.vault.IsUnlocked() {
		return common.ErrLocked
	}
	provider := a.providerArg(args)

	var current syncx.ObjectStorageConfig
	if c, err := a.sync.Config(ctx, provider); err == nil {
		_ = json.Unmarshal([]byte(c.Config), &current)
	}

	var config string
	if provider == syncx.ObjectStorageName {
		oc, err := a.promptObjectStorage(current)
		if err != nil {
			return err
		}
		b, err := json.Marshal(oc)
		if err != nil {
			return err
		}
		config = string(b)
	} else {
		raw, err := GetMultiline(a.reader, "Provider config (JSON)", a.out)
		if err != nil {
			return err
		}
		config = raw
	}

	enabled, err := GetConfirm(a.reader, "Enable sync with this provider?", a.out)
	if err != nil {
		return err
	}
	if err := a.sync.SaveConfig(ctx, provider, config, enabled); err != nil {
		return err
	}
	a.printf("Sync config for %s saved\n", provider)
	return nil
}

func (a *App) promptObjectStorage(cur syncx.ObjectStorageConfig) (*syncx.ObjectStorageConfig, error) {
	c := cur
	if c.Provider == "" {
		c.Provider = syncx.FamilyS3
	}
	if c.Path == "" {
		c.Path = defaultObjectPath
	}

	fields := []struct {
		prompt string
		value  *string
	}{
		{"Storage (aliyun, tencent, s3)", &c.Provider},
		{"Endpoint", &c.Endpoint},
		{"Region", &c.Region},
		{"Bucket", &c.Bucket},
		{"Access key id", &c.AccessKeyID},
		{"Object path", &c.Path},
	}
	for _, f := range fields {
		v, err := GetWithDefault(a.reader, f.prompt, *f.value, a.out)
		if err != nil {
			return nil, err
		}
		*f.value = v
	}

	prompt := "Access key secret"
	if c.AccessKeySecret != "" {
		prompt += " (empty to keep)"
	}
	secret, err := GetPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	if len(secret) > 0 {
		c.AccessKeySecret = string(secret)
	}
	wipe(secret)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *App) SyncTest(ctx context.Context, args []string) error {
	provider := a.providerArg(args)
	if err := a.sync.TestConnection(ctx, provider); err != nil {
		return err
	}
	a.printf("Connection to %s OK\n", provider)
	return nil
}

func (a *App) Upload(ctx context.Context, args []string) error {
	provider := a.providerArg(args)
	res, err := a.sync.Upload(ctx, provider)
	if err != nil {
		return err
	}
	a.printf("%s (version %d)\n", res.Message, res.Version)
	return nil
}

// Download replaces the local vault with the remote copy after confirmation.
func (a *App) Download(ctx context.Context, args []string) error {
	provider := a.providerArg(args)
	if !a.vault.IsUnlocked() {
		return common.ErrLocked
	}
	ok, err := GetConfirm(a.reader, "Replace the local vault with the remote copy?", a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.sync.Download(ctx, provider); err != nil {
		return err
	}
	a.printf("Vault downloaded from %s\n", provider)
	return nil
}

func (a *App) CheckUpdate(ctx context.Context, args []string) error {
	provider := a.providerArg(args)
	newer, err := a.sync.CheckUpdate(ctx, provider)
	if err != nil {
		return err
	}
	if newer {
		a.printf("A newer copy is available at %s\n", provider)
	} else {
		a.printf("Local vault is up to date\n")
	}
	return nil
}

// SyncStatus prints the last sync and the configured providers.
func (a *App) SyncStatus(ctx context.Context) error {
	st, err := a.sync.Status(ctx)
	if err != nil {
		return err
	}
	if st.LastSyncAt == 0 {
		a.printf("Never synced\n")
	} else {
		a.printf("Last sync: %s via %s (version %d)\n",
			time.Unix(st.LastSyncAt, 0).Local().Format(time.DateTime), st.LastProvider, st.LocalVersion)
	}

	if !a.vault.IsUnlocked() {
		return nil
	}
	configs, err := a.sync.Configs(ctx)
	if err != nil {
		return err
	}
	for _, c := range configs {
		state := "disabled"
		if c.Enabled {
			state = "enabled"
		}
		a.printf("  %s: %s, updated %s\n", c.Provider, state, formatMillis(c.UpdatedAt))
	}
	return nil
}
