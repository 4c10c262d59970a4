// Package syncconfig persists sync provider configurations. The provider
// config JSON is stored only as AES-GCM ciphertext; encryption happens in the
// service layer.
package syncconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keevault/internal/common"
	"github.com/dmitrijs2005/keevault/internal/dbx"
)

// Record is one row of sync_configs.
type Record struct {
	ProviderName string
	Enabled      bool
	Ciphertext   []byte
	Nonce        []byte
	UpdatedAt    int64
}

type Repository interface {
	Upsert(ctx context.Context, r *Record) error
	// Get returns common.ErrNotFound when no row exists.
	Get(ctx context.Context, provider string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, provider string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_configs (provider_name, enabled, ciphertext, nonce, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider_name) DO UPDATE SET
			enabled    = excluded.enabled,
			ciphertext = excluded.ciphertext,
			nonce      = excluded.nonce,
			updated_at = excluded.updated_at
	`, rec.ProviderName, rec.Enabled, rec.Ciphertext, rec.Nonce, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert sync config %q: %w", rec.ProviderName, err)
	}
	return nil
}

const selectColumns = `SELECT provider_name, enabled, ciphertext, nonce, updated_at FROM sync_configs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	if err := s.Scan(&rec.ProviderName, &rec.Enabled, &rec.Ciphertext, &rec.Nonce, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, provider string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE provider_name = ?`, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync config %q: %w", provider, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sync config %q: %w", provider, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY provider_name`)
	if err != nil {
		return nil, fmt.Errorf("list sync configs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync config: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, provider string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_configs WHERE provider_name = ?`, provider); err != nil {
		return fmt.Errorf("delete sync config %q: %w", provider, err)
	}
	return nil
}
