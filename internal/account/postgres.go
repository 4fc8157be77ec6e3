package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS reserve_accounts (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS reserve_balances (
    account_id TEXT NOT NULL REFERENCES reserve_accounts (id) ON DELETE CASCADE,
    world      TEXT NOT NULL,
    currency   TEXT NOT NULL,
    amount     NUMERIC NOT NULL CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (account_id, world, currency)
);`

// PostgresPersister writes account snapshots to PostgreSQL.
type PostgresPersister struct {
	db *pgxpool.Pool
}

// NewPostgresPersister constructs a Postgres-backed durability hook.
func NewPostgresPersister(db *pgxpool.Pool) *PostgresPersister {
	return &PostgresPersister{db: db}
}

// EnsureSchema creates the snapshot tables when missing.
func (p *PostgresPersister) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Persist applies the snapshot in a single transaction.
func (p *PostgresPersister) Persist(ctx context.Context, snap Snapshot) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if snap.Deleted {
		if _, err := tx.Exec(ctx, `DELETE FROM reserve_accounts WHERE id = $1`, snap.Account.String()); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if snap.Created {
		if _, err := tx.Exec(ctx, `INSERT INTO reserve_accounts (id) VALUES ($1)
        ON CONFLICT (id) DO NOTHING`, snap.Account.String()); err != nil {
			return err
		}
	}

	for key, amount := range snap.Balances {
		_, err := tx.Exec(ctx, `INSERT INTO reserve_balances (account_id, world, currency, amount)
        VALUES ($1, $2, $3, $4::text::numeric)
        ON CONFLICT (account_id, world, currency)
        DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
			snap.Account.String(), key.World, key.Currency, amount.String())
		if err != nil {
			return fmt.Errorf("upsert balance %s/%s: %w", key.World, key.Currency, err)
		}
	}

	return tx.Commit(ctx)
}
