package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ByLCY/offerpress/offer"
)

// Schema 创建快照表。快照整体存为 JSONB，带索引的列只是便于查询的冗余。
const Schema = `
CREATE TABLE IF NOT EXISTS offer_snapshots (
	id           TEXT PRIMARY KEY,
	offer_number TEXT NOT NULL DEFAULT '',
	owner_id     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	snapshot     JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS offer_snapshots_owner_idx ON offer_snapshots (owner_id, updated_at DESC);
`

const upsertSnapshot = `
INSERT INTO offer_snapshots (id, offer_number, owner_id, status, snapshot)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	offer_number = EXCLUDED.offer_number,
	owner_id     = EXCLUDED.owner_id,
	status       = EXCLUDED.status,
	snapshot     = EXCLUDED.snapshot,
	updated_at   = now()`

// Postgres 将快照存入 offer_snapshots 表。
type Postgres struct {
	pool *pgxpool.Pool
}

var _ SnapshotStore = (*Postgres)(nil)

// ConnectPostgres 创建连接池并检查连通性。
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store/postgres: ping: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate 执行 Schema。
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, id string, snap *offer.Snapshot) (string, error) {
	id, cp := prepare(id, snap)
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("store/postgres: encode: %w", err)
	}
	if _, err := p.pool.Exec(ctx, upsertSnapshot, id, cp.Document.OfferNumber, cp.Document.OwnerID, string(cp.Status), data); err != nil {
		return "", fmt.Errorf("store/postgres: upsert: %w", err)
	}
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*offer.Snapshot, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM offer_snapshots WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get: %w", err)
	}
	return decodeSnapshot(data)
}

func (p *Postgres) MarkViewed(ctx context.Context, id string, at time.Time) (*offer.Snapshot, error) {
	var out *offer.Snapshot
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT snapshot FROM offer_snapshots WHERE id = $1 FOR UPDATE`, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return err
		}
		if err := snap.MarkViewed(at); err != nil {
			return err
		}
		encoded, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE offer_snapshots SET status = $2, snapshot = $3, updated_at = now() WHERE id = $1`,
			id, string(snap.Status), encoded); err != nil {
			return err
		}
		out = snap
		return nil
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, offer.ErrNotSent):
		return nil, err
	default:
		return nil, fmt.Errorf("store/postgres: mark viewed: %w", err)
	}
}

func (p *Postgres) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
