package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Store backed by PostgreSQL.
func NewPostgres(ctx context.Context, dsn string) (*postgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	st := &postgresStore{db: db}
	if err := st.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (p *postgresStore) init(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (id TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return err
	}
	for _, m := range migrations {
		applied, err := p.isApplied(ctx, m.ID)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := p.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *postgresStore) Close(ctx context.Context) error {
	return p.db.Close()
}

func (p *postgresStore) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func handleSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *postgresStore) SaveSnapshot(ctx context.Context, snap types.Snapshot) (string, error) {
	snap.Timestamp = stamp(snap.Timestamp)
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, captured_at, workspace_count, template_count, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, id, snap.Timestamp, len(snap.Workspaces), len(snap.Templates), payload)
	if err != nil {
		return "", handleSQLError(err)
	}
	return id, nil
}

func (p *postgresStore) LatestSnapshot(ctx context.Context) (types.Snapshot, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM snapshots ORDER BY captured_at DESC LIMIT 1`).Scan(&raw)
	if err != nil {
		return types.Snapshot{}, handleSQLError(err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

func (p *postgresStore) GetSnapshot(ctx context.Context, id string) (types.Snapshot, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		return types.Snapshot{}, handleSQLError(err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

func (p *postgresStore) ListSnapshots(ctx context.Context, limit int) ([]types.SnapshotMeta, error) {
	query := `SELECT id, captured_at, workspace_count, template_count FROM snapshots ORDER BY captured_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.SnapshotMeta
	for rows.Next() {
		var m types.SnapshotMeta
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.WorkspaceCount, &m.TemplateCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *postgresStore) UpsertParticipants(ctx context.Context, ps []types.Participant) error {
	for _, part := range ps {
		if part.Handle == "" {
			continue
		}
		payload, err := json.Marshal(part)
		if err != nil {
			return err
		}
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO participants (handle, payload, updated_at)
			VALUES (LOWER($1), $2, $3)
			ON CONFLICT (handle) DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at
		`, part.Handle, payload, time.Now().UTC())
		if err != nil {
			return handleSQLError(err)
		}
	}
	return nil
}

func (p *postgresStore) ListParticipants(ctx context.Context) ([]types.Participant, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT payload FROM participants ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Participant
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var part types.Participant
		if err := json.Unmarshal(raw, &part); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, rows.Err()
}

func (p *postgresStore) GetParticipant(ctx context.Context, handle string) (types.Participant, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM participants WHERE handle=LOWER($1)`, handle).Scan(&raw)
	if err != nil {
		return types.Participant{}, handleSQLError(err)
	}
	var part types.Participant
	if err := json.Unmarshal(raw, &part); err != nil {
		return types.Participant{}, err
	}
	return part, nil
}

type migration struct {
	ID  string
	SQL string
}

var migrations = []migration{
	{
		ID: "0001_init",
		SQL: `
CREATE TABLE IF NOT EXISTS snapshots (
	id UUID PRIMARY KEY,
	captured_at TIMESTAMPTZ NOT NULL,
	workspace_count INT NOT NULL,
	template_count INT NOT NULL,
	payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_captured_at_idx ON snapshots (captured_at DESC);
CREATE TABLE IF NOT EXISTS participants (
	handle TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`,
	},
}

func (p *postgresStore) isApplied(ctx context.Context, id string) (bool, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE id=$1`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *postgresStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES ($1, $2)`, m.ID, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s: %w", m.ID, err)
	}
	return tx.Commit()
}
