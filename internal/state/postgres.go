package state

import (
	"context"
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresCreateTable = `CREATE TABLE IF NOT EXISTS ` + snapshotTable + ` (
	session_id TEXT NOT NULL,
	full_name TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	originally_active BOOLEAN NOT NULL,
	suspended_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, full_name)
)`

type PostgresStore struct {
	pool *pgxpool.Pool
	qb   squirrel.StatementBuilderType
}

func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnIdleTime = 3 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresCreateTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &PostgresStore{
		pool: pool,
		qb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func (p *PostgresStore) PutRuleSnapshot(ctx context.Context, session string, snap types.ValidationRuleSnapshot) error {
	sql, args, err := p.qb.Insert(snapshotTable).
		Columns(snapshotColumns...).
		Values(session, snap.FullName, snap.ID, snap.EntityType, snap.OriginallyActive, snap.SuspendedAt.UTC()).
		Suffix(onConflictUpsert).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", snap.FullName, err)
	}
	return nil
}

func (p *PostgresStore) DeleteRuleSnapshot(ctx context.Context, session, fullName string) error {
	sql, args, err := p.qb.Delete(snapshotTable).
		Where(squirrel.Eq{"session_id": session, "full_name": fullName}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", fullName, err)
	}
	return nil
}

func (p *PostgresStore) ListRuleSnapshots(ctx context.Context, session string) ([]types.ValidationRuleSnapshot, error) {
	sql, args, err := p.qb.Select(snapshotColumns[1:]...).
		From(snapshotTable).
		Where(squirrel.Eq{"session_id": session}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []types.ValidationRuleSnapshot
	for rows.Next() {
		var snap types.ValidationRuleSnapshot
		if err := rows.Scan(&snap.FullName, &snap.ID, &snap.EntityType, &snap.OriginallyActive, &snap.SuspendedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSnapshots(snaps)
	return snaps, nil
}

func (p *PostgresStore) PendingSessions(ctx context.Context) ([]string, error) {
	sql, args, err := p.qb.Select("DISTINCT session_id").From(snapshotTable).OrderBy("session_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
