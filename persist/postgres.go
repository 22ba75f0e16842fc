package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rushteam/tunekit/core"
)

// DefaultTable 默认表名。
const DefaultTable = "analysis_records"

// Execer 是 Postgres 需要的最小接口，*pgxpool.Pool 实现了它。
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres 把记录写入 analysis_records 表，payload 为 jsonb。
type Postgres struct {
	db    Execer
	table string
}

// NewPostgres 使用已有连接创建，table 为空时使用 DefaultTable。
func NewPostgres(db Execer, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{db: db, table: table}
}

// ConnectPostgres 按 DSN 建立连接池并确保表存在。调用方负责关闭返回的连接池。
func ConnectPostgres(ctx context.Context, dsn, table string) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("persist: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("persist: ping postgres: %w", err)
	}
	p := NewPostgres(pool, table)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return p, pool, nil
}

// EnsureSchema 建表（已存在时不做任何事）。
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	version    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
)`, p.table))
	if err != nil {
		return fmt.Errorf("persist: ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, kind string, record any, meta core.RecordMetadata) error {
	meta, err := normalizeMeta(kind, meta)
	if err != nil {
		return err
	}
	payload, _, err := encode(record, meta)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, kind, version, created_at, payload) VALUES ($1, $2, $3, $4, $5)`, p.table),
		meta.ID, meta.Kind, meta.Version, meta.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("persist: insert %s %s: %w", meta.Kind, meta.ID, err)
	}
	return nil
}
