package persist

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/civforge/server/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	log.Info("postgres connected", zap.Int32("max_conns", poolCfg.MaxConns))
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations applies all pending schema migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// PGSaveRepo stores saves in Postgres.
type PGSaveRepo struct {
	db *DB
}

func NewPGSaveRepo(db *DB) *PGSaveRepo {
	return &PGSaveRepo{db: db}
}

func (r *PGSaveRepo) Put(ctx context.Context, rec SaveRecord) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO saves (id, name, turn, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID.String(), rec.Name, rec.Turn, rec.CreatedAt, rec.Data,
	)
	if err != nil {
		return fmt.Errorf("insert save %s: %w", rec.Name, err)
	}
	return nil
}

func (r *PGSaveRepo) Latest(ctx context.Context, name string) (SaveRecord, error) {
	var (
		rec SaveRecord
		id  string
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id::text, name, turn, created_at, data FROM saves
		 WHERE name = $1 ORDER BY turn DESC, created_at DESC LIMIT 1`, name,
	).Scan(&id, &rec.Name, &rec.Turn, &rec.CreatedAt, &rec.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrNoSave, name)
	}
	if err != nil {
		return rec, fmt.Errorf("load save %s: %w", name, err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("save id %q: %w", id, err)
	}
	return rec, nil
}

func (r *PGSaveRepo) List(ctx context.Context, limit int) ([]SaveRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text, name, turn, created_at FROM saves ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var (
			rec SaveRecord
			id  string
		)
		if err := rows.Scan(&id, &rec.Name, &rec.Turn, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan save: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("save id %q: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PGSaveRepo) Close() error {
	r.db.Close()
	return nil
}
