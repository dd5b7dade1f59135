package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteSaveRepo stores saves in a local SQLite file, for single-host games.
type SQLiteSaveRepo struct {
	conn *sqlx.DB
}

type saveRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Turn      int    `db:"turn"`
	CreatedAt int64  `db:"created_at"` // unix milliseconds
	Data      []byte `db:"data"`
}

func (r saveRow) record() (SaveRecord, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return SaveRecord{}, fmt.Errorf("save id %q: %w", r.ID, err)
	}
	return SaveRecord{
		ID:        id,
		Name:      r.Name,
		Turn:      r.Turn,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		Data:      r.Data,
	}, nil
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteSaveRepo, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	repo := &SQLiteSaveRepo{conn: conn}
	if err := repo.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

func (r *SQLiteSaveRepo) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		turn INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saves_name_turn ON saves(name, turn);
	`
	_, err := r.conn.Exec(schema)
	return err
}

func (r *SQLiteSaveRepo) Put(ctx context.Context, rec SaveRecord) error {
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO saves (id, name, turn, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Name, rec.Turn, rec.CreatedAt.UnixMilli(), rec.Data,
	)
	if err != nil {
		return fmt.Errorf("insert save %s: %w", rec.Name, err)
	}
	return nil
}

func (r *SQLiteSaveRepo) Latest(ctx context.Context, name string) (SaveRecord, error) {
	var row saveRow
	err := r.conn.GetContext(ctx, &row,
		`SELECT id, name, turn, created_at, data FROM saves
		 WHERE name = ? ORDER BY turn DESC, created_at DESC LIMIT 1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, fmt.Errorf("%w: %s", ErrNoSave, name)
	}
	if err != nil {
		return SaveRecord{}, fmt.Errorf("load save %s: %w", name, err)
	}
	return row.record()
}

func (r *SQLiteSaveRepo) List(ctx context.Context, limit int) ([]SaveRecord, error) {
	var rows []saveRow
	if err := r.conn.SelectContext(ctx, &rows,
		`SELECT id, name, turn, created_at FROM saves ORDER BY created_at DESC, turn DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	out := make([]SaveRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SQLiteSaveRepo) Close() error {
	return r.conn.Close()
}
