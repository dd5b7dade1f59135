package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civforge/server/internal/config"
)

// ErrNoSave is returned when no save matches a lookup.
var ErrNoSave = errors.New("no save found")

// SaveRecord is one stored save blob. Data holds the Encode output.
type SaveRecord struct {
	ID        uuid.UUID
	Name      string
	Turn      int
	CreatedAt time.Time
	Data      []byte
}

// NewSaveRecord wraps an encoded save.
func NewSaveRecord(name string, turn int, blob []byte) SaveRecord {
	return SaveRecord{
		ID:        uuid.New(),
		Name:      name,
		Turn:      turn,
		CreatedAt: time.Now().UTC(),
		Data:      blob,
	}
}

// SaveStore keeps save blobs. List omits Data.
type SaveStore interface {
	Put(ctx context.Context, rec SaveRecord) error
	Latest(ctx context.Context, name string) (SaveRecord, error)
	List(ctx context.Context, limit int) ([]SaveRecord, error)
	Close() error
}

// OpenStore connects the store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (SaveStore, error) {
	switch cfg.Driver {
	case "postgres", "":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, err
		}
		return NewPGSaveRepo(db), nil
	case "sqlite":
		return OpenSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
