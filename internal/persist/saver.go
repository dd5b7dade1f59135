package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const saveTimeout = 30 * time.Second

// Saver writes save records on its own goroutine so the game loop never
// waits on the database. Jobs arrive over a bounded channel.
type Saver struct {
	store SaveStore
	jobs  chan SaveRecord
	log   *zap.Logger
	wg    sync.WaitGroup
	once  sync.Once
}

func NewSaver(store SaveStore, queue int, log *zap.Logger) *Saver {
	if queue < 1 {
		queue = 1
	}
	return &Saver{
		store: store,
		jobs:  make(chan SaveRecord, queue),
		log:   log,
	}
}

// Start launches the writer goroutine.
func (s *Saver) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Saver) run() {
	defer s.wg.Done()
	for rec := range s.jobs {
		if err := s.write(rec); err != nil {
			s.log.Error("autosave failed", zap.String("name", rec.Name), zap.Int("turn", rec.Turn), zap.Error(err))
		}
	}
}

func (s *Saver) write(rec SaveRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	start := time.Now()
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	s.log.Info("game saved",
		zap.String("name", rec.Name),
		zap.Int("turn", rec.Turn),
		zap.Int("bytes", len(rec.Data)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Submit queues a record without blocking. It reports false when the queue
// is full and the record was dropped.
func (s *Saver) Submit(rec SaveRecord) bool {
	select {
	case s.jobs <- rec:
		return true
	default:
		s.log.Warn("save queue full, autosave dropped", zap.Int("turn", rec.Turn))
		return false
	}
}

// SaveNow writes a record synchronously. Used at shutdown.
func (s *Saver) SaveNow(rec SaveRecord) error {
	return s.write(rec)
}

// Close drains queued records and stops the writer. The store stays open.
func (s *Saver) Close() {
	s.once.Do(func() {
		close(s.jobs)
		s.wg.Wait()
	})
}
