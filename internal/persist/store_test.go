package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/data/datatest"
)

func openMemory(t *testing.T) *SQLiteSaveRepo {
	t.Helper()
	repo, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteLatest(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	if _, err := repo.Latest(ctx, "game"); !errors.Is(err, ErrNoSave) {
		t.Fatalf("empty store: err = %v, want ErrNoSave", err)
	}

	for _, turn := range []int{3, 9, 5} {
		rec := NewSaveRecord("game", turn, []byte{byte(turn)})
		if err := repo.Put(ctx, rec); err != nil {
			t.Fatalf("Put turn %d: %v", turn, err)
		}
	}
	if err := repo.Put(ctx, NewSaveRecord("other", 50, []byte{50})); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Latest(ctx, "game")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Turn != 9 || len(got.Data) != 1 || got.Data[0] != 9 {
		t.Fatalf("Latest = turn %d data %v, want turn 9", got.Turn, got.Data)
	}

	list, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("List returned %d records, want 4", len(list))
	}
	for _, rec := range list {
		if rec.Data != nil {
			t.Fatalf("List returned data for %s turn %d", rec.Name, rec.Turn)
		}
	}
}

func TestSaverRoundTrip(t *testing.T) {
	repo := openMemory(t)
	saver := NewSaver(repo, 4, zap.NewNop())
	saver.Start()

	blob, err := Encode(sampleGame(t), "auto")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !saver.Submit(NewSaveRecord("auto", 17, blob)) {
		t.Fatal("Submit dropped the record")
	}
	saver.Close()

	rec, err := repo.Latest(context.Background(), "auto")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if time.Since(rec.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v", rec.CreatedAt)
	}
	s, hdr, err := Decode(rec.Data, datatest.Catalog())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hdr.Turn != 17 || s.Cities.Len() != 2 || s.Units.Len() != 5 {
		t.Fatalf("loaded turn %d with %d cities and %d units", hdr.Turn, s.Cities.Len(), s.Units.Len())
	}
}

func TestSaverSubmitFull(t *testing.T) {
	saver := NewSaver(openMemory(t), 1, zap.NewNop())
	// Not started: the single slot fills and the next submit drops.
	if !saver.Submit(NewSaveRecord("x", 1, []byte{1})) {
		t.Fatal("first Submit dropped")
	}
	if saver.Submit(NewSaveRecord("x", 2, []byte{2})) {
		t.Fatal("second Submit accepted on a full queue")
	}
}
