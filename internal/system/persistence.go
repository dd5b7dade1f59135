package system

import (
	"go.uber.org/zap"

	"github.com/civforge/server/internal/persist"
	"github.com/civforge/server/internal/world"
)

// Autosave encodes the game every N turns and hands the blob to the saver
// goroutine. Encoding happens on the game loop; only the write is async.
type Autosave struct {
	state *world.State
	saver *persist.Saver
	every int // turns between saves, 0 disables periodic saves
	name  string
	log   *zap.Logger
}

func NewAutosave(state *world.State, saver *persist.Saver, everyTurns int, name string, log *zap.Logger) *Autosave {
	return &Autosave{
		state: state,
		saver: saver,
		every: everyTurns,
		name:  name,
		log:   log,
	}
}

// AfterTurn saves when the new turn number is a multiple of the interval.
func (a *Autosave) AfterTurn() {
	if a.every <= 0 || a.state.Turn%a.every != 0 {
		return
	}
	rec, err := a.record()
	if err != nil {
		a.log.Error("autosave encode failed", zap.Int("turn", a.state.Turn), zap.Error(err))
		return
	}
	a.saver.Submit(rec)
}

// SaveNow encodes and writes synchronously, for graceful shutdown.
func (a *Autosave) SaveNow() error {
	rec, err := a.record()
	if err != nil {
		return err
	}
	return a.saver.SaveNow(rec)
}

func (a *Autosave) record() (persist.SaveRecord, error) {
	blob, err := persist.Encode(a.state, a.name)
	if err != nil {
		return persist.SaveRecord{}, err
	}
	return persist.NewSaveRecord(a.name, a.state.Turn, blob), nil
}
