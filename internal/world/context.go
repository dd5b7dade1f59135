package world

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/event"
)

// Context is passed to every mutating operation in place of global state.
type Context struct {
	Rand  *rand.Rand
	Dirty *Dirty
	Bus   *event.Bus
	Log   *zap.Logger
}

// NewContext seeds a context. A nil logger is replaced by a no-op one.
func NewContext(seed int64, bus *event.Bus, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		Rand:  rand.New(rand.NewSource(seed)),
		Dirty: NewDirty(),
		Bus:   bus,
		Log:   log,
	}
}
