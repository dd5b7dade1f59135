package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
)

// Reply receives the outcome of a queued command.
type Reply func(Result, error)

type queued struct {
	player ecs.Handle
	cmd    Command
	reply  Reply
}

// Dispatcher applies commands for human and AI players alike. Commands that
// arrive while a turn is running wait in the queue until the next Drain.
// Game loop goroutine only.
type Dispatcher struct {
	deps    *Deps
	pending []queued
}

func NewDispatcher(deps *Deps) *Dispatcher {
	return &Dispatcher{deps: deps}
}

func (d *Dispatcher) Deps() *Deps { return d.deps }

// Execute applies one command immediately. Any failure, including a panic
// inside the command, is returned wrapped in ErrRejected.
func (d *Dispatcher) Execute(player ecs.Handle, cmd Command) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.deps.Log.Error("command panic recovered",
				zap.String("command", fmt.Sprintf("%T", cmd)),
				zap.Stringer("player", player),
				zap.Any("panic", rec),
			)
			res, err = Result{}, reject("panic in %T: %v", cmd, rec)
		}
	}()
	if _, err := actingPlayer(d.deps.State, player); err != nil {
		return Result{}, err
	}
	res, err = cmd.apply(d.deps, player)
	if err != nil {
		d.deps.Log.Debug("command rejected",
			zap.String("command", fmt.Sprintf("%T", cmd)),
			zap.Stringer("player", player),
			zap.Error(err),
		)
		return res, rejectErr(err)
	}
	return res, nil
}

// Enqueue defers a command to the next Drain. reply may be nil.
func (d *Dispatcher) Enqueue(player ecs.Handle, cmd Command, reply Reply) {
	d.pending = append(d.pending, queued{player: player, cmd: cmd, reply: reply})
}

func (d *Dispatcher) Pending() int { return len(d.pending) }

// Drain executes queued commands in arrival order, then erases any units
// they killed. Returns the number of commands run.
func (d *Dispatcher) Drain() int {
	n := 0
	for len(d.pending) > 0 {
		batch := d.pending
		d.pending = nil
		for _, q := range batch {
			res, err := d.Execute(q.player, q.cmd)
			if q.reply != nil {
				q.reply(res, err)
			}
			n++
		}
	}
	d.deps.State.DrainKills(d.deps.Ctx)
	return n
}
