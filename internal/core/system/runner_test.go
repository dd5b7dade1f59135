package system

import (
	"errors"
	"testing"
)

type recordSystem struct {
	phase Phase
	name  string
	log   *[]string
	hook  func()
}

func (s *recordSystem) Phase() Phase { return s.phase }

func (s *recordSystem) Update(_ int) {
	*s.log = append(*s.log, s.name)
	if s.hook != nil {
		s.hook()
	}
}

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recordSystem{phase: PhaseCulture, name: "culture", log: &log})
	r.Register(&recordSystem{phase: PhaseUnits, name: "units", log: &log})
	r.Register(&recordSystem{phase: PhaseCities, name: "cities", log: &log})
	r.Register(&recordSystem{phase: PhaseTrade, name: "trade", log: &log})
	r.Register(&recordSystem{phase: PhasePlayers, name: "players", log: &log})

	settles := 0
	r.OnSettle(func() { settles++ })

	if err := r.RunTurn(1); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	want := []string{"units", "trade", "cities", "players", "culture"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}
	if settles != len(want) {
		t.Fatalf("settle ran %d times, want %d", settles, len(want))
	}
}

func TestRunnerRejectsReentrantTurn(t *testing.T) {
	var log []string
	r := NewRunner()
	var inner error
	r.Register(&recordSystem{phase: PhaseUnits, name: "units", log: &log, hook: func() {
		inner = r.RunTurn(2)
	}})
	if err := r.RunTurn(1); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !errors.Is(inner, ErrTurnInProgress) {
		t.Fatalf("re-entrant RunTurn err = %v, want ErrTurnInProgress", inner)
	}
	if r.InProgress() {
		t.Fatalf("runner still in progress after turn")
	}
}
