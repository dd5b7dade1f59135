// Package combat resolves a single attacker-versus-defender engagement.
package combat

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/civforge/server/internal/core/ecs"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/world"
)

const (
	cityDefensePercent     = 25
	fortifyPercent         = 25
	cultureDefensePerLevel = 10
	collateralScale        = 0.3
	collateralHealthFloor  = 0.1
	maxRounds              = 1000
)

var ErrSameOwner = errors.New("cannot attack own unit")

// Side is one participant.
type Side struct {
	Unit     ecs.Handle
	Owner    ecs.Handle
	Kind     *data.UnitKind
	Percent  int     // net percent modifier
	Strength float64 // effective strength
	Health   float64
}

// Round records the health of both sides after one exchange.
type Round struct {
	AttackerWon    bool
	AttackerHealth float64
	DefenderHealth float64
}

// Hit is collateral damage applied to a bystander.
type Hit struct {
	Unit   ecs.Handle
	Damage float64
	Health float64
}

// Combat is one engagement. New computes effective strengths, Simulate runs
// the rounds and Apply writes the outcome back into the state.
type Combat struct {
	state    *world.State
	Attacker Side
	Defender Side
	Pos      world.Pos

	Rounds      []Round
	Finished    bool
	AttackerWon bool
	Collateral  []Hit
}

// New prepares an engagement between two units.
func New(s *world.State, attacker, defender ecs.Handle) (*Combat, error) {
	au, err := s.Units.Lookup(attacker)
	if err != nil {
		return nil, fmt.Errorf("attacker: %w", err)
	}
	du, err := s.Units.Lookup(defender)
	if err != nil {
		return nil, fmt.Errorf("defender: %w", err)
	}
	if au.Owner == du.Owner {
		return nil, ErrSameOwner
	}
	ak := s.Catalog.Units.Get(au.Kind)
	dk := s.Catalog.Units.Get(du.Kind)
	if ak == nil || dk == nil {
		return nil, fmt.Errorf("%w: %s vs %s", world.ErrUnknownKind, au.Kind, du.Kind)
	}

	c := &Combat{
		state: s,
		Pos:   du.Pos,
		Attacker: Side{
			Unit:   attacker,
			Owner:  au.Owner,
			Kind:   ak,
			Health: au.Health,
		},
		Defender: Side{
			Unit:   defender,
			Owner:  du.Owner,
			Kind:   dk,
			Health: du.Health,
		},
	}
	c.Attacker.Percent = categoryPercent(ak, dk, true)
	c.Defender.Percent = categoryPercent(dk, ak, false) + defensePercent(s, du)
	c.Attacker.Strength = effective(ak.Strength, au.Health, c.Attacker.Percent)
	c.Defender.Strength = effective(dk.Strength, du.Health, c.Defender.Percent)
	return c, nil
}

func effective(base, health float64, percent int) float64 {
	mult := 1 + float64(percent)/100
	if mult < 0 {
		mult = 0
	}
	return base * health * mult
}

// categoryPercent sums the unit's matchup bonuses against the opponent's
// category, filtered by role.
func categoryPercent(self, opp *data.UnitKind, attacking bool) int {
	total := 0
	for _, b := range self.Bonuses {
		if b.VsCategory != opp.Category {
			continue
		}
		if attacking && b.OnlyDefense {
			continue
		}
		if !attacking && b.OnlyAttack {
			continue
		}
		total += b.Percent
	}
	return total
}

// defensePercent collects terrain, city, culture and fortification bonuses.
func defensePercent(s *world.State, du *world.Unit) int {
	t := s.Grid.At(du.Pos)
	if t == nil {
		return 0
	}
	total := 0
	if ty := s.Catalog.Terrain.Get(t.Terrain.String()); ty != nil {
		total += ty.DefensePercent
	}
	if t.Hilled {
		if ty := s.Catalog.Terrain.Get("hills"); ty != nil {
			total += ty.DefensePercent
		}
	}
	if t.Forested {
		if ty := s.Catalog.Terrain.Get("forest"); ty != nil {
			total += ty.DefensePercent
		}
	}
	if ch, ok := s.CityAt(du.Pos); ok {
		if city, ok := s.Cities.Get(ch); ok && city.Owner == du.Owner {
			total += cityDefensePercent
			for _, id := range city.Buildings {
				if b := s.Catalog.Buildings.Get(id); b != nil {
					total += b.DefensePercent
				}
			}
			total += cultureDefensePerLevel * city.CultureLevel()
		}
	}
	if du.Fortified {
		total += fortifyPercent
	}
	return total
}

// Odds is the per-round attacker win probability r/(1+r).
func (c *Combat) Odds() float64 {
	if c.Defender.Strength == 0 {
		return 1
	}
	r := c.Attacker.Strength / c.Defender.Strength
	return r / (1 + r)
}

// roundDamage is the health lost by the loser of a round, where r is the
// winner's strength over the loser's.
func roundDamage(r float64) float64 {
	return 20 * (3*r + 1) / (3 + r) / 100
}

// Simulate plays rounds until one side's health reaches zero. It only
// touches the Combat value, never the state.
func (c *Combat) Simulate(rng *rand.Rand) {
	if c.Finished {
		return
	}
	defer func() { c.Finished = true }()

	a, d := &c.Attacker, &c.Defender
	switch {
	case d.Strength == 0:
		d.Health = 0
		c.AttackerWon = true
		return
	case a.Strength == 0:
		a.Health = 0
		return
	}

	r := a.Strength / d.Strength
	p := r / (1 + r)
	toDefender := roundDamage(r)
	toAttacker := roundDamage(1 / r)
	for i := 0; i < maxRounds && a.Health > 0 && d.Health > 0; i++ {
		won := rng.Float64() < p
		if won {
			d.Health -= toDefender
		} else {
			a.Health -= toAttacker
		}
		if a.Health < 0 {
			a.Health = 0
		}
		if d.Health < 0 {
			d.Health = 0
		}
		c.Rounds = append(c.Rounds, Round{won, a.Health, d.Health})
	}
	c.AttackerWon = d.Health <= 0
}

// Apply writes the outcome: health, deferred kill of the loser, collateral
// damage to the rest of the defender's stack, and the attacker advancing
// when the tile is cleared. Must follow Simulate.
func (c *Combat) Apply(ctx *world.Context) {
	s := c.state
	au, aok := s.Units.Get(c.Attacker.Unit)
	du, dok := s.Units.Get(c.Defender.Unit)
	if !aok || !dok {
		return
	}
	attackerHS := c.Attacker.Kind.Strength * au.Health

	au.Health = c.Attacker.Health
	au.Moves = 0
	au.Fortified = false
	du.Health = c.Defender.Health
	ctx.Dirty.Unit(c.Attacker.Unit)
	ctx.Dirty.Unit(c.Defender.Unit)

	c.applyCollateral(ctx, attackerHS)

	if c.AttackerWon {
		s.KillUnit(ctx, c.Defender.Unit)
	} else if c.Attacker.Health <= 0 {
		s.KillUnit(ctx, c.Attacker.Unit)
	}

	if c.AttackerWon && len(s.EnemyUnitsAt(c.Attacker.Owner, c.Pos)) == 0 &&
		s.Passable(s.Domain(au.Kind), c.Attacker.Owner, c.Pos) {
		if ch, ok := s.CityAt(c.Pos); ok {
			if city, ok := s.Cities.Get(ch); ok && city.Owner != c.Attacker.Owner {
				if err := s.CaptureCity(ctx, ch, c.Attacker.Owner); err != nil {
					ctx.Log.Warn("city capture failed", zap.Error(err))
				}
			}
		}
		s.Teleport(ctx, c.Attacker.Unit, c.Pos)
	}

	event.Emit(ctx.Bus, event.CombatResolved{
		Attacker:       c.Attacker.Unit,
		Defender:       c.Defender.Unit,
		AttackerOwner:  c.Attacker.Owner,
		DefenderOwner:  c.Defender.Owner,
		AttackerWon:    c.AttackerWon,
		Rounds:         len(c.Rounds),
		AttackerHealth: c.Attacker.Health,
		DefenderHealth: c.Defender.Health,
		CollateralHits: len(c.Collateral),
		X:              c.Pos.X,
		Y:              c.Pos.Y,
	})
	ctx.Log.Debug("combat resolved",
		zap.Stringer("attacker", c.Attacker.Unit),
		zap.Stringer("defender", c.Defender.Unit),
		zap.Bool("attacker_won", c.AttackerWon),
		zap.Int("rounds", len(c.Rounds)))
}

// applyCollateral damages up to min(stack-1, MaxCollateral) random other
// units in the defender's stack.
func (c *Combat) applyCollateral(ctx *world.Context, attackerHS float64) {
	limit := c.Attacker.Kind.MaxCollateral
	if limit <= 0 {
		return
	}
	s := c.state
	sh, ok := s.StackFor(c.Defender.Owner, c.Pos)
	if !ok {
		return
	}
	st, _ := s.Stacks.Get(sh)
	var others []ecs.Handle
	for _, uh := range st.Units {
		if uh != c.Defender.Unit {
			others = append(others, uh)
		}
	}
	n := len(others)
	if n > limit {
		n = limit
	}
	for _, i := range ctx.Rand.Perm(len(others))[:n] {
		uh := others[i]
		u, ok := s.Units.Get(uh)
		if !ok {
			continue
		}
		tk := s.Catalog.Units.Get(u.Kind)
		if tk == nil {
			continue
		}
		targetHS := tk.Strength * u.Health
		dmg := collateralScale
		if attackerHS+targetHS > 0 {
			dmg = collateralScale * attackerHS / (attackerHS + targetHS)
		}
		h := u.Health - dmg
		if h < collateralHealthFloor {
			h = collateralHealthFloor
		}
		if h > u.Health {
			h = u.Health
		}
		c.Collateral = append(c.Collateral, Hit{Unit: uh, Damage: u.Health - h, Health: h})
		u.Health = h
		ctx.Dirty.Unit(uh)
	}
}

// Resolve prepares, simulates and applies one engagement.
func Resolve(ctx *world.Context, s *world.State, attacker, defender ecs.Handle) (*Combat, error) {
	c, err := New(s, attacker, defender)
	if err != nil {
		return nil, err
	}
	c.Simulate(ctx.Rand)
	c.Apply(ctx)
	return c, nil
}

// BestDefender picks the enemy unit on p with the highest effective
// strength against the attacker.
func BestDefender(s *world.State, attacker ecs.Handle, p world.Pos) (ecs.Handle, bool) {
	au, ok := s.Units.Get(attacker)
	if !ok {
		return ecs.Nil, false
	}
	best, bestStr := ecs.Nil, -1.0
	for _, uh := range s.EnemyUnitsAt(au.Owner, p) {
		c, err := New(s, attacker, uh)
		if err != nil {
			continue
		}
		if c.Defender.Strength > bestStr {
			best, bestStr = uh, c.Defender.Strength
		}
	}
	return best, !best.IsNil()
}
