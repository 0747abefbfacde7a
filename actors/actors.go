// Package actors holds the agents that move through a grid world: a Learner driven by a
// value table and a Scripted opponent driven by a fixed heuristic.
package actors

import (
	"math/rand"
	"time"

	. "gridlearn/grid_world"
	"gridlearn/reinforcement"
)

// MinLength is the shortest a body may become.
const MinLength = 1

// Context is what an actor sees when deciding: the world and its own discretized state.
type Context struct {
	World *GridWorld
	State State
}

// Actor is the capability shared by both variants.
type Actor interface {
	// DecideAction chooses the next move. It does not move the actor.
	DecideAction(ctx Context) Action
	// Advance prepends newHead, dropping the tail unless growth is pending.
	Advance(newHead Position)
	// Shrink truncates the body to max(1, floor(len*(1-fraction))) head-most segments.
	Shrink(fraction float64)
	Grow()
	Reset(start Position)
	Body() []Position
	Head() Position
	Len() int
}

// Segments is an actor's body: an ordered, head-first sequence of positions with a
// pending-growth flag. Both actor variants embed it.
type Segments struct {
	segments []Position
	grow     bool
}

// NewSegments returns a body of length one at start.
func NewSegments(start Position) Segments {
	return Segments{segments: []Position{start}}
}

// Body returns a copy of the segments, head first.
func (b *Segments) Body() []Position {
	out := make([]Position, len(b.segments))
	copy(out, b.segments)
	return out
}

func (b *Segments) Head() Position { return b.segments[0] }
func (b *Segments) Len() int       { return len(b.segments) }

// Grow marks the body to keep its tail on the next Advance.
func (b *Segments) Grow() { b.grow = true }

// Advance moves the body forward by one segment.
func (b *Segments) Advance(newHead Position) {
	if b.grow {
		b.segments = append([]Position{newHead}, b.segments...)
		b.grow = false
		return
	}
	copy(b.segments[1:], b.segments[:len(b.segments)-1])
	b.segments[0] = newHead
}

// Shrink cuts the body down by fraction, never below MinLength.
// For any fraction in (0,1] a body longer than MinLength strictly shortens.
func (b *Segments) Shrink(fraction float64) {
	if fraction <= 0 {
		return
	}
	keep := max(MinLength, int(float64(len(b.segments))*(1-fraction)))
	if keep < len(b.segments) {
		b.segments = b.segments[:keep]
	}
}

// Reset returns the body to length one at start and clears pending growth.
func (b *Segments) Reset(start Position) {
	b.segments = []Position{start}
	b.grow = false
}

// Occupies reports whether any segment from index `from` onward sits at p.
func (b *Segments) Occupies(p Position, from int) bool {
	for i := from; i < len(b.segments); i++ {
		if b.segments[i] == p {
			return true
		}
	}
	return false
}

// Learner acts through its value table.
type Learner struct {
	Segments
	table *reinforcement.QTable
}

// NewLearner returns a learner at start that owns table.
func NewLearner(start Position, table *reinforcement.QTable) *Learner {
	return &Learner{Segments: NewSegments(start), table: table}
}

// Table returns the learner's value table.
func (l *Learner) Table() *reinforcement.QTable { return l.table }

// DecideAction asks the table for an epsilon-greedy action at the current exploration rate.
func (l *Learner) DecideAction(ctx Context) Action {
	return l.table.BestAction(ctx.State, l.table.Epsilon())
}

// Learn feeds a resolved transition back into the table.
func (l *Learner) Learn(s State, a Action, reward float64, next State) float64 {
	return l.table.Update(s, a, reward, next)
}

// Scripted is a non-learning opponent with a greedy nearest-food policy.
type Scripted struct {
	Segments
	rng *rand.Rand
}

// NewScripted returns an opponent at start. The rng is only used for the last-resort move.
func NewScripted(start Position, rng *rand.Rand) *Scripted {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scripted{Segments: NewSegments(start), rng: rng}
}

// DecideAction moves toward the nearest food while avoiding walls and hazards.
// Safe moves are those onto a passable, hazard-free cell. If food is one step away it is taken;
// otherwise the safe move that most reduces the distance to the nearest food wins, ties going to
// Actions order. Without any safe move a uniformly random action is returned, which may collide.
func (s *Scripted) DecideAction(ctx Context) Action {
	world := ctx.World
	head := s.Head()
	food, _, hasFood := world.NearestFood(head)

	var (
		best     Action
		bestDist int
		found    bool
	)
	for _, a := range Actions {
		next := head.Add(a)
		if !world.IsPassable(next) || world.IsHazard(next) {
			continue
		}
		if hasFood && next == food {
			return a
		}
		dist := 0
		if hasFood {
			dist = next.Manhattan(food)
		}
		if !found || dist < bestDist {
			best, bestDist, found = a, dist, true
		}
	}
	if found {
		return best
	}
	return Actions[s.rng.Intn(NumActions)]
}

var (
	_ Actor = (*Learner)(nil)
	_ Actor = (*Scripted)(nil)
)
