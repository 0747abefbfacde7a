package grid_world

import "fmt"

// Outcome classifies what happened to a head that attempted a move.
type Outcome uint8

const (
	Normal Outcome = iota
	// Blocked means the target was a wall or off the grid; the head did not move.
	Blocked
	ConsumedFood
	HitHazard
	ReachedGoal
)

func (o Outcome) String() string {
	switch o {
	case Normal:
		return "normal"
	case Blocked:
		return "blocked"
	case ConsumedFood:
		return "consumed-food"
	case HitHazard:
		return "hit-hazard"
	case ReachedGoal:
		return "reached-goal"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// MarshalText lets outcomes serialize by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Sense walks up to Lookahead cells from p in each direction and reports the first
// non-empty thing seen, or SeesEmpty if the lookahead is exhausted. Off-grid reads as wall.
// This is the feature extractor for the sensor component of State and is a pure function
// of the grid contents.
func (gw *GridWorld) Sense(p Position) (sensors SensorVector) {
	for i, a := range Actions {
		sensors[i] = SeesEmpty
		cur := p
		for step := 0; step < gw.cfg.Lookahead; step++ {
			cur = cur.Add(a)
			if reading, found := readingOf(gw.Cell(cur)); found {
				sensors[i] = reading
				break
			}
		}
	}
	return
}

func readingOf(kind CellKind) (Reading, bool) {
	switch kind {
	case Wall:
		return SeesWall, true
	case Food:
		return SeesFood, true
	case Hazard:
		return SeesHazard, true
	case Goal:
		return SeesGoal, true
	}
	return SeesEmpty, false
}

// Observe discretizes the situation at p into a State. An InvalidStateError is returned
// if p could never be occupied.
func (gw *GridWorld) Observe(p Position) (State, error) {
	if !gw.InBounds(p) {
		return State{}, &InvalidStateError{Position: p, Reason: "out of bounds"}
	}
	if !gw.IsPassable(p) {
		return State{}, &InvalidStateError{Position: p, Reason: "occupies a wall"}
	}
	return State{Head: p, Sensors: gw.Sense(p)}, nil
}

// Step computes where the head of body lands after the action.
// Legality is checked before anything mutates: a blocked move leaves the head in place and
// changes nothing. Consumed food is removed and replenished elsewhere, away from the body.
// Hazards are not consumed; shrinking the body is the caller's responsibility.
// An empty body violates the actor invariant and panics with an InvalidStateError.
func (gw *GridWorld) Step(body []Position, action Action) (Position, Outcome) {
	return gw.StepAvoiding(body, action, nil)
}

// StepAvoiding is Step with additional cells, such as other actors' bodies, that replenished
// food must not land on.
func (gw *GridWorld) StepAvoiding(body []Position, action Action, occupied []Position) (Position, Outcome) {
	if len(body) == 0 {
		panic(&InvalidStateError{Reason: "empty body"})
	}
	head := body[0]
	next := head.Add(action)
	if !gw.IsPassable(next) {
		return head, Blocked
	}

	switch gw.Cell(next) {
	case Food:
		delete(gw.food, next)
		excluded := make(map[Position]bool, len(body)+len(occupied)+1)
		for _, p := range body {
			excluded[p] = true
		}
		for _, p := range occupied {
			excluded[p] = true
		}
		excluded[next] = true
		gw.PlaceRandom(Food, 1, excluded)
		return next, ConsumedFood
	case Hazard:
		return next, HitHazard
	case Goal:
		return next, ReachedGoal
	}
	return next, Normal
}

// Reward returns the raw reward of an outcome.
func (gw *GridWorld) Reward(outcome Outcome) float64 {
	r := gw.cfg.Rewards
	switch outcome {
	case Blocked:
		return r.Blocked
	case ConsumedFood:
		return r.Food
	case HitHazard:
		return r.Hazard
	case ReachedGoal:
		return r.Goal
	}
	return r.Step
}

// TransitionReward is Reward plus distance shaping for ordinary moves: Closer is added when
// the head ends nearer to the food closest to its new position, Farther otherwise.
func (gw *GridWorld) TransitionReward(from, to Position, outcome Outcome) float64 {
	reward := gw.Reward(outcome)
	if outcome != Normal {
		return reward
	}
	r := gw.cfg.Rewards
	if r.Closer == 0 && r.Farther == 0 {
		return reward
	}
	if food, dist, ok := gw.NearestFood(to); ok {
		if dist < from.Manhattan(food) {
			return reward + r.Closer
		}
		return reward + r.Farther
	}
	return reward
}
