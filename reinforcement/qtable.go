package reinforcement

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	. "gridlearn/grid_world"
)

// ActionValues holds one estimated return per action, indexed in Actions order.
type ActionValues [NumActions]float64

// Max returns the largest value and the first action attaining it in Actions order.
func (av *ActionValues) Max() (best Action, val float64) {
	best, val = Actions[0], av[Actions[0]]
	for _, a := range Actions[1:] {
		if av[a] > val {
			best, val = a, av[a]
		}
	}
	return
}

// Params are the learning constants of a table. Alpha and Gamma are fixed for the
// table's lifetime; Epsilon is only the initial exploration rate.
type Params struct {
	// Alpha is the learning rate, in (0,1].
	Alpha float64
	// Gamma is the discount factor, in (0,1].
	Gamma   float64
	Epsilon float64
}

// DefaultParams returns the learning constants for a variant.
// The maze learns greedily with a full-step learning rate; the arena starts fully
// exploratory and anneals.
func DefaultParams(variant Variant) Params {
	if variant == Arena {
		return Params{Alpha: 0.1, Gamma: 0.95, Epsilon: 1.0}
	}
	return Params{Alpha: 1, Gamma: 0.9, Epsilon: 0}
}

// QTable is a tabular action-value estimator keyed by State.
// Entries are created lazily; a State never touched by Update reads as all zeros.
// A QTable is not safe for concurrent use; it belongs to a single learner.
type QTable struct {
	values  map[State]*ActionValues
	alpha   float64
	gamma   float64
	epsilon float64
	rng     *rand.Rand
}

// NewQTable returns an empty table. Out-of-range alpha or gamma fall back to 1.
// A nil rng is replaced by a time-seeded source.
func NewQTable(params Params, rng *rand.Rand) *QTable {
	if params.Alpha <= 0 || params.Alpha > 1 {
		params.Alpha = 1
	}
	if params.Gamma <= 0 || params.Gamma > 1 {
		params.Gamma = 1
	}
	if params.Epsilon < 0 {
		params.Epsilon = 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QTable{
		values:  map[State]*ActionValues{},
		alpha:   params.Alpha,
		gamma:   params.Gamma,
		epsilon: params.Epsilon,
		rng:     rng,
	}
}

func (q *QTable) Alpha() float64 { return q.alpha }
func (q *QTable) Gamma() float64 { return q.gamma }

// Epsilon returns the current exploration rate.
func (q *QTable) Epsilon() float64 { return q.epsilon }

// SetEpsilon overrides the exploration rate, clamped to [0,1].
func (q *QTable) SetEpsilon(rate float64) {
	q.epsilon = min(max(rate, 0), 1)
}

// Len returns the number of materialized states.
func (q *QTable) Len() int { return len(q.values) }

// Has reports whether the state has been materialized.
func (q *QTable) Has(s State) bool {
	_, ok := q.values[s]
	return ok
}

// Values returns a copy of the action values of s; all zeros if s is unseen.
func (q *QTable) Values(s State) ActionValues {
	if av, ok := q.values[s]; ok {
		return *av
	}
	return ActionValues{}
}

// Set assigns a single value, materializing the state if needed.
func (q *QTable) Set(s State, a Action, val float64) {
	q.entry(s)[a] = val
}

// entry is the only place states are materialized.
func (q *QTable) entry(s State) *ActionValues {
	av, ok := q.values[s]
	if !ok {
		av = &ActionValues{}
		q.values[s] = av
	}
	return av
}

// BestAction selects an action epsilon-greedily: with probability explorationRate a uniformly
// random action, otherwise the highest valued one, ties going to the earliest in Actions order.
// An unseen state has nothing to exploit and always yields a random action.
func (q *QTable) BestAction(s State, explorationRate float64) Action {
	av, ok := q.values[s]
	if !ok || q.rng.Float64() < explorationRate {
		return q.randomAction()
	}
	best, _ := av.Max()
	return best
}

func (q *QTable) randomAction() Action {
	return Actions[q.rng.Intn(NumActions)]
}

// Update applies the one-step Q-learning rule
//
//	Q(s,a) <- Q(s,a) + alpha * (r + gamma * max_a' Q(s',a') - Q(s,a))
//
// Both s and next are materialized first, so the max term of a new state is zero.
// It returns the updated value.
func (q *QTable) Update(s State, a Action, reward float64, next State) float64 {
	cur := q.entry(s)
	_, future := q.entry(next).Max()
	target := reward + q.gamma*future
	cur[a] += q.alpha * (target - cur[a])
	return cur[a]
}

// DecayExploration multiplies the exploration rate by decayRate, floored at minimum.
// It is meant to be called once per completed episode. The rate never increases, so a rate
// already below minimum is left alone.
func (q *QTable) DecayExploration(decayRate, minimum float64) float64 {
	next := q.epsilon * decayRate
	if next < minimum {
		next = minimum
	}
	if next < q.epsilon {
		q.epsilon = next
	}
	return q.epsilon
}

// States returns the materialized states in a stable order: by head row, head col, then sensors.
func (q *QTable) States() []State {
	states := make([]State, 0, len(q.values))
	for s := range q.values {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		return stateLess(states[i], states[j])
	})
	return states
}

func stateLess(a, b State) bool {
	if a.Head.Row != b.Head.Row {
		return a.Head.Row < b.Head.Row
	}
	if a.Head.Col != b.Head.Col {
		return a.Head.Col < b.Head.Col
	}
	for i := range a.Sensors {
		if a.Sensors[i] != b.Sensors[i] {
			return a.Sensors[i] < b.Sensors[i]
		}
	}
	return false
}

// Equal reports whether two tables hold identical action values for identical states.
func (q *QTable) Equal(other *QTable) bool {
	if len(q.values) != len(other.values) {
		return false
	}
	for s, av := range q.values {
		if oav, ok := other.values[s]; !ok || *oav != *av {
			return false
		}
	}
	return true
}

// String dumps the table, one state per line, for debugging.
func (q *QTable) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-40s", "state")
	for _, a := range Actions {
		fmt.Fprintf(&sb, "%10s", a)
	}
	sb.WriteString("\n")
	for _, s := range q.States() {
		fmt.Fprintf(&sb, "%-40s", s)
		for _, v := range q.values[s] {
			fmt.Fprintf(&sb, "%10.2f", v)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
