package episode

import (
	"fmt"

	"gridlearn/grid_world"
)

// ActorID names an actor in the controller's API.
type ActorID uint8

const (
	LearnerID ActorID = iota
	OpponentID
)

func (id ActorID) String() string {
	if id == OpponentID {
		return "opponent"
	}
	return "learner"
}

// Phase is the controller's state machine position.
//
//	Running -> Terminating -> Reset -> Running
//
// Reset is transient and never observed between ticks. Faulted is entered when a tick fails
// internally and is left only by an explicit Reset.
type Phase uint8

const (
	PhaseRunning Phase = iota
	PhaseTerminating
	PhaseReset
	PhaseFaulted
)

var phaseNames = [...]string{"running", "terminating", "reset", "faulted"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// TerminalReason says why an episode ended.
type TerminalReason uint8

const (
	NotTerminal TerminalReason = iota
	GoalReached
	BudgetExhausted
	WallHit
	HazardShrunk
	LearnerDied
	OpponentDied
)

var reasonNames = [...]string{"", "goal", "budget", "blocked", "hazard", "learner-died", "opponent-died"}

func (r TerminalReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

func (r TerminalReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// TickResult is everything a presentation layer needs after one tick. Positions are the bodies
// after this tick's moves; on a terminal tick they show the final frame of the episode.
type TickResult struct {
	RunID   string `json:"runId"`
	Tick    int    `json:"tick"`
	Episode int    `json:"episode"`
	Move    int    `json:"move"`

	Learner  []grid_world.Position `json:"learner"`
	Opponent []grid_world.Position `json:"opponent,omitempty"`
	Food     []grid_world.Position `json:"food,omitempty"`
	Hazards  []grid_world.Position `json:"hazards,omitempty"`

	Action  grid_world.Action  `json:"action"`
	Manual  bool               `json:"manual"`
	Outcome grid_world.Outcome `json:"outcome"`
	Reward  float64            `json:"reward"`
	Score   float64            `json:"score"`
	Epsilon float64            `json:"epsilon"`

	LearnerDied  bool           `json:"learnerDied,omitempty"`
	OpponentDied bool           `json:"opponentDied,omitempty"`
	Terminal     bool           `json:"terminal"`
	Reason       TerminalReason `json:"reason,omitempty"`
	Phase        Phase          `json:"phase"`

	Checkpointed bool `json:"checkpointed,omitempty"`
	// CheckpointErr is set when a periodic save failed. The tick itself still succeeded.
	CheckpointErr   error  `json:"-"`
	CheckpointError string `json:"checkpointError,omitempty"`
}
