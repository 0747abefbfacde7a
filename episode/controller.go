// Package episode runs the training loop: one tick moves every actor once, resolves rewards and
// collisions, updates the learner's table, and resets the world when an episode ends.
package episode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"time"

	"gridlearn/actors"
	"gridlearn/checkpoint"
	"gridlearn/grid_world"
	"gridlearn/reinforcement"

	"github.com/google/uuid"
)

var (
	// ErrTickFault wraps any internal failure recovered at the tick boundary.
	ErrTickFault = errors.New("tick fault")
	// ErrFaulted is returned by Tick after a fault until Reset is called.
	ErrFaulted = errors.New("controller faulted; reset required")
	// ErrNoSuchActor is returned for the opponent when the run has none.
	ErrNoSuchActor = errors.New("no such actor")
)

// Config holds the episode rules. It is fixed for a controller's lifetime.
type Config struct {
	// MaxMoves is the per-episode move budget.
	MaxMoves int `yaml:"maxMoves"`
	// EndOnBlocked makes a wall or boundary touch terminal.
	EndOnBlocked bool `yaml:"endOnBlocked"`
	// HazardShrink is the fraction of the body lost on a hazard.
	HazardShrink float64 `yaml:"hazardShrink"`
	HistorySize  int     `yaml:"historySize"`
	// CheckpointEvery saves the table every that many ticks; zero disables checkpoints.
	CheckpointEvery int  `yaml:"checkpointEvery"`
	WithOpponent    bool `yaml:"withOpponent"`
}

// DefaultConfig returns the episode rules of a variant.
func DefaultConfig(variant grid_world.Variant) Config {
	if variant == grid_world.Arena {
		return Config{
			MaxMoves:        500,
			HazardShrink:    0.5,
			HistorySize:     defaultHistorySize,
			CheckpointEvery: 1000,
			WithOpponent:    true,
		}
	}
	return Config{
		MaxMoves:        1000,
		HistorySize:     defaultHistorySize,
		CheckpointEvery: 1000,
	}
}

// WorldFactory builds a fresh map for each episode. Items are placed by the controller.
type WorldFactory func(rng *rand.Rand) (*grid_world.GridWorld, error)

// Options are the collaborators of a Controller.
type Options struct {
	Config   Config
	NewWorld WorldFactory
	// Table is the learner's value table. The controller updates it but does not own it.
	Table    *reinforcement.QTable
	Schedule reinforcement.Schedule
	// Store receives periodic checkpoints; nil disables them.
	Store  checkpoint.Store
	Logger *log.Logger
	Rng    *rand.Rand
}

// Controller is the episode state machine. It is not safe for concurrent use: a single driver
// calls Tick at its own cadence, and each tick completes before returning.
type Controller struct {
	cfg      Config
	newWorld WorldFactory
	table    *reinforcement.QTable
	schedule reinforcement.Schedule
	store    checkpoint.Store
	logger   *log.Logger
	rng      *rand.Rand
	runID    string

	world    *grid_world.GridWorld
	learner  *actors.Learner
	opponent *actors.Scripted
	history  *History

	phase   Phase
	tick    int
	episode int
	moves   int
	score   float64
	manual  *grid_world.Action
}

// NewController builds the first episode. A world factory error, such as a malformed layout,
// is returned as is.
func NewController(opts Options) (*Controller, error) {
	if opts.NewWorld == nil {
		return nil, errors.New("episode: no world factory")
	}
	if opts.Table == nil {
		return nil, errors.New("episode: no value table")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Schedule == (reinforcement.Schedule{}) {
		opts.Schedule.Decay = 1
	}
	if d := opts.Schedule.Decay; d <= 0 || d > 1 {
		return nil, fmt.Errorf("episode: exploration decay %v outside (0,1]", d)
	}

	c := &Controller{
		cfg:      opts.Config,
		newWorld: opts.NewWorld,
		table:    opts.Table,
		schedule: opts.Schedule,
		store:    opts.Store,
		logger:   opts.Logger,
		rng:      opts.Rng,
		runID:    uuid.NewString(),
		history:  NewHistory(opts.Config.HistorySize),
	}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	c.logger.Printf("[EPISODE] [INFO] run %s started on %s", c.runID, c.variant())
	return c, nil
}

func (c *Controller) RunID() string { return c.runID }
func (c *Controller) Phase() Phase  { return c.phase }
func (c *Controller) Episode() int  { return c.episode }

// World returns the current map. It is replaced on every reset.
func (c *Controller) World() *grid_world.GridWorld { return c.world }

func (c *Controller) Table() *reinforcement.QTable { return c.table }

func (c *Controller) variant() grid_world.Variant {
	if c.world == nil {
		return grid_world.Maze
	}
	return c.world.Config().Variant
}

// Reset regenerates the map and returns every actor to its canonical start with length one.
// It also clears a fault. History, exploration rate and the tick counter are kept.
func (c *Controller) Reset() error {
	c.phase = PhaseReset
	world, err := c.newWorld(c.rng)
	if err != nil {
		c.phase = PhaseFaulted
		return err
	}

	learnerStart := world.Start()
	if c.learner == nil {
		c.learner = actors.NewLearner(learnerStart, c.table)
	} else {
		c.learner.Reset(learnerStart)
	}

	occupied := neighbourhood(world, learnerStart)
	c.opponent = nil
	if c.cfg.WithOpponent {
		opponentStart := lastOpen(world)
		c.opponent = actors.NewScripted(opponentStart, c.rng)
		for p := range neighbourhood(world, opponentStart) {
			occupied[p] = true
		}
	}

	wcfg := world.Config()
	if n := len(world.PlaceRandom(grid_world.Hazard, wcfg.HazardCount, occupied)); n < wcfg.HazardCount {
		c.logger.Printf("[EPISODE] [WARN] placed %d of %d hazards", n, wcfg.HazardCount)
	}
	if n := len(world.PlaceRandom(grid_world.Food, wcfg.FoodCount, occupied)); n < wcfg.FoodCount {
		c.logger.Printf("[EPISODE] [WARN] placed %d of %d food", n, wcfg.FoodCount)
	}

	c.world = world
	c.moves = 0
	c.score = 0
	c.phase = PhaseRunning
	return nil
}

// neighbourhood is p and its passable neighbours, kept clear of items at the start of an episode.
func neighbourhood(world *grid_world.GridWorld, p grid_world.Position) map[grid_world.Position]bool {
	out := map[grid_world.Position]bool{p: true}
	for _, a := range grid_world.Actions {
		if next := p.Add(a); world.IsPassable(next) {
			out[next] = true
		}
	}
	return out
}

// lastOpen scans from the bottom-right corner for the opponent's canonical start.
func lastOpen(world *grid_world.GridWorld) grid_world.Position {
	for r := world.Rows() - 1; r >= 0; r-- {
		for col := world.Cols() - 1; col >= 0; col-- {
			if p := (grid_world.Position{Row: r, Col: col}); world.Cell(p) == grid_world.Empty {
				return p
			}
		}
	}
	return world.Start()
}

// CurrentState discretizes the situation of an actor's head.
func (c *Controller) CurrentState(id ActorID) (grid_world.State, error) {
	switch {
	case id == LearnerID:
		return c.world.Observe(c.learner.Head())
	case id == OpponentID && c.opponent != nil:
		return c.world.Observe(c.opponent.Head())
	}
	return grid_world.State{}, fmt.Errorf("%w: %v", ErrNoSuchActor, id)
}

// Body returns a copy of an actor's body, head first; nil if the actor is absent.
func (c *Controller) Body(id ActorID) []grid_world.Position {
	if id == OpponentID {
		if c.opponent == nil {
			return nil
		}
		return c.opponent.Body()
	}
	return c.learner.Body()
}

// EpisodeHistory returns the recent episode scores, oldest first.
func (c *Controller) EpisodeHistory() []float64 { return c.history.Scores() }

func (c *Controller) History() *History { return c.history }

// SetExplorationRate overrides the learner's exploration rate, clamped to [0,1].
func (c *Controller) SetExplorationRate(rate float64) {
	c.table.SetEpsilon(rate)
	c.logger.Printf("[EPISODE] [INFO] exploration rate set to %.4f", c.table.Epsilon())
}

// ToggleManualOverride queues action for the next tick in place of the policy. Queuing the
// same action again cancels it. It reports whether an override is pending afterwards.
func (c *Controller) ToggleManualOverride(action grid_world.Action) bool {
	if c.manual != nil && *c.manual == action {
		c.manual = nil
		return false
	}
	c.manual = &action
	return true
}

// Tick advances the simulation by one step of every actor. A panic or invariant violation inside
// the tick is logged, returned wrapping ErrTickFault, and leaves the controller Faulted: no
// checkpoint is written from a faulted tick and further ticks fail with ErrFaulted until Reset.
func (c *Controller) Tick(ctx context.Context) (res TickResult, err error) {
	if c.phase == PhaseFaulted {
		return TickResult{}, ErrFaulted
	}

	defer func() {
		if r := recover(); r != nil {
			err = c.fault(fmt.Errorf("%w: %v", ErrTickFault, r))
			res = TickResult{}
		}
	}()

	if c.phase == PhaseTerminating {
		if err = c.Reset(); err != nil {
			return TickResult{}, c.fault(fmt.Errorf("%w: reset: %w", ErrTickFault, err))
		}
	}

	res, err = c.step()
	if err != nil {
		return TickResult{}, c.fault(fmt.Errorf("%w: %w", ErrTickFault, err))
	}

	c.checkpoint(ctx, &res)

	if res.Terminal {
		c.finishEpisode(res.Reason)
	}
	res.Epsilon = c.table.Epsilon()
	res.Phase = c.phase
	return res, nil
}

func (c *Controller) fault(err error) error {
	c.phase = PhaseFaulted
	c.logger.Printf("[EPISODE] [ERROR] run %s tick %d: %v", c.runID, c.tick, err)
	return err
}

// step resolves one tick. Collisions are judged against the bodies as they were before either
// actor moved; if both actors intrude on each other the learner's death takes precedence.
func (c *Controller) step() (TickResult, error) {
	world := c.world
	rewards := world.Config().Rewards

	s, err := world.Observe(c.learner.Head())
	if err != nil {
		return TickResult{}, err
	}

	var action grid_world.Action
	manual := c.manual != nil
	if manual {
		action = *c.manual
		c.manual = nil
	} else {
		action = c.learner.DecideAction(actors.Context{World: world, State: s})
	}

	learnerPrior := c.learner.Body()
	var opponentPrior []grid_world.Position
	if c.opponent != nil {
		opponentPrior = c.opponent.Body()
	}

	learnerHead, outcome := world.StepAvoiding(learnerPrior, action, opponentPrior)
	reward := world.TransitionReward(learnerPrior[0], learnerHead, outcome)

	opponentHead, opponentOutcome := grid_world.Position{}, grid_world.Normal
	if c.opponent != nil {
		opState, err := world.Observe(c.opponent.Head())
		if err != nil {
			return TickResult{}, err
		}
		oa := c.opponent.DecideAction(actors.Context{World: world, State: opState})
		opponentHead, opponentOutcome = world.StepAvoiding(opponentPrior, oa, append(learnerPrior, learnerHead))
	}

	res := TickResult{
		RunID:   c.runID,
		Action:  action,
		Manual:  manual,
		Outcome: outcome,
	}

	if c.opponent != nil && learnerHead != opponentHead {
		res.LearnerDied = intrudes(learnerHead, opponentPrior)
		res.OpponentDied = intrudes(opponentHead, learnerPrior)
	}

	advance(&c.learner.Segments, learnerHead, outcome, c.cfg.HazardShrink)
	if c.opponent != nil {
		advance(&c.opponent.Segments, opponentHead, opponentOutcome, c.cfg.HazardShrink)
	}

	c.moves++
	switch {
	case res.LearnerDied:
		reward = rewards.LearnerDeath
		res.Reason = LearnerDied
	case res.OpponentDied:
		reward = rewards.OpponentDeath
		res.Reason = OpponentDied
	case outcome == grid_world.ReachedGoal:
		res.Reason = GoalReached
	case outcome == grid_world.HitHazard && c.learner.Len() <= actors.MinLength:
		res.Reason = HazardShrunk
	case outcome == grid_world.Blocked && c.cfg.EndOnBlocked:
		res.Reason = WallHit
	case c.cfg.MaxMoves > 0 && c.moves >= c.cfg.MaxMoves:
		res.Reason = BudgetExhausted
	}
	res.Terminal = res.Reason != NotTerminal

	next, err := world.Observe(c.learner.Head())
	if err != nil {
		return TickResult{}, err
	}
	if !manual {
		c.learner.Learn(s, action, reward, next)
	}

	c.tick++
	c.score += reward

	res.Tick = c.tick
	res.Episode = c.episode
	res.Move = c.moves
	res.Reward = reward
	res.Score = c.score
	res.Learner = c.learner.Body()
	if c.opponent != nil {
		res.Opponent = c.opponent.Body()
	}
	res.Food = world.Food()
	res.Hazards = world.Hazards()
	return res, nil
}

// intrudes reports whether head lands on a non-head segment of body.
func intrudes(head grid_world.Position, body []grid_world.Position) bool {
	for _, p := range body[1:] {
		if p == head {
			return true
		}
	}
	return false
}

// advance applies a resolved move to a body. A blocked head stays put.
func advance(body *actors.Segments, head grid_world.Position, outcome grid_world.Outcome, shrink float64) {
	switch outcome {
	case grid_world.Blocked:
		return
	case grid_world.ConsumedFood:
		body.Grow()
	}
	body.Advance(head)
	if outcome == grid_world.HitHazard {
		body.Shrink(shrink)
	}
}

func (c *Controller) checkpoint(ctx context.Context, res *TickResult) {
	if c.store == nil || c.cfg.CheckpointEvery <= 0 || c.tick%c.cfg.CheckpointEvery != 0 {
		return
	}
	if err := c.store.Save(ctx, c.table); err != nil {
		res.CheckpointErr = err
		res.CheckpointError = err.Error()
		c.logger.Printf("[CHECKPOINT] [ERROR] tick %d to %s: %v", c.tick, c.store, err)
		return
	}
	res.Checkpointed = true
	c.logger.Printf("[CHECKPOINT] [INFO] tick %d: saved %d states to %s", c.tick, c.table.Len(), c.store)
}

func (c *Controller) finishEpisode(reason TerminalReason) {
	c.history.Push(c.score)
	epsilon := c.table.DecayExploration(c.schedule.Decay, c.schedule.Minimum)
	c.logger.Printf("[EPISODE] [INFO] episode %d ended: reason=%s moves=%d score=%.1f epsilon=%.4f states=%d",
		c.episode, reason, c.moves, c.score, epsilon, c.table.Len())
	c.episode++
	c.phase = PhaseTerminating
}
