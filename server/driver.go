package server

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"gridlearn/atomic_float"
	"gridlearn/episode"
	"gridlearn/grid_world"

	channerics "github.com/niceyeti/channerics/channels"
)

// ErrDriverStopped is returned to commands sent after the driver loop has exited.
var ErrDriverStopped = errors.New("driver stopped")

// DriverConfig configures the tick loop.
type DriverConfig struct {
	TickInterval time.Duration
	Logger       *log.Logger
}

// Stats is a lock-free snapshot of the run, safe to read from any goroutine.
type Stats struct {
	RunID     string  `json:"runId"`
	Tick      int64   `json:"tick"`
	Episode   int64   `json:"episode"`
	Score     float64 `json:"score"`
	LastScore float64 `json:"lastScore"`
	MeanScore float64 `json:"meanScore"`
	Epsilon   float64 `json:"epsilon"`
	Faulted   bool    `json:"faulted"`
}

// HistoryView summarizes the rolling score history.
type HistoryView struct {
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stdDev"`
	Best   *float64  `json:"best,omitempty"`
}

type command struct {
	apply func(*episode.Controller) (interface{}, error)
	reply chan commandReply
}

type commandReply struct {
	val interface{}
	err error
}

// Driver is the single goroutine that owns a Controller. It ticks the controller at a fixed
// cadence and serializes every outside request through its command channel, so the controller
// itself never sees concurrent callers.
type Driver struct {
	ctrl     *episode.Controller
	interval time.Duration
	logger   *log.Logger

	commands chan command
	results  chan episode.TickResult
	stopped  chan struct{}

	tick      atomic.Int64
	episode   atomic.Int64
	faulted   atomic.Bool
	score     atomic_float.AtomicFloat64
	lastScore atomic_float.AtomicFloat64
	meanScore atomic_float.AtomicFloat64
	epsilon   atomic_float.AtomicFloat64
}

func NewDriver(ctrl *episode.Controller, cfg DriverConfig) *Driver {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	d := &Driver{
		ctrl:     ctrl,
		interval: cfg.TickInterval,
		logger:   cfg.Logger,
		commands: make(chan command),
		results:  make(chan episode.TickResult, 1),
		stopped:  make(chan struct{}),
	}
	d.epsilon.AtomicSet(ctrl.Table().Epsilon())
	return d
}

// Results streams tick results. Results are idempotent frames, so a slow reader only ever
// misses intermediate ones; the channel holds the latest unread frame.
func (d *Driver) Results() <-chan episode.TickResult {
	return d.results
}

// Run ticks until ctx is done. A faulted controller is not ticked again until a reset command
// arrives; the driver keeps serving commands meanwhile.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.stopped)
	defer close(d.results)

	ticker := channerics.NewTicker(ctx.Done(), d.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-d.commands:
			val, err := cmd.apply(d.ctrl)
			cmd.reply <- commandReply{val: val, err: err}
			d.faulted.Store(d.ctrl.Phase() == episode.PhaseFaulted)
		case <-ticker:
			if d.faulted.Load() {
				continue
			}
			d.step(ctx)
		}
	}
}

func (d *Driver) step(ctx context.Context) {
	res, err := d.ctrl.Tick(ctx)
	if err != nil {
		d.faulted.Store(true)
		d.logger.Printf("[DRIVER] [ERROR] tick failed, pausing until reset: %v", err)
		return
	}

	d.tick.Store(int64(res.Tick))
	d.episode.Store(int64(res.Episode))
	d.score.AtomicSet(res.Score)
	d.epsilon.AtomicSet(res.Epsilon)
	if res.Terminal {
		d.lastScore.AtomicSet(res.Score)
		d.meanScore.AtomicSet(d.ctrl.History().Mean())
	}

	// Replace any unread frame with the latest one.
	select {
	case d.results <- res:
	default:
		select {
		case <-d.results:
		default:
		}
		select {
		case d.results <- res:
		default:
		}
	}
}

// Do runs fn on the driver goroutine and returns its result.
func (d *Driver) Do(ctx context.Context, fn func(*episode.Controller) (interface{}, error)) (interface{}, error) {
	cmd := command{apply: fn, reply: make(chan commandReply, 1)}
	select {
	case d.commands <- cmd:
	case <-d.stopped:
		return nil, ErrDriverStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-cmd.reply:
		return reply.val, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Driver) SetExplorationRate(ctx context.Context, rate float64) (float64, error) {
	val, err := d.Do(ctx, func(c *episode.Controller) (interface{}, error) {
		c.SetExplorationRate(rate)
		return c.Table().Epsilon(), nil
	})
	if err != nil {
		return 0, err
	}
	d.epsilon.AtomicSet(val.(float64))
	return val.(float64), nil
}

// ToggleManualOverride reports whether an override is pending afterwards.
func (d *Driver) ToggleManualOverride(ctx context.Context, action grid_world.Action) (bool, error) {
	val, err := d.Do(ctx, func(c *episode.Controller) (interface{}, error) {
		return c.ToggleManualOverride(action), nil
	})
	if err != nil {
		return false, err
	}
	return val.(bool), nil
}

// Reset starts a fresh episode and clears a fault.
func (d *Driver) Reset(ctx context.Context) error {
	_, err := d.Do(ctx, func(c *episode.Controller) (interface{}, error) {
		return nil, c.Reset()
	})
	return err
}

func (d *Driver) History(ctx context.Context) (HistoryView, error) {
	val, err := d.Do(ctx, func(c *episode.Controller) (interface{}, error) {
		h := c.History()
		view := HistoryView{Scores: h.Scores(), Mean: h.Mean(), StdDev: h.StdDev()}
		if best, ok := h.Best(); ok {
			view.Best = &best
		}
		return view, nil
	})
	if err != nil {
		return HistoryView{}, err
	}
	return val.(HistoryView), nil
}

// Stats reads the published gauges without involving the driver goroutine.
func (d *Driver) Stats() Stats {
	return Stats{
		RunID:     d.ctrl.RunID(),
		Tick:      d.tick.Load(),
		Episode:   d.episode.Load(),
		Score:     d.score.AtomicRead(),
		LastScore: d.lastScore.AtomicRead(),
		MeanScore: d.meanScore.AtomicRead(),
		Epsilon:   d.epsilon.AtomicRead(),
		Faulted:   d.faulted.Load(),
	}
}
