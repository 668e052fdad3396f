package voxelrender

import (
	"time"

	"go.uber.org/atomic"
)

// Clock drives the simulation tick. The frame loop calls Advance every
// frame; the tick counter only moves when enough wall-clock time has
// elapsed. System work gated on DoTick runs at most once per tick, and
// TickDone marks that work as finished at the end of the frame.
type Clock struct {
	ticksPerSec uint64
	step        time.Duration

	curTick  *atomic.Uint64
	lastTick *atomic.Uint64

	prev  time.Time
	accum time.Duration
	delta time.Duration
}

func NewClock(ticksPerSec uint64) *Clock {
	if ticksPerSec == 0 {
		panic("clock: ticks per second must be positive")
	}
	return &Clock{
		ticksPerSec: ticksPerSec,
		step:        time.Second / time.Duration(ticksPerSec),
		curTick:     atomic.NewUint64(1),
		lastTick:    atomic.NewUint64(0),
		prev:        time.Now(),
	}
}

func (c *Clock) TicksPerSec() uint64 { return c.ticksPerSec }

// TickStep is the wall-clock duration of a single tick.
func (c *Clock) TickStep() time.Duration { return c.step }

// Tick is the current tick number. Starts at 1.
func (c *Clock) Tick() uint64 { return c.curTick.Load() }

// Delta is the wall-clock time between the two most recent Advance calls.
func (c *Clock) Delta() time.Duration { return c.delta }

// DoTick reports whether the current tick still has unfinished tick work.
func (c *Clock) DoTick() bool {
	return c.curTick.Load() > c.lastTick.Load()
}

// TickDone marks the current tick's work as completed and returns the
// new acknowledged tick counter.
func (c *Clock) TickDone() uint64 {
	return c.lastTick.Inc()
}

// Advance accumulates frame time and moves the tick counter forward by
// at most one tick per call, resetting the accumulator at the tick
// boundary so a long stall never bursts several ticks into one frame.
// Called once per frame from the Prelude stage.
func (c *Clock) Advance() {
	now := time.Now()
	c.delta = now.Sub(c.prev)
	c.prev = now
	c.accum += c.delta
	if c.accum >= c.step {
		c.accum = 0
		c.curTick.Inc()
	}
}

type ClockModule struct {
	TicksPerSecond uint64
}

func (m ClockModule) Install(app *App, cmd *Commands) {
	tps := m.TicksPerSecond
	if tps == 0 {
		tps = DefaultConfig().TicksPerSecond
	}
	cmd.AddResources(NewClock(tps))
	cmd.UseSystem(System(clockAdvanceSystem).InStage(Prelude))
	cmd.UseSystem(System(clockTickDoneSystem).InStage(Finale))
}

func clockAdvanceSystem(clock *Clock) {
	clock.Advance()
}

func clockTickDoneSystem(clock *Clock) {
	if clock.DoTick() {
		clock.TickDone()
	}
}
