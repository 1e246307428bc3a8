// Package training implements the training run simulator: a status state machine that
// emits synthetic loss and accuracy samples on a fixed tick until the configured number
// of steps is reached.
package training

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/llamaforge/internal/clock"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/telemetry"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval is the wall time between two simulated steps
	DefaultTickInterval = 500 * time.Millisecond
	// DefaultSettleDelay is how long a run stays in PREPARING before the first step
	DefaultSettleDelay = time.Second
)

// Run log messages
const (
	msgCurriculumEmpty = "Curriculum empty. Load data first."
	msgInterrupted     = "Neural tempering interrupted."
	msgFinalized       = "Neural casting finalized. Weights stabilized."
)

// StepHook runs before each step is recorded. A non-nil error fails the run
// without recording the step. It is called with the controller lock held and
// must not call back into the controller.
type StepHook func(step int, cfg domain.Configuration) error

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Scheduler    clock.Scheduler
	TickInterval time.Duration
	SettleDelay  time.Duration
	StepHook     StepHook
}

// Info is a point-in-time view of the run for status displays
type Info struct {
	Status      domain.RunStatus `json:"status"`
	Step        int              `json:"step"`
	TotalSteps  int              `json:"totalSteps"`
	Progress    float64          `json:"progress"`
	DatasetSize int              `json:"datasetSize"`
	BaseModel   string           `json:"baseModel"`
}

// Controller owns the run state. All state is guarded by mu; observers are
// notified in mutation order under dispatchMu after mu is released.
type Controller struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex

	sched     clock.Scheduler
	interval  time.Duration
	settle    time.Duration
	hook      StepHook
	observers []Observer

	status      domain.RunStatus
	config      domain.Configuration
	datasetSize int
	step        int
	progress    float64
	metrics     *telemetry.MetricSeries
	logs        *telemetry.LogStream

	// generation is bumped whenever a settle timer or tick loop is armed or cancelled,
	// so callbacks from an earlier arming become no-ops.
	generation uint64
	cancel     clock.Cancel

	log zerolog.Logger
}

// NewController creates an idle controller
func NewController(opts Options, log zerolog.Logger) *Controller {
	if opts.Scheduler == nil {
		opts.Scheduler = clock.NewWall()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	return &Controller{
		sched:    opts.Scheduler,
		interval: opts.TickInterval,
		settle:   opts.SettleDelay,
		hook:     opts.StepHook,
		status:   domain.StatusIdle,
		config:   domain.DefaultConfiguration(),
		metrics:  telemetry.NewMetricSeries(),
		logs:     telemetry.NewLogStream(),
		log:      log.With().Str("component", "run_controller").Logger(),
	}
}

// AddObserver registers an observer for all subsequent activity
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Start begins a fresh run of cfg over a curriculum of datasetSize items.
// It is valid from IDLE, COMPLETED and FAILED. An empty curriculum is rejected
// with an error log entry and ErrRejectedStart; the status is left unchanged.
func (c *Controller) Start(cfg domain.Configuration, datasetSize int) error {
	c.mu.Lock()
	var pending []notice

	if !c.status.CanStartFresh() {
		status := c.status
		c.mu.Unlock()
		c.log.Debug().Str("status", string(status)).Msg("Start ignored")
		return ErrInvalidTransition
	}

	if err := cfg.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}

	if datasetSize <= 0 {
		c.appendLog(&pending, domain.LevelError, msgCurriculumEmpty)
		c.release(pending)
		c.log.Warn().Msg("Start rejected: empty curriculum")
		return ErrRejectedStart
	}

	c.config = cfg.Clone()
	c.datasetSize = datasetSize
	c.step = 0
	c.progress = 0
	c.metrics.Clear()
	c.logs.Clear()

	c.appendLog(&pending, domain.LevelInfo, fmt.Sprintf(
		"Preparing %s: %d curriculum items over %d steps (%s).",
		c.config.BaseModel, datasetSize, c.config.TotalSteps(), c.config.TrainingMethod))
	c.setStatus(&pending, domain.StatusPreparing, CauseStart)
	c.armSettle()

	total := c.config.TotalSteps()
	c.release(pending)

	c.log.Info().
		Str("base_model", cfg.BaseModel).
		Int("dataset_size", datasetSize).
		Int("total_steps", total).
		Msg("Run started")
	return nil
}

// Interrupt pauses a training run. The tick loop is cancelled before Interrupt
// returns and no partial sample is recorded. It is a no-op outside TRAINING.
func (c *Controller) Interrupt() error {
	c.mu.Lock()
	if c.status != domain.StatusTraining {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	var pending []notice
	c.disarm()
	c.appendLog(&pending, domain.LevelWarn, msgInterrupted)
	c.setStatus(&pending, domain.StatusPaused, CauseInterrupt)
	step := c.step
	c.release(pending)

	c.log.Info().Int("step", step).Msg("Run interrupted")
	return nil
}

// Resume continues a paused run from the step after the last recorded one.
// History is kept. It is a no-op unless the status is PAUSED.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.status != domain.StatusPaused {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	var pending []notice
	c.appendLog(&pending, domain.LevelInfo, fmt.Sprintf(
		"Neural tempering resumed at step %d/%d.", c.step+1, c.config.TotalSteps()))
	c.setStatus(&pending, domain.StatusTraining, CauseResume)
	c.armTicks()
	step := c.step
	c.release(pending)

	c.log.Info().Int("step", step).Msg("Run resumed")
	return nil
}

// Fail moves a preparing, training or paused run to FAILED and records reason
func (c *Controller) Fail(reason error) error {
	c.mu.Lock()
	switch c.status {
	case domain.StatusPreparing, domain.StatusTraining, domain.StatusPaused:
	default:
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	var pending []notice
	c.failLocked(&pending, reason)
	c.release(pending)

	c.log.Error().Err(reason).Msg("Run failed")
	return nil
}

// Restore replaces the run state with state. It is rejected with
// ErrConcurrentRestore while a settle timer or tick loop is armed.
// A restored PREPARING or TRAINING state re-arms its timer.
func (c *Controller) Restore(state domain.RunState) error {
	if err := validateState(state); err != nil {
		return err
	}

	c.mu.Lock()
	if c.status.Scheduled() {
		c.mu.Unlock()
		return ErrConcurrentRestore
	}

	s := state.Clone()
	var pending []notice

	c.disarm()
	c.config = s.Config
	c.metrics.Replace(s.Metrics)
	c.logs.Replace(s.Logs)
	c.progress = s.Progress
	// Restorable state carries no dataset size
	c.datasetSize = 0
	c.step = 0
	if last, ok := c.metrics.Last(); ok {
		c.step = last.Step
	}

	c.setStatus(&pending, s.Status, CauseRestore)
	switch s.Status {
	case domain.StatusPreparing:
		c.armSettle()
	case domain.StatusTraining:
		c.armTicks()
	}
	c.release(pending)

	c.log.Info().
		Str("status", string(s.Status)).
		Int("samples", len(s.Metrics)).
		Msg("Run state restored")
	return nil
}

// Snapshot returns a deep copy of the restorable run state
func (c *Controller) Snapshot() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Info returns the current status summary
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Status:      c.status,
		Step:        c.step,
		TotalSteps:  c.config.TotalSteps(),
		Progress:    c.progress,
		DatasetSize: c.datasetSize,
		BaseModel:   c.config.BaseModel,
	}
}

// Status returns the current run status
func (c *Controller) Status() domain.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Progress returns the completion percentage
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Config returns a copy of the configuration of the current run
func (c *Controller) Config() domain.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Clone()
}

// Metrics returns a copy of the metric series
func (c *Controller) Metrics() []domain.MetricSample {
	return c.metrics.ReadAll()
}

// MetricsSince returns samples with a step greater than step
func (c *Controller) MetricsSince(step int) []domain.MetricSample {
	return c.metrics.Since(step)
}

// Logs returns a copy of the run log
func (c *Controller) Logs() []domain.LogEntry {
	return c.logs.ReadAll()
}

// Close cancels any armed timer. The controller stays readable.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarm()
}

func (c *Controller) onSettle(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.status != domain.StatusPreparing {
		c.mu.Unlock()
		return
	}

	var pending []notice
	c.setStatus(&pending, domain.StatusTraining, CauseSettle)
	c.armTicks()
	c.release(pending)
}

func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.status != domain.StatusTraining {
		c.mu.Unlock()
		return
	}

	var pending []notice
	total := c.config.TotalSteps()

	if c.step < total {
		next := c.step + 1
		if c.hook != nil {
			if err := c.hook(next, c.config.Clone()); err != nil {
				c.failLocked(&pending, fmt.Errorf("step %d: %w", next, err))
				c.release(pending)
				c.log.Error().Err(err).Int("step", next).Msg("Step hook failed run")
				return
			}
		}

		sample := telemetry.SampleAt(next)
		if err := c.metrics.Append(sample); err != nil {
			c.failLocked(&pending, err)
			c.release(pending)
			c.log.Error().Err(err).Int("step", next).Msg("Failed to record sample")
			return
		}
		c.step = next
		c.progress = telemetry.Progress(next, total)
		pending = append(pending, notice{sample: &sample, progress: c.progress})

		if next%telemetry.SummaryEvery == 0 {
			c.appendLog(&pending, domain.LevelInfo, telemetry.CycleSummary(sample))
		}
	}

	if c.step >= total {
		c.disarm()
		c.progress = 100
		c.appendLog(&pending, domain.LevelSuccess, msgFinalized)
		c.setStatus(&pending, domain.StatusCompleted, CauseComplete)
		c.release(pending)
		c.log.Info().Int("steps", total).Msg("Run completed")
		return
	}

	c.release(pending)
}

// armSettle replaces any armed timer with the PREPARING settle timer. Caller holds mu.
func (c *Controller) armSettle() {
	c.disarm()
	gen := c.generation
	c.cancel = c.sched.After(c.settle, func() { c.onSettle(gen) })
}

// armTicks replaces any armed timer with the tick loop. Caller holds mu.
func (c *Controller) armTicks() {
	c.disarm()
	gen := c.generation
	c.cancel = c.sched.Every(c.interval, func() { c.onTick(gen) })
}

// disarm cancels the armed timer, if any, and invalidates in-flight callbacks. Caller holds mu.
func (c *Controller) disarm() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
}

func (c *Controller) failLocked(pending *[]notice, reason error) {
	c.disarm()
	c.appendLog(pending, domain.LevelError, fmt.Sprintf("Neural tempering failed: %v", reason))
	c.setStatus(pending, domain.StatusFailed, CauseFail)
}

func (c *Controller) appendLog(pending *[]notice, level domain.LogLevel, message string) {
	entry := domain.NewLogEntry(c.sched.Now(), level, message)
	c.logs.Append(entry)
	*pending = append(*pending, notice{entry: &entry})
}

func (c *Controller) setStatus(pending *[]notice, to domain.RunStatus, cause Cause) {
	from := c.status
	c.status = to
	*pending = append(*pending, notice{transition: &Transition{
		From:  from,
		To:    to,
		Cause: cause,
		At:    c.sched.Now(),
		Step:  c.step,
		Total: c.config.TotalSteps(),
		State: c.snapshotLocked(),
	}})
}

func (c *Controller) snapshotLocked() domain.RunState {
	return domain.RunState{
		Config:   c.config.Clone(),
		Metrics:  c.metrics.ReadAll(),
		Logs:     c.logs.ReadAll(),
		Progress: c.progress,
		Status:   c.status,
	}
}

// release unlocks mu and delivers pending notices in order. Holding dispatchMu across
// the hand-off keeps deliveries from concurrent mutations in mutation order.
func (c *Controller) release(pending []notice) {
	if len(pending) == 0 {
		c.mu.Unlock()
		return
	}

	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)

	c.dispatchMu.Lock()
	c.mu.Unlock()
	defer c.dispatchMu.Unlock()

	for _, n := range pending {
		for _, o := range observers {
			n.deliver(o)
		}
	}
}

func validateState(s domain.RunState) error {
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, s.Status)
	}
	if s.Progress < 0 || s.Progress > 100 {
		return fmt.Errorf("%w: progress %.2f out of range", ErrInvalidState, s.Progress)
	}
	last := 0
	for _, sample := range s.Metrics {
		if sample.Step <= last {
			return fmt.Errorf("%w: metric steps must be strictly increasing", ErrInvalidState)
		}
		last = sample.Step
	}
	return nil
}
