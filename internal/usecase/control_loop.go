package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MicroGrid/internal/domain/models"
	drepo "MicroGrid/internal/domain/repository"
	"MicroGrid/internal/service/ratelimit"
	"MicroGrid/internal/services/grid"
	"MicroGrid/pkg/logger"
	"MicroGrid/pkg/metrics"
)

var (
	// ErrDeviceMismatch means the board did not report the expected ADC identity.
	ErrDeviceMismatch = errors.New("device identity mismatch")
	// ErrOutOfPhase means the simulated frequency left the halt band.
	ErrOutOfPhase = errors.New("microgrid out of phase")
)

// Phase is the control loop state.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseOutput
	PhaseSample
	PhaseCompute
	PhasePersist
	PhaseCheck
	PhaseHalted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseOutput:
		return "output"
	case PhaseSample:
		return "sample"
	case PhaseCompute:
		return "compute"
	case PhasePersist:
		return "persist"
	case PhaseCheck:
		return "check"
	case PhaseHalted:
		return "halted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// LoopConfig is everything the loop needs besides its collaborators.
type LoopConfig struct {
	Frequency     float64
	SOC           float64
	Updater       grid.Updater
	Oscillator    grid.Oscillator
	Limits        grid.Limits
	Ramp          grid.InputRamp
	Delay         time.Duration
	MaxIterations uint64 // 0 runs until halted or interrupted
	ExpectedID    int
	Channels      []models.InputChannel // [curtail, control]
	RunTag        string
	Backend       string
}

// LoopOption configures optional collaborators.
type LoopOption func(*ControlLoop)

func WithRenderer(r drepo.Renderer) LoopOption {
	return func(l *ControlLoop) { l.renderer = r }
}

// WithPublishers adds receivers of every persisted record.
func WithPublishers(p ...drepo.Publisher) LoopOption {
	return func(l *ControlLoop) {
		for _, pub := range p {
			if pub != nil {
				l.pubs = append(l.pubs, pub)
			}
		}
	}
}

func WithSnapshots(s drepo.SnapshotStore) LoopOption {
	return func(l *ControlLoop) { l.snapshots = s }
}

func WithLoopMetrics(m drepo.Metrics) LoopOption {
	return func(l *ControlLoop) {
		if m != nil {
			l.metrics = m
		}
	}
}

func WithLoopLogger(log *logger.Logger) LoopOption {
	return func(l *ControlLoop) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock replaces time.Now for record timestamps and loop timing.
func WithClock(now func() time.Time) LoopOption {
	return func(l *ControlLoop) { l.now = now }
}

// ControlLoop drives the device and evolves the grid state, one iteration
// at a time, on a single goroutine.
type ControlLoop struct {
	dev       drepo.Device
	sink      drepo.RecordSink
	renderer  drepo.Renderer
	pubs      []drepo.Publisher
	snapshots drepo.SnapshotStore
	metrics   drepo.Metrics
	log       *logger.Logger
	limiter   *ratelimit.Limiter
	now       func() time.Time

	cfg   LoopConfig
	state models.GridState
	ramp  grid.InputRamp
	phase Phase
	last  *models.Record
}

func NewControlLoop(dev drepo.Device, sink drepo.RecordSink, cfg LoopConfig, opts ...LoopOption) *ControlLoop {
	if len(cfg.Channels) == 0 {
		cfg.Channels = []models.InputChannel{models.AIN0, models.AIN1}
	}
	l := &ControlLoop{
		dev:     dev,
		sink:    sink,
		metrics: metrics.Nop{},
		log:     logger.Nop(),
		limiter: ratelimit.New(),
		now:     time.Now,
		cfg:     cfg,
		ramp:    cfg.Ramp,
		state: models.GridState{
			Frequency:     cfg.Frequency,
			StateOfCharge: cfg.SOC,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns a copy of the current grid state.
func (l *ControlLoop) State() models.GridState { return l.state }

func (l *ControlLoop) Phase() Phase { return l.phase }

// Init calibrates the ADC, checks its identity and discards one conversion.
func (l *ControlLoop) Init(ctx context.Context) error {
	if l.phase != PhaseInit {
		return nil
	}

	if err := l.dev.Calibrate(ctx); err != nil {
		l.phase = PhaseHalted
		return fmt.Errorf("calibrate device: %w", err)
	}
	id, err := l.dev.Identify(ctx)
	if err != nil {
		l.phase = PhaseHalted
		return fmt.Errorf("identify device: %w", err)
	}
	if id != l.cfg.ExpectedID {
		l.phase = PhaseHalted
		l.log.Error("wrong ADC identity", logger.Int("id", id), logger.Int("expected", l.cfg.ExpectedID))
		return fmt.Errorf("%w: got %d, want %d", ErrDeviceMismatch, id, l.cfg.ExpectedID)
	}
	if _, err := l.dev.ReadChannels(ctx, l.cfg.Channels); err != nil {
		l.phase = PhaseHalted
		return fmt.Errorf("prime read: %w", err)
	}

	channels := make([]string, len(l.cfg.Channels))
	for i, ch := range l.cfg.Channels {
		channels[i] = ch.String()
	}
	l.log.Info("control loop initialized",
		logger.Int("device_id", id),
		logger.Strings("channels", channels),
		logger.Bool("curtail_enabled", l.cfg.Limits.CurtailEnabled),
		logger.Bool("input_ramp", l.ramp.Enabled),
		logger.Float64("frequency", l.state.Frequency),
		logger.Float64("soc", l.state.StateOfCharge),
		logger.Float64("inertia", l.cfg.Updater.Inertia),
		logger.Float64("dt", l.cfg.Updater.Dt),
		logger.Duration("delay", l.cfg.Delay),
		logger.String("run_tag", l.cfg.RunTag),
	)
	l.phase = PhaseOutput
	return nil
}

// Run initializes the loop if needed and iterates until halted, the
// iteration limit is reached or ctx is cancelled. Cancellation is not an
// error, during startup included.
func (l *ControlLoop) Run(ctx context.Context) error {
	if err := l.Init(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			l.log.Warn("control loop interrupted during startup", logger.Error(err))
			return nil
		}
		return err
	}

	for {
		if ctx.Err() != nil {
			l.log.Warn("control loop interrupted", logger.Uint64("iteration", l.state.Iteration))
			return nil
		}
		if l.cfg.MaxIterations > 0 && l.state.Iteration >= l.cfg.MaxIterations {
			l.log.Info("iteration limit reached", logger.Uint64("iterations", l.state.Iteration))
			return nil
		}
		if _, err := l.Step(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
	}
}

// Step runs one Output, Sample, Compute, Persist and Check pass, then waits
// the inter-step delay. The returned record is valid even when the step
// halts the loop on an out-of-phase frequency. Cancelling ctx only cuts the
// delay short; a started pass always completes.
func (l *ControlLoop) Step(ctx context.Context) (*models.Record, error) {
	switch l.phase {
	case PhaseInit:
		return nil, errors.New("control loop not initialized")
	case PhaseHalted:
		return nil, errors.New("control loop halted")
	}

	pass := context.WithoutCancel(ctx)
	start := l.now()
	i := l.state.Iteration
	log := l.log.With(logger.Uint64("iteration", i))

	// Output
	l.phase = PhaseOutput
	vFreq, vSOC := grid.OutputVoltages(l.state.Frequency, l.state.StateOfCharge, l.dev.VoltageMagnitude())
	if err := l.dev.WriteAnalog(pass, models.DACChannelA, vFreq); err != nil {
		return nil, l.halt(pass, "device_write", fmt.Errorf("write frequency: %w", err))
	}
	if err := l.dev.WriteAnalog(pass, models.DACChannelB, vSOC); err != nil {
		return nil, l.halt(pass, "device_write", fmt.Errorf("write soc: %w", err))
	}
	log.Debug("Pi ---> AB",
		logger.Float64("freq", l.state.Frequency),
		logger.Float64("v_freq", vFreq),
		logger.Float64("soc", l.state.StateOfCharge),
		logger.Float64("v_soc", vSOC),
	)

	// Sample
	l.phase = PhaseSample
	raw, err := l.dev.ReadChannels(pass, l.cfg.Channels)
	if err != nil {
		return nil, l.halt(pass, "device_read", fmt.Errorf("read channels: %w", err))
	}
	frame := models.SampleFrame{Raw: raw, Volts: grid.DecodeFrame(raw, l.dev.VoltsPerDigit())}
	if len(frame.Volts) < 2 {
		return nil, l.halt(pass, "device_read", fmt.Errorf("read %d channels, need 2", len(frame.Volts)))
	}
	vC := frame.Volts[0]
	vU := l.ramp.Apply(frame.Volts[1])
	log.Debug("AB ---> Pi", logger.Float64("vU", vU), logger.Float64("vC", vC))

	// Compute
	l.phase = PhaseCompute
	sig, requested := l.cfg.Limits.Signals(vU, vC)
	prev := l.state
	prev.PowerBalance, prev.PowerRising = l.cfg.Oscillator.Next(l.state.PowerBalance, l.state.PowerRising)
	step, err := l.cfg.Updater.Apply(prev, sig)
	if err != nil {
		return nil, l.halt(pass, "degenerate", err)
	}
	log.Debug("Compute on Pi",
		logger.Float64("ctrl", step.Signals.Control),
		logger.Float64("curtail", requested),
		logger.Float64("soc", step.State.StateOfCharge),
		logger.Float64("net", step.NetChange),
		logger.Float64("freq", step.State.Frequency),
	)

	next := step.State
	next.Iteration = i + 1
	l.state = next

	// Persist
	l.phase = PhasePersist
	end := l.now()
	rec := &models.Record{
		RunTag:         l.cfg.RunTag,
		Iteration:      i,
		Time:           end,
		Frequency:      next.Frequency,
		StateOfCharge:  next.StateOfCharge,
		LoopDuration:   end.Sub(start),
		FrequencyVolts: vFreq,
		SOCVolts:       vSOC,
		UVolts:         vU,
		CVolts:         vC,
		Control:        step.Signals.Control,
		Curtail:        step.Signals.Curtail,
		PowerBalance:   next.PowerBalance,
		NetChange:      step.NetChange,
	}
	l.last = rec
	l.persist(pass, rec)
	l.metrics.RecordState(next.Frequency, next.StateOfCharge, next.PowerBalance)

	// Check
	l.phase = PhaseCheck
	if !l.cfg.Limits.InPhase(next.Frequency) {
		log.Error("microgrid out of phase", logger.Float64("freq", next.Frequency))
		return rec, l.halt(pass, "out_of_phase", fmt.Errorf("%w: %.4f Hz", ErrOutOfPhase, next.Frequency))
	}
	l.saveSnapshot(pass, rec, "")

	if err := sleep(ctx, l.cfg.Delay); err != nil {
		l.metrics.RecordIteration(l.now().Sub(start).Seconds())
		return rec, err
	}
	l.metrics.RecordIteration(l.now().Sub(start).Seconds())
	l.phase = PhaseOutput
	return rec, nil
}

// persist writes to the sink synchronously, then renders and fans out.
// Failures are logged and counted but never stop the loop.
func (l *ControlLoop) persist(ctx context.Context, rec *models.Record) {
	start := l.now()
	if err := l.sink.Append(ctx, rec); err != nil {
		l.persistError("sink", err)
	}
	l.metrics.RecordLatency("sink_append", l.now().Sub(start).Seconds())

	if l.renderer != nil {
		if err := l.renderer.Render(rec); err != nil {
			l.persistError("render", err)
		}
	}
	for _, p := range l.pubs {
		cp := *rec
		if err := p.Publish(ctx, &cp); err != nil {
			l.persistError("publish", err)
		}
	}
}

func (l *ControlLoop) persistError(kind string, err error) {
	l.metrics.RecordError(kind)
	if l.limiter.Every(kind, time.Second) {
		l.log.Error("persist failed", logger.String("stage", kind), logger.Error(err))
	}
}

func (l *ControlLoop) saveSnapshot(ctx context.Context, rec *models.Record, reason string) {
	if l.snapshots == nil || rec == nil {
		return
	}
	s := &models.Snapshot{
		Record:  *rec,
		Halted:  reason != "",
		Reason:  reason,
		RunTag:  l.cfg.RunTag,
		Backend: l.cfg.Backend,
	}
	if err := l.snapshots.Save(ctx, s); err != nil {
		l.persistError("snapshot", err)
	}
}

func (l *ControlLoop) halt(ctx context.Context, reason string, err error) error {
	l.phase = PhaseHalted
	if ctx.Err() != nil {
		return err
	}
	l.metrics.RecordHalt(reason)
	l.saveSnapshot(ctx, l.last, reason)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
