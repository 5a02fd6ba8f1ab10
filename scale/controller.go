// Package scale holds render resolution under a frame-time budget.
//
// The controller is a closed loop: it consumes wall-clock frame durations and
// emits a resolution scale in [MinScale, MaxScale]. It calibrates on startup,
// then adjusts with hysteresis and locks once performance is stable, with an
// emergency path for severe single-frame drops.
package scale

import (
	"math"
	"sort"
	"time"
)

// Mode is the controller's primary state. Emergency is an overlay flag on top
// of whichever mode is active, not a mode of its own.
type Mode int

const (
	ModeCalibrating Mode = iota
	ModeNormal
	ModeLocked
)

func (m Mode) String() string {
	switch m {
	case ModeCalibrating:
		return "calibrating"
	case ModeNormal:
		return "normal"
	case ModeLocked:
		return "locked"
	}
	return "unknown"
}

// Config holds every controller tunable. Zero values are unusable; start from
// DefaultConfig.
type Config struct {
	TargetFPS float64

	MinScale float64
	MaxScale float64
	// QuantizedLevels lists allowed scales in ascending order. Empty enables
	// continuous scaling.
	QuantizedLevels []float64

	CalibrationWindow     time.Duration
	CalibrationMinSamples int
	// HeadroomFactor in (0,1): budget = target frame time * headroom.
	HeadroomFactor float64
	// SafetyMargin (<1) multiplies the calibrated optimal scale.
	SafetyMargin float64

	// Percentile of the spike-filtered history used as the decision value.
	Percentile float64
	SpikeSigma float64

	// ThresholdUp < 1 < ThresholdDown bracket the stable band of
	// decision/budget ratios.
	ThresholdUp        float64
	ThresholdDown      float64
	StableFramesToLock int
	UpCooldown         time.Duration
	DownCooldown       time.Duration
	// MinUnderBudgetRun gates up-scaling on a run of consecutive
	// under-budget updates so noise is not chased.
	MinUnderBudgetRun int

	// EmergencyThreshold (>1) triggers the overlay when a frame exceeds
	// target * threshold; EmergencyRecover (<1) clears it below
	// recover * target.
	EmergencyThreshold float64
	EmergencyRecover   float64

	// DampingFactor (<1) shrinks adjustments after each direction reversal;
	// DampingRecovery (>1) restores slowly on same-direction moves.
	DampingFactor   float64
	DampingRecovery float64
	ReversalsToLock int

	// Smoothing fractions: how much of the remaining distance to target is
	// applied per update. Down is larger than up so drops are responsive
	// while up-scaling never pulses visibly.
	SmoothingDown float64
	SmoothingUp   float64

	ThrottleTempC  float64
	TempHysteresis float64

	// Samples outside (0, MaxFrameSample] are discarded as garbage.
	MaxFrameSample time.Duration
}

// DefaultConfig targets 60 FPS between quarter and full resolution with
// quantized steps.
func DefaultConfig() Config {
	return Config{
		TargetFPS: 60,

		MinScale:        0.25,
		MaxScale:        1.0,
		QuantizedLevels: []float64{0.25, 0.33, 0.5, 0.66, 0.75, 0.85, 1.0},

		CalibrationWindow:     280 * time.Millisecond,
		CalibrationMinSamples: 8,
		HeadroomFactor:        0.9,
		SafetyMargin:          0.9,

		Percentile: 0.95,
		SpikeSigma: 3.0,

		ThresholdUp:        0.80,
		ThresholdDown:      1.05,
		StableFramesToLock: 90,
		UpCooldown:         2 * time.Second,
		DownCooldown:       350 * time.Millisecond,
		MinUnderBudgetRun:  30,

		EmergencyThreshold: 1.5,
		EmergencyRecover:   0.9,

		DampingFactor:   0.6,
		DampingRecovery: 1.08,
		ReversalsToLock: 3,

		SmoothingDown: 0.35,
		SmoothingUp:   0.10,

		ThrottleTempC:  85,
		TempHysteresis: 5,

		MaxFrameSample: 500 * time.Millisecond,
	}
}

// Controller is the adaptive resolution state machine. All state lives on the
// instance; two controllers never share anything. Not safe for concurrent use:
// it lives on the render thread.
type Controller struct {
	cfg   Config
	stats frameStats

	mode      Mode
	emergency bool

	// Internal clock: the sum of accepted samples. Cooldowns and the
	// calibration window measure against this, which keeps the controller
	// fully deterministic for a given sample sequence.
	now float64

	calibElapsed float64
	calibSamples int

	currentScale float64
	targetScale  float64
	lockedScale  float64

	stableFrames int
	underRun     int
	overRun      int

	oscillations int
	reversals    int
	lastDir      int
	damping      float64

	lastUpAt   float64
	lastDownAt float64

	prevDecision float64

	tempC     float64
	throttled bool

	target float64 // target frame time, seconds
	budget float64 // target * headroom, seconds
}

// New builds a controller starting at full scale in the Calibrating state.
func New(cfg Config) *Controller {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 60
	}
	if cfg.MinScale <= 0 {
		cfg.MinScale = 0.25
	}
	if cfg.MaxScale < cfg.MinScale {
		cfg.MaxScale = cfg.MinScale
	}
	if cfg.HeadroomFactor <= 0 || cfg.HeadroomFactor > 1 {
		cfg.HeadroomFactor = 0.9
	}
	if cfg.MaxFrameSample <= 0 {
		cfg.MaxFrameSample = 500 * time.Millisecond
	}
	sort.Float64s(cfg.QuantizedLevels)

	target := 1.0 / cfg.TargetFPS
	c := &Controller{
		cfg:          cfg,
		mode:         ModeCalibrating,
		currentScale: cfg.MaxScale,
		targetScale:  cfg.MaxScale,
		damping:      1.0,
		target:       target,
		budget:       target * cfg.HeadroomFactor,
	}
	return c
}

// Update feeds one measured frame duration and returns the scale to render the
// next frame at. Out-of-range samples are discarded, not treated as errors.
func (c *Controller) Update(sample time.Duration) float64 {
	if sample <= 0 || sample > c.cfg.MaxFrameSample {
		return c.currentScale
	}
	dt := sample.Seconds()
	c.now += dt
	c.stats.push(sample)

	if c.mode == ModeCalibrating {
		c.updateCalibrating(dt)
	} else {
		decision := c.stats.percentileFiltered(c.cfg.Percentile, c.cfg.SpikeSigma)
		c.updateEmergency(decision, dt)
		if !c.emergency {
			if c.mode == ModeLocked {
				c.updateLocked(decision)
			}
			if c.mode == ModeNormal {
				c.updateNormal(decision)
			}
		}
		c.prevDecision = decision
	}

	c.applyThermal()
	c.smooth()
	return c.currentScale
}

// updateCalibrating accumulates warm-up samples, then jumps straight to the
// scale the measurements imply. Fragment cost goes with pixel count, so with
// scale s the frame time goes with s^2 and the corrective factor is
// sqrt(budget/measured).
func (c *Controller) updateCalibrating(dt float64) {
	c.calibElapsed += dt
	c.calibSamples++
	if c.calibElapsed < c.cfg.CalibrationWindow.Seconds() || c.calibSamples < c.cfg.CalibrationMinSamples {
		return
	}

	measured := c.stats.mean()
	if measured > c.budget {
		optimal := c.currentScale * math.Sqrt(c.budget/measured) * c.cfg.SafetyMargin
		optimal = c.clampScale(c.quantize(optimal))
		// Direct jump, no ramp: nothing worth preserving is on screen yet.
		c.currentScale = optimal
		c.targetScale = optimal
	}
	c.mode = ModeNormal
	// Old samples describe the pre-calibration scale; start fresh.
	c.stats.reset()
	c.stableFrames = 0
}

// updateEmergency maintains the overlay. The trigger looks at the raw sample
// as well as the filtered decision value: spike filtering exists to keep
// one-off hitches out of steady-state decisions, but a severe single frame is
// exactly what the emergency path is for.
func (c *Controller) updateEmergency(decision, raw float64) {
	limit := c.target * c.cfg.EmergencyThreshold
	if !c.emergency {
		if raw > limit || decision > limit {
			c.emergency = true
			c.mode = ModeNormal // a lock does not survive an emergency
			c.noteDirection(-1)
			c.targetScale = c.clampScale(c.levelsDown(c.targetScale, 2))
			c.stableFrames = 0
			c.underRun = 0
			c.lastDownAt = c.now
		}
		return
	}
	clearBelow := c.cfg.EmergencyRecover * c.target
	if decision < clearBelow && raw < clearBelow {
		c.emergency = false
	}
}

// updateLocked holds the pinned scale until the budget ratio drifts well
// outside the band that justified the lock.
func (c *Controller) updateLocked(decision float64) {
	ratio := decision / c.budget
	over := ratio > c.cfg.ThresholdDown*1.1
	under := ratio < c.cfg.ThresholdUp*0.9
	// Locked at the floor there is no further downscale, so drifting further
	// over budget is not actionable; only a recovering load unlocks.
	if over && c.lockedScale <= c.cfg.MinScale+1e-6 {
		over = false
	}
	if over || under {
		c.mode = ModeNormal
		c.stableFrames = 0
		c.underRun = 0
		c.overRun = 0
	}
}

func (c *Controller) updateNormal(decision float64) {
	ratio := decision / c.budget
	switch {
	case ratio > c.cfg.ThresholdDown:
		c.stableFrames = 0
		c.underRun = 0
		c.overRun++
		if c.targetScale <= c.cfg.MinScale+1e-9 {
			// Nothing left to cut. A persistent overload at the floor locks
			// there instead of re-running no-op downscales forever.
			if c.overRun >= c.cfg.StableFramesToLock {
				c.lock()
			}
			return
		}
		if c.now-c.lastDownAt >= c.cfg.DownCooldown.Seconds() {
			c.scaleDown(decision)
		}

	case ratio < c.cfg.ThresholdUp:
		c.stableFrames = 0
		c.overRun = 0
		c.underRun++
		// Trend gate: do not scale up while frame times are worsening.
		trendOK := c.prevDecision == 0 || decision <= c.prevDecision*1.02
		if c.underRun >= c.cfg.MinUnderBudgetRun && trendOK &&
			c.now-c.lastUpAt >= c.cfg.UpCooldown.Seconds() {
			c.scaleUp()
		}

	default:
		c.underRun = 0
		c.overRun = 0
		c.stableFrames++
		if c.stableFrames >= c.cfg.StableFramesToLock {
			c.lock()
		}
	}
}

func (c *Controller) scaleDown(decision float64) {
	c.noteDirection(-1)
	if c.mode == ModeLocked {
		return // reversal cap forced a lock instead
	}
	overage := decision - c.budget
	severity := math.Sqrt(overage / c.budget)

	if len(c.cfg.QuantizedLevels) > 0 {
		steps := 1
		if severity > 0.5 && c.damping >= 1 {
			steps = 2
		}
		c.targetScale = c.clampScale(c.levelsDown(c.targetScale, steps))
	} else {
		cut := severity * 0.25 * c.damping
		if cut < 0.02 {
			cut = 0.02
		}
		if cut > 0.20 {
			cut = 0.20
		}
		c.targetScale = c.clampScale(c.targetScale * (1 - cut))
	}
	c.lastDownAt = c.now
	c.overRun = 0
}

func (c *Controller) scaleUp() {
	if c.throttled {
		return
	}
	c.noteDirection(1)
	if c.mode == ModeLocked {
		return
	}
	if len(c.cfg.QuantizedLevels) > 0 {
		c.targetScale = c.clampScale(c.levelUp(c.targetScale))
	} else {
		c.targetScale = c.clampScale(c.targetScale * (1 + 0.05*c.damping))
	}
	c.lastUpAt = c.now
	c.underRun = 0
}

// noteDirection tracks reversals for oscillation damping. Three reversals in a
// row force an immediate lock at the current scale.
func (c *Controller) noteDirection(dir int) {
	if c.lastDir != 0 && dir != c.lastDir {
		c.oscillations++
		c.reversals++
		c.damping *= c.cfg.DampingFactor
		if c.cfg.ReversalsToLock > 0 && c.reversals >= c.cfg.ReversalsToLock {
			c.lock()
		}
	} else {
		c.reversals = 0
		if c.cfg.DampingRecovery > 1 {
			c.damping = math.Min(1, c.damping*c.cfg.DampingRecovery)
		}
	}
	c.lastDir = dir
}

func (c *Controller) lock() {
	c.mode = ModeLocked
	c.lockedScale = c.currentScale
	c.targetScale = c.currentScale
	c.stableFrames = 0
	c.reversals = 0
}

// applyThermal biases the target toward minimum while the sensor reads above
// the throttle point, with a hysteresis band before throttling clears.
func (c *Controller) applyThermal() {
	if c.cfg.ThrottleTempC <= 0 {
		return
	}
	if c.tempC >= c.cfg.ThrottleTempC {
		c.throttled = true
	} else if c.tempC < c.cfg.ThrottleTempC-c.cfg.TempHysteresis {
		c.throttled = false
	}
	if c.throttled && c.targetScale > c.cfg.MinScale {
		c.targetScale += (c.cfg.MinScale - c.targetScale) * 0.1
	}
}

// smooth moves the applied scale a fraction of the remaining distance toward
// the target. Scaling down uses a larger fraction than scaling up, and an
// active emergency interpolates at near-full speed.
func (c *Controller) smooth() {
	delta := c.targetScale - c.currentScale
	if math.Abs(delta) < 1e-4 {
		c.currentScale = c.targetScale
		return
	}
	f := c.cfg.SmoothingUp
	if delta < 0 {
		f = c.cfg.SmoothingDown
	}
	if c.emergency {
		f = 0.85
	}
	c.currentScale += delta * f
}

// SetTemperature feeds an optional GPU temperature reading in Celsius.
func (c *Controller) SetTemperature(celsius float64) { c.tempC = celsius }

// Unlock drops a lock and returns to Normal. No-op in other modes.
func (c *Controller) Unlock() {
	if c.mode == ModeLocked {
		c.mode = ModeNormal
		c.stableFrames = 0
	}
}

// Reset returns the controller to its initial calibrating state.
func (c *Controller) Reset() {
	c.stats.reset()
	c.mode = ModeCalibrating
	c.emergency = false
	c.now = 0
	c.calibElapsed = 0
	c.calibSamples = 0
	c.currentScale = c.cfg.MaxScale
	c.targetScale = c.cfg.MaxScale
	c.lockedScale = 0
	c.stableFrames = 0
	c.underRun = 0
	c.overRun = 0
	c.oscillations = 0
	c.reversals = 0
	c.lastDir = 0
	c.damping = 1
	c.lastUpAt = 0
	c.lastDownAt = 0
	c.prevDecision = 0
	c.throttled = false
}

// AppliedScale is the smoothed scale rendering should use this frame.
func (c *Controller) AppliedScale() float64 { return c.currentScale }

// TargetScale is where the controller is heading.
func (c *Controller) TargetScale() float64 { return c.targetScale }

// LockedScale is the pinned scale while locked, 0 otherwise.
func (c *Controller) LockedScale() float64 {
	if c.mode != ModeLocked {
		return 0
	}
	return c.lockedScale
}

func (c *Controller) Mode() Mode      { return c.mode }
func (c *Controller) Locked() bool    { return c.mode == ModeLocked }
func (c *Controller) Emergency() bool { return c.emergency }
func (c *Controller) Throttled() bool { return c.throttled }

// Oscillations counts direction reversals since creation or Reset.
func (c *Controller) Oscillations() int { return c.oscillations }

// FPS is the measured frame rate over the sample window, 0 before any samples.
func (c *Controller) FPS() float64 {
	m := c.stats.mean()
	if m <= 0 {
		return 0
	}
	return 1 / m
}

func (c *Controller) clampScale(s float64) float64 {
	if s < c.cfg.MinScale {
		return c.cfg.MinScale
	}
	if s > c.cfg.MaxScale {
		return c.cfg.MaxScale
	}
	return s
}

// quantize snaps to the nearest allowed level; identity when levels are off.
func (c *Controller) quantize(s float64) float64 {
	levels := c.cfg.QuantizedLevels
	if len(levels) == 0 {
		return s
	}
	best := levels[0]
	for _, l := range levels[1:] {
		if math.Abs(l-s) < math.Abs(best-s) {
			best = l
		}
	}
	return best
}

// levelsDown steps n quantized levels below s, or cuts 20% per step when
// scaling is continuous.
func (c *Controller) levelsDown(s float64, n int) float64 {
	levels := c.cfg.QuantizedLevels
	if len(levels) == 0 {
		return s * math.Pow(0.8, float64(n))
	}
	out := s
	for i := 0; i < n; i++ {
		next := -1.0
		for _, l := range levels {
			if l < out-1e-6 {
				next = l
			}
		}
		if next < 0 {
			break
		}
		out = next
	}
	return out
}

// levelUp steps one quantized level above s, or 5% when continuous.
func (c *Controller) levelUp(s float64) float64 {
	levels := c.cfg.QuantizedLevels
	if len(levels) == 0 {
		return s * 1.05
	}
	for _, l := range levels {
		if l > s+1e-6 {
			return l
		}
	}
	return s
}
