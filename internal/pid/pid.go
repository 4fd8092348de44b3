// Package pid computes control signals for a single feedback loop, typically
// a motor speed derived from a sensor reading.
package pid

import (
	"math"
	"time"
)

// Config parametrizes a controller. Zero gains and a zero half-life disable
// the corresponding term.
type Config struct {
	Setpoint float64
	// GainProp is the proportional gain. Too high values oscillate.
	GainProp float64
	// GainDer is the derivative gain [s]; damps overshoot.
	GainDer float64
	// GainInt is the integral gain [1/s]; removes steady-state error.
	GainInt float64
	// HalfLife smooths noisy readings exponentially.
	HalfLife time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Controller is not safe for concurrent use.
type Controller struct {
	cfg Config

	started  bool
	last     time.Time
	value    float64
	err      float64
	integral float64
}

func New(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Controller{cfg: cfg}
}

// Signal returns the control signal for the measured value actual.
func (c *Controller) Signal(actual float64) float64 {
	now := c.cfg.Clock()
	if !c.started {
		c.started = true
		c.last = now
		c.value = actual
		c.integral = 0
		c.err = c.cfg.Setpoint - actual
		return c.cfg.GainProp * c.err
	}

	dt := now.Sub(c.last).Seconds()
	c.last = now
	if c.cfg.HalfLife > 0 {
		decay := math.Exp(-math.Ln2 / c.cfg.HalfLife.Seconds() * dt)
		c.value = decay*c.value + actual*(1-decay)
	} else {
		c.value = actual
	}
	e := c.cfg.Setpoint - c.value

	var signalInt, signalDer float64
	if c.cfg.GainInt != 0 {
		c.integral += e * dt
		signalInt = c.cfg.GainInt * c.integral
	}
	if c.cfg.GainDer != 0 && dt > 0 {
		signalDer = c.cfg.GainDer * (e - c.err) / dt
	}
	c.err = e
	return c.cfg.GainProp*e + signalInt + signalDer
}

// Reset forgets all state; the next Signal starts a fresh loop.
func (c *Controller) Reset() {
	c.started = false
	c.integral = 0
}

func (c *Controller) Setpoint() float64 {
	return c.cfg.Setpoint
}
