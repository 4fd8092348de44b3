package pid

import (
	"math"
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFirstSignalIsProportional(t *testing.T) {
	clk := &stepClock{now: time.Unix(1700000000, 0)}
	c := New(Config{Setpoint: 10, GainProp: 2, GainInt: 5, GainDer: 7, Clock: clk.Now})
	if got := c.Signal(4); !near(got, 12) {
		t.Fatalf("first signal got=%v want=12", got)
	}
}

func TestIntegralAndDerivativeTerms(t *testing.T) {
	clk := &stepClock{now: time.Unix(1700000000, 0)}
	c := New(Config{Setpoint: 10, GainProp: 1, GainInt: 0.5, GainDer: 2, Clock: clk.Now})
	c.Signal(4) // err=6

	clk.advance(2 * time.Second)
	// err=2, integral=4, derivative=(2-6)/2=-2
	want := 1*2.0 + 0.5*4 + 2*(-2.0)
	if got := c.Signal(8); !near(got, want) {
		t.Fatalf("second signal got=%v want=%v", got, want)
	}

	clk.advance(time.Second)
	// err=0, integral=4, derivative=(0-2)/1=-2
	want = 0 + 0.5*4 + 2*(-2.0)
	if got := c.Signal(10); !near(got, want) {
		t.Fatalf("third signal got=%v want=%v", got, want)
	}
}

func TestHalfLifeSmoothsReadings(t *testing.T) {
	clk := &stepClock{now: time.Unix(1700000000, 0)}
	c := New(Config{Setpoint: 0, GainProp: 1, HalfLife: time.Second, Clock: clk.Now})
	c.Signal(0)
	clk.advance(time.Second)
	// one half-life: smoothed value is halfway between 0 and 10
	if got := c.Signal(10); !near(got, -5) {
		t.Fatalf("smoothed signal got=%v want=-5", got)
	}
}

func TestZeroElapsedSkipsDerivative(t *testing.T) {
	clk := &stepClock{now: time.Unix(1700000000, 0)}
	c := New(Config{Setpoint: 1, GainProp: 1, GainDer: 3, Clock: clk.Now})
	c.Signal(0)
	got := c.Signal(0.5)
	if math.IsNaN(got) || math.IsInf(got, 0) || !near(got, 0.5) {
		t.Fatalf("signal with dt=0 got=%v want=0.5", got)
	}
}

func TestResetStartsFreshLoop(t *testing.T) {
	clk := &stepClock{now: time.Unix(1700000000, 0)}
	c := New(Config{Setpoint: 5, GainProp: 1, GainInt: 1, Clock: clk.Now})
	c.Signal(0)
	clk.advance(time.Second)
	c.Signal(0)
	c.Reset()
	clk.advance(time.Second)
	if got := c.Signal(3); !near(got, 2) {
		t.Fatalf("signal after reset got=%v want=2", got)
	}
}
