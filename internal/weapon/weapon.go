package weapon

import (
	"time"

	"github.com/sauerbraten/arena/internal/clock"
)

type Config struct {
	MinSpeed float64       `json:"min_speed"`
	MaxSpeed float64       `json:"max_speed"`
	SpinUp   time.Duration `json:"spin_up_in_ms"`
	SpinDown time.Duration `json:"spin_down_in_ms"`
}

func DefaultConfig() Config {
	return Config{
		MinSpeed: 1,
		MaxSpeed: 15,
		SpinUp:   2 * time.Second,
		SpinDown: 2 * time.Second,
	}
}

// Weapon is the charge/discharge state machine of an energy gun. While the
// trigger is held the barrel spins up towards MaxSpeed; releasing it fires
// once with energy proportional to the current spin, then the barrel spins
// back down to MinSpeed.
type Weapon struct {
	cfg   Config
	clock clock.Clock

	charging bool

	// current tween
	from, to float64
	started  time.Time
	duration time.Duration
}

func New(cfg Config, clk clock.Clock) *Weapon {
	return &Weapon{
		cfg:   cfg,
		clock: clk,
		from:  cfg.MinSpeed,
		to:    cfg.MinSpeed,
	}
}

func (w *Weapon) IsCharging() bool { return w.charging }

// Ramp returns the current spin speed, always in [MinSpeed, MaxSpeed].
func (w *Weapon) Ramp() float64 {
	progress := 1.0
	if w.duration > 0 {
		progress = float64(w.clock.Now().Sub(w.started)) / float64(w.duration)
	}
	if progress > 1 {
		progress = 1
	} else if progress < 0 {
		progress = 0
	}

	v := w.from + (w.to-w.from)*easeOutQuad(progress)
	if v < w.cfg.MinSpeed {
		v = w.cfg.MinSpeed
	} else if v > w.cfg.MaxSpeed {
		v = w.cfg.MaxSpeed
	}
	return v
}

// Energy is the charge a discharge at this instant would carry.
func (w *Weapon) Energy() float64 { return w.Ramp() / w.cfg.MaxSpeed }

// Charge starts spinning up. It reports false when already charging.
func (w *Weapon) Charge() bool {
	if w.charging {
		return false
	}
	w.charging = true
	w.tweenTo(w.cfg.MaxSpeed, w.cfg.SpinUp)
	return true
}

// Discharge fires and starts spinning down. ok is false when the weapon was
// not charging, in which case nothing is fired.
func (w *Weapon) Discharge() (energy float64, ok bool) {
	if !w.charging {
		return 0, false
	}
	energy = w.Energy()
	w.charging = false
	w.tweenTo(w.cfg.MinSpeed, w.cfg.SpinDown)
	return energy, true
}

// tween from wherever the ramp is now
func (w *Weapon) tweenTo(target float64, d time.Duration) {
	w.from = w.Ramp()
	w.to = target
	w.started = w.clock.Now()
	w.duration = d
}

func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}
