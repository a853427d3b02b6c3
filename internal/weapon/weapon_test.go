package weapon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauerbraten/arena/internal/clock"
)

func newTestWeapon() (*Weapon, *clock.Manual) {
	clk := clock.NewManual(time.Unix(1000, 0))
	return New(DefaultConfig(), clk), clk
}

func TestDischargeWithoutChargeDoesNothing(t *testing.T) {
	w, _ := newTestWeapon()
	_, ok := w.Discharge()
	assert.False(t, ok)
}

func TestImmediateReleaseHasMinimumEnergy(t *testing.T) {
	w, _ := newTestWeapon()
	require.True(t, w.Charge())

	energy, ok := w.Discharge()
	require.True(t, ok)
	assert.InDelta(t, 1.0/15, energy, 1e-9)
	assert.False(t, w.IsCharging())
}

func TestFullChargeHasFullEnergy(t *testing.T) {
	w, clk := newTestWeapon()
	w.Charge()
	clk.Advance(3 * time.Second)

	energy, ok := w.Discharge()
	require.True(t, ok)
	assert.Equal(t, 1.0, energy)
}

func TestChargeIsIdempotent(t *testing.T) {
	w, clk := newTestWeapon()
	w.Charge()
	clk.Advance(time.Second)
	before := w.Ramp()

	assert.False(t, w.Charge())
	assert.Equal(t, before, w.Ramp())

	// easing out: half the time covers three quarters of the range
	assert.InDelta(t, 1+14*0.75, before, 1e-9)
}

func TestSpinDownStartsFromCurrentRamp(t *testing.T) {
	w, clk := newTestWeapon()
	w.Charge()
	clk.Advance(2 * time.Second)
	w.Discharge()

	assert.Equal(t, 15.0, w.Ramp())
	clk.Advance(time.Second)
	assert.InDelta(t, 15-14*0.75, w.Ramp(), 1e-9)

	// recharging mid spin-down resumes from there, not from the minimum
	w.Charge()
	assert.InDelta(t, 15-14*0.75, w.Ramp(), 1e-9)

	clk.Advance(2 * time.Second)
	assert.Equal(t, 15.0, w.Ramp())
}

func TestEnergyBounds(t *testing.T) {
	w, clk := newTestWeapon()
	for i := 0; i < 200; i++ {
		w.Charge()
		clk.Advance(time.Duration(i*37%2500) * time.Millisecond)
		energy, ok := w.Discharge()
		require.True(t, ok)
		assert.GreaterOrEqual(t, energy, 1.0/15)
		assert.LessOrEqual(t, energy, 1.0)
		clk.Advance(time.Duration(i*53%3000) * time.Millisecond)
	}
}
