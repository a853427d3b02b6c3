package clock

import (
	"time"

	"github.com/ivahaev/timer"
)

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was stopped before.
	Stop() bool
	Pause() bool
	Resume() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real runs callbacks on pausable wall clock timers. Callbacks are handed to
// dispatch instead of being run on the timer goroutine, so the owner of the
// game state can serialize them with everything else.
type Real struct {
	dispatch func(func())
}

func NewReal(dispatch func(func())) *Real {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Real{dispatch: dispatch}
}

func (*Real) Now() time.Time { return time.Now() }

func (r *Real) AfterFunc(d time.Duration, f func()) Timer {
	t := timer.AfterFunc(d, func() { r.dispatch(f) })
	t.Start()
	return &realTimer{t}
}

type realTimer struct {
	t *timer.Timer
}

func (rt *realTimer) Stop() bool   { return rt.t.Stop() }
func (rt *realTimer) Pause() bool  { return rt.t.Pause() }
func (rt *realTimer) Resume() bool { return rt.t.Start() }
