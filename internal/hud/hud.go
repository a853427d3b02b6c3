// Package hud turns game events into the text a player sees.
package hud

import (
	"fmt"
	"io"

	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/rng"
)

const (
	DefaultMaxHistory = 1000
	// share of the history dropped when it overflows, in percent
	historyTrimPercent = 10
)

// HUD keeps the message history, score and health of the local player and
// echoes new messages to a writer.
type HUD struct {
	out        io.Writer
	rng        rng.Source
	maxHistory int

	self    string
	score   int
	health  int
	history []string
	visible bool

	quitting bool
	onPause  func()
	onResume func()
}

// New creates a HUD writing to out. onPause and onResume are called when the
// quit confirmation opens and closes, so input can be frozen meanwhile.
func New(out io.Writer, r rng.Source, onPause, onResume func()) *HUD {
	if onPause == nil {
		onPause = func() {}
	}
	if onResume == nil {
		onResume = func() {}
	}
	return &HUD{
		out:        out,
		rng:        r,
		maxHistory: DefaultMaxHistory,
		onPause:    onPause,
		onResume:   onResume,
	}
}

// Attach subscribes the HUD to bus.
func (h *HUD) Attach(bus *events.Bus) {
	bus.OnNewGameStarted(h.newGame)
	bus.OnPlayerJoined(func(name string) {
		if !h.isSelf(name) {
			h.add(name + " joined the game")
		}
	})
	bus.OnPlayerLeft(func(name string) {
		if !h.isSelf(name) {
			h.add(name + " left the game")
		}
	})
	bus.OnPlayerScored(func(score int, shooter, victim string) {
		h.add(ShotPlayer(h.isSelf(shooter), shooter, victim))
		if h.isSelf(shooter) {
			h.score = score
		}
	})
	bus.OnPlayerRespawnedShot(func(name, shooter string) {
		h.add(RespawnedShot(h.isSelf(name), name, shooter))
	})
	bus.OnPlayerRespawnedFell(func(name string) {
		h.add(RandomFallMessage(h.isSelf(name), name, h.rng))
	})
	bus.OnSelfHealthChanged(func(_ string, health int) { h.health = health })
	bus.OnRemoteMessageReceived(h.add)
	bus.OnKickedFromServer(func(reason string) {
		h.add(reason)
		h.visible = false
	})
	bus.OnServerShutDown(func() {
		h.add("The server shut down.")
		h.visible = false
	})
	bus.OnJoinFailed(h.add)
}

func (h *HUD) isSelf(name string) bool { return h.self != "" && h.self == name }

func (h *HUD) newGame(self string) {
	h.self = self
	h.score = 0
	h.health = 100
	h.history = nil
	h.visible = true
	h.add("Welcome, " + self)
}

func (h *HUD) add(msg string) {
	h.history = append(h.history, msg)
	if len(h.history) > h.maxHistory {
		drop := h.maxHistory * historyTrimPercent / 100
		if drop < 1 {
			drop = 1
		}
		h.history = append(h.history[:0], h.history[drop:]...)
	}
	if h.out != nil {
		fmt.Fprintln(h.out, msg)
	}
}

// Print shows a local notice, e.g. command feedback.
func (h *HUD) Print(msg string) { h.add(msg) }

func (h *HUD) History() []string { return h.history }

func (h *HUD) Score() int { return h.score }

func (h *HUD) ScoreLabel() string { return fmt.Sprintf("Score: %d", h.score) }

func (h *HUD) Health() int { return h.health }

func (h *HUD) Visible() bool { return h.visible }

// ToggleQuit opens the quit confirmation, or closes it when already open.
func (h *HUD) ToggleQuit() {
	if h.quitting {
		h.CancelQuit()
		return
	}
	h.quitting = true
	h.add("Really quit? Type /quit again to confirm, anything else to cancel.")
	h.onPause()
}

// Quitting reports whether the quit confirmation is open.
func (h *HUD) Quitting() bool { return h.quitting }

func (h *HUD) CancelQuit() {
	if !h.quitting {
		return
	}
	h.quitting = false
	h.onResume()
}
