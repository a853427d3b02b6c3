package hud

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/rng"
)

func newHUD() (*HUD, *events.Bus, *bytes.Buffer) {
	var out bytes.Buffer
	bus := &events.Bus{}
	h := New(&out, rng.New(1), nil, nil)
	h.Attach(bus)
	return h, bus, &out
}

func TestMessagesFromOwnPerspective(t *testing.T) {
	h, bus, out := newHUD()

	bus.NewGameStarted("Bob")
	bus.PlayerJoined("Bob")
	bus.PlayerJoined("Carol")
	bus.PlayerScored(1, "Bob", "Carol")
	bus.PlayerScored(1, "Alice", "Carol")
	bus.PlayerRespawnedShot("Bob", "Alice")
	bus.PlayerRespawnedShot("Carol", "Alice")
	bus.PlayerLeft("Carol")
	bus.RemoteMessageReceived("Alice: gg")

	assert.Equal(t, []string{
		"Welcome, Bob",
		"Carol joined the game",
		"You shot Carol",
		"Alice shot Carol",
		"You were shot by Alice",
		"Carol was shot by Alice",
		"Carol left the game",
		"Alice: gg",
	}, h.History())
	assert.Contains(t, out.String(), "You were shot by Alice\n")
	assert.Equal(t, "Score: 1", h.ScoreLabel())
}

func TestHealthAndVisibility(t *testing.T) {
	h, bus, _ := newHUD()
	assert.False(t, h.Visible())

	bus.NewGameStarted("Bob")
	assert.True(t, h.Visible())
	assert.Equal(t, 100, h.Health())

	bus.SelfHealthChanged("Bob", 20)
	assert.Equal(t, 20, h.Health())

	bus.ServerShutDown()
	assert.False(t, h.Visible())
	assert.Equal(t, "The server shut down.", h.History()[len(h.History())-1])
}

func TestFallMessages(t *testing.T) {
	assert.Equal(t, "You found out you couldn't fly", FallMessage(true, "Bob", 2))
	assert.Equal(t, "Bob didn't realize they were near the edge", FallMessage(false, "Bob", 3))
	assert.Equal(t, "Bob fell off the world", FallMessage(false, "Bob", len(fallTemplates)))
	assert.Equal(t, "Bob learned how to fall with style", FallMessage(false, "Bob", -1))

	for i := 0; i < 50; i++ {
		msg := RandomFallMessage(false, "Bob", rng.New(int64(i+1)))
		assert.Regexp(t, `^Bob \S`, msg)
		assert.NotContains(t, msg, "{")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	h, bus, _ := newHUD()
	bus.NewGameStarted("Bob")

	for i := 0; i < DefaultMaxHistory; i++ {
		h.Print(fmt.Sprint(i))
	}
	// welcome + 1000 lines overflowed once
	require.Len(t, h.History(), DefaultMaxHistory+1-DefaultMaxHistory/10)
	assert.Equal(t, "99", h.History()[0])
	assert.Equal(t, "999", h.History()[len(h.History())-1])
}

func TestQuitConfirmationPausesInput(t *testing.T) {
	var paused, resumed int
	h := New(nil, rng.New(1), func() { paused++ }, func() { resumed++ })

	h.ToggleQuit()
	assert.True(t, h.Quitting())
	assert.Equal(t, 1, paused)

	h.ToggleQuit()
	assert.False(t, h.Quitting())
	assert.Equal(t, 1, resumed)

	h.CancelQuit()
	assert.Equal(t, 1, resumed)
}
