package main

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/hud"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/session"
	"github.com/sauerbraten/arena/internal/transport"
)

type node struct {
	t       transport.Transport
	sess    *session.Session
	hud     *hud.HUD
	console *console
}

type table struct {
	network *transport.Network
	clock   *clock.Manual
	nodes   []*node
}

func newTable() *table {
	return &table{network: transport.NewNetwork(), clock: clock.NewManual(time.Unix(0, 0))}
}

func (tb *table) add(t *testing.T, tr transport.Transport) *node {
	t.Helper()
	bus := &events.Bus{}
	n := &node{t: tr}
	n.sess = session.New(tr, session.Config{
		Player:    player.DefaultConfig(),
		SpawnZone: geom.SpawnZone{Radius: 10},
	}, session.Deps{Bus: bus, Clock: tb.clock, Rng: rng.New(int64(len(tb.nodes) + 1)), Log: zap.NewNop()})
	n.hud = hud.New(nil, rng.New(1), func() { n.sess.SetInputEnabled(false) }, func() { n.sess.SetInputEnabled(true) })
	n.hud.Attach(bus)
	n.console = &console{sess: n.sess, hud: n.hud, killY: -30}
	tb.nodes = append(tb.nodes, n)
	return n
}

func (tb *table) pump() {
	for busy := true; busy; {
		busy = false
		for _, n := range tb.nodes {
			select {
			case e, ok := <-n.t.Events():
				if ok {
					busy = true
					n.sess.HandleEvent(e)
				}
			default:
			}
		}
	}
}

func (tb *table) tick(n *node) {
	n.sess.Tick(1.0/60, n.console.Frame(), nil)
	tb.pump()
}

func setupGame(t *testing.T) (*table, *node, *node) {
	tb := newTable()
	srv, err := tb.network.Listen()
	require.NoError(t, err)
	alice := tb.add(t, srv)
	require.NoError(t, alice.sess.Host("Alice"))

	bob := tb.add(t, tb.network.Connect())
	require.NoError(t, bob.sess.Join("Bob"))
	tb.pump()
	require.NotNil(t, bob.sess.Local())
	return tb, alice, bob
}

func TestAimChargeAndRelease(t *testing.T) {
	tb, alice, bob := setupGame(t)

	alice.console.Handle("/aim Bob")
	alice.console.Handle("/charge")
	tb.tick(alice)
	require.True(t, alice.sess.Local().Weapon().IsCharging())

	tb.clock.Advance(2 * time.Second)
	alice.console.Handle("/release")
	tb.tick(alice)

	assert.Equal(t, 1, alice.sess.Score())
	assert.Equal(t, "Score: 1", alice.hud.ScoreLabel())
	assert.Contains(t, alice.hud.History(), "You shot Bob")
	assert.Contains(t, bob.hud.History(), "You were shot by Alice")
	assert.Equal(t, 100, bob.hud.Health())
}

func TestChatAndUnknownCommands(t *testing.T) {
	tb, alice, bob := setupGame(t)

	assert.True(t, bob.console.Handle("hello there"))
	tb.pump()
	assert.Contains(t, alice.hud.History(), "Bob: hello there")
	assert.NotContains(t, bob.hud.History(), "Bob: hello there")

	bob.console.Handle("/dance")
	assert.Contains(t, bob.hud.History(), "unknown command /dance")

	bob.console.Handle("/aim Nobody")
	assert.Contains(t, bob.hud.History(), "nobody called Nobody")
}

func TestMovementInput(t *testing.T) {
	_, _, bob := setupGame(t)

	bob.console.Handle("/move 3 4")
	in := bob.console.Frame()
	assert.InDelta(t, 1.0, in.Move.Len(), 1e-9)

	bob.console.Handle("/jump")
	assert.True(t, bob.console.Frame().Jump)
	assert.False(t, bob.console.Frame().Jump)

	bob.console.Handle("/stop")
	assert.Equal(t, mgl64.Vec2{}, bob.console.Frame().Move)

	bob.console.Handle("/move up")
	assert.Contains(t, bob.hud.History(), "usage: /move <x> <z>")
}

func TestFallCommandRespawns(t *testing.T) {
	tb, alice, bob := setupGame(t)

	bob.console.Handle("/fall")
	bob.sess.Tick(1.0/60, bob.console.Frame(), geom.Arena{Radius: 40, KillY: -30})
	tb.pump()

	assert.True(t, geom.SpawnZone{Radius: 10}.Contains(bob.sess.Local().Position))
	assert.Len(t, alice.hud.History(), 3) // welcome, join, fall
	assert.Regexp(t, `^Bob `, alice.hud.History()[2])
}

func TestPauseAndQuit(t *testing.T) {
	_, _, bob := setupGame(t)

	bob.console.Handle("/pause")
	assert.False(t, bob.sess.Local().InputEnabled())
	bob.console.Handle("/resume")
	assert.True(t, bob.sess.Local().InputEnabled())

	assert.True(t, bob.console.Handle("/quit"))
	assert.False(t, bob.sess.Local().InputEnabled())
	assert.True(t, bob.console.Handle("oops"))
	assert.True(t, bob.sess.Local().InputEnabled())

	bob.console.Handle("/quit")
	assert.False(t, bob.console.Handle("/quit"))
	assert.True(t, bob.console.quit)
}

func TestStatsWithoutLedger(t *testing.T) {
	_, alice, _ := setupGame(t)
	alice.console.Handle("/stats")
	assert.Contains(t, alice.hud.History(), "Score: 0, health 100")
}
