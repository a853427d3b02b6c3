package session

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/combat"
	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/pkg/protocol"
)

var testZone = geom.SpawnZone{Center: mgl64.Vec3{0, 0, 0}, Radius: 10}

type peer struct {
	s   *Session
	t   transport.Transport
	rec *events.Recorder
	aim *combat.FixedAim
}

type harness struct {
	t       *testing.T
	network *transport.Network
	clock   *clock.Manual
	peers   []*peer
	stats   *fakeStats
	bans    Bans
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		network: transport.NewNetwork(),
		clock:   clock.NewManual(time.Unix(0, 0)),
		stats:   &fakeStats{},
	}
}

func (h *harness) newPeer(tr transport.Transport) *peer {
	bus := &events.Bus{}
	p := &peer{t: tr, rec: events.NewRecorder(bus), aim: &combat.FixedAim{}}
	p.s = New(tr, Config{
		Player:    player.DefaultConfig(),
		SpawnZone: testZone,
	}, Deps{
		Scene: p.aim,
		Bus:   bus,
		Clock: h.clock,
		Rng:   rng.New(int64(len(h.peers) + 1)),
		Log:   zap.NewNop(),
		Stats: h.stats,
		Bans:  h.bans,
	})
	h.peers = append(h.peers, p)
	return p
}

func (h *harness) host(name string, wrap ...func(*transport.Loopback) transport.Transport) *peer {
	l, err := h.network.Listen()
	require.NoError(h.t, err)

	var tr transport.Transport = l
	for _, w := range wrap {
		tr = w(l)
	}

	p := h.newPeer(tr)
	require.NoError(h.t, p.s.Host(name))
	h.pump()
	return p
}

func (h *harness) join(name string) *peer {
	p := h.newPeer(h.network.Connect())
	require.NoError(h.t, p.s.Join(name))
	h.pump()
	return p
}

// pump hands queued transport events to their sessions until all queues are empty.
func (h *harness) pump() {
	for busy := true; busy; {
		busy = false
		for _, p := range h.peers {
			select {
			case e, ok := <-p.t.Events():
				if !ok {
					continue
				}
				busy = true
				p.s.HandleEvent(e)
			default:
			}
		}
	}
}

func fire(p *peer, at *peer, energy float64) {
	p.aim.Set(at.s.Local().ID)
	p.s.combat.Discharge(p.s.Local(), energy)
}

type fakeStats struct {
	frags []string
	falls []string
}

func (f *fakeStats) RecordFrag(_ uuid.UUID, shooter, victim string) error {
	f.frags = append(f.frags, shooter+">"+victim)
	return nil
}

func (f *fakeStats) RecordFall(_ uuid.UUID, name string) error {
	f.falls = append(f.falls, name)
	return nil
}

func TestHostSelfJoin(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")

	assert.Equal(t, []string{"NewGameStarted(Alice)"}, alice.rec.Log())
	require.NotNil(t, alice.s.Local())
	assert.True(t, alice.s.Local().IsLocalAuthority())
	assert.Equal(t, transport.ServerID, alice.s.Local().ID)
	assert.True(t, testZone.Contains(alice.s.Local().Position))
}

func TestHostRejectsInvalidName(t *testing.T) {
	h := newHarness(t)
	l, _ := h.network.Listen()
	p := h.newPeer(l)

	assert.ErrorIs(t, p.s.Host("Alice Smith"), ErrInvalidName)
	assert.Nil(t, p.s.Local())
}

func TestClientJoin(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")

	assert.Equal(t, []string{"NewGameStarted(Bob)"}, bob.rec.Log())
	assert.Equal(t, []string{"NewGameStarted(Alice)", "PlayerJoined(Bob)"}, alice.rec.Log())

	require.NotNil(t, bob.s.Local())
	assert.Equal(t, transport.PeerID(2), bob.s.Local().ID)
	assert.Equal(t, 2, bob.s.Roster().Len())

	hostOnBob, ok := bob.s.Roster().ByID(transport.ServerID)
	require.True(t, ok)
	assert.False(t, hostOnBob.IsLocalAuthority())
	assert.Equal(t, "Alice", hostOnBob.Name)

	carol := h.join("Carol")
	assert.Equal(t, []string{"NewGameStarted(Carol)"}, carol.rec.Log())
	assert.Equal(t, 1, bob.rec.Count("PlayerJoined(Carol)"))
	assert.Equal(t, 3, carol.s.Roster().Len())

	// the join timer must not fire after a successful join
	h.clock.Advance(time.Minute)
	h.pump()
	assert.Zero(t, bob.rec.Count("JoinFailed(Failed to connect to server, timed out.)"))
}

func TestDuplicateNameIsKicked(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	h.join("Bob")
	impostor := h.join("Bob")

	assert.Equal(t, []string{"KickedFromServer(Your name is already in use by another player.)"}, impostor.rec.Log())
	assert.Nil(t, impostor.s.Local())
	assert.Equal(t, 2, alice.s.Roster().Len())
	assert.Equal(t, 1, alice.rec.Count("PlayerJoined(Bob)"))
	assert.Empty(t, impostor.t.Peers())

	// the kick ended the join, so the timer stays quiet
	h.clock.Advance(time.Minute)
	assert.Len(t, impostor.rec.Log(), 1)
}

func TestKickAfterJoinIsNotAShutdown(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	bob.rec.Reset()

	bob.s.relay.SendToServer(protocol.RequestPlayerSlot{Name: "Bob"})
	h.pump()

	assert.Equal(t, []string{"KickedFromServer(You're already in the game.)"}, bob.rec.Log())
	assert.Nil(t, bob.s.Local())
	assert.Equal(t, 1, alice.rec.Count("PlayerLeft(Bob)"))
}

func TestHitScenario(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")

	fire(alice, bob, 0.8)
	h.pump()

	assert.Equal(t, 20, bob.s.Local().Health)
	assert.Equal(t, 1, bob.rec.Count("SelfHealthChanged(Bob, 20)"))
	mirror, _ := alice.s.Roster().ByID(bob.s.Local().ID)
	assert.Equal(t, 20, mirror.Health)

	fire(alice, bob, 0.3)
	h.pump()

	self := bob.s.Local()
	assert.Equal(t, 100, self.Health)
	assert.True(t, testZone.Contains(self.Position))
	assert.Equal(t, []string{
		"NewGameStarted(Bob)",
		"PlayerJoined(Carol)",
		"ShotFired(Alice)",
		"SelfHealthChanged(Bob, 20)",
		"ShotFired(Alice)",
		"PlayerRespawnedShot(Bob, Alice)",
		"SelfHealthChanged(Bob, 100)",
	}, bob.rec.Log())

	assert.Equal(t, 1, alice.rec.Count("PlayerScored(1, Alice, Bob)"))
	assert.Equal(t, 1, alice.rec.Count("PlayerRespawnedShot(Bob, Alice)"))
	assert.Equal(t, 1, carol.rec.Count("PlayerRespawnedShot(Bob, Alice)"))
	assert.Equal(t, 1, alice.s.Score())
	assert.Equal(t, []string{"Alice>Bob"}, h.stats.frags)
}

func TestClientHitsClientThroughServer(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")

	fire(bob, carol, 1)
	h.pump()

	assert.Equal(t, 100, carol.s.Local().Health)
	assert.Equal(t, 1, carol.rec.Count("PlayerRespawnedShot(Carol, Bob)"))
	assert.Equal(t, 1, alice.rec.Count("PlayerRespawnedShot(Carol, Bob)"))
	assert.Equal(t, 1, bob.rec.Count("PlayerRespawnedShot(Carol, Bob)"))
	assert.Equal(t, 1, bob.rec.Count("PlayerScored(1, Bob, Carol)"))
	assert.Equal(t, 100, alice.s.Local().Health)
}

func TestHitOnDepartedVictimIsDropped(t *testing.T) {
	h := newHarness(t)
	h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")

	bob.aim.Set(carol.s.Local().ID)
	require.NoError(t, carol.s.Close())
	h.pump()

	// Bob's roster no longer knows Carol, so the shot hits nothing
	bob.s.combat.Discharge(bob.s.Local(), 1)
	h.pump()
	assert.Zero(t, bob.s.Score())
	assert.Equal(t, 1, bob.rec.Count("PlayerLeft(Carol)"))
}

func TestChatReachesEveryoneElseOnce(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")
	dave := h.join("Dave")

	bob.s.SendChat("hi", "")
	h.pump()

	for _, p := range []*peer{alice, carol, dave} {
		assert.Equal(t, 1, p.rec.Count("RemoteMessageReceived(Bob: hi)"))
	}
	assert.Zero(t, bob.rec.Count("RemoteMessageReceived(Bob: hi)"))

	bob.s.SendChat("psst", "Carol")
	alice.s.SendChat("from the host", "Dave")
	h.pump()

	assert.Equal(t, 1, alice.rec.Count("RemoteMessageReceived(Bob: psst)"))
	assert.Equal(t, 1, dave.rec.Count("RemoteMessageReceived(Bob: psst)"))
	assert.Zero(t, carol.rec.Count("RemoteMessageReceived(Bob: psst)"))

	assert.Equal(t, 1, bob.rec.Count("RemoteMessageReceived(Alice: from the host)"))
	assert.Equal(t, 1, carol.rec.Count("RemoteMessageReceived(Alice: from the host)"))
	assert.Zero(t, dave.rec.Count("RemoteMessageReceived(Alice: from the host)"))
	assert.Zero(t, alice.rec.Count("RemoteMessageReceived(Alice: from the host)"))
}

func TestChatIsSanitized(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	alice.rec.Reset()

	bob.s.SendChat("  \f3red\f7 alert\a ", "")
	bob.s.SendChat(" \t\n ", "")
	h.pump()

	var chat []string
	for _, e := range alice.rec.Log() {
		if strings.HasPrefix(e, "RemoteMessageReceived(") {
			chat = append(chat, e)
		}
	}
	assert.Equal(t, []string{"RemoteMessageReceived(Bob: red alert)"}, chat)
}

func TestFallingIsRelayed(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")

	local := bob.s.Local()
	local.Position = mgl64.Vec3{100, -5, 100}
	arena := geom.Arena{Radius: 10, KillY: -10}
	for i := 0; i < 120 && bob.rec.Count("PlayerRespawnedFell(Bob)") == 0; i++ {
		bob.s.Tick(1.0/60, player.Input{}, arena)
	}
	h.pump()

	assert.Equal(t, 1, bob.rec.Count("PlayerRespawnedFell(Bob)"))
	assert.Equal(t, 1, alice.rec.Count("PlayerRespawnedFell(Bob)"))
	assert.Equal(t, 100, local.Health)
	assert.True(t, testZone.Contains(local.Position))
	assert.Equal(t, []string{"Bob"}, h.stats.falls)
}

func TestStateSync(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")

	bob.s.Local().Position = mgl64.Vec3{3, 0, 4}
	bob.s.Local().Yaw = 0.5
	bob.s.FlushState()
	h.pump()
	alice.s.FlushState()
	h.pump()

	bobOnCarol, _ := carol.s.Roster().ByID(bob.s.Local().ID)
	carol.s.Tick(1, player.Input{}, nil)
	assert.True(t, bobOnCarol.Position.ApproxEqual(mgl64.Vec3{3, 0, 4}), "%v", bobOnCarol.Position)
	assert.Equal(t, 0.5, bobOnCarol.Yaw)

	bobOnAlice, _ := alice.s.Roster().ByID(bob.s.Local().ID)
	alice.s.Tick(1, player.Input{}, nil)
	assert.True(t, bobOnAlice.Position.ApproxEqual(mgl64.Vec3{3, 0, 4}), "%v", bobOnAlice.Position)

	aliceOnBob, _ := bob.s.Roster().ByID(transport.ServerID)
	assert.True(t, alice.s.Local().Position.ApproxEqualThreshold(aliceOnBob.Target(), 1e-5))
}

func TestLeaveAndShutdown(t *testing.T) {
	h := newHarness(t)
	alice := h.host("Alice")
	bob := h.join("Bob")
	carol := h.join("Carol")

	require.NoError(t, bob.s.Close())
	h.pump()
	assert.Equal(t, 1, alice.rec.Count("PlayerLeft(Bob)"))
	assert.Equal(t, 1, carol.rec.Count("PlayerLeft(Bob)"))
	assert.Equal(t, 2, carol.s.Roster().Len())

	require.NoError(t, alice.s.Close())
	h.pump()
	assert.Equal(t, 1, carol.rec.Count("ServerShutDown()"))
	assert.Nil(t, carol.s.Local())
}

func TestJoinTimeout(t *testing.T) {
	h := newHarness(t)
	p := h.join("Bob")

	h.clock.Advance(4 * time.Second)
	assert.Empty(t, p.rec.Log())

	h.clock.Advance(time.Second)
	assert.Equal(t, []string{"JoinFailed(Failed to connect to server, timed out.)"}, p.rec.Log())
	assert.Nil(t, p.s.Local())
}

func TestCancelJoin(t *testing.T) {
	h := newHarness(t)
	p := h.join("Bob")

	p.s.CancelJoin()
	h.clock.Advance(time.Minute)
	assert.Empty(t, p.rec.Log())
	assert.Zero(t, h.clock.Pending())
}

type addressedLoopback struct {
	*transport.Loopback
	ip net.IP
}

func (a addressedLoopback) RemoteIP(transport.PeerID) net.IP { return a.ip }

type banAll struct{}

func (banAll) IsBanned(net.IP) (string, bool) { return "cheating", true }

func TestBannedPeerIsRejected(t *testing.T) {
	h := newHarness(t)
	h.bans = banAll{}
	alice := h.host("Alice", func(l *transport.Loopback) transport.Transport {
		return addressedLoopback{l, net.IPv4(10, 0, 0, 7)}
	})
	bob := h.join("Bob")

	assert.Equal(t, []string{"KickedFromServer(You are banned from this server.)"}, bob.rec.Log())
	assert.Equal(t, 1, alice.s.Roster().Len())
	assert.Equal(t, []string{"NewGameStarted(Alice)"}, alice.rec.Log())
}
