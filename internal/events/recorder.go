package events

import "fmt"

// Recorder subscribes to every event on a bus and keeps a flat log of them,
// formatted as "Kind(arg, ...)". The console client uses it for its event
// history; tests use it to assert on delivery.
type Recorder struct {
	log []string
}

func NewRecorder(b *Bus) *Recorder {
	r := &Recorder{}

	b.OnNewGameStarted(func(self string) { r.add("NewGameStarted", self) })
	b.OnPlayerJoined(func(name string) { r.add("PlayerJoined", name) })
	b.OnPlayerLeft(func(name string) { r.add("PlayerLeft", name) })
	b.OnPlayerScored(func(score int, shooter, target string) { r.add("PlayerScored", score, shooter, target) })
	b.OnPlayerRespawnedShot(func(name, shooter string) { r.add("PlayerRespawnedShot", name, shooter) })
	b.OnPlayerRespawnedFell(func(name string) { r.add("PlayerRespawnedFell", name) })
	b.OnSelfHealthChanged(func(name string, health int) { r.add("SelfHealthChanged", name, health) })
	b.OnKickedFromServer(func(reason string) { r.add("KickedFromServer", reason) })
	b.OnRemoteMessageReceived(func(text string) { r.add("RemoteMessageReceived", text) })
	b.OnServerShutDown(func() { r.add("ServerShutDown") })
	b.OnJoinFailed(func(reason string) { r.add("JoinFailed", reason) })
	b.OnShotFired(func(name string) { r.add("ShotFired", name) })
	b.OnPuppetHit(func(name string, health int) { r.add("PuppetHit", name, health) })

	return r
}

func (r *Recorder) add(kind string, args ...interface{}) {
	s := kind + "("
	for i, arg := range args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(arg)
	}
	r.log = append(r.log, s+")")
}

func (r *Recorder) Log() []string { return r.log }

// Count returns how often entry was recorded.
func (r *Recorder) Count(entry string) (n int) {
	for _, e := range r.log {
		if e == entry {
			n++
		}
	}
	return
}

func (r *Recorder) Reset() { r.log = nil }
