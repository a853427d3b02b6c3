package events

// Bus fans game events out to registered handlers. Handlers run synchronously
// on the goroutine publishing the event, in registration order.
type Bus struct {
	newGameStarted        []func(selfName string)
	playerJoined          []func(name string)
	playerLeft            []func(name string)
	playerScored          []func(score int, shooterName, targetName string)
	playerRespawnedShot   []func(name, shooterName string)
	playerRespawnedFell   []func(name string)
	selfHealthChanged     []func(name string, health int)
	kickedFromServer      []func(reason string)
	remoteMessageReceived []func(text string)
	serverShutDown        []func()
	joinFailed            []func(reason string)
	shotFired             []func(name string)
	puppetHit             []func(name string, health int)
}

func (b *Bus) OnNewGameStarted(f func(selfName string)) {
	b.newGameStarted = append(b.newGameStarted, f)
}

func (b *Bus) OnPlayerJoined(f func(name string)) { b.playerJoined = append(b.playerJoined, f) }

func (b *Bus) OnPlayerLeft(f func(name string)) { b.playerLeft = append(b.playerLeft, f) }

func (b *Bus) OnPlayerScored(f func(score int, shooterName, targetName string)) {
	b.playerScored = append(b.playerScored, f)
}

func (b *Bus) OnPlayerRespawnedShot(f func(name, shooterName string)) {
	b.playerRespawnedShot = append(b.playerRespawnedShot, f)
}

func (b *Bus) OnPlayerRespawnedFell(f func(name string)) {
	b.playerRespawnedFell = append(b.playerRespawnedFell, f)
}

// OnSelfHealthChanged fires on the victim's own process after every received hit.
func (b *Bus) OnSelfHealthChanged(f func(name string, health int)) {
	b.selfHealthChanged = append(b.selfHealthChanged, f)
}

func (b *Bus) OnKickedFromServer(f func(reason string)) {
	b.kickedFromServer = append(b.kickedFromServer, f)
}

func (b *Bus) OnRemoteMessageReceived(f func(text string)) {
	b.remoteMessageReceived = append(b.remoteMessageReceived, f)
}

func (b *Bus) OnServerShutDown(f func()) { b.serverShutDown = append(b.serverShutDown, f) }

// OnJoinFailed fires when joining a game did not complete, e.g. on timeout.
func (b *Bus) OnJoinFailed(f func(reason string)) { b.joinFailed = append(b.joinFailed, f) }

func (b *Bus) OnShotFired(f func(name string)) { b.shotFired = append(b.shotFired, f) }

func (b *Bus) OnPuppetHit(f func(name string, health int)) { b.puppetHit = append(b.puppetHit, f) }

func (b *Bus) NewGameStarted(selfName string) {
	for _, f := range b.newGameStarted {
		f(selfName)
	}
}

func (b *Bus) PlayerJoined(name string) {
	for _, f := range b.playerJoined {
		f(name)
	}
}

func (b *Bus) PlayerLeft(name string) {
	for _, f := range b.playerLeft {
		f(name)
	}
}

func (b *Bus) PlayerScored(score int, shooterName, targetName string) {
	for _, f := range b.playerScored {
		f(score, shooterName, targetName)
	}
}

func (b *Bus) PlayerRespawnedShot(name, shooterName string) {
	for _, f := range b.playerRespawnedShot {
		f(name, shooterName)
	}
}

func (b *Bus) PlayerRespawnedFell(name string) {
	for _, f := range b.playerRespawnedFell {
		f(name)
	}
}

func (b *Bus) SelfHealthChanged(name string, health int) {
	for _, f := range b.selfHealthChanged {
		f(name, health)
	}
}

func (b *Bus) KickedFromServer(reason string) {
	for _, f := range b.kickedFromServer {
		f(reason)
	}
}

func (b *Bus) RemoteMessageReceived(text string) {
	for _, f := range b.remoteMessageReceived {
		f(text)
	}
}

func (b *Bus) ServerShutDown() {
	for _, f := range b.serverShutDown {
		f()
	}
}

func (b *Bus) JoinFailed(reason string) {
	for _, f := range b.joinFailed {
		f(reason)
	}
}

func (b *Bus) ShotFired(name string) {
	for _, f := range b.shotFired {
		f(name)
	}
}

func (b *Bus) PuppetHit(name string, health int) {
	for _, f := range b.puppetHit {
		f(name, health)
	}
}
