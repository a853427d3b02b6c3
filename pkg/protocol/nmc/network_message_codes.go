package nmc

type ID int32 // network message code

const (
	ServerInfo ID = iota // sent by the server right after connecting, carries the peer id
	RequestPlayerSlot
	KickedFromServer
	SpawnPlayer
	DespawnPlayer
	PlayerState
	ReceiveHit
	PlayShootEffects
	NotifyRespawnedShot
	NotifyRespawnedFell
	RelayMessage // chat
	Relay        // client to server: broadcast payload, excluding listed ids
	Direct       // client to server: forward payload to a single peer
	NumCodes
)

var names = []string{
	"ServerInfo",
	"RequestPlayerSlot",
	"KickedFromServer",
	"SpawnPlayer",
	"DespawnPlayer",
	"PlayerState",
	"ReceiveHit",
	"PlayShootEffects",
	"NotifyRespawnedShot",
	"NotifyRespawnedFell",
	"RelayMessage",
	"Relay",
	"Direct",
}

func (id ID) Valid() bool { return id >= 0 && id < NumCodes }

func (id ID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return names[id]
}
