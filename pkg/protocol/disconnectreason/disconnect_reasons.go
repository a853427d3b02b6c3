package disconnectreason

type ID uint32

const (
	None ID = iota
	Kick
	MessageError // MSGERR
	Banned       // IPBAN
	ServerFull
	Timeout
	Shutdown
	Duplicate // already in game or name taken
	Flood
)

var String = []string{
	"",
	"kicked",
	"message error",
	"ip is banned",
	"server full",
	"connection timed out",
	"server shut down",
	"slot request rejected",
	"flooding",
}

func (r ID) String() string {
	if int(r) >= len(String) {
		return "unknown"
	}
	return String[r]
}
