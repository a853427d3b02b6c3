package protocol

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sauerbraten/arena/pkg/protocol/nmc"
)

var ErrMalformed = errors.New("malformed packet")

// Message is a decoded network message.
type Message interface {
	Code() nmc.ID
	args() []interface{}
}

// Sent by the server to a freshly connected peer.
type ServerInfo struct {
	PeerID int32
}

type RequestPlayerSlot struct {
	Name string
}

type KickedFromServer struct {
	Reason string
}

// SpawnPlayer creates an actor on the receiving peer. Existing is set for
// actors that were already in the game when the receiver joined.
type SpawnPlayer struct {
	ID       int32
	Name     string
	Position mgl64.Vec3
	Health   int32
	Existing bool
}

type DespawnPlayer struct {
	ID int32
}

type PlayerState struct {
	ID       int32
	Position mgl64.Vec3
	Yaw      float64
	Health   int32
}

type ReceiveHit struct {
	Energy      float64
	ShooterName string
}

type PlayShootEffects struct {
	Name string
}

type NotifyRespawnedShot struct {
	Name        string
	ShooterName string
}

type NotifyRespawnedFell struct {
	Name string
}

type RelayMessage struct {
	Text string
}

// Relay asks the server to broadcast Payload to everyone except the sender
// and the listed peers.
type Relay struct {
	Excluded []int32
	Payload  Message
}

// Direct asks the server to forward Payload to Target.
type Direct struct {
	Target  int32
	Payload Message
}

func (ServerInfo) Code() nmc.ID          { return nmc.ServerInfo }
func (RequestPlayerSlot) Code() nmc.ID   { return nmc.RequestPlayerSlot }
func (KickedFromServer) Code() nmc.ID    { return nmc.KickedFromServer }
func (SpawnPlayer) Code() nmc.ID         { return nmc.SpawnPlayer }
func (DespawnPlayer) Code() nmc.ID       { return nmc.DespawnPlayer }
func (PlayerState) Code() nmc.ID         { return nmc.PlayerState }
func (ReceiveHit) Code() nmc.ID          { return nmc.ReceiveHit }
func (PlayShootEffects) Code() nmc.ID    { return nmc.PlayShootEffects }
func (NotifyRespawnedShot) Code() nmc.ID { return nmc.NotifyRespawnedShot }
func (NotifyRespawnedFell) Code() nmc.ID { return nmc.NotifyRespawnedFell }
func (RelayMessage) Code() nmc.ID        { return nmc.RelayMessage }
func (Relay) Code() nmc.ID               { return nmc.Relay }
func (Direct) Code() nmc.ID              { return nmc.Direct }

func (m ServerInfo) args() []interface{}        { return []interface{}{m.PeerID} }
func (m RequestPlayerSlot) args() []interface{} { return []interface{}{m.Name} }
func (m KickedFromServer) args() []interface{}  { return []interface{}{m.Reason} }
func (m SpawnPlayer) args() []interface{} {
	return []interface{}{m.ID, m.Name, m.Position, m.Health, m.Existing}
}
func (m DespawnPlayer) args() []interface{}       { return []interface{}{m.ID} }
func (m PlayerState) args() []interface{}         { return []interface{}{m.ID, m.Position, m.Yaw, m.Health} }
func (m ReceiveHit) args() []interface{}          { return []interface{}{m.Energy, m.ShooterName} }
func (m PlayShootEffects) args() []interface{}    { return []interface{}{m.Name} }
func (m NotifyRespawnedShot) args() []interface{} { return []interface{}{m.Name, m.ShooterName} }
func (m NotifyRespawnedFell) args() []interface{} { return []interface{}{m.Name} }
func (m RelayMessage) args() []interface{}        { return []interface{}{m.Text} }
func (m Relay) args() []interface{}               { return []interface{}{m.Excluded, EncodeMessage(m.Payload)} }
func (m Direct) args() []interface{}              { return []interface{}{m.Target, EncodeMessage(m.Payload)} }

// EncodeMessage returns the wire form of m: its code followed by its fields.
func EncodeMessage(m Message) Packet {
	p := Encode(m.Code())
	p.Put(m.args()...)
	return p
}

// DecodeMessage parses exactly one message from p.
func DecodeMessage(p Packet) (Message, error) {
	m, err := decode(&p, true)
	if err != nil {
		return nil, err
	}
	if len(p) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, len(p), m.Code())
	}
	return m, nil
}

// DecodeMessages parses every message packed into p, in order.
func DecodeMessages(p Packet) ([]Message, error) {
	var msgs []Message
	for len(p) > 0 {
		m, err := decode(&p, true)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func decode(p *Packet, allowEnvelope bool) (Message, error) {
	code, ok := p.GetInt()
	if !ok {
		return nil, fmt.Errorf("%w: missing message code", ErrMalformed)
	}

	var m Message

	switch c := nmc.ID(code); c {
	case nmc.ServerInfo:
		var msg ServerInfo
		msg.PeerID, ok = p.GetInt()
		m = msg

	case nmc.RequestPlayerSlot:
		var msg RequestPlayerSlot
		msg.Name, ok = p.GetString()
		m = msg

	case nmc.KickedFromServer:
		var msg KickedFromServer
		msg.Reason, ok = p.GetString()
		m = msg

	case nmc.SpawnPlayer:
		var msg SpawnPlayer
		msg.ID, ok = p.GetInt()
		ok = ok && getString(p, &msg.Name) && getVec3(p, &msg.Position) && getInt(p, &msg.Health) && getBool(p, &msg.Existing)
		m = msg

	case nmc.DespawnPlayer:
		var msg DespawnPlayer
		msg.ID, ok = p.GetInt()
		m = msg

	case nmc.PlayerState:
		var msg PlayerState
		msg.ID, ok = p.GetInt()
		ok = ok && getVec3(p, &msg.Position) && getFloat(p, &msg.Yaw) && getInt(p, &msg.Health)
		m = msg

	case nmc.ReceiveHit:
		var msg ReceiveHit
		msg.Energy, ok = p.GetFloat()
		ok = ok && getString(p, &msg.ShooterName)
		m = msg

	case nmc.PlayShootEffects:
		var msg PlayShootEffects
		msg.Name, ok = p.GetString()
		m = msg

	case nmc.NotifyRespawnedShot:
		var msg NotifyRespawnedShot
		msg.Name, ok = p.GetString()
		ok = ok && getString(p, &msg.ShooterName)
		m = msg

	case nmc.NotifyRespawnedFell:
		var msg NotifyRespawnedFell
		msg.Name, ok = p.GetString()
		m = msg

	case nmc.RelayMessage:
		var msg RelayMessage
		msg.Text, ok = p.GetString()
		m = msg

	case nmc.Relay, nmc.Direct:
		if !allowEnvelope {
			return nil, fmt.Errorf("%w: nested %s", ErrMalformed, c)
		}
		var (
			excluded []int32
			target   int32
		)
		if c == nmc.Relay {
			excluded, ok = p.GetInts()
		} else {
			target, ok = p.GetInt()
		}
		if !ok {
			return nil, fmt.Errorf("%w: truncated %s", ErrMalformed, c)
		}
		payload, err := decode(p, false)
		if err != nil {
			return nil, fmt.Errorf("%s payload: %w", c, err)
		}
		if c == nmc.Relay {
			return Relay{Excluded: excluded, Payload: payload}, nil
		}
		return Direct{Target: target, Payload: payload}, nil

	default:
		return nil, fmt.Errorf("%w: unknown message code %d", ErrMalformed, code)
	}

	if !ok {
		return nil, fmt.Errorf("%w: truncated %s", ErrMalformed, m.Code())
	}

	return m, nil
}

func getString(p *Packet, s *string) (ok bool) {
	*s, ok = p.GetString()
	return
}

func getInt(p *Packet, i *int32) (ok bool) {
	*i, ok = p.GetInt()
	return
}

func getBool(p *Packet, b *bool) (ok bool) {
	*b, ok = p.GetBool()
	return
}

func getFloat(p *Packet, f *float64) (ok bool) {
	*f, ok = p.GetFloat()
	return
}

func getVec3(p *Packet, v *mgl64.Vec3) (ok bool) {
	*v, ok = p.GetVec3()
	return
}
