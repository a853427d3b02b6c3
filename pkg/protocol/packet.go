package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/pkg/protocol/disconnectreason"
	"github.com/sauerbraten/arena/pkg/protocol/nmc"
)

// Packet is the byte encoding used on every game channel. Integers use the
// compressed 1/3/5 byte form, strings are zero-terminated code points.
type Packet []byte

func Encode(args ...interface{}) Packet {
	p := make(Packet, 0, 16)
	p.Put(args...)
	return p
}

// Appends all arguments to the packet.
func (p *Packet) Put(args ...interface{}) {
	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			p.putInt32(v)

		case []int32:
			p.putInt32(int32(len(v)))
			for _, w := range v {
				p.putInt32(w)
			}

		case int:
			p.putInt32(int32(v))

		case nmc.ID:
			p.putInt32(int32(v))

		case disconnectreason.ID:
			p.putInt32(int32(v))

		case bool:
			if v {
				p.putInt32(1)
			} else {
				p.putInt32(0)
			}

		case float64:
			p.putFloat(v)

		case mgl64.Vec3:
			p.putFloat(v.X())
			p.putFloat(v.Y())
			p.putFloat(v.Z())

		case string:
			p.putString(v)

		case []byte:
			*p = append(*p, v...)

		case Packet:
			*p = append(*p, v...)

		default:
			zap.L().Warn("unhandled packet argument", zap.String("type", fmt.Sprintf("%T", v)), zap.Any("value", v))
		}
	}
}

// Encodes an int32 and appends it to the packet.
func (p *Packet) putInt32(i int32) {
	if i < 128 && i > -127 {
		*p = append(*p, byte(i))
	} else if i < 0x8000 && i >= -0x8000 {
		*p = append(*p, 0x80, byte(i), byte(i>>8))
	} else {
		*p = append(*p, 0x81, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
	}
}

// floats travel as little-endian IEEE 754 single precision
func (p *Packet) putFloat(f float64) {
	*p = binary.LittleEndian.AppendUint32(*p, math.Float32bits(float32(f)))
}

func (p *Packet) putString(s string) {
	for _, c := range s {
		p.putInt32(int32(c))
	}
	p.putInt32(0)
}

// Returns the first byte in the packet and advances past it.
func (p *Packet) GetByte() (byte, bool) {
	if len(*p) < 1 {
		return 0, false
	}
	b := (*p)[0]
	*p = (*p)[1:]
	return b, true
}

func (p *Packet) GetInt() (int32, bool) {
	b, ok := p.GetByte()
	if !ok {
		return 0, false
	}

	switch b {
	default:
		return int32(int8(b)), true
	case 0x80:
		if len(*p) < 2 {
			return 0, false
		}
		v := int32(int16(binary.LittleEndian.Uint16(*p)))
		*p = (*p)[2:]
		return v, true
	case 0x81:
		if len(*p) < 4 {
			return 0, false
		}
		v := int32(binary.LittleEndian.Uint32(*p))
		*p = (*p)[4:]
		return v, true
	}
}

func (p *Packet) GetBool() (bool, bool) {
	i, ok := p.GetInt()
	return i != 0, ok
}

func (p *Packet) GetFloat() (float64, bool) {
	if len(*p) < 4 {
		return 0, false
	}
	f := math.Float32frombits(binary.LittleEndian.Uint32(*p))
	*p = (*p)[4:]
	return float64(f), true
}

func (p *Packet) GetVec3() (v mgl64.Vec3, ok bool) {
	for i := range v {
		v[i], ok = p.GetFloat()
		if !ok {
			return mgl64.Vec3{}, false
		}
	}
	return v, true
}

// Reads a zero-terminated string. A missing terminator is treated as malformed.
func (p *Packet) GetString() (string, bool) {
	runes := []rune{}
	for {
		c, ok := p.GetInt()
		if !ok {
			return "", false
		}
		if c == 0 {
			return string(runes), true
		}
		runes = append(runes, rune(c))
	}
}

func (p *Packet) GetInts() ([]int32, bool) {
	n, ok := p.GetInt()
	if !ok || n < 0 || int(n) > len(*p) {
		return nil, false
	}
	ints := make([]int32, 0, n)
	for i := int32(0); i < n; i++ {
		v, ok := p.GetInt()
		if !ok {
			return nil, false
		}
		ints = append(ints, v)
	}
	return ints, true
}
