package packet

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxPayload bounds a decoded message, string tail included.
const MaxPayload = 1024

// MaxNameLen is the longest player name, in runes, kept by SanitizeName.
const MaxNameLen = 32

// Message is one decoded wire message.
type Message interface {
	Opcode() Opcode
	encode(w *Writer)
}

type Noop struct{}

// Login asks the relay to place the sender in the room for Seed.
type Login struct {
	Seed uint32
	Name string
}

type Logout struct{}

// Join announces a player entering the sender's room.
type Join struct {
	ID   uint32
	Name string
}

type Leave struct {
	ID uint32
}

// Transform carries an entity's state. Rotation is the vector part of the
// unit quaternion with non-negative W.
type Transform struct {
	ID       uint32
	Position [3]float32
	Rotation [3]float32
	Velocity [3]float32
}

// Spawn creates a remote entity from a prefab tag.
type Spawn struct {
	ID       uint32
	Position [3]float32
	Rotation [3]float32
	Velocity [3]float32
	Prefab   string
}

type Despawn struct {
	ID uint32
}

// Damage reports a hit by ID at Position.
type Damage struct {
	ID       uint32
	Position [3]float32
}

func (Noop) Opcode() Opcode      { return OpNoop }
func (Login) Opcode() Opcode     { return OpLogin }
func (Logout) Opcode() Opcode    { return OpLogout }
func (Join) Opcode() Opcode      { return OpJoin }
func (Leave) Opcode() Opcode     { return OpLeave }
func (Transform) Opcode() Opcode { return OpTransform }
func (Spawn) Opcode() Opcode     { return OpSpawn }
func (Despawn) Opcode() Opcode   { return OpDespawn }
func (Damage) Opcode() Opcode    { return OpDamage }

func (Noop) encode(*Writer)   {}
func (Logout) encode(*Writer) {}

func (m Login) encode(w *Writer) {
	w.WriteU32(m.Seed)
	w.WriteString(m.Name)
}

func (m Join) encode(w *Writer) {
	w.WriteU32(m.ID)
	w.WriteString(m.Name)
}

func (m Leave) encode(w *Writer)   { w.WriteU32(m.ID) }
func (m Despawn) encode(w *Writer) { w.WriteU32(m.ID) }

func (m Transform) encode(w *Writer) {
	w.WriteU32(m.ID)
	w.WriteVec3(m.Position)
	w.WriteVec3(m.Rotation)
	w.WriteVec3(m.Velocity)
}

func (m Spawn) encode(w *Writer) {
	w.WriteU32(m.ID)
	w.WriteVec3(m.Position)
	w.WriteVec3(m.Rotation)
	w.WriteVec3(m.Velocity)
	w.WriteString(m.Prefab)
}

func (m Damage) encode(w *Writer) {
	w.WriteU32(m.ID)
	w.WriteVec3(m.Position)
}

// Encode serialises m with its leading opcode.
func Encode(m Message) []byte {
	w := NewWriter(m.Opcode())
	m.encode(w)
	return w.Bytes()
}

// Decode parses one payload. Trailing bytes after a complete message are
// ignored.
func Decode(data []byte) (Message, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(data))
	}
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	r := NewReader(data)
	var m Message
	switch op := r.Opcode(); op {
	case OpNoop:
		m = Noop{}
	case OpLogin:
		m = Login{Seed: r.ReadU32(), Name: r.ReadString()}
	case OpLogout:
		m = Logout{}
	case OpJoin:
		m = Join{ID: r.ReadU32(), Name: r.ReadString()}
	case OpLeave:
		m = Leave{ID: r.ReadU32()}
	case OpTransform:
		m = Transform{ID: r.ReadU32(), Position: r.ReadVec3(), Rotation: r.ReadVec3(), Velocity: r.ReadVec3()}
	case OpSpawn:
		m = Spawn{ID: r.ReadU32(), Position: r.ReadVec3(), Rotation: r.ReadVec3(), Velocity: r.ReadVec3(), Prefab: r.ReadString()}
	case OpDespawn:
		m = Despawn{ID: r.ReadU32()}
	case OpDamage:
		m = Damage{ID: r.ReadU32(), Position: r.ReadVec3()}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, uint32(op))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %v: %w", m.Opcode(), err)
	}
	return m, nil
}

// SanitizeName normalises a player name to NFC and keeps letters, digits,
// spaces and the characters "._-", trimmed to MaxNameLen runes.
func SanitizeName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range norm.NFC.String(s) {
		if n == MaxNameLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}
	return strings.TrimSpace(b.String())
}
