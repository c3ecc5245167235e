package packet

import "fmt"

// Opcode is the leading u32 of every message.
type Opcode uint32

const (
	OpNoop Opcode = iota
	OpLogin
	OpLogout
	OpJoin
	OpLeave
	OpTransform
	OpSpawn
	OpDespawn
	OpDamage
)

func (o Opcode) String() string {
	switch o {
	case OpNoop:
		return "Noop"
	case OpLogin:
		return "Login"
	case OpLogout:
		return "Logout"
	case OpJoin:
		return "Join"
	case OpLeave:
		return "Leave"
	case OpTransform:
		return "Transform"
	case OpSpawn:
		return "Spawn"
	case OpDespawn:
		return "Despawn"
	case OpDamage:
		return "Damage"
	default:
		return fmt.Sprintf("Opcode(%d)", uint32(o))
	}
}
