package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState is the relay protocol phase of a connection.
type SessionState int

const (
	StateConnected SessionState = iota // awaiting Login
	StateInWorld                       // member of a room
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one decoded message. The session is passed as an opaque
// value to avoid import cycles.
type HandlerFunc func(sess any, m Message)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[Opcode]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[Opcode]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session states.
func (reg *Registry) Register(op Opcode, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[op] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch decodes data and calls the handler for its opcode. Malformed
// payloads and disallowed states are returned as errors; opcodes without a
// handler are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	m, err := Decode(data)
	if err != nil {
		reg.log.Debug("dropping malformed payload", zap.Int("size", len(data)), zap.Error(err))
		return err
	}
	op := m.Opcode()
	reg.log.Debug("packet received",
		zap.Stringer("opcode", op),
		zap.Int("size", len(data)),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[op]
	if !ok {
		return nil
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in state",
			zap.Stringer("opcode", op),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode %v not allowed in state %v", op, state)
	}
	return reg.safeCall(entry.fn, sess, m)
}

// safeCall runs a handler with panic recovery so one bad message cannot take
// down the relay loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, m Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("opcode", m.Opcode()),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %v: %v", m.Opcode(), rec)
		}
	}()
	fn(sess, m)
	return nil
}
