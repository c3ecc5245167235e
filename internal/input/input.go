// Package input is the boundary between device polling and the input
// systems. Device glue writes into a State; systems read it once per tick.
package input

import (
	"math"
	"sync"
)

// Deadzone is the stick magnitude below which axis input is ignored.
const Deadzone = 1.0 / 8.0

type Key uint8

const (
	KeyForward Key = iota
	KeyBackward
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyBoost
	KeyThrust
	KeyStable
	KeyBrake
	KeyCameraYaw
	KeyCameraPitch
	KeyFire
	KeyRollLeft
	KeyRollRight
	numKeys
)

type Axis uint8

const (
	LeftStickX Axis = iota
	LeftStickY
	RightStickX
	RightStickY
	numAxes
)

// Source is what the input systems consume.
type Source interface {
	// Held returns how far a key or button is pressed, 0 when released.
	Held(k Key) float64
	Axis(a Axis) float64
	// TakeWheel returns and clears the accumulated scroll delta.
	TakeWheel() float64
	// TakeLook returns and clears the accumulated pointer movement.
	TakeLook() (dx, dy float64)
}

// State is a thread-safe Source fed by device callbacks.
type State struct {
	mu     sync.Mutex
	keys   [numKeys]float64
	axes   [numAxes]float64
	wheel  float64
	lookDX float64
	lookDY float64
}

func NewState() *State { return &State{} }

func (s *State) Press(k Key, amount float64) {
	if k >= numKeys {
		return
	}
	s.mu.Lock()
	s.keys[k] = amount
	s.mu.Unlock()
}

func (s *State) Release(k Key) { s.Press(k, 0) }

func (s *State) SetAxis(a Axis, v float64) {
	if a >= numAxes {
		return
	}
	s.mu.Lock()
	s.axes[a] = v
	s.mu.Unlock()
}

func (s *State) Scroll(delta float64) {
	s.mu.Lock()
	s.wheel += delta
	s.mu.Unlock()
}

func (s *State) Look(dx, dy float64) {
	s.mu.Lock()
	s.lookDX += dx
	s.lookDY += dy
	s.mu.Unlock()
}

func (s *State) Held(k Key) float64 {
	if k >= numKeys {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[k]
}

func (s *State) Axis(a Axis) float64 {
	if a >= numAxes {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axes[a]
}

func (s *State) TakeWheel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wheel
	s.wheel = 0
	return w
}

func (s *State) TakeLook() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dx, dy := s.lookDX, s.lookDY
	s.lookDX, s.lookDY = 0, 0
	return dx, dy
}

// Shape applies the deadzone and a cubic response curve to a stick value.
func Shape(v float64) float64 {
	if math.Abs(v) < Deadzone {
		return 0
	}
	return v * v * v
}

// Deadzoned returns v, or 0 when it is inside the deadzone.
func Deadzoned(v float64) float64 {
	if math.Abs(v) < Deadzone {
		return 0
	}
	return v
}

var _ Source = (*State)(nil)
