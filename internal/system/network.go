package system

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/alienworlds/engine/internal/core/event"
	"github.com/alienworlds/engine/internal/net"
	"github.com/alienworlds/engine/internal/net/packet"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const (
	// OpponentPrefab is spawned for every remote player that joins.
	OpponentPrefab = "opponent"
	// SendThreshold is the combined position and rotation change below
	// which the local player's transform is not resent.
	SendThreshold = 0.001
)

var opponentSpawn = mgl64.Vec3{3, 3, 0}

// Transport carries messages to the relay.
type Transport interface {
	Send(m packet.Message) error
	Connected() bool
}

var _ Transport = (*net.Client)(nil)

// Spawner builds a named prefab at pos.
type Spawner func(w *ecs.World, prefab string, pos mgl64.Vec3) (ecs.Entity, error)

// NetworkSystem mirrors the relay into the world. Inbound messages arrive on
// the bus through Deliver from the socket goroutine and are applied when the
// EventSystem dispatches them. The local player's transform is sent at
// liveRate while peers are present and idleRate otherwise, and only when it
// has moved.
type NetworkSystem struct {
	ecs.BaseSystem
	transport Transport
	bus       *event.Bus
	spawn     Spawner
	liveRate  float64
	idleRate  float64
	now       func() time.Time
	log       *zap.Logger

	world    *ecs.World
	players  map[uint32]ecs.Entity
	objects  map[uint32]ecs.Entity
	lastSend time.Time
	sent     bool
	prevPos  mgl64.Vec3
	prevRot  [3]float32
}

func NewNetworkSystem(t Transport, bus *event.Bus, spawn Spawner, liveRate, idleRate int, log *zap.Logger) *NetworkSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &NetworkSystem{
		transport: t,
		bus:       bus,
		spawn:     spawn,
		liveRate:  float64(max(liveRate, 1)),
		idleRate:  float64(max(idleRate, 1)),
		now:       time.Now,
		log:       log,
		players:   make(map[uint32]ecs.Entity),
		objects:   make(map[uint32]ecs.Entity),
	}
}

func (s *NetworkSystem) Setup(w *ecs.World) {
	s.world = w
	event.Subscribe(s.bus, s.apply)
	event.Subscribe(s.bus, s.onShot)
}

func (s *NetworkSystem) Teardown(*ecs.World) {
	s.world = nil
}

// Deliver queues an inbound message. Safe to call from any goroutine.
func (s *NetworkSystem) Deliver(m packet.Message) {
	event.Emit(s.bus, m)
}

// Players returns the number of remote players currently mirrored.
func (s *NetworkSystem) Players() int { return len(s.players) }

// Player returns the entity mirroring remote player id.
func (s *NetworkSystem) Player(id uint32) (ecs.Entity, bool) {
	e, ok := s.players[id]
	return e, ok
}

func (s *NetworkSystem) apply(m packet.Message) {
	w := s.world
	if w == nil {
		return
	}
	switch m := m.(type) {
	case packet.Join:
		if _, ok := s.players[m.ID]; ok {
			return
		}
		e, err := s.spawnRemote(w, OpponentPrefab, m.ID, opponentSpawn)
		if err != nil {
			s.log.Warn("cannot spawn remote player", zap.Uint32("id", m.ID), zap.Error(err))
			return
		}
		s.players[m.ID] = e
		s.log.Info("player joined", zap.Uint32("id", m.ID), zap.String("name", m.Name))

	case packet.Leave:
		if e, ok := s.players[m.ID]; ok {
			w.RemoveEntity(e)
			delete(s.players, m.ID)
			s.log.Info("player left", zap.Uint32("id", m.ID))
		}

	case packet.Transform:
		if m.ID == 0 {
			s.restoreLocal(w, m)
			return
		}
		e, ok := s.players[m.ID]
		if !ok {
			s.log.Warn("transform for unknown player", zap.Uint32("id", m.ID))
			return
		}
		applyTransform(w, e, m.Position, m.Rotation, m.Velocity)

	case packet.Spawn:
		if _, ok := s.objects[m.ID]; ok {
			return
		}
		e, err := s.spawnRemote(w, m.Prefab, m.ID, vec3(m.Position))
		if err != nil {
			s.log.Warn("cannot spawn remote object", zap.Uint32("id", m.ID), zap.String("prefab", m.Prefab), zap.Error(err))
			return
		}
		applyTransform(w, e, m.Position, m.Rotation, m.Velocity)
		s.objects[m.ID] = e

	case packet.Despawn:
		if e, ok := s.objects[m.ID]; ok {
			w.RemoveEntity(e)
			delete(s.objects, m.ID)
		}

	case packet.Damage:
		hits := ApplyDamage(w, vec3(m.Position), DamageRadius)
		s.log.Debug("remote shot", zap.Uint32("id", m.ID), zap.Int("hits", hits))

	default:
		s.log.Debug("unhandled message", zap.Stringer("op", m.Opcode()))
	}
}

func (s *NetworkSystem) spawnRemote(w *ecs.World, prefab string, id uint32, pos mgl64.Vec3) (ecs.Entity, error) {
	if s.spawn == nil {
		return ecs.NoEntity, fmt.Errorf("no spawner for %q", prefab)
	}
	e, err := s.spawn(w, prefab, pos)
	if err != nil {
		return ecs.NoEntity, err
	}
	w.AddComponent(e, &component.Network{RemoteID: id, Prefab: prefab})
	return e, nil
}

// restoreLocal moves the local player to the state the relay remembered.
func (s *NetworkSystem) restoreLocal(w *ecs.World, m packet.Transform) {
	for _, e := range w.EntitiesWithComponents(component.KindPlayer, component.KindTransform).Sorted() {
		applyTransform(w, e, m.Position, m.Rotation, m.Velocity)
		s.prevPos, s.prevRot = vec3(m.Position), m.Rotation
		s.log.Info("player state restored", zap.Float32s("position", m.Position[:]))
	}
}

func (s *NetworkSystem) onShot(shot Shot) {
	if !s.transport.Connected() {
		return
	}
	if err := s.transport.Send(packet.Damage{Position: vec3f(shot.Impact)}); err != nil {
		s.log.Warn("send damage failed", zap.Error(err))
	}
}

func (s *NetworkSystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	if !s.transport.Connected() {
		return nil
	}
	rate := s.idleRate
	if len(s.players) > 0 {
		rate = s.liveRate
	}
	now := s.now()
	if s.sent && now.Sub(s.lastSend) <= time.Duration(float64(time.Second)/rate) {
		return nil
	}
	s.lastSend, s.sent = now, true

	var err error
	ecs.Each3(w, func(_ ecs.Entity, _ *component.Player, t *component.Transform, v *component.Velocity) {
		rot := wireRotation(t.Rotation)
		moved := t.Position.Sub(s.prevPos).Len() + vec3(rot).Sub(vec3(s.prevRot)).Len()
		if moved <= SendThreshold {
			return
		}
		s.prevPos, s.prevRot = t.Position, rot
		msg := packet.Transform{Position: vec3f(t.Position), Rotation: rot, Velocity: vec3f(v.Linear)}
		if sendErr := s.transport.Send(msg); sendErr != nil {
			err = fmt.Errorf("send transform: %w", sendErr)
		}
	})
	return err
}

func applyTransform(w *ecs.World, e ecs.Entity, pos, rot, vel [3]float32) {
	if t, ok := ecs.Get[*component.Transform](w, e); ok {
		t.Position = vec3(pos)
		t.Rotation = quatFromWire(rot)
	}
	if v, ok := ecs.Get[*component.Velocity](w, e); ok {
		v.Linear = vec3(vel)
	}
}

// wireRotation encodes a rotation as the vector part of the equivalent unit
// quaternion with a non-negative scalar part.
func wireRotation(q mgl64.Quat) [3]float32 {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return vec3f(q.V)
}

func quatFromWire(v [3]float32) mgl64.Quat {
	vec := vec3(v)
	w := math.Sqrt(max(0, 1-vec.Dot(vec)))
	return mgl64.Quat{W: w, V: vec}.Normalize()
}

func vec3(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func vec3f(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}
