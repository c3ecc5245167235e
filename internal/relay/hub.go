// Package relay is the multiplayer relay: connections log in to the room for
// a world seed, and state updates are broadcast to the rest of the room.
package relay

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/alienworlds/engine/internal/net"
	"github.com/alienworlds/engine/internal/net/packet"
	"github.com/alienworlds/engine/internal/persist"
	"go.uber.org/zap"
)

// Peer is the hub's view of one connection.
type Peer interface {
	SendMessage(m packet.Message)
	State() packet.SessionState
	SetState(st packet.SessionState)
}

var _ Peer = (*net.Session)(nil)

type member struct {
	id       uint32
	peer     Peer
	name     string
	position [3]float32
	rotation [3]float32
	velocity [3]float32
}

func (m *member) transform() packet.Transform {
	return packet.Transform{ID: m.id, Position: m.position, Rotation: m.rotation, Velocity: m.velocity}
}

type room struct {
	seed    uint32
	members map[uint64]*member
}

// ids returns member ids in join order.
func (r *room) ids() []uint64 {
	ids := make([]uint64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *room) broadcast(m packet.Message, sender uint64) {
	for _, id := range r.ids() {
		if id == sender {
			continue
		}
		r.members[id].peer.SendMessage(m)
	}
}

type conn struct {
	id   uint64
	peer Peer
}

// Hub owns every room. All methods must be called from one goroutine; Run
// provides that loop for a net.Server.
type Hub struct {
	peers        map[uint64]*conn
	rooms        map[uint32]*room
	memberOf     map[uint64]uint32
	reg          *packet.Registry
	store        Store
	queryTimeout time.Duration
	log          *zap.Logger
}

func NewHub(store Store, queryTimeout time.Duration, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if queryTimeout <= 0 {
		queryTimeout = 2 * time.Second
	}
	h := &Hub{
		peers:        make(map[uint64]*conn),
		rooms:        make(map[uint32]*room),
		memberOf:     make(map[uint64]uint32),
		reg:          packet.NewRegistry(log),
		store:        store,
		queryTimeout: queryTimeout,
		log:          log,
	}
	inWorld := []packet.SessionState{packet.StateInWorld}
	h.reg.Register(packet.OpLogin, []packet.SessionState{packet.StateConnected}, h.handleLogin)
	h.reg.Register(packet.OpLogout, inWorld, h.handleLogout)
	h.reg.Register(packet.OpTransform, inWorld, h.handleTransform)
	h.reg.Register(packet.OpDamage, inWorld, h.handleDamage)
	h.reg.Register(packet.OpSpawn, inWorld, h.forward)
	h.reg.Register(packet.OpDespawn, inWorld, h.forward)
	return h
}

// Connect registers a new connection awaiting Login.
func (h *Hub) Connect(id uint64, p Peer) {
	h.peers[id] = &conn{id: id, peer: p}
}

// Disconnect removes a connection, leaving its room first.
func (h *Hub) Disconnect(id uint64) {
	if _, ok := h.peers[id]; !ok {
		return
	}
	h.leave(id)
	delete(h.peers, id)
}

// Handle dispatches one payload from connection id. Payloads from unknown
// connections are ignored.
func (h *Hub) Handle(id uint64, data []byte) error {
	c, ok := h.peers[id]
	if !ok {
		return nil
	}
	return h.reg.Dispatch(c, c.peer.State(), data)
}

// Rooms returns the number of live rooms.
func (h *Hub) Rooms() int { return len(h.rooms) }

// RoomSize returns the number of members in the room for seed.
func (h *Hub) RoomSize(seed uint32) int {
	if r, ok := h.rooms[seed]; ok {
		return len(r.members)
	}
	return 0
}

func (h *Hub) handleLogin(sess any, m packet.Message) {
	c := sess.(*conn)
	login := m.(packet.Login)
	name := packet.SanitizeName(login.Name)
	if name == "" {
		name = fmt.Sprintf("player-%d", c.id)
	}

	r, ok := h.rooms[login.Seed]
	if !ok {
		r = &room{seed: login.Seed, members: make(map[uint64]*member)}
		h.rooms[login.Seed] = r
		h.log.Info("room created", zap.Uint32("seed", login.Seed))
	}
	mem := &member{id: uint32(c.id), peer: c.peer, name: name}
	if saved := h.restore(login.Seed, name); saved != nil {
		mem.position, mem.rotation, mem.velocity = saved.Position, saved.Rotation, saved.Velocity
		// ID 0 addresses the receiver's own player.
		c.peer.SendMessage(packet.Transform{Position: mem.position, Rotation: mem.rotation, Velocity: mem.velocity})
	}

	r.broadcast(packet.Join{ID: mem.id, Name: name}, c.id)
	for _, id := range r.ids() {
		other := r.members[id]
		c.peer.SendMessage(packet.Join{ID: other.id, Name: other.name})
		c.peer.SendMessage(other.transform())
	}
	r.members[c.id] = mem
	h.memberOf[c.id] = login.Seed
	c.peer.SetState(packet.StateInWorld)
	h.log.Info("player joined",
		zap.Uint64("session", c.id),
		zap.String("name", name),
		zap.Uint32("seed", login.Seed),
		zap.Int("members", len(r.members)),
	)
}

func (h *Hub) handleLogout(sess any, _ packet.Message) {
	c := sess.(*conn)
	h.leave(c.id)
	c.peer.SetState(packet.StateConnected)
}

func (h *Hub) handleTransform(sess any, m packet.Message) {
	r, mem := h.memberFor(sess)
	if mem == nil {
		return
	}
	t := m.(packet.Transform)
	mem.position, mem.rotation, mem.velocity = t.Position, t.Rotation, t.Velocity
	r.broadcast(mem.transform(), uint64(mem.id))
}

func (h *Hub) handleDamage(sess any, m packet.Message) {
	r, mem := h.memberFor(sess)
	if mem == nil {
		return
	}
	d := m.(packet.Damage)
	r.broadcast(packet.Damage{ID: mem.id, Position: d.Position}, uint64(mem.id))
}

// forward relays a message to the rest of the room unchanged.
func (h *Hub) forward(sess any, m packet.Message) {
	r, mem := h.memberFor(sess)
	if mem == nil {
		return
	}
	r.broadcast(m, uint64(mem.id))
}

func (h *Hub) memberFor(sess any) (*room, *member) {
	c := sess.(*conn)
	seed, ok := h.memberOf[c.id]
	if !ok {
		return nil, nil
	}
	r := h.rooms[seed]
	return r, r.members[c.id]
}

func (h *Hub) leave(id uint64) {
	seed, ok := h.memberOf[id]
	if !ok {
		return
	}
	delete(h.memberOf, id)
	r := h.rooms[seed]
	mem := r.members[id]
	delete(r.members, id)

	h.save(seed, mem)
	r.broadcast(packet.Leave{ID: mem.id}, id)
	h.log.Info("player left", zap.Uint64("session", id), zap.String("name", mem.name), zap.Uint32("seed", seed))

	if len(r.members) == 0 {
		delete(h.rooms, seed)
		h.log.Info("room destroyed", zap.Uint32("seed", seed))
	}
}

func (h *Hub) restore(seed uint32, name string) *persist.PlayerState {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout)
	defer cancel()
	p, err := h.store.Load(ctx, seed, name)
	if err != nil {
		h.log.Warn("player restore failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	return p
}

func (h *Hub) save(seed uint32, mem *member) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout)
	defer cancel()
	if err := h.store.Save(ctx, stateOf(seed, mem)); err != nil {
		h.log.Warn("player save failed", zap.String("name", mem.name), zap.Error(err))
	}
}

func stateOf(seed uint32, mem *member) persist.PlayerState {
	return persist.PlayerState{
		Seed:     seed,
		Name:     mem.name,
		Position: mem.position,
		Rotation: mem.rotation,
		Velocity: mem.velocity,
	}
}

// Flush saves every current member in one batch.
func (h *Hub) Flush(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	var all []persist.PlayerState
	for seed, r := range h.rooms {
		for _, id := range r.ids() {
			all = append(all, stateOf(seed, r.members[id]))
		}
	}
	if err := h.store.SaveAll(ctx, all); err != nil {
		return fmt.Errorf("flush %d players: %w", len(all), err)
	}
	return nil
}
