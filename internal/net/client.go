package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/alienworlds/engine/internal/net/packet"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("net: client not connected")

// ClientState follows a connection from dial to close.
type ClientState int32

const (
	ClientConnecting ClientState = iota
	ClientOpen
	ClientClosed
)

func (s ClientState) String() string {
	switch s {
	case ClientConnecting:
		return "connecting"
	case ClientOpen:
		return "open"
	case ClientClosed:
		return "closed"
	default:
		return fmt.Sprintf("ClientState(%d)", int32(s))
	}
}

// Client is the game side of the relay connection. Messages sent before the
// connection opens are queued and flushed, in order, once it does. Inbound
// payloads are decoded on the reader goroutine and handed to the registered
// handlers; malformed ones are logged and dropped.
type Client struct {
	addr        string
	dialTimeout time.Duration
	log         *zap.Logger

	mu       sync.Mutex
	state    ClientState
	conn     net.Conn
	queue    [][]byte
	handlers []func(packet.Message)
	done     chan struct{}
}

func NewClient(addr string, dialTimeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		addr:        addr,
		dialTimeout: dialTimeout,
		log:         log.With(zap.String("relay", addr)),
		state:       ClientConnecting,
		done:        make(chan struct{}),
	}
}

// OnMessage registers fn for every decoded inbound message. fn runs on the
// reader goroutine.
func (c *Client) OnMessage(fn func(packet.Message)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

// Connect dials the relay, flushes the queue and starts reading.
func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.mu.Lock()
		dropped := len(c.queue)
		c.queue = nil
		c.setClosedLocked()
		c.mu.Unlock()
		c.log.Warn("relay connect failed", zap.Int("dropped", dropped), zap.Error(err))
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.state == ClientClosed {
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.state = ClientOpen
	queued := c.queue
	c.queue = nil
	for _, data := range queued {
		if err := c.writeLocked(data); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()

	c.log.Info("relay connected", zap.Int("flushed", len(queued)))
	go c.readLoop(conn)
	return nil
}

// Send writes m when open, queues it while connecting, and fails once closed.
func (c *Client) Send(m packet.Message) error {
	data := packet.Encode(m)
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case ClientOpen:
		return c.writeLocked(data)
	case ClientConnecting:
		c.queue = append(c.queue, data)
		return nil
	default:
		return fmt.Errorf("send %v: %w", m.Opcode(), ErrNotConnected)
	}
}

// Login joins the room for seed under a sanitised name.
func (c *Client) Login(name string, seed uint32) error {
	return c.Send(packet.Login{Seed: seed, Name: packet.SanitizeName(name)})
}

func (c *Client) Logout() error {
	return c.Send(packet.Logout{})
}

func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == ClientOpen
}

// Queued returns the number of messages waiting for the connection to open.
func (c *Client) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Done is closed when the client closes.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setClosedLocked()
	return nil
}

func (c *Client) setClosedLocked() {
	if c.state == ClientClosed {
		return
	}
	c.state = ClientClosed
	if c.conn != nil {
		c.conn.Close()
	}
	close(c.done)
}

func (c *Client) writeLocked(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := WriteFrame(c.conn, data); err != nil {
		c.log.Warn("relay write failed", zap.Error(err))
		c.setClosedLocked()
		return err
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	defer c.Close()
	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if c.State() != ClientClosed {
				c.log.Info("relay connection lost", zap.Error(err))
			}
			return
		}
		m, err := packet.Decode(payload)
		if err != nil {
			c.log.Warn("dropping malformed payload", zap.Int("size", len(payload)), zap.Error(err))
			continue
		}
		c.mu.Lock()
		handlers := c.handlers
		c.mu.Unlock()
		for _, h := range handlers {
			h(m)
		}
	}
}
