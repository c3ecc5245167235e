// Package headless implements gfx.Backend in memory. Compute pipelines are
// registered as CPU kernels; buffer maps complete on a goroutine, or inline
// when the backend is synchronous.
package headless

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alienworlds/engine/internal/gfx"
	"go.uber.org/zap"
)

type buffer struct {
	data    []byte
	usage   gfx.Usage
	mapping bool
}

type texture struct {
	format        gfx.TextureFormat
	width, height int
	data          []byte
}

// Stats counts backend activity since creation.
type Stats struct {
	Buffers    int
	Textures   int
	BytesAlloc int64
	Writes     int64
	Dispatches int64
	Maps       int64
}

// Backend is a thread-safe in-memory gfx.Backend.
type Backend struct {
	mu       sync.Mutex
	next     gfx.Handle
	buffers  map[gfx.Handle]*buffer
	textures map[gfx.Handle]*texture
	kernels  map[string]gfx.KernelFunc
	mode     mapMode
	queued   []func()
	wg       sync.WaitGroup
	log      *zap.Logger

	bytes      atomic.Int64
	writes     atomic.Int64
	dispatches atomic.Int64
	maps       atomic.Int64
}

type mapMode uint8

const (
	mapAsync mapMode = iota
	mapSync
	mapManual
)

// Option configures a Backend.
type Option func(*Backend)

// Synchronous makes MapForRead invoke its callback before returning.
func Synchronous() Option {
	return func(b *Backend) { b.mode = mapSync }
}

// Manual holds map completions until Flush is called.
func Manual() Option {
	return func(b *Backend) { b.mode = mapManual }
}

// WithKernels registers compute kernels by pipeline name.
func WithKernels(kernels map[string]gfx.KernelFunc) Option {
	return func(b *Backend) {
		for name, k := range kernels {
			b.kernels[name] = k
		}
	}
}

func New(log *zap.Logger, opts ...Option) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Backend{
		buffers:  make(map[gfx.Handle]*buffer),
		textures: make(map[gfx.Handle]*texture),
		kernels:  make(map[string]gfx.KernelFunc),
		log:      log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterKernel adds or replaces a compute kernel.
func (b *Backend) RegisterKernel(name string, k gfx.KernelFunc) {
	b.mu.Lock()
	b.kernels[name] = k
	b.mu.Unlock()
}

func (b *Backend) allocHandle() gfx.Handle {
	b.next++
	return b.next
}

func (b *Backend) CreateBuffer(size int, usage gfx.Usage) (gfx.Handle, error) {
	if size < 0 {
		return 0, fmt.Errorf("headless: negative buffer size %d", size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.allocHandle()
	b.buffers[h] = &buffer{data: make([]byte, size), usage: usage}
	b.bytes.Add(int64(size))
	return h, nil
}

func (b *Backend) CreateTexture(format gfx.TextureFormat, width, height int) (gfx.Handle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("headless: invalid texture size %dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.allocHandle()
	n := width * height * format.BytesPerTexel()
	b.textures[h] = &texture{format: format, width: width, height: height, data: make([]byte, n)}
	b.bytes.Add(int64(n))
	return h, nil
}

func (b *Backend) WriteBuffer(h gfx.Handle, offset int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[h]
	if !ok {
		return fmt.Errorf("write buffer %d: %w", h, gfx.ErrUnknownHandle)
	}
	if offset < 0 || offset+len(data) > len(buf.data) {
		return fmt.Errorf("write buffer %d [%d:%d] of %d: %w",
			h, offset, offset+len(data), len(buf.data), gfx.ErrOutOfRange)
	}
	copy(buf.data[offset:], data)
	b.writes.Add(1)
	return nil
}

func (b *Backend) DispatchCompute(pipeline string, bindings []gfx.Handle, groups gfx.Workgroups) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k, ok := b.kernels[pipeline]
	if !ok {
		return fmt.Errorf("dispatch %q: %w", pipeline, gfx.ErrUnknownPipeline)
	}
	views := make([][]byte, len(bindings))
	for i, h := range bindings {
		buf, ok := b.buffers[h]
		if !ok {
			return fmt.Errorf("dispatch %q binding %d: %w", pipeline, i, gfx.ErrUnknownHandle)
		}
		views[i] = buf.data
	}
	if err := k(views, groups); err != nil {
		return fmt.Errorf("dispatch %q: %w", pipeline, err)
	}
	b.dispatches.Add(1)
	return nil
}

func (b *Backend) MapForRead(h gfx.Handle, cb func([]byte, error)) error {
	b.mu.Lock()
	buf, ok := b.buffers[h]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("map buffer %d: %w", h, gfx.ErrUnknownHandle)
	}
	if buf.mapping {
		b.mu.Unlock()
		return gfx.ErrMapPending
	}
	buf.mapping = true
	b.mu.Unlock()
	b.maps.Add(1)

	complete := func() {
		b.mu.Lock()
		data := make([]byte, len(buf.data))
		copy(data, buf.data)
		buf.mapping = false
		b.mu.Unlock()
		cb(data, nil)
	}
	switch b.mode {
	case mapSync:
		complete()
		return nil
	case mapManual:
		b.mu.Lock()
		b.queued = append(b.queued, complete)
		b.mu.Unlock()
		return nil
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		complete()
	}()
	return nil
}

func (b *Backend) Release(h gfx.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[h]; ok {
		b.bytes.Add(-int64(len(buf.data)))
		delete(b.buffers, h)
		return
	}
	if tex, ok := b.textures[h]; ok {
		b.bytes.Add(-int64(len(tex.data)))
		delete(b.textures, h)
		return
	}
	b.log.Debug("release of unknown handle", zap.Uint32("handle", uint32(h)))
}

// Flush completes every map held by a Manual backend, in request order.
// It returns the number of completions delivered.
func (b *Backend) Flush() int {
	b.mu.Lock()
	queued := b.queued
	b.queued = nil
	b.mu.Unlock()
	for _, complete := range queued {
		complete()
	}
	return len(queued)
}

// Drain waits for every in-flight map callback to finish.
func (b *Backend) Drain() { b.wg.Wait() }

// Bytes returns a copy of a buffer's contents, for tests and tooling.
func (b *Backend) Bytes(h gfx.Handle) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[h]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf.data))
	copy(out, buf.data)
	return out, true
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Buffers:    len(b.buffers),
		Textures:   len(b.textures),
		BytesAlloc: b.bytes.Load(),
		Writes:     b.writes.Load(),
		Dispatches: b.dispatches.Load(),
		Maps:       b.maps.Load(),
	}
}

var _ gfx.Backend = (*Backend)(nil)
