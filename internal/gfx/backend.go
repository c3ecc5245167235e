package gfx

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means no compatible graphics backend is available.
	// It is fatal at startup.
	ErrUnsupported = errors.New("gfx: no compatible graphics backend")

	// ErrMapPending is returned by MapForRead while a previous map of the
	// same buffer has not completed yet.
	ErrMapPending = errors.New("gfx: buffer map already pending")

	ErrUnknownHandle   = errors.New("gfx: unknown handle")
	ErrUnknownPipeline = errors.New("gfx: unknown compute pipeline")
	ErrOutOfRange      = errors.New("gfx: write out of buffer range")
)

// Handle identifies a buffer or texture owned by a Backend. The zero handle
// is never issued.
type Handle uint32

func (h Handle) IsZero() bool { return h == 0 }

// Usage is a bitmask describing how a buffer will be bound.
type Usage uint32

const (
	UsageVertex Usage = 1 << iota
	UsageIndex
	UsageUniform
	UsageStorage
	UsageCopySrc
	UsageCopyDst
	UsageMapRead
)

func (u Usage) Has(f Usage) bool { return u&f == f }

// TextureFormat enumerates the texel formats the core asks for.
type TextureFormat uint8

const (
	FormatRGBA8 TextureFormat = iota
	FormatR32Float
	FormatDepth32
)

func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case FormatRGBA8, FormatR32Float, FormatDepth32:
		return 4
	default:
		return 4
	}
}

// Workgroups is the dispatch size of a compute pass.
type Workgroups [3]int

func (w Workgroups) Total() int { return max(w[0], 1) * max(w[1], 1) * max(w[2], 1) }

// Backend is the only surface through which the core touches the GPU.
// Implementations must be safe for concurrent use; map completions are
// delivered on backend goroutines.
type Backend interface {
	CreateBuffer(size int, usage Usage) (Handle, error)
	CreateTexture(format TextureFormat, width, height int) (Handle, error)
	WriteBuffer(h Handle, offset int, data []byte) error
	// DispatchCompute runs the named pipeline over the bound buffers.
	DispatchCompute(pipeline string, bindings []Handle, groups Workgroups) error
	// MapForRead asynchronously maps h and invokes cb with a copy of its
	// contents. It fails with ErrMapPending if h is already being mapped.
	MapForRead(h Handle, cb func(data []byte, err error)) error
	Release(h Handle)
}

// KernelFunc is the CPU stand-in for a compute pipeline, used by backends
// that cannot run shaders. Bindings are passed in binding order and may be
// written in place.
type KernelFunc func(bindings [][]byte, groups Workgroups) error

// ReadBuffer maps h and returns a future resolved with its contents.
func ReadBuffer(b Backend, h Handle) *Future[[]byte] {
	f := NewFuture[[]byte]()
	if err := b.MapForRead(h, f.Resolve); err != nil {
		f.Resolve(nil, fmt.Errorf("map buffer %d: %w", h, err))
	}
	return f
}
