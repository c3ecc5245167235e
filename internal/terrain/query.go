package terrain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alienworlds/engine/internal/gfx"
	"go.uber.org/zap"
)

// HeightQuery samples the terrain height at a single point on the GPU. Only
// one query may be in flight; requests made while it is busy get the last
// good result instead of queuing.
type HeightQuery struct {
	backend gfx.Backend
	params  gfx.Handle
	result  gfx.Handle
	log     *zap.Logger

	mu       sync.Mutex
	inFlight bool
	previous float64
}

func NewHeightQuery(b gfx.Backend, log *zap.Logger) (*HeightQuery, error) {
	if log == nil {
		log = zap.NewNop()
	}
	params, err := b.CreateBuffer(16, gfx.UsageUniform|gfx.UsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("height query params: %w", err)
	}
	result, err := b.CreateBuffer(12, gfx.UsageStorage|gfx.UsageMapRead)
	if err != nil {
		b.Release(params)
		return nil, fmt.Errorf("height query result: %w", err)
	}
	return &HeightQuery{backend: b, params: params, result: result, log: log}, nil
}

// Query starts a height lookup at (x, y, z). The returned future resolves
// with the new height, or immediately with the previous one if a query is
// already in flight.
func (q *HeightQuery) Query(x, y, z float64, seed uint32) *gfx.Future[float64] {
	q.mu.Lock()
	if q.inFlight {
		defer q.mu.Unlock()
		return gfx.Resolved(q.previous, nil)
	}
	prev := q.previous

	data := gfx.Float32Bytes(float32(x), float32(y), float32(z), 0)
	gfx.PutUint32At(data, 3, seed)
	if err := q.backend.WriteBuffer(q.params, 0, data); err != nil {
		q.mu.Unlock()
		return gfx.Resolved(prev, err)
	}
	if err := q.backend.DispatchCompute(KernelHeight, []gfx.Handle{q.params, q.result}, gfx.Workgroups{1, 1, 1}); err != nil {
		q.mu.Unlock()
		return gfx.Resolved(prev, err)
	}
	q.inFlight = true
	q.mu.Unlock()

	// The map callback may run inline, so the lock is not held here.
	f := gfx.NewFuture[float64]()
	err := q.backend.MapForRead(q.result, func(data []byte, err error) {
		q.mu.Lock()
		q.inFlight = false
		if err == nil {
			q.previous = float64(gfx.Float32s(data)[1])
		}
		v := q.previous
		q.mu.Unlock()
		f.Resolve(v, err)
	})
	if err != nil {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
		if errors.Is(err, gfx.ErrMapPending) {
			return gfx.Resolved(prev, nil)
		}
		q.log.Warn("height query map failed", zap.Error(err))
		return gfx.Resolved(prev, err)
	}
	return f
}

// Previous returns the last height successfully read back.
func (q *HeightQuery) Previous() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.previous
}

func (q *HeightQuery) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

func (q *HeightQuery) Close() {
	q.backend.Release(q.params)
	q.backend.Release(q.result)
}
