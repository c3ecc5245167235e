package terrain

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/gfx"
	"github.com/alienworlds/engine/internal/gfx/headless"
	"go.uber.org/zap/zaptest"
)

func TestHeightDeterministic(t *testing.T) {
	a := Height(12.5, -40.25, 7)
	b := Height(12.5, -40.25, 7)
	if a != b {
		t.Fatalf("height not deterministic: %v vs %v", a, b)
	}
	if Height(12.5, -40.25, 8) == a {
		t.Error("different seeds should give different terrain")
	}
	for x := -2000.0; x < 2000; x += 97.3 {
		if h := Height(x, x*0.7, 3); math.Abs(h) > HeightAmplitude {
			t.Fatalf("height %v out of bounds at %v", h, x)
		}
	}
}

func TestHeightCacheSharesBuildingTile(t *testing.T) {
	b := headless.New(nil, headless.Manual(), headless.WithKernels(Kernels()))
	c := NewHeightCache(b, 42, 16, zaptest.NewLogger(t))

	_, f1 := c.Lookup(3, 4)
	_, f2 := c.Lookup(10, 15)
	if f1 == nil || f2 == nil {
		t.Fatal("tile must be pending before the map completes")
	}
	if f1 != f2 {
		t.Error("lookups in the same tile must share one future")
	}
	if got := b.Stats().Dispatches; got != 1 {
		t.Errorf("expected a single extraction, got %d", got)
	}

	var wg sync.WaitGroup
	results := make([]*Tile, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			results[i], _ = f1.Wait(ctx)
		}()
	}
	b.Flush()
	wg.Wait()
	for i, r := range results {
		if r == nil || r != results[0] {
			t.Fatalf("waiter %d got a different tile", i)
		}
	}

	h, pending := c.Lookup(3, 4)
	if pending != nil {
		t.Fatal("tile should be resident after flush")
	}
	if want := Height(3, 4, 42); math.Abs(h-float64(float32(want))) > 1e-6 {
		t.Errorf("height %v, want %v", h, want)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 tile, got %d", c.Len())
	}
}

func TestHeightCacheNegativeCoordinates(t *testing.T) {
	b := headless.New(nil, headless.Synchronous(), headless.WithKernels(Kernels()))
	c := NewHeightCache(b, 1, 16, nil)

	if p := c.TileFor(-0.5, -17); p != (Point{-1, -2}) {
		t.Fatalf("unexpected tile %v", p)
	}
	f := c.Tile(c.TileFor(-0.5, -17))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tile, err := f.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Origin != (Point{-16, -32}) {
		t.Errorf("unexpected origin %v", tile.Origin)
	}
	if got, want := tile.At(-0.5, -17), float64(float32(Height(-1, -17, 1))); got != want {
		t.Errorf("At = %v, want %v", got, want)
	}
}

func TestHeightCacheRetriesFailedTile(t *testing.T) {
	// No kernels registered: every build fails.
	b := headless.New(nil, headless.Synchronous())
	c := NewHeightCache(b, 1, 8, nil)

	_, f := c.Lookup(0, 0)
	if f == nil {
		t.Fatal("expected failed future")
	}
	if _, err := f.Result(); err == nil {
		t.Fatal("expected build error")
	}
	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Len() != 0 {
		t.Error("failed tile should be forgotten so it can be retried")
	}
	if s := b.Stats(); s.Buffers != 0 {
		t.Errorf("failed build leaked %d buffers", s.Buffers)
	}
}

func TestHeightQueryReturnsPreviousWhileBusy(t *testing.T) {
	b := headless.New(nil, headless.Manual(), headless.WithKernels(Kernels()))
	q, err := NewHeightQuery(b, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	first := q.Query(10, 0, 20, 5)
	if first.IsResolved() {
		t.Fatal("first query must wait for the map")
	}
	if !q.Busy() {
		t.Fatal("query should be in flight")
	}

	stale := q.Query(99, 0, 99, 5)
	if !stale.IsResolved() {
		t.Fatal("busy query must resolve immediately")
	}
	if v, _ := stale.Result(); v != 0 {
		t.Errorf("expected initial previous value 0, got %v", v)
	}

	b.Flush()
	v, err := first.Result()
	if err != nil {
		t.Fatal(err)
	}
	want := float64(float32(Height(10, 20, 5)))
	if v != want {
		t.Errorf("height %v, want %v", v, want)
	}
	if q.Previous() != want {
		t.Error("previous value not updated")
	}

	stale = q.Query(1, 0, 1, 5)
	b.Flush()
	if v, _ := stale.Result(); v == want {
		t.Error("new query should produce a fresh value")
	}
}

func TestDecorKernel(t *testing.T) {
	b := headless.New(nil, headless.WithKernels(Kernels()))
	params, _ := b.CreateBuffer(28, gfx.UsageUniform)
	out, _ := b.CreateBuffer(4+64*16, gfx.UsageStorage)

	data := gfx.Float32Bytes(0, 0, 8, 3, 0, 0, 0)
	gfx.PutUint32At(data, 4, 11)
	gfx.PutUint32At(data, 5, 64)
	gfx.PutUint32At(data, 6, 2)
	_ = b.WriteBuffer(params, 0, data)
	if err := b.DispatchCompute(KernelDecor, []gfx.Handle{params, out}, gfx.Workgroups{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	raw, _ := b.Bytes(out)
	n := int(gfx.Uint32At(raw, 0))
	if n == 0 || n > 64 {
		t.Fatalf("unexpected instance count %d", n)
	}
	inst := gfx.Float32s(raw[4 : 4+n*16])
	for i := 0; i < n; i++ {
		x, z := float64(inst[i*4]), float64(inst[i*4+2])
		if math.Hypot(x, z) > 24+1e-3 {
			t.Errorf("instance %d at (%v, %v) outside radius", i, x, z)
		}
	}
}

func TestPCG3D(t *testing.T) {
	tests := []struct {
		in   [3]uint32
		want [3]uint32
	}{
		{[3]uint32{0, 0, 0}, [3]uint32{2611992518, 2833812075, 1058359340}},
		{[3]uint32{1, 2, 3}, [3]uint32{4204755366, 1223881804, 1500469937}},
	}
	for _, tt := range tests {
		x, y, z := pcg3d(tt.in[0], tt.in[1], tt.in[2])
		if got := [3]uint32{x, y, z}; got != tt.want {
			t.Errorf("pcg3d(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	var sum float64
	for i := int32(0); i < 1000; i++ {
		v := Hash01(i, 0, 9)
		if v < 0 || v >= 1 {
			t.Fatalf("Hash01 = %v out of range", v)
		}
		sum += v
	}
	if mean := sum / 1000; math.Abs(mean-0.5) > 0.05 {
		t.Errorf("Hash01 mean %v is skewed", mean)
	}
}
