package gfx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureResolvesOnce(t *testing.T) {
	f := NewFuture[int]()
	if f.IsResolved() {
		t.Fatal("new future must be pending")
	}
	f.Resolve(1, nil)
	f.Resolve(2, errors.New("ignored"))
	v, err := f.Result()
	if v != 1 || err != nil {
		t.Errorf("expected first resolution, got %d %v", v, err)
	}
}

func TestFutureWaitContext(t *testing.T) {
	f := NewFuture[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}

func TestThen(t *testing.T) {
	f := NewFuture[[]byte]()
	g := Then(f, func(b []byte) (float32, error) { return Float32s(b)[0], nil })
	f.Resolve(Float32Bytes(2.5), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := g.Wait(ctx)
	if err != nil || v != 2.5 {
		t.Errorf("got %v %v", v, err)
	}

	boom := errors.New("boom")
	h := Then(Resolved[[]byte](nil, boom), func(b []byte) (int, error) { return 1, nil })
	if _, err := h.Wait(ctx); !errors.Is(err, boom) {
		t.Errorf("expected propagated error, got %v", err)
	}
}
