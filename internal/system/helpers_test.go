package system

import (
	"context"
	"testing"
	"time"

	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap/zaptest"
)

func newWorld(t *testing.T, systems ...ecs.System) *ecs.World {
	t.Helper()
	w := ecs.NewWorld(zaptest.NewLogger(t))
	for _, s := range systems {
		w.AddSystem(s)
	}
	return w
}

func tick(t *testing.T, w *ecs.World, dt time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Tick(ctx, dt); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func near(a, b mgl64.Vec3) bool { return a.ApproxEqualThreshold(b, 1e-6) }

// sameRotation treats q and -q as equal.
func sameRotation(a, b mgl64.Quat) bool {
	return a.ApproxEqualThreshold(b, 1e-6) || a.ApproxEqualThreshold(b.Scale(-1), 1e-6)
}
