package system

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// FollowSystem moves followers along with their target on the masked axes.
// A follower's position when first seen is kept as its offset.
type FollowSystem struct {
	ecs.BaseSystem
	origins map[ecs.Entity]mgl64.Vec3
}

func NewFollowSystem() *FollowSystem {
	return &FollowSystem{origins: make(map[ecs.Entity]mgl64.Vec3)}
}

func (s *FollowSystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	followers := w.EntitiesWithComponent(component.KindFollow)
	for e := range s.origins {
		if !followers.Has(e) {
			delete(s.origins, e)
		}
	}
	for _, e := range followers.Sorted() {
		f, _ := ecs.Get[*component.Follow](w, e)
		src, ok := positionOf(w, f.Target)
		if !ok {
			continue
		}
		dst, ok := positionOf(w, e)
		if !ok {
			continue
		}
		origin, seen := s.origins[e]
		if !seen {
			origin = *dst
			s.origins[e] = origin
		}
		for i, on := range f.Axis {
			if on {
				dst[i] = src[i] + origin[i]
			}
		}
	}
	return nil
}
