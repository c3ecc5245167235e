package system

import (
	"context"
	"fmt"
	"time"

	"github.com/alienworlds/engine/internal/component"
	"github.com/alienworlds/engine/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AudioBackend plays registered sounds.
type AudioBackend interface {
	Play(id component.ResourceID, volume float64, loop bool) error
	Stop(id component.ResourceID) error
}

// SoundSystem starts a sound when its component switches to playing and
// stops it when it switches off or the entity loses the component.
type SoundSystem struct {
	ecs.BaseSystem
	audio   AudioBackend
	playing map[ecs.Entity]component.ResourceID
	log     *zap.Logger
}

func NewSoundSystem(audio AudioBackend, log *zap.Logger) *SoundSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &SoundSystem{audio: audio, playing: make(map[ecs.Entity]component.ResourceID), log: log}
}

func (s *SoundSystem) Tick(_ context.Context, _ time.Duration, w *ecs.World) error {
	var errs error
	sounds := w.EntitiesWithComponent(component.KindSound)
	for _, e := range sounds.Sorted() {
		snd, _ := ecs.Get[*component.Sound](w, e)
		if id, on := s.playing[e]; on {
			if !snd.Playing {
				errs = multierr.Append(errs, s.stop(e, id))
			}
			continue
		}
		if !snd.Playing {
			continue
		}
		if err := s.audio.Play(snd.SoundID, snd.Volume, snd.Loop); err != nil {
			// Not marked playing, so the next tick retries.
			errs = multierr.Append(errs, fmt.Errorf("play %s: %w", snd.SoundID, err))
			continue
		}
		s.playing[e] = snd.SoundID
		s.log.Debug("sound started", zap.Uint32("entity", uint32(e)), zap.String("sound", string(snd.SoundID)))
	}
	for e, id := range s.playing {
		if !sounds.Has(e) {
			errs = multierr.Append(errs, s.stop(e, id))
		}
	}
	return errs
}

// Teardown stops everything still playing.
func (s *SoundSystem) Teardown(*ecs.World) {
	for e, id := range s.playing {
		if err := s.stop(e, id); err != nil {
			s.log.Warn("sound stop failed", zap.Error(err))
		}
	}
}

// Playing reports whether the system believes e's sound is playing.
func (s *SoundSystem) Playing(e ecs.Entity) bool {
	_, ok := s.playing[e]
	return ok
}

func (s *SoundSystem) stop(e ecs.Entity, id component.ResourceID) error {
	delete(s.playing, e)
	s.log.Debug("sound stopped", zap.Uint32("entity", uint32(e)), zap.String("sound", string(id)))
	if err := s.audio.Stop(id); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}
	return nil
}
