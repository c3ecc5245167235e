package main

import (
	"github.com/alienworlds/engine/internal/component"
	"go.uber.org/zap"
)

// logAudio stands in for a sound device in headless runs.
type logAudio struct {
	log *zap.Logger
}

func (a logAudio) Play(id component.ResourceID, volume float64, loop bool) error {
	a.log.Debug("play", zap.String("sound", string(id)), zap.Float64("volume", volume), zap.Bool("loop", loop))
	return nil
}

func (a logAudio) Stop(id component.ResourceID) error {
	a.log.Debug("stop", zap.String("sound", string(id)))
	return nil
}
