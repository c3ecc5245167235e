package main

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSafeFrame(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	log := zap.New(core)

	err := safeFrame(func() error { panic("index out of range [-1]") }, log)
	if err == nil || !strings.Contains(err.Error(), "frame panic") {
		t.Fatalf("got %v, want a recovered frame panic", err)
	}
	if logs.FilterMessage("frame panic recovered").Len() != 1 {
		t.Error("panic not logged")
	}

	want := errors.New("missing resource")
	if err := safeFrame(func() error { return want }, log); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
	if err := safeFrame(func() error { return nil }, log); err != nil {
		t.Errorf("got %v", err)
	}
}

func TestWorldSeed(t *testing.T) {
	if got := worldSeed("z"); got != 35 {
		t.Errorf("worldSeed(z) = %d", got)
	}
	if got := worldSeed(""); got > 0x7fffffff {
		t.Errorf("random seed %d out of range", got)
	}
}
