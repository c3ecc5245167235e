package input

import "testing"

func TestShape(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.1, 0},
		{-0.12, 0},
		{0.5, 0.125},
		{-1, -1},
	}
	for _, tt := range tests {
		if got := Shape(tt.in); got != tt.want {
			t.Errorf("Shape(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Deadzoned(0.1) != 0 || Deadzoned(-0.5) != -0.5 {
		t.Error("Deadzoned must only zero values inside the deadzone")
	}
}

func TestStateAccumulators(t *testing.T) {
	s := NewState()
	s.Scroll(10)
	s.Scroll(-4)
	if w := s.TakeWheel(); w != 6 {
		t.Errorf("wheel %v", w)
	}
	if w := s.TakeWheel(); w != 0 {
		t.Errorf("wheel not cleared: %v", w)
	}
	s.Look(1, 2)
	s.Look(1, 2)
	if dx, dy := s.TakeLook(); dx != 2 || dy != 4 {
		t.Errorf("look %v %v", dx, dy)
	}
	s.Press(KeyBoost, 1)
	s.Release(KeyBoost)
	if s.Held(KeyBoost) != 0 {
		t.Error("key not released")
	}
	if s.Held(Key(200)) != 0 || s.Axis(Axis(200)) != 0 {
		t.Error("out of range input must read as zero")
	}
}
