package core

import "testing"

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()

	refreshed := false
	// 60 frames of ~16.7ms add up to a little over one second.
	for i := 0; i < 61; i++ {
		if m.Update(1.0 / 60.0) {
			refreshed = true
		}
	}
	if !refreshed {
		t.Fatal("expected the FPS value to refresh after one second of frames")
	}
	if m.FPS() < 59 || m.FPS() > 61 {
		t.Fatalf("FPS() = %v, want ~60", m.FPS())
	}
}

func TestMetricsFrameTime(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < avgCount; i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.99 || got > 10.01 {
		t.Fatalf("FrameTime() = %v, want 10ms", got)
	}
}

func TestMetricsFrameTimeRolls(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < avgCount; i++ {
		m.Update(0.010)
	}
	for i := 0; i < avgCount; i++ {
		m.Update(0.020)
	}
	if got := m.FrameTime(); got < 19.99 || got > 20.01 {
		t.Fatalf("FrameTime() = %v, want 20ms once the window rolled over", got)
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("stopped clock elapsed = %v, want 0", c.Elapsed())
	}
	c.Start()
	c.Update()
	if c.Elapsed() < 0 {
		t.Fatalf("elapsed = %v, want >= 0", c.Elapsed())
	}
	c.Stop()
	before := c.Elapsed()
	c.Update()
	if c.Elapsed() != before {
		t.Fatal("stopped clock must not advance")
	}
}
