package core

import "github.com/spaghettifunk/lumen/engine/containers"

const avgCount = 30

// Metrics keeps a rolling frame time average and a frames-per-second count.
type Metrics struct {
	msTimes            *containers.RingQueue[float64]
	msSum              float64
	msAvg              float64
	frames             int
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{msTimes: containers.NewRingQueue[float64](avgCount)}
}

// Update records one frame that took frameElapsed seconds. It reports true
// once per second of accumulated frame time, when the FPS value refreshes.
func (m *Metrics) Update(frameElapsed float64) bool {
	frameMS := frameElapsed * 1000.0
	if m.msTimes.IsFull() {
		oldest, _ := m.msTimes.Dequeue()
		m.msSum -= oldest
	}
	_ = m.msTimes.Enqueue(frameMS)
	m.msSum += frameMS
	m.msAvg = m.msSum / float64(m.msTimes.Len())

	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS >= 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
		return true
	}
	return false
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last
// avgCount frames.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}
