package math

import (
	m "math"

	"golang.org/x/exp/constraints"
)

const (
	Pi           float32 = 3.14159265358979323846
	deg2Rad      float32 = Pi / 180.0
	rad2Deg      float32 = 180.0 / Pi
	FloatEpsilon float32 = 1.192092896e-07
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

func DegToRad(degrees float32) float32 {
	return degrees * deg2Rad
}

func RadToDeg(radians float32) float32 {
	return radians * rad2Deg
}

func sin(x float32) float32  { return float32(m.Sin(float64(x))) }
func cos(x float32) float32  { return float32(m.Cos(float64(x))) }
func tan(x float32) float32  { return float32(m.Tan(float64(x))) }
func sqrt(x float32) float32 { return float32(m.Sqrt(float64(x))) }
func abs(x float32) float32  { return float32(m.Abs(float64(x))) }
