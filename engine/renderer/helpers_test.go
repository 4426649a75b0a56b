package renderer

import (
	"encoding/binary"
	stdmath "math"
)

func readFloat(b []byte) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(b))
}
