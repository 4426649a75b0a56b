package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Mesh is flat host-side geometry. Batches index into the shared vertex
// and index arrays.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Indices   []uint16
	Batches   DrawBatches
}

func (m *Mesh) Validate() error {
	if len(m.Positions) == 0 || len(m.Indices) == 0 {
		return errors.New("mesh has no geometry")
	}
	if len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("mesh has %d normals for %d positions", len(m.Normals), len(m.Positions))
	}
	total := uint32(len(m.Indices))
	if err := m.Batches.Validate(total); err != nil {
		return err
	}
	for b := 0; b < m.Batches.Len(); b++ {
		start, end := m.Batches.indexRange(b, total)
		base := int(m.Batches.VertexOffsets[b])
		for _, idx := range m.Indices[start:end] {
			if base+int(idx) >= len(m.Positions) {
				return fmt.Errorf("batch %d references vertex %d of %d", b, base+int(idx), len(m.Positions))
			}
		}
	}
	return nil
}

type meshBuffers struct {
	vertices gpu.Buffer
	normals  gpu.Buffer
	indices  gpu.Buffer

	indexCount uint32
	batches    DrawBatches
}

func (mb *meshBuffers) destroy() {
	for _, b := range []gpu.Buffer{mb.vertices, mb.normals, mb.indices} {
		if b != nil {
			b.Destroy()
		}
	}
	mb.vertices, mb.normals, mb.indices = nil, nil, nil
}

// encode writes v as tightly packed little-endian data. v must be a fixed
// size value or a slice of them.
func encode(v any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
