package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
)

// DrawBatches holds one (vertex offset, index offset) pair per mesh
// instance. Batch i is drawn with instance index i, which selects its
// transform in the storage buffer.
type DrawBatches struct {
	VertexOffsets []int32
	IndexOffsets  []uint32
}

// SingleBatch draws the whole mesh as one batch.
func SingleBatch() DrawBatches {
	return DrawBatches{VertexOffsets: []int32{0}, IndexOffsets: []uint32{0}}
}

func (b DrawBatches) Len() int {
	return len(b.IndexOffsets)
}

// Add appends a batch starting at the given offsets.
func (b *DrawBatches) Add(vertexOffset int32, indexOffset uint32) {
	b.VertexOffsets = append(b.VertexOffsets, vertexOffset)
	b.IndexOffsets = append(b.IndexOffsets, indexOffset)
}

// Validate checks the batches against a mesh of totalIndices indices.
// Offsets must be parallel, non-decreasing and leave the last batch at
// least one index.
func (b DrawBatches) Validate(totalIndices uint32) error {
	if len(b.IndexOffsets) == 0 {
		return fmt.Errorf("%w: no batches", core.ErrInvalidBatches)
	}
	if len(b.VertexOffsets) != len(b.IndexOffsets) {
		return fmt.Errorf("%w: %d vertex offsets for %d index offsets", core.ErrInvalidBatches, len(b.VertexOffsets), len(b.IndexOffsets))
	}
	for i := range b.IndexOffsets {
		if b.VertexOffsets[i] < 0 {
			return fmt.Errorf("%w: negative vertex offset %d at batch %d", core.ErrInvalidBatches, b.VertexOffsets[i], i)
		}
		if i > 0 {
			if b.IndexOffsets[i] < b.IndexOffsets[i-1] {
				return fmt.Errorf("%w: index offset %d at batch %d precedes %d", core.ErrInvalidBatches, b.IndexOffsets[i], i, b.IndexOffsets[i-1])
			}
			if b.VertexOffsets[i] < b.VertexOffsets[i-1] {
				return fmt.Errorf("%w: vertex offset %d at batch %d precedes %d", core.ErrInvalidBatches, b.VertexOffsets[i], i, b.VertexOffsets[i-1])
			}
		}
	}
	last := b.IndexOffsets[len(b.IndexOffsets)-1]
	if last >= totalIndices {
		return fmt.Errorf("%w: last batch starts at %d but the mesh has %d indices", core.ErrInvalidBatches, last, totalIndices)
	}
	return nil
}

// IndexCount returns how many indices batch i draws. The last batch runs to
// the end of the index buffer.
func (b DrawBatches) IndexCount(i int, totalIndices uint32) uint32 {
	if i == len(b.IndexOffsets)-1 {
		return totalIndices - b.IndexOffsets[i]
	}
	return b.IndexOffsets[i+1] - b.IndexOffsets[i]
}

// indexRange returns the half-open index range of batch i.
func (b DrawBatches) indexRange(i int, totalIndices uint32) (uint32, uint32) {
	start := b.IndexOffsets[i]
	return start, start + b.IndexCount(i, totalIndices)
}
