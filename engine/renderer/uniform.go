package renderer

import "github.com/spaghettifunk/lumen/engine/math"

// UniformSize is the std140 size of UniformData.
const UniformSize = 4*64 + 2*16

// UniformData is the per-frame uniform block. Every member is a mat4 or a
// vec4, so the std140 layout has no padding and matches field order.
type UniformData struct {
	Model         math.Mat4
	View          math.Mat4
	Projection    math.Mat4
	Normal        math.Mat4
	LightPosition math.Vec4
	ViewPosition  math.Vec4
}

func (u *UniformData) Bytes() []byte {
	return encode(u)
}

const transformSize = 64

func transformBytes(transforms []math.Mat4) []byte {
	return encode(transforms)
}
