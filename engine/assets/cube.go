package assets

import "github.com/spaghettifunk/lumen/engine/math"

// Cube returns a unit cube centered on the origin with flat normals: four
// vertices and two counter-clockwise triangles per face.
func Cube() *Model {
	faces := []struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{X: -0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{X: 0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: 0.5}}},
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: -0.5}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{X: -0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: -0.5, Z: 0.5}}},
	}

	part := Part{Name: "cube"}
	for _, f := range faces {
		base := uint16(len(part.Positions))
		for _, c := range f.corners {
			part.Positions = append(part.Positions, c)
			part.Normals = append(part.Normals, f.normal)
		}
		part.Indices = append(part.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return &Model{Name: "cube", Parts: []Part{part}}
}
