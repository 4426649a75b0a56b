package math

// GenerateNormals computes one face normal per triangle and assigns it to
// the triangle's vertices. Shared vertices end up with the last face's normal.
func GenerateNormals(positions []Vec3, indices []uint16) []Vec3 {
	normals := make([]Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])
		normal := edge1.Cross(edge2).Normalize()

		normals[i0] = normal
		normals[i1] = normal
		normals[i2] = normal
	}
	return normals
}
