package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// Quaternion represents a rotational orientation.
type Quaternion Vec4

// Mat4 is a 4x4 matrix stored row-major. Vectors are treated as rows, so
// a.Mul(b) applies a first and then b, and the translation lives in
// elements 12..14.
type Mat4 struct {
	Data [16]float32
}

/**
 * @brief Represents the transform of an object in the world.
 * Transforms can have a parent whose own transform is then
 * taken into account. NOTE: The properties of this should not
 * be edited directly, use the setters so the local matrix is
 * regenerated.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	// IsDirty is set whenever position, rotation or scale change.
	IsDirty bool
	// Local caches the local matrix until the next change.
	Local  Mat4
	Parent *Transform
}
