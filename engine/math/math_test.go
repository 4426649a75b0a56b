package math

import "testing"

const tolerance = 1e-5

func TestMat4Inverse(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
	}{
		{"identity", NewMat4Identity()},
		{"translation", NewMat4Translation(NewVec3(1, -2, 3))},
		{"scale", NewMat4Scale(NewVec3(2, 4, 0.5))},
		{"rotation", NewQuatFromAxisAngle(NewVec3Up(), 0.7, true).ToMat4()},
		{"composite", NewTransformFromPositionRotationScale(
			NewVec3(4, 5, 6),
			NewQuatFromAxisAngle(NewVec3(1, 0, 0), 1.2, true),
			NewVec3(2, 2, 2)).GetLocal()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.Mul(tt.m.Inverse())
			if !got.Compare(NewMat4Identity(), tolerance) {
				t.Fatalf("m * m^-1 = %v, want identity", got.Data)
			}
		})
	}
}

func TestMat4Transposed(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	tr := m.Transposed()
	if tr.Data[3] != 1 || tr.Data[7] != 2 || tr.Data[11] != 3 {
		t.Fatalf("transposed translation = %v", tr.Data)
	}
	if !tr.Transposed().Compare(m, 0) {
		t.Fatal("double transpose must be the original matrix")
	}
}

func TestQuaternionRotation(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3Up(), Pi/2, true)
	got := NewVec3(1, 0, 0).Transform(q.ToMat4())
	want := NewVec3(0, 0, -1)
	if !got.Compare(want, tolerance) {
		t.Fatalf("rotating +X by 90 degrees around +Y = %v, want %v", got, want)
	}
}

func TestTransformOrder(t *testing.T) {
	tr := NewTransformFromPositionRotationScale(NewVec3(10, 0, 0), NewQuatIdentity(), NewVec3(2, 2, 2))
	got := NewVec3(1, 1, 1).Transform(tr.GetLocal())
	want := NewVec3(12, 2, 2)
	if !got.Compare(want, tolerance) {
		t.Fatalf("scale then translate = %v, want %v", got, want)
	}

	parent := NewTransformFromPosition(NewVec3(0, 5, 0))
	tr.Parent = parent
	got = NewVec3(1, 1, 1).Transform(tr.GetWorld())
	want = NewVec3(12, 7, 2)
	if !got.Compare(want, tolerance) {
		t.Fatalf("world transform = %v, want %v", got, want)
	}
}

func TestLookAt(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 5), NewVec3Zero(), NewVec3Up())
	got := NewVec3Zero().Transform(view)
	want := NewVec3(0, 0, -5)
	if !got.Compare(want, tolerance) {
		t.Fatalf("target in view space = %v, want %v", got, want)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(uint32(5000), 1, 4096); got != 4096 {
		t.Fatalf("Clamp = %d, want 4096", got)
	}
	if got := Clamp(uint32(0), 1, 4096); got != 1 {
		t.Fatalf("Clamp = %d, want 1", got)
	}
	if got := Clamp(float32(-1), 0, 1); got != 0 {
		t.Fatalf("Clamp = %v, want 0", got)
	}
}

func TestGenerateNormals(t *testing.T) {
	positions := []Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := GenerateNormals(positions, []uint16{0, 1, 2})
	for i, n := range normals {
		if !n.Compare(NewVec3(0, 0, 1), tolerance) {
			t.Fatalf("normal %d = %v, want +Z", i, n)
		}
	}
}
