package scene

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/lumen/engine/math"
)

const tolerance = 1e-5

func TestSpawnKeepsDrawOrder(t *testing.T) {
	s := New()
	a := s.Spawn("a", math.NewTransformFromPosition(math.NewVec3(0, 0, 0)), Motion{})
	b := s.Spawn("b", math.NewTransformFromPosition(math.NewVec3(1, 0, 0)), Motion{})
	c := s.Spawn("c", math.NewTransformFromPosition(math.NewVec3(2, 0, 0)), Motion{})

	got := s.Transforms(nil)
	if len(got) != 3 {
		t.Fatalf("Transforms returned %d matrices, want 3", len(got))
	}
	for i, want := range []float32{0, 1, 2} {
		if got[i].Data[12] != want {
			t.Errorf("transform %d translation x = %v, want %v", i, got[i].Data[12], want)
		}
	}

	if err := s.Remove(b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d after remove, want 2", s.Len())
	}
	if s.Index(a.ID) != 0 || s.Index(c.ID) != 1 || s.Index(b.ID) != -1 {
		t.Fatalf("indices after remove = %d %d %d", s.Index(a.ID), s.Index(c.ID), s.Index(b.ID))
	}
	got = s.Transforms(got)
	if len(got) != 2 || got[1].Data[12] != 2 {
		t.Fatalf("transforms after remove = %v", got)
	}
	if _, ok := s.Entity(b.ID); ok {
		t.Fatal("removed entity is still reachable")
	}
	if err := s.Remove(uuid.New()); err == nil {
		t.Fatal("removing an unknown entity must fail")
	}
}

func TestUpdateSpinsMovingEntities(t *testing.T) {
	s := New()
	spinning := s.Spawn("spinning", nil, Motion{Axis: math.NewVec3Up(), Speed: math.Pi / 2})
	still := s.Spawn("still", nil, Motion{})

	s.Update(1.0)

	got := math.NewVec3(1, 0, 0).Transform(spinning.Transform.GetWorld())
	if want := math.NewVec3(0, 0, -1); !got.Compare(want, tolerance) {
		t.Fatalf("spinning entity moved +X to %v, want %v", got, want)
	}
	if !still.Transform.GetWorld().Compare(math.NewMat4Identity(), 0) {
		t.Fatal("an entity without motion must not move")
	}
}

func TestCameraView(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(c *Camera)
		wantForward math.Vec3
		wantOrigin  math.Vec3
	}{
		{
			name:        "default",
			setup:       func(c *Camera) {},
			wantForward: math.NewVec3(0, 0, -1),
			wantOrigin:  math.NewVec3Zero(),
		},
		{
			name:        "backed off",
			setup:       func(c *Camera) { c.SetPosition(math.NewVec3(0, 0, 5)) },
			wantForward: math.NewVec3(0, 0, -1),
			wantOrigin:  math.NewVec3(0, 0, -5),
		},
		{
			name:        "yawed left",
			setup:       func(c *Camera) { c.Yaw(math.Pi / 2) },
			wantForward: math.NewVec3(-1, 0, 0),
			wantOrigin:  math.NewVec3Zero(),
		},
		{
			name:        "moved forward",
			setup:       func(c *Camera) { c.MoveForward(2) },
			wantForward: math.NewVec3(0, 0, -1),
			wantOrigin:  math.NewVec3(0, 0, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera()
			tt.setup(c)
			if got := c.Forward(); !got.Compare(tt.wantForward, tolerance) {
				t.Errorf("Forward = %v, want %v", got, tt.wantForward)
			}
			if got := math.NewVec3Zero().Transform(c.GetView()); !got.Compare(tt.wantOrigin, tolerance) {
				t.Errorf("origin in view space = %v, want %v", got, tt.wantOrigin)
			}
		})
	}
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(10)
	if c.EulerRotation.X != pitchLimit {
		t.Fatalf("pitch = %v, want %v", c.EulerRotation.X, pitchLimit)
	}
	c.Pitch(-20)
	if c.EulerRotation.X != -pitchLimit {
		t.Fatalf("pitch = %v, want %v", c.EulerRotation.X, -pitchLimit)
	}
}

func TestUniform(t *testing.T) {
	s := New()
	s.Camera.SetPosition(math.NewVec3(1, 2, 3))
	s.LightPosition = math.NewVec3(4, 5, 6)

	u := s.Uniform(16.0 / 9.0)
	if u.ViewPosition != math.NewVec4(1, 2, 3, 1) {
		t.Errorf("ViewPosition = %v", u.ViewPosition)
	}
	if u.LightPosition != math.NewVec4(4, 5, 6, 1) {
		t.Errorf("LightPosition = %v", u.LightPosition)
	}
	if !u.Model.Compare(math.NewMat4Identity(), 0) || !u.Normal.Compare(math.NewMat4Identity(), 0) {
		t.Error("model and normal matrices must be identity")
	}
	if u.Projection.Data[11] != -1 {
		t.Errorf("projection w row = %v, want -1", u.Projection.Data[11])
	}
	if got := math.NewVec3(1, 2, 3).Transform(u.View); !got.Compare(math.NewVec3Zero(), tolerance) {
		t.Errorf("camera position in view space = %v, want origin", got)
	}
}
