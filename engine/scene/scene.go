// Package scene holds the entities the demo draws. Each entity is one draw
// batch: the scene hands the renderer its world matrices in spawn order, so
// entity i lines up with batch i of the loaded mesh.
package scene

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"golang.org/x/exp/slices"
)

// Motion spins an entity around Axis.
type Motion struct {
	Axis math.Vec3
	// Speed is in radians per second.
	Speed float32
}

type Entity struct {
	ID        uuid.UUID
	Name      string
	Transform *math.Transform
	Motion    Motion
}

type Scene struct {
	Camera        *Camera
	LightPosition math.Vec3

	entities map[uuid.UUID]*Entity
	ordered  []*Entity
}

func New() *Scene {
	return &Scene{
		Camera:        NewCamera(),
		LightPosition: math.NewVec3(5, 10, 5),
		entities:      make(map[uuid.UUID]*Entity),
	}
}

// Spawn adds an entity at the end of the draw order. A nil transform
// starts at the origin.
func (s *Scene) Spawn(name string, transform *math.Transform, motion Motion) *Entity {
	if transform == nil {
		transform = math.NewTransform()
	}
	e := &Entity{
		ID:        uuid.New(),
		Name:      name,
		Transform: transform,
		Motion:    motion,
	}
	s.entities[e.ID] = e
	s.ordered = append(s.ordered, e)
	return e
}

func (s *Scene) Remove(id uuid.UUID) error {
	if _, ok := s.entities[id]; !ok {
		return fmt.Errorf("entity %s not found", id)
	}
	delete(s.entities, id)
	s.ordered = slices.DeleteFunc(s.ordered, func(e *Entity) bool { return e.ID == id })
	return nil
}

func (s *Scene) Entity(id uuid.UUID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Index returns the draw position of the entity, -1 if it is unknown.
func (s *Scene) Index(id uuid.UUID) int {
	return slices.IndexFunc(s.ordered, func(e *Entity) bool { return e.ID == id })
}

func (s *Scene) Len() int {
	return len(s.ordered)
}

// Update advances every moving entity by dt seconds.
func (s *Scene) Update(dt float64) {
	for _, e := range s.ordered {
		if e.Motion.Speed == 0 {
			continue
		}
		angle := e.Motion.Speed * float32(dt)
		e.Transform.Rotate(math.NewQuatFromAxisAngle(e.Motion.Axis, angle, true))
	}
}

// Transforms appends the world matrix of every entity to dst in draw order.
func (s *Scene) Transforms(dst []math.Mat4) []math.Mat4 {
	dst = dst[:0]
	for _, e := range s.ordered {
		dst = append(dst, e.Transform.GetWorld())
	}
	return dst
}

// Uniform builds the frame's uniform block. Per-entity model matrices live
// in the transform buffer, so the block's model and normal matrices stay
// identity.
func (s *Scene) Uniform(aspect float32) renderer.UniformData {
	return renderer.UniformData{
		Model:         math.NewMat4Identity(),
		View:          s.Camera.GetView(),
		Projection:    s.Camera.Projection(aspect),
		Normal:        math.NewMat4Identity(),
		LightPosition: s.LightPosition.ToVec4(1),
		ViewPosition:  s.Camera.GetPosition().ToVec4(1),
	}
}
