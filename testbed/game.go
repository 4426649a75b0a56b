package testbed

import (
	stdmath "math"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/scene"
)

const (
	moveSpeed float32 = 5.0
	turnSpeed float32 = 1.5
)

type gameState struct {
	cfg    config.SceneConfig
	width  uint32
	height uint32
}

// NewTestGame lays the model out on a grid of spinning instances.
func NewTestGame(cfg *config.Config) *engine.Game {
	state := &gameState{cfg: cfg.Scene}
	return &engine.Game{
		State:        state,
		FnInitialize: state.initialize,
		FnUpdate:     state.update,
		FnOnResize:   state.onResize,
	}
}

func (g *gameState) initialize(sc *scene.Scene, model *assets.Model) (*renderer.Mesh, error) {
	core.LogInfo("initializing testbed with %d instances of %q", g.cfg.Instances, model.Name)

	mesh, err := assets.BuildMesh(model, g.cfg.Instances)
	if err != nil {
		return nil, err
	}

	cols := int(stdmath.Ceil(stdmath.Sqrt(float64(g.cfg.Instances))))
	rows := (g.cfg.Instances + cols - 1) / cols
	offsetX := float32(cols-1) * g.cfg.Spacing / 2
	offsetZ := float32(rows-1) * g.cfg.Spacing / 2
	speed := math.DegToRad(g.cfg.SpinSpeed)

	// one entity per batch, all parts of an instance share its placement
	for i := 0; i < g.cfg.Instances; i++ {
		position := math.NewVec3(
			float32(i%cols)*g.cfg.Spacing-offsetX,
			0,
			float32(i/cols)*g.cfg.Spacing-offsetZ,
		)
		axis := math.NewVec3(0.3*float32(i%3), 1, 0.2*float32(i%2)).Normalize()
		for _, part := range model.Parts {
			sc.Spawn(part.Name, math.NewTransformFromPosition(position), scene.Motion{
				Axis:  axis,
				Speed: speed * (1 + 0.1*float32(i)),
			})
		}
	}

	extent := float32(max(cols, rows)) * g.cfg.Spacing
	sc.Camera.SetPosition(math.NewVec3(0, extent*0.5, extent*1.2+2))
	sc.Camera.SetEulerRotation(math.NewVec3(-0.35, 0, 0))
	sc.LightPosition = math.NewVec3(extent, extent, extent)
	return mesh, nil
}

func (g *gameState) update(sc *scene.Scene, input *core.Input, deltaTime float64) error {
	dt := float32(deltaTime)
	cam := sc.Camera

	if input.IsKeyDown(core.KeyW) {
		cam.MoveForward(moveSpeed * dt)
	}
	if input.IsKeyDown(core.KeyS) {
		cam.MoveBackward(moveSpeed * dt)
	}
	if input.IsKeyDown(core.KeyA) {
		cam.MoveLeft(moveSpeed * dt)
	}
	if input.IsKeyDown(core.KeyD) {
		cam.MoveRight(moveSpeed * dt)
	}
	if input.IsKeyDown(core.KeySpace) {
		cam.MoveUp(moveSpeed * dt)
	}
	if input.IsKeyDown(core.KeyLeft) {
		cam.Yaw(turnSpeed * dt)
	}
	if input.IsKeyDown(core.KeyRight) {
		cam.Yaw(-turnSpeed * dt)
	}
	if input.IsKeyDown(core.KeyUp) {
		cam.Pitch(turnSpeed * dt)
	}
	if input.IsKeyDown(core.KeyDown) {
		cam.Pitch(-turnSpeed * dt)
	}
	return nil
}

func (g *gameState) onResize(width uint32, height uint32) error {
	g.width = width
	g.height = height
	core.LogDebug("testbed viewport is now %dx%d", width, height)
	return nil
}
