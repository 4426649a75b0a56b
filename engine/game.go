package engine

import (
	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// Game is the demo plugged into the engine loop.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
}

// Initialize populates the scene and returns the mesh to draw. The mesh
// must hold one batch per scene entity, in spawn order.
type Initialize func(sc *scene.Scene, model *assets.Model) (*renderer.Mesh, error)
type Update func(sc *scene.Scene, input *core.Input, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
