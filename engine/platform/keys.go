package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/lumen/engine/core"
)

var keymap = map[glfw.Key]core.KeyCode{
	glfw.KeyEnter:  core.KeyEnter,
	glfw.KeyEscape: core.KeyEscape,
	glfw.KeySpace:  core.KeySpace,
	glfw.KeyLeft:   core.KeyLeft,
	glfw.KeyUp:     core.KeyUp,
	glfw.KeyRight:  core.KeyRight,
	glfw.KeyDown:   core.KeyDown,
	glfw.KeyA:      core.KeyA,
	glfw.KeyD:      core.KeyD,
	glfw.KeyM:      core.KeyM,
	glfw.KeyP:      core.KeyP,
	glfw.KeyS:      core.KeyS,
	glfw.KeyW:      core.KeyW,
}

func translateKey(key glfw.Key) core.KeyCode {
	if code, ok := keymap[key]; ok {
		return code
	}
	return core.KeyUnknown
}
