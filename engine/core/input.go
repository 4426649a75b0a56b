package core

// Key code definitions
type KeyCode uint16

const (
	KeyUnknown KeyCode = 0x00
	KeyEnter   KeyCode = 0x0D
	KeyEscape  KeyCode = 0x1B
	KeySpace   KeyCode = 0x20
	KeyLeft    KeyCode = 0x25
	KeyUp      KeyCode = 0x26
	KeyRight   KeyCode = 0x27
	KeyDown    KeyCode = 0x28
	KeyA       KeyCode = 0x41
	KeyD       KeyCode = 0x44
	KeyM       KeyCode = 0x4D
	KeyP       KeyCode = 0x50
	KeyS       KeyCode = 0x53
	KeyW       KeyCode = 0x57

	maxKeys = 256
)

type keyboardState struct {
	Keys [maxKeys]bool
}

// Input keeps the current and previous keyboard state and fires key events
// on changes.
type Input struct {
	events   *EventBus
	current  keyboardState
	previous keyboardState
}

func NewInput(events *EventBus) *Input {
	return &Input{events: events}
}

// Update rolls the current state into the previous one. Call once per
// frame after input has been handled.
func (in *Input) Update() {
	in.previous = in.current
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < maxKeys && in.current.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < maxKeys && in.previous.Keys[key]
}

// ProcessKey records a key transition and fires EventKeyPressed or
// EventKeyReleased. Repeats of the same state are ignored.
func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= maxKeys || in.current.Keys[key] == pressed {
		return
	}
	in.current.Keys[key] = pressed

	code := EventKeyReleased
	if pressed {
		code = EventKeyPressed
	}
	var ctx EventContext
	ctx.Data.U16[0] = uint16(key)
	if in.events != nil {
		in.events.Fire(code, in, ctx)
	}
}
