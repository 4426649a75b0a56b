package core

import "testing"

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []string

	first := "first"
	second := "second"
	bus.Register(EventResized, &first, func(code EventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, *listener.(*string))
		return false
	})
	bus.Register(EventResized, &second, func(code EventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, *listener.(*string))
		return data.Data.U32[0] == 0
	})

	if bus.Register(EventResized, &first, func(EventCode, interface{}, interface{}, EventContext) bool { return true }) {
		t.Error("duplicate registration accepted")
	}

	var ctx EventContext
	if !bus.Fire(EventResized, nil, ctx) {
		t.Error("event not handled")
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("dispatch order = %v", got)
	}

	if !bus.Unregister(EventResized, &first) {
		t.Fatal("unregister failed")
	}
	got = nil
	ctx.Data.U32[0] = 1
	if bus.Fire(EventResized, nil, ctx) {
		t.Error("event handled although the listener declined")
	}
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("after unregister = %v", got)
	}
	if bus.Fire(EventKeyPressed, nil, ctx) {
		t.Error("event without listeners reported handled")
	}
}

func TestInputProcessKey(t *testing.T) {
	bus := NewEventBus()
	var pressed, released []KeyCode
	bus.Register(EventKeyPressed, "test", func(code EventCode, sender, listener interface{}, data EventContext) bool {
		pressed = append(pressed, KeyCode(data.Data.U16[0]))
		return true
	})
	bus.Register(EventKeyReleased, "test", func(code EventCode, sender, listener interface{}, data EventContext) bool {
		released = append(released, KeyCode(data.Data.U16[0]))
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KeyM, true)
	in.ProcessKey(KeyM, true)
	if !in.IsKeyDown(KeyM) || in.WasKeyDown(KeyM) {
		t.Error("key state before Update is wrong")
	}
	in.Update()
	if !in.WasKeyDown(KeyM) {
		t.Error("previous state not rolled")
	}
	in.ProcessKey(KeyM, false)

	if len(pressed) != 1 || pressed[0] != KeyM {
		t.Errorf("pressed events = %v", pressed)
	}
	if len(released) != 1 || released[0] != KeyM {
		t.Errorf("released events = %v", released)
	}
	if !in.IsKeyUp(KeyM) {
		t.Error("key still down")
	}
}
