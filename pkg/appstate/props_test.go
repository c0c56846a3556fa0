package appstate

import (
	"testing"

	merrors "github.com/minutespa/minutespa/internal/errors"
)

func TestPropsGetSetAreSugar(t *testing.T) {
	b := NewBus("test")
	p := b.Props()

	var seen any
	b.On("theme", func(v any) { seen = v })

	if v, err := p.Set("theme", "dark"); err != nil || v != "dark" {
		t.Fatalf("Set = %v, %v", v, err)
	}
	if seen != "dark" {
		t.Errorf("subscriber saw %v, want dark", seen)
	}
	if v, ok := b.Get("theme"); !ok || v != "dark" {
		t.Errorf("bus.Get = %v, %v", v, ok)
	}
	if v, ok := p.Get("theme"); !ok || v != "dark" {
		t.Errorf("props.Get = %v, %v", v, ok)
	}
	if v, ok := p.Get("unset"); ok || !IsNoValue(v) {
		t.Errorf("props.Get(unset) = %v, %v", v, ok)
	}
}

func TestPropsReservedNames(t *testing.T) {
	b := NewBus("test")
	p := b.Props()
	b.Set("store", "shadowed")

	v, ok := p.Get("store")
	if !ok {
		t.Fatal("reserved Get should report ok")
	}
	if st, isStore := v.(*Store); !isStore || st != b.Store() {
		t.Errorf("props.Get(store) = %#v, want the bus store", v)
	}
	if v, _ := p.Get("eventStorage"); v.(*Store) != b.Store() {
		t.Error("eventStorage should alias store")
	}

	set, _ := p.Get("set")
	set.(func(string, any, ...SetOption) (any, error))("k", 1)
	if v, _ := b.Get("k"); v != 1 {
		t.Errorf("reserved set method did not write, got %v", v)
	}

	b.On("k", func(any) {})
	subs, _ := p.Get("subscribers")
	if subs.(map[string]int)["k"] != 1 {
		t.Errorf("subscribers = %v", subs)
	}

	if _, err := p.Set("reset", 1); !merrors.Is(err, "M003") {
		t.Errorf("Set(reset) error = %v, want M003", err)
	}

	for _, name := range []string{"init", "reset", "on", "off", "get", "set", "delete", "eventStorage", "store", "subscribers"} {
		if !IsReservedProp(name) {
			t.Errorf("%q should be reserved", name)
		}
	}
	if IsReservedProp("user") {
		t.Error("user should not be reserved")
	}
}
