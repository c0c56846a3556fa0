package appstate

import (
	"github.com/minutespa/minutespa/internal/errors"
)

// reservedProps resolve to the bus itself rather than to a state key.
var reservedProps = map[string]func(b *Bus) any{
	"init":         func(b *Bus) any { return b.init },
	"reset":        func(b *Bus) any { return b.Reset },
	"on":           func(b *Bus) any { return b.On },
	"off":          func(b *Bus) any { return b.Off },
	"get":          func(b *Bus) any { return b.Get },
	"set":          func(b *Bus) any { return b.Set },
	"delete":       func(b *Bus) any { return b.Delete },
	"eventStorage": func(b *Bus) any { return b.Store() },
	"store":        func(b *Bus) any { return b.Store() },
	"subscribers":  func(b *Bus) any { return b.Subscribers() },
}

// IsReservedProp reports whether name addresses the bus rather than a key.
func IsReservedProp(name string) bool {
	_, ok := reservedProps[name]
	return ok
}

// Props is property-style access to a bus: reading or writing a name is
// Get or Set of the key with that name. Reserved names (see
// IsReservedProp) return the bus's own methods and attributes instead.
type Props struct {
	bus *Bus
}

// Props returns property-style access to b.
func (b *Bus) Props() *Props {
	return &Props{bus: b}
}

// Get reads name. For reserved names it returns the bus method or
// attribute and true.
func (p *Props) Get(name string) (any, bool) {
	if attr, ok := reservedProps[name]; ok {
		return attr(p.bus), true
	}
	return p.bus.Get(name)
}

// Set writes name with the same semantics as Bus.Set. Reserved names
// cannot be assigned.
func (p *Props) Set(name string, value any) (any, error) {
	if IsReservedProp(name) {
		return NoValue, errors.New("M003").WithDetailf("property %q", name)
	}
	return p.bus.Set(name, value)
}
