// Package mount provides a headless root container for the router: it keeps
// the attached elements in memory and records every attach and detach.
package mount

import (
	"fmt"
	"reflect"
	"sync"
)

// Op is a recorded container operation.
type Op struct {
	// Kind is "append" or "remove".
	Kind string

	// Elem is the element attached or detached.
	Elem any
}

// String returns e.g. "append home".
func (o Op) String() string {
	return fmt.Sprintf("%s %v", o.Kind, o.Elem)
}

// Container is an in-memory root element.
type Container struct {
	mu       sync.Mutex
	children []any
	log      []Op
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{}
}

// AppendChild attaches el as the last child.
func (c *Container) AppendChild(el any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, el)
	c.log = append(c.log, Op{Kind: "append", Elem: el})
}

// RemoveChild detaches el, searching from the most recently attached child.
// Elements that are not attached are ignored.
func (c *Container) RemoveChild(el any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.children) - 1; i >= 0; i-- {
		if same(c.children[i], el) {
			c.children = append(c.children[:i], c.children[i+1:]...)
			c.log = append(c.log, Op{Kind: "remove", Elem: el})
			return
		}
	}
}

// Children returns the attached elements in order.
func (c *Container) Children() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.children...)
}

// Ops returns every recorded operation in order.
func (c *Container) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Op(nil), c.log...)
}

// same compares elements by identity. Maps, slices and funcs are compared by
// their underlying pointer. Other values that cannot be compared with ==,
// such as structs holding slices, are compared with reflect.DeepEqual.
func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	if ta.Comparable() {
		if eq, ok := safeEqual(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// safeEqual reports a == b. ok is false when the comparison panicked because
// an interface field held an uncomparable value.
func safeEqual(a, b any) (eq, ok bool) {
	defer func() {
		if recover() != nil {
			eq, ok = false, false
		}
	}()
	return a == b, true
}
