//go:build js && wasm

package browser

import (
	"fmt"
	"log/slog"
	"syscall/js"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/router"
)

var _ router.Root = (*Root)(nil)

// Node is implemented by elements that wrap a DOM node.
type Node interface {
	JSValue() js.Value
}

// Root mounts router elements into a DOM element. Elements must be js.Value
// nodes or implement Node; anything else is logged and skipped.
type Root struct {
	node   js.Value
	logger *slog.Logger
}

// RootByID returns a Root for the element with the given id.
func RootByID(id string) (*Root, error) {
	node := js.Global().Get("document").Call("getElementById", id)
	if node.IsNull() || node.IsUndefined() {
		return nil, errors.New("M100").WithDetailf("no element with id %q", id)
	}
	return NewRoot(node), nil
}

// NewRoot wraps a DOM node.
func NewRoot(node js.Value) *Root {
	return &Root{
		node:   node,
		logger: slog.Default().With("component", "browser"),
	}
}

func (r *Root) domNode(el router.Element) (js.Value, bool) {
	switch v := el.(type) {
	case js.Value:
		return v, true
	case Node:
		return v.JSValue(), true
	}
	r.logger.Warn("element is not a DOM node", "type", fmt.Sprintf("%T", el))
	return js.Value{}, false
}

// AppendChild attaches el under the root node.
func (r *Root) AppendChild(el router.Element) {
	if n, ok := r.domNode(el); ok {
		r.node.Call("appendChild", n)
	}
}

// RemoveChild detaches el if it is still a child of the root node.
func (r *Root) RemoveChild(el router.Element) {
	n, ok := r.domNode(el)
	if !ok {
		return
	}
	if r.node.Call("contains", n).Bool() {
		r.node.Call("removeChild", n)
	}
}
