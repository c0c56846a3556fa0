//go:build js && wasm

package browser

import (
	"sync"
	"syscall/js"

	"github.com/minutespa/minutespa/pkg/router"
)

var _ router.History = (*History)(nil)

// History drives a router from window.history.
type History struct {
	window js.Value

	mu        sync.Mutex
	listeners []func()
	onPop     js.Func
	bound     bool
}

// NewHistory returns a History over the global window.
func NewHistory() *History {
	return &History{window: js.Global()}
}

// PushState adds path to the session history without reloading.
func (h *History) PushState(path string) {
	h.window.Get("history").Call("pushState", js.Null(), "", path)
}

// CurrentPath returns the location's path, query and fragment.
func (h *History) CurrentPath() string {
	loc := h.window.Get("location")
	return loc.Get("pathname").String() + loc.Get("search").String() + loc.Get("hash").String()
}

// OnPopState registers fn for back/forward navigation. The popstate
// listener is installed on first use.
func (h *History) OnPopState(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners = append(h.listeners, fn)
	if h.bound {
		return
	}
	h.onPop = js.FuncOf(func(js.Value, []js.Value) any {
		h.mu.Lock()
		fns := append([]func(){}, h.listeners...)
		h.mu.Unlock()
		for _, f := range fns {
			f()
		}
		return nil
	})
	h.window.Call("addEventListener", "popstate", h.onPop)
	h.bound = true
}

// Release removes the popstate listener and frees its callback.
func (h *History) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.bound {
		return
	}
	h.window.Call("removeEventListener", "popstate", h.onPop)
	h.onPop.Release()
	h.listeners = nil
	h.bound = false
}

// NewRouter builds a router that mounts into the element with id rootID and
// follows window.history.
func NewRouter(rootID string, opts ...router.Option) (*router.Router, error) {
	root, err := RootByID(rootID)
	if err != nil {
		return nil, err
	}
	return router.New(root, NewHistory(), opts...)
}
