package router

// Element is an opaque page element. The router never inspects it; it only
// hands it to the Root and to page hooks. A func() Element passed to Render
// is called to produce the element.
type Element = any

// Root is the container the router mounts pages into. It holds at most one
// page element at a time.
type Root interface {
	// AppendChild attaches el under the root.
	AppendChild(el Element)

	// RemoveChild detaches el from the root.
	RemoveChild(el Element)
}

// History is the browser-history medium.
type History interface {
	// PushState records path as the new current location without reloading.
	PushState(path string)

	// CurrentPath returns the current location. Query strings and
	// fragments are ignored by the router.
	CurrentPath() string

	// OnPopState registers fn to be called after a back/forward navigation
	// has changed the current location.
	OnPopState(fn func())
}

// Page describes what to mount for a path.
type Page struct {
	// Elem is the element to mount. Ignored when Factory is set.
	Elem Element

	// Factory produces the element on every mount.
	Factory func() Element

	// OnRendered is called with the element after it has been attached.
	OnRendered func(el Element)

	// OnUnmount is called with the element before it is detached.
	OnUnmount func(el Element)
}

func (p Page) renderable() bool {
	return p.Factory != nil || p.Elem != nil
}

func (p Page) element() Element {
	if p.Factory != nil {
		return p.Factory()
	}
	return p.Elem
}

// PageRoute pairs a path with its page, for WithPages.
type PageRoute struct {
	Path string
	Page Page
}

// Listener is called with the path after every completed navigation.
type Listener func(path string)
