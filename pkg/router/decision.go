package router

// DecisionKind tells the router how to proceed with a navigation.
type DecisionKind int

const (
	// DecisionDeny stops the navigation silently.
	DecisionDeny DecisionKind = iota
	// DecisionAllow mounts the route's page.
	DecisionAllow
	// DecisionRedirect navigates to another registered path instead.
	DecisionRedirect
	// DecisionRender mounts an element directly, without a route.
	DecisionRender
)

// String returns the decision kind name.
func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	default:
		return "deny"
	}
}

// Decision is the result of an authorization gate.
// The zero Decision denies.
type Decision struct {
	Kind DecisionKind

	// Path is the redirect target for DecisionRedirect.
	Path string

	// Elem is the element to mount for DecisionRender.
	Elem Element
}

// Allow lets the navigation mount the requested page.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// Deny stops the navigation; nothing changes.
func Deny() Decision {
	return Decision{Kind: DecisionDeny}
}

// RedirectTo runs a full navigation to path instead. path must be
// registered.
func RedirectTo(path string) Decision {
	return Decision{Kind: DecisionRedirect, Path: path}
}

// Render mounts elem in place of the requested page. The current path and
// nav listeners are left untouched. A nil elem behaves like Deny.
func Render(elem Element) Decision {
	return Decision{Kind: DecisionRender, Elem: elem}
}

// AuthFunc decides whether a navigation to path may proceed.
type AuthFunc func(path string) Decision
