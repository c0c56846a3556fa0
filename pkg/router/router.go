package router

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/router/history"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

// MaxRedirects bounds how many navigations may nest inside one another
// (redirects to the first route or through the authorization gate).
const MaxRedirects = 16

// Navigation outcomes, as recorded in metrics and spans.
const (
	outcomeMounted    = "mounted"
	outcomeRedirected = "redirected"
	outcomeRendered   = "rendered"
	outcomeDenied     = "denied"
	outcomeIgnored    = "ignored"
)

type route struct {
	path string
	page Page
}

// Router mounts the page registered for the current location under a root
// container.
type Router struct {
	root Root
	hist History

	routes map[string]*route
	order  []string

	mounted       Element
	hasMounted    bool
	activeUnmount func(Element)
	currentPath   string

	auth      AuthFunc
	listeners []Listener

	depth  int
	navCtx context.Context

	initial []PageRoute
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates a router that mounts into root and follows hist. A nil hist
// uses an in-memory history starting at "". The router subscribes to hist's
// back/forward signal.
func New(root Root, hist History, opts ...Option) (*Router, error) {
	if root == nil {
		return nil, errors.New("M100")
	}
	if hist == nil {
		hist = history.NewMemory("")
	}

	r := &Router{
		root:   root,
		hist:   hist,
		routes: make(map[string]*route),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "router")
	}
	if r.tracer == nil {
		r.tracer = telemetry.Tracer("")
	}

	for _, pr := range r.initial {
		if err := r.Register(pr.Path, pr.Page); err != nil {
			return nil, err
		}
	}
	r.initial = nil

	hist.OnPopState(r.handlePop)
	return r, nil
}

// Register maps path to page. Registering a path again replaces its page
// and keeps its original position in the route order.
func (r *Router) Register(path string, page Page) error {
	if path == "" || !page.renderable() {
		return errors.New("M101").
			WithDetailf("path %q", path).
			WithSuggestion("Pass a non-empty path and a Page with Elem or Factory set")
	}
	if _, ok := r.routes[path]; !ok {
		r.order = append(r.order, path)
	}
	r.routes[path] = &route{path: path, page: page}
	return nil
}

// OnNavigate registers fn to be called with the path after every completed
// navigation. If a navigation has already completed, fn is called
// immediately with the current path.
func (r *Router) OnNavigate(fn Listener) *Router {
	if fn == nil {
		return r
	}
	r.listeners = append(r.listeners, fn)
	if r.currentPath != "" {
		fn(r.currentPath)
	}
	return r
}

// OnPathAuth installs the authorization gate. A nil fn removes it.
func (r *Router) OnPathAuth(fn AuthFunc) *Router {
	r.auth = fn
	return r
}

// IsValidPath reports whether path is registered.
func (r *Router) IsValidPath(path string) bool {
	_, ok := r.routes[path]
	return ok
}

// Paths returns the registered paths in registration order.
func (r *Router) Paths() []string {
	return append([]string(nil), r.order...)
}

// CurrentPath returns the path of the last completed navigation, or "".
func (r *Router) CurrentPath() string {
	return r.currentPath
}

// Mounted returns the element currently attached under the root.
func (r *Router) Mounted() (Element, bool) {
	return r.mounted, r.hasMounted
}

// Navigate pushes path onto the history and navigates to it. Unregistered
// paths are ignored unless an authorization gate is installed.
func (r *Router) Navigate(path string) error {
	if !r.IsValidPath(path) && r.auth == nil {
		r.logger.Debug("ignoring navigation to unregistered path", "path", path)
		r.metrics.Navigation(outcomeIgnored)
		return nil
	}

	r.depth++
	defer func() { r.depth-- }()
	if r.depth > MaxRedirects {
		return errors.New("M104").WithDetailf("while navigating to %q", path)
	}

	r.hist.PushState(path)
	return r.handleNav(true)
}

// InitialNav navigates to the current location. Call it once after the
// routes are registered.
func (r *Router) InitialNav() error {
	return r.handleNav(false)
}

// Reauthenticate re-runs navigation for the current location without
// touching the history, e.g. after login or logout.
func (r *Router) Reauthenticate() error {
	return r.handleNav(false)
}

// handlePop runs on back/forward; the history already moved.
func (r *Router) handlePop() {
	if err := r.handleNav(false); err != nil {
		r.logger.Error("navigation after history change failed", "error", err)
	}
}

// PathAuthorized runs the authorization gate for path and applies its side
// effects: a redirect navigates to the target, a render mounts the given
// element. It reports true only when the caller should mount path's page.
// Without a gate every path is authorized.
func (r *Router) PathAuthorized(path string) (bool, error) {
	outcome, err := r.authorize(path)
	return outcome == "", err
}

// authorize returns "" to proceed, or the outcome that settled the
// navigation.
func (r *Router) authorize(path string) (string, error) {
	if r.auth == nil {
		return "", nil
	}

	d := r.auth(path)
	switch d.Kind {
	case DecisionAllow:
		if !r.IsValidPath(path) {
			r.logger.Warn("authorization allowed an unregistered path", "path", path)
			return outcomeDenied, nil
		}
		return "", nil
	case DecisionRedirect:
		if !r.IsValidPath(d.Path) {
			return outcomeRedirected, errors.New("M102").WithDetailf("%q", d.Path)
		}
		return outcomeRedirected, r.Navigate(d.Path)
	case DecisionRender:
		if d.Elem == nil {
			r.logger.Warn("authorization rendered a nil element; denying", "path", path)
			return outcomeDenied, nil
		}
		r.mount(d.Elem)
		return outcomeRendered, nil
	default:
		return outcomeDenied, nil
	}
}

// handleNav mounts the page for the current location.
func (r *Router) handleNav(pushed bool) (err error) {
	if len(r.routes) == 0 {
		err := errors.New("M103").WithSuggestion("Register a route before navigating")
		r.metrics.NavigationError(err.Code)
		return err
	}
	path := pathname(r.hist.CurrentPath())

	prev := r.navCtx
	parent := prev
	if parent == nil {
		parent = context.Background()
	}
	ctx, span := telemetry.StartNavigation(parent, r.tracer, path, pushed)
	r.navCtx = ctx
	outcome := outcomeMounted
	defer func() {
		r.navCtx = prev
		telemetry.EndSpan(span, outcome, err)
		if err != nil {
			// nested passes return the same error; count it once
			if prev == nil {
				r.metrics.NavigationError(errors.CodeOf(err))
			}
			return
		}
		r.metrics.Navigation(outcome)
	}()

	if !r.IsValidPath(path) && r.auth == nil {
		outcome = outcomeRedirected
		return r.Navigate(r.order[0])
	}

	if settled, err := r.authorize(path); settled != "" || err != nil {
		outcome = settled
		return err
	}

	rt := r.routes[path]
	r.mount(rt.page.element())
	if rt.page.OnRendered != nil {
		rt.page.OnRendered(r.mounted)
	}
	r.activeUnmount = rt.page.OnUnmount
	r.currentPath = path

	r.logger.Debug("navigated", "path", path)
	listeners := append([]Listener(nil), r.listeners...)
	for _, fn := range listeners {
		fn(path)
	}
	return nil
}

// mount replaces the mounted element with el. The outgoing element's
// unmount hook runs at most once, before it is detached.
func (r *Router) mount(el Element) {
	if r.hasMounted {
		if unmount := r.activeUnmount; unmount != nil {
			r.activeUnmount = nil
			unmount(r.mounted)
		}
		r.root.RemoveChild(r.mounted)
		r.mounted, r.hasMounted = nil, false
	}

	if factory, ok := el.(func() Element); ok {
		el = factory()
	}
	r.mounted, r.hasMounted = el, true
	r.root.AppendChild(el)
}

// pathname strips the query string and fragment from a location.
func pathname(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}
