// Package router implements client-side navigation for single-page
// applications.
//
// A Router maps exact path strings to pages and keeps exactly one page
// element attached under a root container. Navigating pushes the path onto
// the history medium and replaces the mounted element; back/forward signals
// from the history medium re-run navigation without pushing.
//
// # Pages
//
//	r, err := router.New(root, hist, router.WithPages(
//	    router.PageRoute{Path: "/", Page: router.Page{Elem: home}},
//	    router.PageRoute{Path: "/about", Page: router.Page{
//	        Factory:   renderAbout,                       // called on every mount
//	        OnRendered: func(el router.Element) { ... },  // after attach
//	        OnUnmount:  func(el router.Element) { ... },  // before detach
//	    }},
//	))
//	r.InitialNav()
//
// Paths are matched exactly; there are no parameters or nested routes.
// Navigating to an unknown path does nothing, unless an authorization gate
// is installed. An unknown current location redirects to the first
// registered path.
//
// # Authorization
//
// OnPathAuth installs a gate that sees every navigation and returns a
// Decision:
//
//	r.OnPathAuth(func(path string) router.Decision {
//	    switch {
//	    case path == "/login" || loggedIn():
//	        return router.Allow()
//	    case path == "/admin":
//	        return router.Render(forbiddenPage) // mount without a route
//	    default:
//	        return router.RedirectTo("/login")  // full navigation to /login
//	    }
//	})
//
// Call Reauthenticate after login or logout to re-run the gate for the
// current location.
//
// A Router is driven from a single goroutine (the UI event loop); it is not
// safe for concurrent use. Hooks, listeners and the gate run synchronously
// and their panics propagate.
package router
