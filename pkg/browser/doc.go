// Package browser binds the state bus and router to a browser when compiled
// to WebAssembly (GOOS=js GOARCH=wasm).
//
//   - Storage is a medium over sessionStorage or localStorage.
//   - Root mounts router pages into a DOM element.
//   - History drives the router from window.history and popstate.
//
// Usage:
//
//	m := browser.SessionStorage()
//	appstate.DefaultRegistry = appstate.NewRegistry(appstate.WithMedium(m))
//
//	r, err := browser.NewRouter("app", router.WithPages(pages...))
//	if err != nil {
//	    panic(err)
//	}
//	r.InitialNav()
//	select {}
//
// On other platforms the package is empty.
package browser
