// Package appstate provides keyed, subscribable application state with
// optional write-through persistence.
//
// A Bus is an in-memory key/value map that notifies subscribers whenever a
// key is set, and can persist individual keys to a medium.Medium under the
// namespace "<store id>.<key>". Once a key has been persisted, later writes
// to it keep persisting even without the Persist option.
//
// Usage:
//
//	bus := appstate.Main() // the process-wide "main" bus
//
//	sub := bus.On("user", func(v any) {
//	    if appstate.IsNoValue(v) {
//	        // user was deleted with Broadcast()
//	        return
//	    }
//	    render(v)
//	})
//	defer bus.Off("user", sub)
//
//	bus.Set("user", map[string]any{"name": "ada"}, appstate.Persist())
//
// Subscribers run synchronously, in registration order, on the goroutine
// that called Set or Delete. A subscriber registered after a value exists is
// invoked immediately with that value.
//
// Buses are looked up by id through a Registry, which creates one bus per id
// on first use:
//
//	reg := appstate.NewRegistry(appstate.WithMedium(medium.NewMemory()))
//	cart, err := reg.For("cart")
package appstate
