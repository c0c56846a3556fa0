// Package kvserver serves a persistent medium and the state buses of a
// registry over HTTP, so that state can be shared with processes that
// cannot reach the medium directly (a WebAssembly front end, the CLI, other
// hosts).
//
// # Endpoints
//
//	HEAD   /kv/{key}                   medium probe (see medium.Remote)
//	GET    /kv/{key}                   raw persisted value
//	PUT    /kv/{key}                   store raw value
//	DELETE /kv/{key}                   remove
//	GET    /kv?prefix=p                list keys
//
//	GET    /state/{store}              in-memory keys of a bus
//	GET    /state/{store}/{key}        JSON value of a key
//	PUT    /state/{store}/{key}        set from JSON body (?persist=1)
//	DELETE /state/{store}/{key}        delete (?broadcast=1)
//	GET    /ws/{store}?key=a&key=b     websocket feed of key changes
//
//	GET    /metrics                    Prometheus metrics (when enabled)
//	GET    /healthz                    liveness
//
// Usage:
//
//	srv := kvserver.New(kvserver.Config{Address: ":3100"}, m, appstate.NewRegistry(appstate.WithMedium(m)))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package kvserver
