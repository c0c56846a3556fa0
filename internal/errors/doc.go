// Package errors provides coded, structured errors for minutespa.
//
// Every failure the library raises on purpose carries a short code
// (e.g. "M101") that maps to a registered template:
//   - A short message describing the error
//   - A longer explanation
//   - A category used by the CLI and metrics labels
//
// # Error Categories
//
//   - usage: the caller broke an API contract (missing store id, empty route path)
//   - persist: the persistent medium failed to write or remove a value
//   - navigation: the router could not complete a navigation pass
//   - config: the configuration file is missing or invalid
//   - cli: command line input was rejected
//
// # Usage
//
//	err := errors.New("M101").
//	    WithDetail(`path ""`).
//	    WithSuggestion("Pass a non-empty path and a Page with Elem or Factory set")
//
//	if errors.Is(err, "M101") {
//	    fmt.Println(err.Format())
//	}
package errors
