// package server contains the router, middleware & handlers for the ChordyPi HTTP API
package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Route binds a handler function to a method and path pattern.
//
// Paths use gorilla/mux syntax, so "/api/chords/{title}/midi" exposes a "title" variable.
// Prefix routes match every path below Path.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
	Prefix  bool
}

// Handler defines the interface for a group of related HTTP endpoints.
// Implementations return their routes so the definitions stay with the handler code.
type Handler interface {
	Routes() []Route // Routes returns the endpoints this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}
