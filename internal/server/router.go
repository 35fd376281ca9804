package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [mux.Router] internally for method matching and path variables.
type BasicRouter struct {
	mux         *mux.Router
	middlewares []Middleware
	once        sync.Once
	chain       http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
//
// Unmatched paths and methods answer with JSON errors instead of the plain text defaults.
func NewBasicRouter() *BasicRouter {
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return &BasicRouter{
		mux:         m,
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware wraps the whole router, so it also sees CORS preflights and unmatched requests.
// It must be registered before the first request is served.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// An empty method matches any method.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	route := r.mux.Handle(path, handler)
	if method != "" {
		route.Methods(method)
	}
}

// Handler registers every [Route] returned by [Handler.Routes].
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		if route.Prefix {
			pr := r.mux.PathPrefix(route.Path).Handler(route.Handler)
			if route.Method != "" {
				pr.Methods(route.Method)
			}
			continue
		}
		r.Handle(route.Method, route.Path, route.Handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.once.Do(func() { r.chain = r.Apply(r.mux) })
	r.chain.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

// Vars returns the path variables of the current request.
func Vars(r *http.Request) map[string]string {
	return mux.Vars(r)
}
