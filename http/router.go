package http

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/sagarc03/stowfront"
)

// RouteHandler produces the response for one request using the credential
// resolved by the pipeline.
type RouteHandler func(r *http.Request, cred stowfront.Credential) *Response

type route struct {
	pattern *regexp.Regexp
	handler RouteHandler
}

// Router matches request paths against regular expressions in registration
// order. A pattern must cover the whole path to match. The catch-all passed
// to NewRouter answers everything no registered pattern claims.
type Router struct {
	routes   []route
	catchAll RouteHandler
}

// NewRouter creates a router whose fallback is catchAll.
func NewRouter(catchAll RouteHandler) *Router {
	return &Router{catchAll: catchAll}
}

// Register adds a route evaluated after all previously registered ones.
func (rt *Router) Register(pattern string, h RouteHandler) error {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return fmt.Errorf("register route %q: %w", pattern, err)
	}
	rt.routes = append(rt.routes, route{pattern: re, handler: h})
	return nil
}

// MustRegister is Register for patterns known at compile time.
func (rt *Router) MustRegister(pattern string, h RouteHandler) {
	if err := rt.Register(pattern, h); err != nil {
		panic(err)
	}
}

// Match returns the handler for path.
func (rt *Router) Match(path string) RouteHandler {
	for _, r := range rt.routes {
		if r.pattern.MatchString(path) {
			return r.handler
		}
	}
	return rt.catchAll
}

// Dispatch runs the handler matching the request path.
func (rt *Router) Dispatch(r *http.Request, cred stowfront.Credential) *Response {
	return rt.Match(r.URL.Path)(r, cred)
}
