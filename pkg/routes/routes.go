// Package routes declares HTTP routes as nested prefix groups and registers
// them on a ServeMux.
package routes

import (
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/pkg/middleware"
)

// Group organizes routes under a common prefix. Middleware wraps every
// route in the group and its children, outermost first.
type Group struct {
	Prefix     string
	Routes     []Route
	Children   []Group
	Middleware []func(http.Handler) http.Handler
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	Walk(func(pattern string, h http.Handler) {
		mux.Handle(pattern, h)
	}, groups...)
}

// Patterns lists the "METHOD /path" patterns the groups register, in
// declaration order.
func Patterns(groups ...Group) []string {
	var out []string
	Walk(func(pattern string, _ http.Handler) {
		out = append(out, pattern)
	}, groups...)
	return out
}

// Walk calls fn for every route with its full pattern and its handler
// wrapped in the accumulated group middleware.
func Walk(fn func(pattern string, h http.Handler), groups ...Group) {
	for _, group := range groups {
		walkGroup(fn, "", nil, group)
	}
}

func walkGroup(fn func(string, http.Handler), parentPrefix string, parent middleware.Chain, group Group) {
	prefix := parentPrefix + group.Prefix
	chain := parent.Append(group.Middleware...)

	for _, route := range group.Routes {
		fn(route.Method+" "+prefix+route.Pattern, chain.Then(route.Handler))
	}
	for _, child := range group.Children {
		walkGroup(fn, prefix, chain, child)
	}
}

// Route binds an HTTP method and a pattern, relative to its group prefix,
// to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}
