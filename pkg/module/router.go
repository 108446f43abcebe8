package module

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Router dispatches on the first path segment. A request whose segment
// names no mounted module falls through to the native mux, which carries
// the health endpoints.
type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

func NewRouter() *Router {
	return &Router{
		modules: map[string]*Module{},
		native:  http.NewServeMux(),
	}
}

func (r *Router) HandleNative(pattern string, handler http.HandlerFunc) {
	r.native.HandleFunc(pattern, handler)
}

// Mount panics when m.prefix is already taken.
func (r *Router) Mount(m *Module) {
	if _, taken := r.modules[m.prefix]; taken {
		panic(fmt.Sprintf("module already mounted at %s", m.prefix))
	}
	r.modules[m.prefix] = m
}

// Prefixes returns the mounted prefixes in sorted order.
func (r *Router) Prefixes() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	trimTrailingSlash(req)

	if m, ok := r.modules[firstSegment(req.URL.Path)]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}

// firstSegment maps "/api/chat" to "/api" and "/healthz" to itself.
func firstSegment(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return "/" + seg
}

func trimTrailingSlash(req *http.Request) {
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}
}
