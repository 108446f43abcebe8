// Package module mounts self-contained HTTP surfaces under single-level
// path prefixes, each with its own middleware stack.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/zxlitianshu/Kekari-agent/pkg/middleware"
)

// Module is an HTTP handler that strips its prefix and delegates to an inner
// router. Middleware added with Use must be registered before the first
// request; the stack is composed once.
type Module struct {
	prefix string
	router http.Handler
	chain  middleware.Chain

	once    sync.Once
	handler http.Handler
}

// New creates a Module with the given single-level prefix (e.g. "/api").
// Panics if the prefix is invalid; see ValidatePrefix.
func New(prefix string, router http.Handler) *Module {
	if err := ValidatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, router: router}
}

// Handler returns the inner router wrapped with the module's middleware stack.
func (m *Module) Handler() http.Handler {
	m.once.Do(func() {
		m.handler = m.chain.Then(m.router)
	})
	return m.handler
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the module prefix from the request path and dispatches to the inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, cloneRequest(req, extractPath(req.URL.Path, m.prefix)))
}

// Use adds middleware to the module's stack. The first registered runs outermost.
func (m *Module) Use(mw ...func(http.Handler) http.Handler) {
	m.chain = m.chain.Append(mw...)
}

// ValidatePrefix reports whether prefix is a non-empty single-level path
// such as "/api".
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("module prefix cannot be empty")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	}
	if strings.Count(prefix, "/") != 1 || len(prefix) == 1 {
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}

func cloneRequest(req *http.Request, path string) *http.Request {
	request := req.Clone(req.Context())
	request.URL = new(url.URL)
	*request.URL = *req.URL
	request.URL.Path = path
	request.URL.RawPath = ""
	return request
}

func extractPath(fullPath, prefix string) string {
	path := strings.TrimPrefix(fullPath, prefix)
	if path == "" {
		return "/"
	}
	return path
}
