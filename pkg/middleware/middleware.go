// Package middleware provides the HTTP middleware shared by the service's
// modules.
package middleware

import "net/http"

// Chain is an ordered middleware stack. The first element runs outermost.
type Chain []func(http.Handler) http.Handler

// Append returns a new chain with mw added after c. c is not modified, so
// nested groups can extend a parent chain safely.
func (c Chain) Append(mw ...func(http.Handler) http.Handler) Chain {
	out := make(Chain, 0, len(c)+len(mw))
	return append(append(out, c...), mw...)
}

// Then wraps h with every middleware in the chain.
func (c Chain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}
