// Package classifytest provides a scriptable classify.Classifier for tests.
package classifytest

import (
	"context"
	"errors"
	"sync"

	"github.com/zxlitianshu/Kekari-agent/internal/classify"
)

// ErrUnscripted is returned by methods that have no function set.
var ErrUnscripted = errors.New("classifytest: no response scripted")

// Fake answers each call with the matching function. Unset functions fail
// with ErrUnscripted.
type Fake struct {
	RouteFunc   func(classify.RouteInput) (classify.RouteDecision, error)
	ConfirmFunc func(classify.ConfirmInput) (classify.ConfirmDecision, error)
	SelectFunc  func(classify.SelectInput) (classify.SelectDecision, error)
	ComposeFunc func(classify.ComposeInput) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *Fake) Route(ctx context.Context, in classify.RouteInput) (classify.RouteDecision, error) {
	f.record("Route")
	if err := ctx.Err(); err != nil {
		return classify.RouteDecision{}, err
	}
	if f.RouteFunc == nil {
		return classify.RouteDecision{}, ErrUnscripted
	}
	return f.RouteFunc(in)
}

func (f *Fake) Confirm(ctx context.Context, in classify.ConfirmInput) (classify.ConfirmDecision, error) {
	f.record("Confirm")
	if err := ctx.Err(); err != nil {
		return classify.ConfirmDecision{}, err
	}
	if f.ConfirmFunc == nil {
		return classify.ConfirmDecision{}, ErrUnscripted
	}
	return f.ConfirmFunc(in)
}

func (f *Fake) Select(ctx context.Context, in classify.SelectInput) (classify.SelectDecision, error) {
	f.record("Select")
	if err := ctx.Err(); err != nil {
		return classify.SelectDecision{}, err
	}
	if f.SelectFunc == nil {
		return classify.SelectDecision{}, ErrUnscripted
	}
	return f.SelectFunc(in)
}

func (f *Fake) Compose(ctx context.Context, in classify.ComposeInput) (string, error) {
	f.record("Compose")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.ComposeFunc == nil {
		return "", ErrUnscripted
	}
	return f.ComposeFunc(in)
}

// Route returns a RouteFunc that always answers d.
func Route(d classify.RouteDecision) func(classify.RouteInput) (classify.RouteDecision, error) {
	return func(classify.RouteInput) (classify.RouteDecision, error) { return d, nil }
}
