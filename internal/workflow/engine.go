package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zxlitianshu/Kekari-agent/internal/events"
	"github.com/zxlitianshu/Kekari-agent/internal/language"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
	"github.com/zxlitianshu/Kekari-agent/internal/telemetry"
)

// RoutingKey selects an outgoing edge. Terminal steps return End.
type RoutingKey string

const End RoutingKey = ""

// StepFunc is one unit of work in a turn.
type StepFunc func(ctx context.Context, st *State) (Patch, RoutingKey)

type step struct {
	name  string
	fn    StepFunc
	emits []RoutingKey
}

// Engine is a graph of steps with per-step dispatch tables. Build it with
// Register, AddEdge, and SetEntry, then call Validate once before Run.
type Engine struct {
	steps   map[string]*step
	order   []string
	edges   map[string]map[RoutingKey]string
	entry   string
	maxHops int
	errs    []error
	valid   bool
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewEngine creates an empty engine that stops a turn after maxHops steps.
func NewEngine(maxHops int, logger *slog.Logger) *Engine {
	return &Engine{
		steps:   make(map[string]*step),
		edges:   make(map[string]map[RoutingKey]string),
		maxHops: maxHops,
		tracer:  telemetry.Tracer(),
		logger:  logger.With("system", "workflow"),
	}
}

// Register adds a step and declares the routing keys it may return. A step
// that declares no keys is terminal.
func (e *Engine) Register(name string, fn StepFunc, emits ...RoutingKey) {
	e.valid = false
	if _, ok := e.steps[name]; ok {
		e.errs = append(e.errs, fmt.Errorf("step %q registered twice", name))
		return
	}
	if fn == nil {
		e.errs = append(e.errs, fmt.Errorf("step %q has no function", name))
		return
	}
	e.steps[name] = &step{name: name, fn: fn, emits: emits}
	e.order = append(e.order, name)
}

// AddEdge routes key returned by from to the step named to.
func (e *Engine) AddEdge(from string, key RoutingKey, to string) {
	e.valid = false
	table, ok := e.edges[from]
	if !ok {
		table = make(map[RoutingKey]string)
		e.edges[from] = table
	}
	if prev, ok := table[key]; ok {
		e.errs = append(e.errs, fmt.Errorf("edge %s -[%s]-> already routes to %s", from, key, prev))
		return
	}
	table[key] = to
}

// SetEntry names the step every turn starts at.
func (e *Engine) SetEntry(name string) {
	e.valid = false
	e.entry = name
}

// Validate checks the graph statically: the entry exists, every edge joins
// known steps, every declared key has an edge and every edge a declared
// key, and every step is reachable from the entry.
func (e *Engine) Validate() error {
	errs := slices.Clone(e.errs)

	if e.entry == "" {
		errs = append(errs, errors.New("no entry step"))
	} else if _, ok := e.steps[e.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry step %q is not registered", e.entry))
	}
	if e.maxHops < 1 {
		errs = append(errs, fmt.Errorf("max hops must be positive, got %d", e.maxHops))
	}

	for _, from := range sortedKeys(e.edges) {
		s, ok := e.steps[from]
		if !ok {
			errs = append(errs, fmt.Errorf("edge from unknown step %q", from))
			continue
		}
		for key, to := range e.edges[from] {
			if _, ok := e.steps[to]; !ok {
				errs = append(errs, fmt.Errorf("edge %s -[%s]-> unknown step %q", from, key, to))
			}
			if !slices.Contains(s.emits, key) {
				errs = append(errs, fmt.Errorf("edge %s -[%s]-> %s for undeclared key", from, key, to))
			}
		}
	}

	for _, name := range e.order {
		for _, key := range e.steps[name].emits {
			if _, ok := e.edges[name][key]; !ok {
				errs = append(errs, fmt.Errorf("step %s declares key %q with no edge", name, key))
			}
		}
	}

	if _, ok := e.steps[e.entry]; ok {
		reached := e.reachable()
		for _, name := range e.order {
			if !reached[name] {
				errs = append(errs, fmt.Errorf("step %s is unreachable", name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	e.valid = true
	return nil
}

func (e *Engine) reachable() map[string]bool {
	seen := map[string]bool{e.entry: true}
	queue := []string{e.entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, to := range e.edges[name] {
			if _, ok := e.steps[to]; ok && !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return seen
}

// Terminal reports whether name has no outgoing edges.
func (e *Engine) Terminal(name string) bool {
	return len(e.edges[name]) == 0
}

// Run executes one turn and returns the updated session and the single
// assistant message appended to it. Failures never escape: a routing
// fault leaves the session as it was before the faulting step and answers
// with an apology. The input session is not modified.
func (e *Engine) Run(ctx context.Context, s *sessions.Session, utterance string) (*sessions.Session, string) {
	lang := language.Detect(utterance)
	st := &State{Session: s.Clone(), Utterance: utterance, Language: lang}
	st.Session.Language = lang
	if p := st.Session.PendingArtifact; p != nil && p.Status == sessions.ArtifactError {
		st.Session.PendingArtifact = nil
	}

	ctx = events.ContextWithSession(ctx, s.ID)
	ctx, span := e.tracer.Start(ctx, "workflow.turn", trace.WithAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("turn.language", lang),
	))
	defer span.End()

	if err := e.walk(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "routing fault")
		e.logger.ErrorContext(ctx, "turn faulted", "session", s.ID, "error", err)
		st.Scratch.Reply = say(lang, msgFault)
	}

	msg := compose(st)
	st.Session.Append(sessions.RoleUser, utterance)
	st.Session.Append(sessions.RoleAssistant, msg)
	return st.Session, msg
}

func (e *Engine) walk(ctx context.Context, st *State) error {
	if !e.valid {
		return fmt.Errorf("%w: graph has not been validated", ErrRoutingFault)
	}

	current := e.entry
	for hop := 0; ; hop++ {
		if hop >= e.maxHops {
			return fmt.Errorf("%w: hop limit %d reached at %s", ErrRoutingFault, e.maxHops, current)
		}

		patch, key, err := e.invoke(ctx, e.steps[current], st)
		if err != nil {
			return err
		}

		if e.Terminal(current) {
			if key != End {
				return fmt.Errorf("%w: terminal step %s returned key %q", ErrRoutingFault, current, key)
			}
			patch.apply(st)
			return nil
		}

		next, ok := e.edges[current][key]
		if !ok {
			return fmt.Errorf("%w: step %s returned unmapped key %q", ErrRoutingFault, current, key)
		}
		patch.apply(st)
		e.logger.DebugContext(ctx, "step complete", "step", current, "key", key, "next", next)
		current = next
	}
}

func (e *Engine) invoke(ctx context.Context, s *step, st *State) (p Patch, key RoutingKey, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.step."+s.name, trace.WithAttributes(
		attribute.String("workflow.step", s.name),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: step %s panicked: %v", ErrRoutingFault, s.name, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
		}
	}()

	p, key = s.fn(ctx, st.view())

	span.SetAttributes(attribute.String("workflow.key", string(key)))
	if p.Failure.Set && p.Failure.Value != nil {
		span.RecordError(p.Failure.Value)
		span.SetStatus(codes.Error, string(p.Failure.Value.Kind))
	}
	return p, key, nil
}

// view gives a step its own copy so a misbehaving step cannot leak
// changes past a fault.
func (st *State) view() *State {
	v := *st
	v.Session = st.Session.Clone()
	v.Scratch.Targets = slices.Clone(st.Scratch.Targets)
	v.Scratch.Notices = slices.Clone(st.Scratch.Notices)
	return &v
}

func compose(st *State) string {
	parts := make([]string, 0, len(st.Scratch.Notices)+1)
	for _, n := range st.Scratch.Notices {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	if r := strings.TrimSpace(st.Scratch.Reply); r != "" {
		parts = append(parts, r)
	}
	if len(parts) == 0 {
		return say(st.Language, msgDone)
	}
	return strings.Join(parts, "\n\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
