package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/assets"
	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/classify/classifytest"
	"github.com/zxlitianshu/Kekari-agent/internal/confirmation"
	"github.com/zxlitianshu/Kekari-agent/internal/migrations"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
	"github.com/zxlitianshu/Kekari-agent/internal/resolver"
	"github.com/zxlitianshu/Kekari-agent/internal/search"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
	"github.com/zxlitianshu/Kekari-agent/internal/workflow"
	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []search.Query
	fn      func(search.Query) ([]catalog.Entity, error)
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) ([]catalog.Entity, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(q)
}

type transformCall struct {
	source, instruction string
}

type fakeTransformer struct {
	mu    sync.Mutex
	calls []transformCall
	err   error
}

func (f *fakeTransformer) Transform(_ context.Context, source, instruction string) (assets.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, transformCall{source, instruction})
	if f.err != nil {
		return assets.Result{}, f.err
	}
	return assets.Result{
		AssetRef: fmt.Sprintf("https://assets.example/out-%d.png", len(f.calls)),
		Status:   assets.StatusSuccess,
	}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []catalog.Entity
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, e catalog.Entity) (publishing.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return publishing.Result{}, f.err
	}
	f.published = append(f.published, e)
	return publishing.Result{Success: true, LiveRef: "live/" + e.SKU}, nil
}

func (f *fakePublisher) skus() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, e := range f.published {
		out[i] = e.SKU
	}
	return out
}

type harness struct {
	engine      *workflow.Engine
	store       catalog.System
	classifier  *classifytest.Fake
	searcher    *fakeSearcher
	transformer *fakeTransformer
	publisher   *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Up(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gate, err := publishing.NewGate(context.Background(), "")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	logger := discard()
	store := catalog.New(db, database.DriverSQLite, nil, nil, logger, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})

	h := &harness{
		store:       store,
		classifier:  &classifytest.Fake{},
		searcher:    &fakeSearcher{},
		transformer: &fakeTransformer{},
		publisher:   &fakePublisher{},
	}

	cfg := workflow.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	engine, err := workflow.New(&workflow.Runtime{
		Classifier:         h.classifier,
		Searcher:           h.searcher,
		Transformer:        h.transformer,
		Publisher:          h.publisher,
		Gate:               gate,
		Catalog:            store,
		Resolver:           resolver.New(h.classifier, logger),
		Machine:            confirmation.NewMachine(store, logger),
		Config:             cfg,
		PublishConcurrency: 2,
		Logger:             logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.engine = engine
	return h
}

func (h *harness) turn(t *testing.T, s *sessions.Session, utterance string) (*sessions.Session, string) {
	t.Helper()
	before := len(s.History)
	out, msg := h.engine.Run(context.Background(), s, utterance)
	if err := out.CheckInvariants(); err != nil {
		t.Fatalf("Run(%q) broke session invariants: %v", utterance, err)
	}
	if len(out.History) != before+2 {
		t.Fatalf("Run(%q) appended %d turns, want 2", utterance, len(out.History)-before)
	}
	if last := out.History[len(out.History)-1]; last.Role != sessions.RoleAssistant || last.Content != msg {
		t.Fatalf("Run(%q) last turn = %+v, want the assistant reply", utterance, last)
	}
	return out, msg
}

func threeChairs() []catalog.Entity {
	return []catalog.Entity{
		{SKU: "A1", Title: "Oak Chair", Category: "chair", Color: "brown", Images: []string{"https://img.example/a1.png"}},
		{SKU: "A2", Title: "Pine Chair", Category: "chair", Color: "yellow", Images: []string{"https://img.example/a2.png"}},
		{SKU: "A3", Title: "Steel Chair", Category: "chair", Color: "black", Images: []string{"https://img.example/a3.png"}},
	}
}

func withCandidates(candidates []catalog.Entity) *sessions.Session {
	s := sessions.New("s1")
	s.CandidateEntities = candidates
	return s
}
