package sessions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

func setupMux(h *sessions.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func TestHandlerFindAndDelete(t *testing.T) {
	store := newMemoryStore(t)
	s := sessions.New("abc")
	s.Append(sessions.RoleUser, "hello")
	store.Save(context.Background(), s)

	mux := setupMux(store.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got sessions.Session
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "abc" || len(got.History) != 1 {
		t.Errorf("GET body = %+v, want session abc with 1 turn", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandlerListAndClear(t *testing.T) {
	store := newMemoryStore(t)
	store.Save(context.Background(), sessions.New("a"))
	store.Save(context.Background(), sessions.New("b"))

	mux := setupMux(store.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	var list []sessions.Summary
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(list) = %d, want 2", len(list))
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
