package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/pkg/handlers"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
	}{
		{"200 with map", http.StatusOK, map[string]string{"key": "value"}},
		{"201 with struct", http.StatusCreated, struct{ ID int }{ID: 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondJSON(rec, tt.status, tt.data)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}
			var parsed map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		err     error
		wantMsg string
	}{
		{"client error echoes", http.StatusBadRequest, errors.New("invalid input"), "invalid input"},
		{"not found echoes", http.StatusNotFound, errors.New("session abc not found"), "session abc not found"},
		{"server error hidden", http.StatusInternalServerError, errors.New("pq: connection refused"), "Internal Server Error"},
		{"unavailable hidden", http.StatusServiceUnavailable, errors.New("redis down"), "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondError(rec, discard(), tt.status, tt.err)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			var parsed map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if parsed["error"] != tt.wantMsg {
				t.Errorf("error: got %q, want %q", parsed["error"], tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name       string
		body       io.Reader
		limit      int64
		wantStatus int
		wantErr    error
		wantMsg    string
	}{
		{name: "valid", body: strings.NewReader(`{"message":"hi"}`), wantStatus: http.StatusOK, wantMsg: "hi"},
		{name: "empty", body: strings.NewReader(""), wantStatus: http.StatusBadRequest, wantErr: handlers.ErrEmptyBody},
		{name: "no body", body: nil, wantStatus: http.StatusBadRequest, wantErr: handlers.ErrEmptyBody},
		{name: "malformed", body: strings.NewReader(`{"message":`), wantStatus: http.StatusBadRequest},
		{name: "too large", body: strings.NewReader(`{"message":"` + strings.Repeat("x", 64) + `"}`), limit: 16, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", tt.body)
			if tt.body == nil {
				req.Body = http.NoBody
			}
			if tt.limit > 0 {
				req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, tt.limit)
			}

			var got payload
			status, err := handlers.DecodeJSON(req, &got)

			if status != tt.wantStatus {
				t.Errorf("status: got %d, want %d", status, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Message != tt.wantMsg {
					t.Errorf("message: got %q, want %q", got.Message, tt.wantMsg)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
