package publishing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

func TestGateDefaultPolicy(t *testing.T) {
	gate, err := publishing.NewGate(context.Background(), "")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	tests := []struct {
		name        string
		entity      catalog.Entity
		wantAllowed bool
		wantReasons int
	}{
		{"complete", catalog.Entity{SKU: "AB1", Title: "Chair", Images: []string{"a.png"}}, true, 0},
		{"no images", catalog.Entity{SKU: "AB1", Title: "Chair"}, false, 1},
		{"no title or images", catalog.Entity{SKU: "AB1", Title: "  "}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := gate.Evaluate(context.Background(), tt.entity, nil)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if v.Allowed() != tt.wantAllowed {
				t.Errorf("Allowed() = %v, want %v (%+v)", v.Allowed(), tt.wantAllowed, v)
			}
			if len(v.Reasons) != tt.wantReasons {
				t.Errorf("Reasons = %v, want %d", v.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestGateCustomPolicy(t *testing.T) {
	policy := `
package publish_policy

import rego.v1

default decision := "allow"

decision := "block" if {
	input.category == "restricted"
}
`
	gate, err := publishing.NewGate(context.Background(), policy)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}

	v, _ := gate.Evaluate(context.Background(), catalog.Entity{SKU: "AB1", Category: "restricted"}, nil)
	if v.Allowed() {
		t.Error("restricted category allowed, want blocked")
	}

	v, _ = gate.Evaluate(context.Background(), catalog.Entity{SKU: "AB1", Category: "chair"}, nil)
	if !v.Allowed() {
		t.Error("chair category blocked, want allowed")
	}
}

func TestGateInvalidPolicy(t *testing.T) {
	if _, err := publishing.NewGate(context.Background(), "package broken\n decision := "); err == nil {
		t.Error("NewGate() error = nil, want compile error")
	}
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name    string
		reply   publishing.Result
		wantErr bool
	}{
		{"success", publishing.Result{Success: true, LiveRef: "gid://product/1"}, false},
		{"rejected", publishing.Result{Success: false, Error: "duplicate handle"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Entity catalog.Entity `json:"entity"`
				}
				json.NewDecoder(r.Body).Decode(&body)
				if body.Entity.SKU != "AB1" {
					t.Errorf("entity sku = %q, want AB1", body.Entity.SKU)
				}
				json.NewEncoder(w).Encode(tt.reply)
			}))
			defer srv.Close()

			p := publishing.New(
				&publishing.Config{Config: client.Config{BaseURL: srv.URL, Timeout: "5s"}},
				slog.New(slog.NewTextHandler(io.Discard, nil)),
			)

			res, err := p.Publish(context.Background(), catalog.Entity{SKU: "AB1"})
			if tt.wantErr {
				if !errors.Is(err, publishing.ErrPublishFailed) {
					t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if res.LiveRef != tt.reply.LiveRef {
				t.Errorf("LiveRef = %q, want %q", res.LiveRef, tt.reply.LiveRef)
			}
		})
	}
}
