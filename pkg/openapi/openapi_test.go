package openapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Kekari API", "0.1.0")
	spec.SetDescription("chat")
	spec.AddServer("/api")

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Kekari API" || spec.Info.Version != "0.1.0" || spec.Info.Description != "chat" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if len(spec.Servers) != 1 || spec.Servers[0].URL != "/api" {
		t.Errorf("servers: got %+v", spec.Servers)
	}
	if spec.Components == nil || spec.Paths == nil {
		t.Fatal("components and paths should be initialized")
	}
}

func TestComponentsDefaults(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"Error", "PageRequest"} {
		if _, ok := c.Schemas[name]; !ok {
			t.Errorf("missing default schema: %s", name)
		}
	}

	for _, name := range []string{"BadRequest", "NotFound", "Conflict", "PayloadTooLarge", "ServiceUnavailable"} {
		resp, ok := c.Responses[name]
		if !ok {
			t.Errorf("missing default response: %s", name)
			continue
		}
		if ref := resp.Content["application/json"].Schema.Ref; ref != "#/components/schemas/Error" {
			t.Errorf("%s schema: got %s", name, ref)
		}
	}

	c.AddSchemas(map[string]*openapi.Schema{"Reply": {Type: "object"}})
	c.AddResponses(map[string]*openapi.Response{"Gone": {Description: "gone"}})
	if _, ok := c.Schemas["Reply"]; !ok {
		t.Error("Reply schema not added")
	}
	if _, ok := c.Responses["Gone"]; !ok {
		t.Error("Gone response not added")
	}
	if _, ok := c.Responses["BadRequest"]; !ok {
		t.Error("default BadRequest response should still exist")
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"schema ref", openapi.SchemaRef("Reply").Ref, "#/components/schemas/Reply"},
		{"response ref", openapi.ResponseRef("NotFound").Ref, "#/components/responses/NotFound"},
		{"request body", openapi.RequestBodyJSON("TurnRequest", true).Content["application/json"].Schema.Ref, "#/components/schemas/TurnRequest"},
		{"response body", openapi.ResponseJSON("ok", "Reply").Content["application/json"].Schema.Ref, "#/components/schemas/Reply"},
		{"array items", openapi.ArrayResponseJSON("ok", "SessionSummary").Content["application/json"].Schema.Items.Ref, "#/components/schemas/SessionSummary"},
		{"free-form path param", openapi.PathParam("sku", "", "SKU").Schema.Format, ""},
		{"uuid path param", openapi.PathParam("id", "uuid", "Prompt id").Schema.Format, "uuid"},
		{"query param", openapi.QueryParam("page", "integer", "Page", false).In, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if p := openapi.PathParam("sku", "", "SKU"); !p.Required || p.In != "path" {
		t.Errorf("path param: got %+v", p)
	}
}

func TestAddOperation(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.AddOperation("GET", "/sessions/{id}", &openapi.Operation{Summary: "get"})
	spec.AddOperation("DELETE", "/sessions/{id}", &openapi.Operation{Summary: "delete"})
	spec.AddOperation("PATCH", "/ready/{sku}", &openapi.Operation{Summary: "patch"})
	spec.AddOperation("POST", "/chat", &openapi.Operation{Summary: "chat"})

	want := []string{
		"DELETE /sessions/{id}",
		"GET /sessions/{id}",
		"PATCH /ready/{sku}",
		"POST /chat",
	}
	if got := spec.Patterns(); !slices.Equal(got, want) {
		t.Errorf("Patterns() = %v, want %v", got, want)
	}

	if spec.Paths["/sessions/{id}"].Get.Summary != "get" {
		t.Error("GET operation not stored on the path item")
	}
}

func TestAddOperationPanics(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{"duplicate", "GET"},
		{"unsupported method", "TRACE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := openapi.NewSpec("Test", "1.0.0")
			spec.AddOperation("GET", "/chat", &openapi.Operation{})

			defer func() {
				if recover() == nil {
					t.Errorf("AddOperation(%s) did not panic", tt.method)
				}
			}()
			spec.AddOperation(tt.method, "/chat", &openapi.Operation{})
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.AddOperation("POST", "/chat", &openapi.Operation{
		Responses: map[int]*openapi.Response{200: {Description: "ok"}},
	})

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed struct {
		OpenAPI string                                `json:"openapi"`
		Paths   map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed.OpenAPI != "3.1.0" {
		t.Errorf("openapi: got %v", parsed.OpenAPI)
	}
	if _, ok := parsed.Paths["/chat"]["post"]; !ok {
		t.Errorf("paths: got %v", parsed.Paths)
	}
}

func TestServeSpec(t *testing.T) {
	data, _ := openapi.MarshalJSON(openapi.NewSpec("Test", "1.0.0"))
	handler := openapi.ServeSpec(data)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type: got %s", ct)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status: got %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 body should be empty, got %d bytes", rec.Body.Len())
	}
}

func TestConfigFinalize(t *testing.T) {
	cfg := openapi.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.Title != "Kekari API" {
		t.Errorf("title: got %s, want Kekari API", cfg.Title)
	}
	if cfg.Description == "" {
		t.Error("description should default")
	}

	t.Setenv("TEST_TITLE", "Custom API")
	t.Setenv("TEST_SERVERS", "https://gw.example.com/api, ,https://internal/api")
	env := &openapi.ConfigEnv{Title: "TEST_TITLE", Description: "TEST_DESC", Servers: "TEST_SERVERS"}
	cfg = openapi.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.Title != "Custom API" {
		t.Errorf("title: got %s, want Custom API", cfg.Title)
	}
	if want := []string{"https://gw.example.com/api", "https://internal/api"}; !slices.Equal(cfg.Servers, want) {
		t.Errorf("servers: got %v, want %v", cfg.Servers, want)
	}

	base := openapi.Config{Title: "Base", Description: "keep"}
	base.Merge(&openapi.Config{Title: "Overlay"})
	if base.Title != "Overlay" || base.Description != "keep" {
		t.Errorf("merge: got %+v", base)
	}
}
