package module_test

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/pkg/module"
)

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{"/api", false},
		{"/v1", false},
		{"", true},
		{"/", true},
		{"api", true},
		{"/api/v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := module.ValidatePrefix(tt.prefix)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrefix(%q) error = %v, wantErr %v", tt.prefix, err, tt.wantErr)
			}
		})
	}
}

func TestNewInvalidPrefixPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nested prefix")
		}
	}()
	module.New("/api/v1", http.NewServeMux())
}

func TestServeStripsPrefix(t *testing.T) {
	var received string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Path
	})
	m := module.New("/api", mux)

	tests := []struct {
		path string
		want string
	}{
		{"/api/sessions/abc/turns", "/sessions/abc/turns"},
		{"/api", "/"},
	}

	for _, tt := range tests {
		m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))
		if received != tt.want {
			t.Errorf("Serve(%s): inner path got %s, want %s", tt.path, received, tt.want)
		}
	}
}

func TestModuleMiddlewareComposedOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	m := module.New("/api", mux)

	var built, calls int
	m.Use(func(next http.Handler) http.Handler {
		built++
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			next.ServeHTTP(w, r)
		})
	})

	for range 3 {
		m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))
	}

	if built != 1 {
		t.Errorf("middleware built: got %d, want 1", built)
	}
	if calls != 3 {
		t.Errorf("middleware calls: got %d, want 3", calls)
	}
}

func TestRouterDispatch(t *testing.T) {
	newMux := func(body string) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body + " " + r.URL.Path))
		})
		return mux
	}

	router := module.NewRouter()
	router.Mount(module.New("/api", newMux("api")))
	router.Mount(module.New("/v1", newMux("v1")))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		path string
		want string
	}{
		{"/api/chat", "api /chat"},
		{"/api/ready/", "api /ready"},
		{"/v1/chat/completions", "v1 /chat/completions"},
		{"/healthz", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body: got %q, want %q", got, tt.want)
			}
		})
	}

	prefixes := router.Prefixes()
	slices.Sort(prefixes)
	if !slices.Equal(prefixes, []string{"/api", "/v1"}) {
		t.Errorf("prefixes: got %v", prefixes)
	}
}

func TestRouterUnknownPrefix(t *testing.T) {
	router := module.NewRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/missing/path", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestRouterDuplicateMountPanics(t *testing.T) {
	router := module.NewRouter()
	router.Mount(module.New("/api", http.NewServeMux()))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for duplicate mount")
		}
	}()
	router.Mount(module.New("/api", http.NewServeMux()))
}
