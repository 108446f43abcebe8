package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		env     map[string]string
		check   func(*testing.T, storage.Config)
		wantErr string
	}{
		{
			name: "defaults when disabled",
			check: func(t *testing.T, c storage.Config) {
				if c.ContainerName != "kekari" || c.MaxRetries != 3 {
					t.Errorf("defaults = %+v", c)
				}
			},
		},
		{
			name: "env overrides",
			env: map[string]string{
				"TEST_ENABLED":   "true",
				"TEST_CONTAINER": "uploads",
				"TEST_CONN":      azuriteConnString,
				"TEST_PREFIX":    "/staging/",
				"TEST_RETRIES":   "5",
			},
			check: func(t *testing.T, c storage.Config) {
				if !c.Enabled || c.ContainerName != "uploads" || c.ConnectionString != azuriteConnString {
					t.Errorf("overrides = %+v", c)
				}
				if c.Prefix != "staging" {
					t.Errorf("prefix = %q, want staging", c.Prefix)
				}
				if c.MaxRetries != 5 {
					t.Errorf("max_retries = %d, want 5", c.MaxRetries)
				}
			},
		},
		{
			name:    "enabled without connection string",
			cfg:     storage.Config{Enabled: true},
			wantErr: "connection_string",
		},
		{
			name:    "negative retries",
			cfg:     storage.Config{MaxRetries: -1},
			wantErr: "max_retries",
		},
	}

	env := &storage.Env{
		Enabled:          "TEST_ENABLED",
		ContainerName:    "TEST_CONTAINER",
		ConnectionString: "TEST_CONN",
		Prefix:           "TEST_PREFIX",
		MaxRetries:       "TEST_RETRIES",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := tt.cfg
			err := cfg.Finalize(env)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Finalize() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{ContainerName: "base", MaxRetries: 3}
	base.Merge(&storage.Config{Enabled: true, Prefix: "tenant-a"})

	if !base.Enabled || base.ContainerName != "base" || base.Prefix != "tenant-a" || base.MaxRetries != 3 {
		t.Errorf("Merge() = %+v", base)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"assets/AB1/x.png", "assets/AB1/x.png", false},
		{"assets//AB1/./x.png", "assets/AB1/x.png", false},
		{"assets/../x.png", "x.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"..", "", true},
		{"../outside", "", true},
		{"assets/../../outside", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := storage.CleanKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, storage.ErrInvalidKey) {
					t.Errorf("CleanKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		sys, err := storage.New(&storage.Config{}, discard())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := sys.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain"); !errors.Is(err, storage.ErrDisabled) {
			t.Errorf("Upload() error = %v, want ErrDisabled", err)
		}
		if _, err := sys.Exists(context.Background(), "k"); !errors.Is(err, storage.ErrDisabled) {
			t.Errorf("Exists() error = %v, want ErrDisabled", err)
		}
	})

	t.Run("azure client", func(t *testing.T) {
		cfg := &storage.Config{Enabled: true, ContainerName: "kekari", ConnectionString: azuriteConnString, MaxRetries: 1}
		sys, err := storage.New(cfg, discard())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := sys.Exists(context.Background(), "../escape"); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Exists() error = %v, want ErrInvalidKey before any request", err)
		}
	})

	t.Run("invalid connection string", func(t *testing.T) {
		cfg := &storage.Config{Enabled: true, ContainerName: "kekari", ConnectionString: "not-a-connection-string"}
		if _, err := storage.New(cfg, discard()); err == nil {
			t.Fatal("New() error = nil, want error")
		}
	})
}
