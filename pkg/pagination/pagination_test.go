package pagination_test

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
	"github.com/zxlitianshu/Kekari-agent/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "50")

	tests := []struct {
		name     string
		cfg      pagination.Config
		env      *pagination.ConfigEnv
		wantSize int
		wantMax  int
		wantErr  string
	}{
		{"defaults", pagination.Config{}, nil, 20, 100, ""},
		{"env override", pagination.Config{}, &pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}, 50, 100, ""},
		{"default exceeds max", pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}, nil, 0, 0, "cannot exceed"},
		{"max above ceiling", pagination.Config{DefaultPageSize: 20, MaxPageSize: 5000}, nil, 0, 0, "max_page_size cannot exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(tt.env)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Finalize() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if tt.cfg.DefaultPageSize != tt.wantSize || tt.cfg.MaxPageSize != tt.wantMax {
				t.Errorf("got %d/%d, want %d/%d", tt.cfg.DefaultPageSize, tt.cfg.MaxPageSize, tt.wantSize, tt.wantMax)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := defaultConfig()
	base.Merge(&pagination.Config{MaxPageSize: 500})

	if base.DefaultPageSize != 20 || base.MaxPageSize != 500 {
		t.Errorf("Merge() = %+v, want {20 500}", base)
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantSize   int
		wantSearch string
		wantSort   []query.SortField
		wantOffset int
	}{
		{"empty", "", 1, 20, "", nil, 0},
		{"explicit", "page=3&page_size=10", 3, 10, "", nil, 20},
		{"clamped", "page=-2&page_size=1000", 1, 100, "", nil, 0},
		{"garbage numbers", "page=two&page_size=ten", 1, 20, "", nil, 0},
		{"search", "search=%20chair%20", 1, 20, "chair", nil, 0},
		{"q alias", "q=desk", 1, 20, "desk", nil, 0},
		{"sort", "sort=title,-updated_at", 1, 20, "", []query.SortField{{Field: "title"}, {Field: "updated_at", Descending: true}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, defaultConfig())

			if req.Page != tt.wantPage || req.PageSize != tt.wantSize {
				t.Errorf("page = %d/%d, want %d/%d", req.Page, req.PageSize, tt.wantPage, tt.wantSize)
			}
			var search string
			if req.Search != nil {
				search = *req.Search
			}
			if search != tt.wantSearch {
				t.Errorf("search = %q, want %q", search, tt.wantSearch)
			}
			if len(req.Sort) != len(tt.wantSort) {
				t.Fatalf("sort = %v, want %v", req.Sort, tt.wantSort)
			}
			for i := range tt.wantSort {
				if req.Sort[i] != tt.wantSort[i] {
					t.Errorf("sort[%d] = %v, want %v", i, req.Sort[i], tt.wantSort[i])
				}
			}
			if req.Offset() != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", req.Offset(), tt.wantOffset)
			}
		})
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		pageSize  int
		wantPages int
		wantNext  bool
	}{
		{"empty", 0, 1, 20, 1, false},
		{"exact", 40, 1, 20, 2, true},
		{"remainder", 41, 3, 20, 3, false},
		{"zero page size", 5, 1, 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := pagination.NewPageResult[string](nil, tt.total, tt.page, tt.pageSize)
			if result.TotalPages != tt.wantPages || result.HasNext != tt.wantNext {
				t.Errorf("pages = %d next = %v, want %d %v", result.TotalPages, result.HasNext, tt.wantPages, tt.wantNext)
			}
			if result.Data == nil {
				t.Error("Data is nil, want empty slice")
			}
		})
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	want := []query.SortField{{Field: "title"}, {Field: "updated_at", Descending: true}}

	for _, input := range []string{
		`"title,-updated_at"`,
		`[{"Field":"title","Descending":false},{"Field":"updated_at","Descending":true}]`,
	} {
		var sf pagination.SortFields
		if err := json.Unmarshal([]byte(input), &sf); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", input, err)
		}
		if len(sf) != 2 || sf[0] != want[0] || sf[1] != want[1] {
			t.Errorf("Unmarshal(%s) = %v, want %v", input, sf, want)
		}
	}
}
