package prompts

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/zxlitianshu/Kekari-agent/pkg/query"
	"github.com/zxlitianshu/Kekari-agent/pkg/repository"
)

// promptColumns is the column order scanPrompt expects. The projection and
// every RETURNING clause are derived from it.
var promptColumns = [...]struct{ column, field string }{
	{"id", "ID"},
	{"name", "Name"},
	{"stage", "Stage"},
	{"instructions", "Instructions"},
	{"description", "Description"},
	{"active", "Active"},
}

var returning = func() string {
	names := make([]string, len(promptColumns))
	for i, c := range promptColumns {
		names[i] = c.column
	}
	return "RETURNING " + strings.Join(names, ", ")
}()

var defaultSort = query.SortField{Field: "Name"}

func newProjection(driver string) *query.ProjectionMap {
	p := query.NewProjectionMap(query.DialectFor(driver), "prompts", "p")
	for _, c := range promptColumns {
		p.Project(c.column, c.field)
	}
	return p
}

// Filters narrows a prompt listing. Nil fields are ignored; Name matches
// as a case-insensitive substring.
type Filters struct {
	Stage  *Stage  `json:"stage,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery reads stage, name and active. An active value that is
// not a boolean is ignored rather than rejected.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if s := Stage(values.Get("stage")); s != "" {
		f.Stage = &s
	}
	if n := values.Get("name"); n != "" {
		f.Name = &n
	}
	if v, err := strconv.ParseBool(values.Get("active")); err == nil {
		f.Active = &v
	}
	return f
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(&p.ID, &p.Name, &p.Stage, &p.Instructions, &p.Description, &p.Active)
	return p, err
}
