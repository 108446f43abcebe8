package openapi

import (
	"net/http"
	"slices"
)

// Spec represents an OpenAPI 3.1 specification document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       *Info                `json:"info"`
	Servers    []*Server            `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

// NewSpec creates a Spec with the given title, version, and default components.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:   title,
			Version: version,
		},
		Components: NewComponents(),
		Paths:      make(map[string]*PathItem),
	}
}

// AddServer appends a server URL to the spec.
func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

// SetDescription sets the API description in the info object.
func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

// AddOperation documents op under method and path, creating the path item
// when needed. It panics on an unsupported method or a path documented
// twice for the same method, both of which are programming errors.
func (s *Spec) AddOperation(method, path string, op *Operation) {
	item, ok := s.Paths[path]
	if !ok {
		item = &PathItem{}
		s.Paths[path] = item
	}

	slot := item.slot(method)
	if slot == nil {
		panic("openapi: unsupported method " + method)
	}
	if *slot != nil {
		panic("openapi: duplicate operation " + method + " " + path)
	}
	*slot = op
}

// Patterns returns every documented operation as "METHOD path", sorted.
// The format matches http.ServeMux patterns so documented and registered
// routes can be compared directly.
func (s *Spec) Patterns() []string {
	var out []string
	for path, item := range s.Paths {
		for _, method := range methods {
			if slot := item.slot(method); *slot != nil {
				out = append(out, method+" "+path)
			}
		}
	}
	slices.Sort(out)
	return out
}

var methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

func (p *PathItem) slot(method string) **Operation {
	switch method {
	case http.MethodGet:
		return &p.Get
	case http.MethodPost:
		return &p.Post
	case http.MethodPut:
		return &p.Put
	case http.MethodPatch:
		return &p.Patch
	case http.MethodDelete:
		return &p.Delete
	}
	return nil
}
