package openapi

const (
	mediaJSON         = "application/json"
	schemaRefPrefix   = "#/components/schemas/"
	responseRefPrefix = "#/components/responses/"
)

type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem holds the operations documented on one path. Only the methods
// the API routes are modelled.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

type Operation struct {
	OperationID string            `json:"operationId,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Parameters  []*Parameter      `json:"parameters,omitempty"`
	RequestBody *RequestBody      `json:"requestBody,omitempty"`
	Responses   map[int]*Response `json:"responses"`
	Deprecated  bool              `json:"deprecated,omitempty"`
}

// Parameter is a path, query or header parameter. In is one of those
// three locations.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema"`
}

type RequestBody struct {
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Content     map[string]*MediaType `json:"content"`
}

// Response is either an inline response or a $ref to a component.
type Response struct {
	Ref         string                `json:"$ref,omitempty"`
	Description string                `json:"description,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema is the JSON Schema subset the API documents use.
type Schema struct {
	Ref         string `json:"$ref,omitempty"`
	Type        string `json:"type,omitempty"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`

	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	ReadOnly   bool               `json:"readOnly,omitempty"`

	Enum    []any `json:"enum,omitempty"`
	Default any   `json:"default,omitempty"`
	Example any   `json:"example,omitempty"`

	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

type Components struct {
	Schemas   map[string]*Schema   `json:"schemas,omitempty"`
	Responses map[string]*Response `json:"responses,omitempty"`
}

func SchemaRef(name string) *Schema {
	return &Schema{Ref: schemaRefPrefix + name}
}

func ResponseRef(name string) *Response {
	return &Response{Ref: responseRefPrefix + name}
}

func jsonContent(schema *Schema) map[string]*MediaType {
	return map[string]*MediaType{mediaJSON: {Schema: schema}}
}

// RequestBodyJSON documents a JSON body of the named component schema.
func RequestBodyJSON(schemaName string, required bool) *RequestBody {
	return &RequestBody{Required: required, Content: jsonContent(SchemaRef(schemaName))}
}

// ResponseJSON documents a JSON response of the named component schema.
func ResponseJSON(description, schemaName string) *Response {
	return &Response{Description: description, Content: jsonContent(SchemaRef(schemaName))}
}

// ArrayResponseJSON documents a JSON array of the named component schema.
func ArrayResponseJSON(description, schemaName string) *Response {
	items := &Schema{Type: "array", Items: SchemaRef(schemaName)}
	return &Response{Description: description, Content: jsonContent(items)}
}

func NoContent(description string) *Response {
	return &Response{Description: description}
}

// PathParam is always required. An empty format leaves the string
// unconstrained, as for SKUs.
func PathParam(name, format, description string) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "path",
		Description: description,
		Required:    true,
		Schema:      &Schema{Type: "string", Format: format},
	}
}

func QueryParam(name, typ, description string, required bool) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "query",
		Description: description,
		Required:    required,
		Schema:      &Schema{Type: typ},
	}
}
