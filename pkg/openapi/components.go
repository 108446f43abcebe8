package openapi

import "maps"

// errorResponses are the shared failure responses every operation can
// reference. The body shape matches handlers.RespondError.
var errorResponses = map[string]string{
	"BadRequest":         "Invalid request",
	"NotFound":           "Resource not found",
	"Conflict":           "Concurrent modification; retry the request",
	"PayloadTooLarge":    "Request body exceeds the configured limit",
	"ServiceUnavailable": "A backing service is unavailable",
}

// NewComponents creates Components with the shared Error and PageRequest
// schemas and one response per entry in errorResponses.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type: "object",
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
				Required: []string{"error"},
			},
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query; q is accepted as an alias"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: sku,-updated_at"},
				},
			},
		},
		Responses: make(map[string]*Response, len(errorResponses)),
	}

	for name, desc := range errorResponses {
		c.Responses[name] = ResponseJSON(desc, "Error")
	}
	return c
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
