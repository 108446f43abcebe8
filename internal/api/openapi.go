package api

import (
	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/pkg/openapi"
)

func buildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	for _, url := range cfg.API.OpenAPI.Servers {
		spec.AddServer(url)
	}

	spec.Components.AddSchemas(map[string]*openapi.Schema{
		"TurnRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"message":    {Type: "string", Description: "User utterance"},
				"session_id": {Type: "string", Description: "Session to continue; a new session is started when empty"},
			},
			Required: []string{"message"},
		},
		"Reply": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"session_id":            {Type: "string"},
				"message":               {Type: "string", Description: "Assistant reply in the user's language"},
				"language":              {Type: "string", Enum: []any{"en", "zh"}},
				"awaiting_confirmation": {Type: "boolean"},
				"pending_artifact":      openapi.SchemaRef("PendingArtifact"),
				"ready_entities":        {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"candidates":            {Type: "integer"},
			},
		},
		"PendingArtifact": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"sku":         {Type: "string"},
				"instruction": {Type: "string"},
				"asset_ref":   {Type: "string"},
				"source_ref":  {Type: "string"},
				"status":      {Type: "string", Enum: []any{"success", "error"}},
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"SessionSummary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":                    {Type: "string"},
				"turns":                 {Type: "integer"},
				"candidates":            {Type: "integer"},
				"awaiting_confirmation": {Type: "boolean"},
				"ready_entities":        {Type: "integer"},
				"updated_at":            {Type: "string", Format: "date-time"},
			},
		},
		"CreatePrompt": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":         {Type: "string"},
				"stage":        {Type: "string", Enum: []any{"route", "confirmation", "entity-selection", "compose"}},
				"instructions": {Type: "string"},
				"description":  {Type: "string"},
			},
			Required: []string{"name", "stage", "instructions"},
		},
		"ReadyEntityRecord": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"sku":           {Type: "string"},
				"snapshot":      {Type: "object", Description: "Entity as it was when it became ready"},
				"modifications": {Type: "array", Items: &openapi.Schema{Type: "object"}},
				"published":     {Type: "object"},
				"version":       {Type: "integer"},
			},
		},
	})

	sid := openapi.PathParam("id", "", "Session id")
	sku := openapi.PathParam("sku", "", "Entity SKU")
	pid := openapi.PathParam("id", "uuid", "Prompt id")
	stage := openapi.PathParam("stage", "", "Classification stage")

	turnResponses := func() map[int]*openapi.Response {
		return map[int]*openapi.Response{
			200: openapi.ResponseJSON("Turn reply", "Reply"),
			400: openapi.ResponseRef("BadRequest"),
			413: openapi.ResponseRef("PayloadTooLarge"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		}
	}

	spec.AddOperation("POST", "/chat", &openapi.Operation{
		Summary:     "Post a turn",
		Description: "Starts a new session when session_id is empty.",
		Tags:        []string{"chat"},
		RequestBody: openapi.RequestBodyJSON("TurnRequest", true),
		Responses:   turnResponses(),
	})
	spec.AddOperation("POST", "/sessions/{id}/turns", &openapi.Operation{
		Summary:     "Post a turn to a session",
		Tags:        []string{"chat"},
		Parameters:  []*openapi.Parameter{sid},
		RequestBody: openapi.RequestBodyJSON("TurnRequest", true),
		Responses:   turnResponses(),
	})

	spec.AddOperation("GET", "/sessions", &openapi.Operation{
		Summary:   "List sessions",
		Tags:      []string{"sessions"},
		Responses: map[int]*openapi.Response{200: openapi.ArrayResponseJSON("Session summaries", "SessionSummary")},
	})
	spec.AddOperation("DELETE", "/sessions", &openapi.Operation{
		Summary:   "Clear all sessions",
		Tags:      []string{"sessions"},
		Responses: map[int]*openapi.Response{204: openapi.NoContent("Cleared")},
	})
	spec.AddOperation("GET", "/sessions/{id}", &openapi.Operation{
		Summary:    "Get a session",
		Tags:       []string{"sessions"},
		Parameters: []*openapi.Parameter{sid},
		Responses: map[int]*openapi.Response{
			200: {Description: "Full session state"},
			404: openapi.ResponseRef("NotFound"),
		},
	})
	spec.AddOperation("DELETE", "/sessions/{id}", &openapi.Operation{
		Summary:    "Delete a session",
		Tags:       []string{"sessions"},
		Parameters: []*openapi.Parameter{sid},
		Responses: map[int]*openapi.Response{
			204: openapi.NoContent("Deleted"),
			404: openapi.ResponseRef("NotFound"),
		},
	})

	spec.AddOperation("GET", "/ready", &openapi.Operation{
		Summary: "List ready entities",
		Tags:    []string{"ready"},
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Search SKU and title", false),
			openapi.QueryParam("category", "string", "Filter by category", false),
			openapi.QueryParam("title", "string", "Filter by title", false),
		},
		Responses: map[int]*openapi.Response{200: {Description: "Page of ready entity records"}},
	})
	spec.AddOperation("GET", "/ready/{sku}", &openapi.Operation{
		Summary:    "Get a ready entity",
		Tags:       []string{"ready"},
		Parameters: []*openapi.Parameter{sku},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Ready entity record", "ReadyEntityRecord"),
			404: openapi.ResponseRef("NotFound"),
		},
	})
	spec.AddOperation("DELETE", "/ready/{sku}", &openapi.Operation{
		Summary:    "Remove a ready entity",
		Tags:       []string{"ready"},
		Parameters: []*openapi.Parameter{sku},
		Responses: map[int]*openapi.Response{
			204: openapi.NoContent("Removed"),
			404: openapi.ResponseRef("NotFound"),
		},
	})

	spec.AddOperation("GET", "/prompts/stages", &openapi.Operation{
		Summary:   "List classification stages",
		Tags:      []string{"prompts"},
		Responses: map[int]*openapi.Response{200: {Description: "Stage names"}},
	})
	spec.AddOperation("GET", "/prompts/{stage}/instructions", &openapi.Operation{
		Summary:    "Effective instructions for a stage",
		Tags:       []string{"prompts"},
		Parameters: []*openapi.Parameter{stage},
		Responses: map[int]*openapi.Response{
			200: {Description: "Active override, or the built-in default"},
			400: openapi.ResponseRef("BadRequest"),
		},
	})
	spec.AddOperation("POST", "/prompts", &openapi.Operation{
		Summary:     "Create a prompt override",
		Tags:        []string{"prompts"},
		RequestBody: openapi.RequestBodyJSON("CreatePrompt", true),
		Responses: map[int]*openapi.Response{
			201: {Description: "Created"},
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
		},
	})
	spec.AddOperation("POST", "/prompts/{id}/activate", &openapi.Operation{
		Summary:    "Activate a prompt override",
		Tags:       []string{"prompts"},
		Parameters: []*openapi.Parameter{pid},
		Responses: map[int]*openapi.Response{
			200: {Description: "Activated"},
			404: openapi.ResponseRef("NotFound"),
		},
	})

	return spec
}
