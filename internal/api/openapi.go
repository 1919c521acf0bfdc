package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// OpenAPI document locations
const (
	OpenAPIPath = "/api-docs/openapi.json"
	SwaggerPath = "/swagger-ui"
)

// routeDoc annotates one business route for the OpenAPI document.
type routeDoc struct {
	Method      string
	Path        string
	Tag         string
	Summary     string
	Params      []paramDoc
	Response    any // zero value of the success envelope
	Secured     bool
	OperationID string
}

type paramDoc struct {
	Name        string
	Description string
	Type        string
}

// buildOpenAPI renders an OpenAPI 3.0 document for the given routes.
func buildOpenAPI(routes []routeDoc) ([]byte, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true}

	schemaOf := func(v any) (json.RawMessage, error) {
		s := reflector.Reflect(v)
		s.Version = ""
		s.ID = ""
		return json.Marshal(s)
	}

	failure, err := schemaOf(Response[string]{})
	if err != nil {
		return nil, err
	}

	paths := map[string]map[string]any{}
	for _, rt := range routes {
		success, err := schemaOf(rt.Response)
		if err != nil {
			return nil, fmt.Errorf("schema for %s %s: %w", rt.Method, rt.Path, err)
		}

		params := make([]map[string]any, 0, len(rt.Params))
		for _, p := range rt.Params {
			params = append(params, map[string]any{
				"name":        p.Name,
				"in":          "path",
				"required":    true,
				"description": p.Description,
				"schema":      map[string]any{"type": p.Type},
			})
		}

		op := map[string]any{
			"tags":        []string{rt.Tag},
			"summary":     rt.Summary,
			"operationId": rt.OperationID,
			"parameters":  params,
			"responses": map[string]any{
				"200": jsonResponse("Success envelope", success),
				"404": map[string]any{
					"description": "Route not found",
					"content": map[string]any{
						"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Envelope"}},
					},
				},
				"500": jsonResponse("Failure envelope", failure),
			},
		}
		if rt.Secured {
			op["security"] = []map[string][]string{{"bearer_auth": {}}}
		}

		if paths[rt.Path] == nil {
			paths[rt.Path] = map[string]any{}
		}
		paths[rt.Path][strings.ToLower(rt.Method)] = op
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Web API",
			"version": "v1.0.0",
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Envelope": failure,
			},
			"securitySchemes": map[string]any{
				"bearer_auth": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
		},
	}

	return json.MarshalIndent(doc, "", "  ")
}

func jsonResponse(description string, schema json.RawMessage) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{"schema": schema},
		},
	}
}
