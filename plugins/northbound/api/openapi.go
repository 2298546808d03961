package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/veesix-networks/cidrd/internal/service"
	"github.com/veesix-networks/cidrd/pkg/version"
)

func buildOpenAPISpec() *openapi3.T {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "cidrd API",
			Description: "Route CIDR allocation for cluster nodes",
			Version:     version.Version,
		},
		Paths: &openapi3.Paths{},
		Tags: openapi3.Tags{
			{Name: "Allocation", Description: "Per-node route CIDR allocation"},
			{Name: "Inventory", Description: "Pool and assignment inspection"},
		},
	}

	spec.Paths.Set(PathAllocate, &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Allocation"},
			Summary:     "Allocate a route CIDR for a node",
			Description: "Returns the node's existing block if it holds one. Overlay nodes and nodes outside the selector get an empty object.",
			OperationID: "allocate",
			RequestBody: jsonBody(service.AllocateRequest{}),
			Responses:   mutationResponses("Route CIDR for the node, or empty", service.AllocateResponse{}),
		},
	})

	spec.Paths.Set(PathRelease, &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"Allocation"},
			Summary:     "Release the block held by a node",
			OperationID: "release",
			RequestBody: jsonBody(service.ReleaseRequest{}),
			Responses:   mutationResponses("Whether a block was released", service.ReleaseResponse{}),
		},
	})

	spec.Paths.Set(PathAssignments, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"Inventory"},
			Summary:     "List live assignments by block index",
			OperationID: "listAssignments",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Live assignments", service.AssignmentList{})),
			),
		},
	})

	spec.Paths.Set(PathPool, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"Inventory"},
			Summary:     "Pool occupancy",
			OperationID: "poolStatus",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, jsonResponse("Pool occupancy", service.PoolStatus{})),
			),
		},
	})

	return spec
}

func jsonBody(v any) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schemaFromType(reflect.TypeOf(v))),
		},
	}
}

func jsonResponse(description string, v any) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: ptr(description),
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaFromType(reflect.TypeOf(v))),
		},
	}
}

func mutationResponses(description string, v any) *openapi3.Responses {
	unavailable := jsonResponse("Pool exhausted or store unavailable; retry later", ErrorResponse{})
	unavailable.Value.Headers = openapi3.Headers{
		"Retry-After": &openapi3.HeaderRef{
			Value: &openapi3.Header{
				Parameter: openapi3.Parameter{
					Description: "Seconds to wait before retrying",
					Schema:      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
				},
			},
		},
	}

	return openapi3.NewResponses(
		openapi3.WithStatus(http.StatusOK, jsonResponse(description, v)),
		openapi3.WithStatus(http.StatusBadRequest, jsonResponse("Malformed request or missing node_id", ErrorResponse{})),
		openapi3.WithStatus(http.StatusServiceUnavailable, unavailable),
		openapi3.WithStatus(http.StatusInternalServerError, jsonResponse("Internal server error", ErrorResponse{})),
	)
}

func schemaFromType(t reflect.Type) *openapi3.SchemaRef {
	if t == nil {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == reflect.TypeOf(time.Time{}) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	}

	if t == reflect.TypeOf(time.Duration(0)) {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Description: "Duration in nanoseconds"}}
	}

	switch t.Kind() {
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "byte"}}
		}
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: schemaFromType(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: schemaFromType(t.Elem())},
			},
		}

	case reflect.Struct:
		return structToSchema(t)

	case reflect.Interface:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}

	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
}

func structToSchema(t reflect.Type) *openapi3.SchemaRef {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := openapi3.Schemas{}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}

		propSchema := schemaFromType(field.Type)

		if desc := field.Tag.Get("description"); desc != "" {
			propSchema.Value.Description = desc
		}

		if !omitempty {
			required = append(required, name)
		}
		properties[name] = propSchema
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
			Required:   required,
		},
	}
}

func ptr(s string) *string {
	return &s
}
