package types

import (
	"reflect"
)

type DocsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
}

// RouteDoc describes one route for the generated OpenAPI document.
type RouteDoc struct {
	Method       string
	Path         string
	Title        string
	Description  string
	Tag          string
	RequestType  reflect.Type
	ResponseType reflect.Type
	Status       int
	Protected    bool
}

type OpenAPISpec struct {
	OpenAPI    string                    `json:"openapi"`
	Info       SpecInfo                  `json:"info"`
	Servers    []SpecServer              `json:"servers,omitempty"`
	Paths      map[string]*RoutePathItem `json:"paths"`
	Tags       []SpecTag                 `json:"tags,omitempty"`
	Components *SpecComponents           `json:"components,omitempty"`
}

type SpecInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type SpecServer struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type SpecTag struct {
	Name string `json:"name"`
}

type SpecComponents struct {
	Schemas         map[string]*RouteSchema         `json:"schemas,omitempty"`
	SecuritySchemes map[string]*RouteSecurityScheme `json:"securitySchemes,omitempty"`
}

type RoutePathItem struct {
	Get    *RouteOperation `json:"get,omitempty"`
	Post   *RouteOperation `json:"post,omitempty"`
	Put    *RouteOperation `json:"put,omitempty"`
	Delete *RouteOperation `json:"delete,omitempty"`
	Patch  *RouteOperation `json:"patch,omitempty"`
}

type RouteOperation struct {
	Summary     string                    `json:"summary,omitempty"`
	Description string                    `json:"description,omitempty"`
	Tags        []string                  `json:"tags,omitempty"`
	Parameters  []RouteParameter          `json:"parameters,omitempty"`
	RequestBody *RouteRequestBody         `json:"requestBody,omitempty"`
	Responses   map[string]*RouteResponse `json:"responses"`
	Security    []map[string][]string     `json:"security,omitempty"`
}

type RouteParameter struct {
	Name        string       `json:"name"`
	In          string       `json:"in"`
	Required    bool         `json:"required"`
	Description string       `json:"description,omitempty"`
	Schema      *RouteSchema `json:"schema,omitempty"`
}

type RouteRequestBody struct {
	Required bool                       `json:"required"`
	Content  map[string]*RouteMediaType `json:"content"`
}

type RouteResponse struct {
	Description string                     `json:"description"`
	Content     map[string]*RouteMediaType `json:"content,omitempty"`
}

type RouteMediaType struct {
	Schema *RouteSchema `json:"schema,omitempty"`
}

type RouteSchema struct {
	Type                 string                  `json:"type,omitempty"`
	Format               string                  `json:"format,omitempty"`
	Description          string                  `json:"description,omitempty"`
	Ref                  string                  `json:"$ref,omitempty"`
	Items                *RouteSchema            `json:"items,omitempty"`
	Properties           map[string]*RouteSchema `json:"properties,omitempty"`
	AdditionalProperties *RouteSchema            `json:"additionalProperties,omitempty"`
	Required             []string                `json:"required,omitempty"`
	Nullable             bool                    `json:"nullable,omitempty"`
}

type RouteSecurityScheme struct {
	Type   string `json:"type"`
	Scheme string `json:"scheme,omitempty"`
	In     string `json:"in,omitempty"`
	Name   string `json:"name,omitempty"`
}
