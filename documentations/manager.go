package documentations

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

const (
	openAPIVersion   = "3.0.3"
	errorSchemaName  = "ErrorResponse"
	securitySchemeID = "AdminAuth"
)

var timeType = reflect.TypeOf(time.Time{})

// Manager builds an OpenAPI document from the routes described to it and
// serves it with a Swagger UI page.
type Manager struct {
	info   types.ServiceInfo
	logger types.Logger
	mu     sync.RWMutex
	routes map[string]types.RouteDoc
	spec   *types.OpenAPISpec
}

func NewManager(info types.ServiceInfo, logger types.Logger) *Manager {
	return &Manager{
		info:   info,
		logger: logger,
		routes: make(map[string]types.RouteDoc),
	}
}

func (dm *Manager) AddRoute(doc types.RouteDoc) error {
	method := strings.ToUpper(doc.Method)
	switch method {
	case fasthttp.MethodGet, fasthttp.MethodPost, fasthttp.MethodPut, fasthttp.MethodDelete, fasthttp.MethodPatch:
	default:
		return types.NewErrorf("unsupported documented method %q", doc.Method)
	}

	if !strings.HasPrefix(doc.Path, "/") {
		return types.NewErrorf("documented path must start with '/': %q", doc.Path)
	}

	doc.Method = method

	dm.mu.Lock()
	dm.routes[method+" "+doc.Path] = doc
	dm.spec = nil
	dm.mu.Unlock()

	return nil
}

// RegisterRoutes mounts the UI at path and the document at path/openapi.json.
func (dm *Manager) RegisterRoutes(router types.HTTPRouter, path string) {
	path = strings.TrimRight(path, "/")
	router.GET(path, dm.uiHandler(path+"/openapi.json"))
	router.GET(path+"/openapi.json", dm.handleOpenAPIJSON)
}

func (dm *Manager) Generate() *types.OpenAPISpec {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.spec != nil {
		return dm.spec
	}

	keys := make([]string, 0, len(dm.routes))
	for key := range dm.routes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	spec := &types.OpenAPISpec{
		OpenAPI: openAPIVersion,
		Info: types.SpecInfo{
			Title:       dm.info.Name,
			Version:     dm.info.Version,
			Description: fmt.Sprintf("%s API documentation", dm.info.Name),
		},
		Paths: make(map[string]*types.RoutePathItem),
		Components: &types.SpecComponents{
			Schemas: map[string]*types.RouteSchema{
				errorSchemaName: errorSchema(),
			},
		},
	}

	tags := make(map[string]struct{})
	protected := false

	for _, key := range keys {
		route := dm.routes[key]

		item, ok := spec.Paths[route.Path]
		if !ok {
			item = &types.RoutePathItem{}
			spec.Paths[route.Path] = item
		}

		op := dm.generateOperation(route, spec.Components.Schemas)
		switch route.Method {
		case fasthttp.MethodGet:
			item.Get = op
		case fasthttp.MethodPost:
			item.Post = op
		case fasthttp.MethodPut:
			item.Put = op
		case fasthttp.MethodDelete:
			item.Delete = op
		case fasthttp.MethodPatch:
			item.Patch = op
		}

		if route.Tag != "" {
			tags[route.Tag] = struct{}{}
		}
		protected = protected || route.Protected
	}

	for tag := range tags {
		spec.Tags = append(spec.Tags, types.SpecTag{Name: tag})
	}
	sort.Slice(spec.Tags, func(i, j int) bool { return spec.Tags[i].Name < spec.Tags[j].Name })

	if protected {
		spec.Components.SecuritySchemes = map[string]*types.RouteSecurityScheme{
			securitySchemeID: {Type: "http", Scheme: "bearer"},
		}
	}

	dm.spec = spec

	dm.logger.Debug("OpenAPI documentation generated",
		zap.Int("routes", len(keys)),
		zap.Int("paths", len(spec.Paths)),
		zap.Int("schemas", len(spec.Components.Schemas)))

	return spec
}

func (dm *Manager) generateOperation(route types.RouteDoc, schemas map[string]*types.RouteSchema) *types.RouteOperation {
	op := &types.RouteOperation{
		Summary:     route.Title,
		Description: route.Description,
		Parameters:  pathParameters(route.Path),
		Responses:   make(map[string]*types.RouteResponse),
	}

	if route.Tag != "" {
		op.Tags = []string{route.Tag}
	}

	if route.RequestType != nil {
		op.RequestBody = &types.RouteRequestBody{
			Required: true,
			Content: map[string]*types.RouteMediaType{
				"application/json": {Schema: schemaRef(route.RequestType, schemas)},
			},
		}
	}

	status := route.Status
	if status == 0 {
		status = fasthttp.StatusOK
	}

	success := &types.RouteResponse{Description: fasthttp.StatusMessage(status)}
	if route.ResponseType != nil {
		success.Content = map[string]*types.RouteMediaType{
			"application/json": {Schema: schemaRef(route.ResponseType, schemas)},
		}
	}
	op.Responses[fmt.Sprint(status)] = success

	addErrorResponses(op.Responses, route)

	if route.Protected {
		op.Security = []map[string][]string{{securitySchemeID: {}}}
	}

	return op
}

func (dm *Manager) handleOpenAPIJSON(ctx *fasthttp.RequestCtx) {
	body, err := utils.Marshal(dm.Generate())
	if err != nil {
		dm.logger.Error("Failed to encode OpenAPI spec", zap.Error(err))
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, "internal server error")
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

func (dm *Manager) uiHandler(specURL string) types.FastHTTPHandler {
	page := fmt.Sprintf(swaggerHTML, dm.info.Name, specURL)

	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(page)
	}
}

func pathParameters(path string) []types.RouteParameter {
	var params []types.RouteParameter

	for _, part := range strings.Split(path, "/") {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			continue
		}

		name := strings.Trim(part, "{}")
		params = append(params, types.RouteParameter{
			Name:        name,
			In:          "path",
			Required:    true,
			Description: fmt.Sprintf("%s path parameter", name),
			Schema:      &types.RouteSchema{Type: "string"},
		})
	}

	return params
}

func addErrorResponses(responses map[string]*types.RouteResponse, route types.RouteDoc) {
	errorContent := func() map[string]*types.RouteMediaType {
		return map[string]*types.RouteMediaType{
			"application/json": {Schema: &types.RouteSchema{Ref: "#/components/schemas/" + errorSchemaName}},
		}
	}

	if route.RequestType != nil || strings.Contains(route.Path, "{") {
		responses["400"] = &types.RouteResponse{Description: "Bad Request", Content: errorContent()}
	}
	if route.Protected {
		responses["401"] = &types.RouteResponse{Description: "Unauthorized", Content: errorContent()}
	}
	if strings.Contains(route.Path, "{") {
		responses["404"] = &types.RouteResponse{Description: "Not Found", Content: errorContent()}
	}
	responses["502"] = &types.RouteResponse{Description: "Bad Gateway", Content: errorContent()}
}

func errorSchema() *types.RouteSchema {
	return &types.RouteSchema{
		Type: "object",
		Properties: map[string]*types.RouteSchema{
			"error": {Type: "string"},
		},
		Required: []string{"error"},
	}
}

// schemaRef returns an inline schema for scalars and collections, and a
// component reference for named structs, registering them on first use.
func schemaRef(t reflect.Type, schemas map[string]*types.RouteSchema) *types.RouteSchema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && t != timeType && t.Name() != "" {
		name := t.Name()
		if _, ok := schemas[name]; !ok {
			// Placeholder first so self-referencing types terminate.
			schemas[name] = &types.RouteSchema{Type: "object"}
			schemas[name] = structSchema(t, schemas)
		}
		return &types.RouteSchema{Ref: "#/components/schemas/" + name}
	}

	return schemaFromType(t, schemas)
}

func schemaFromType(t reflect.Type, schemas map[string]*types.RouteSchema) *types.RouteSchema {
	if t.Kind() == reflect.Ptr {
		schema := schemaRef(t.Elem(), schemas)
		if schema.Ref == "" {
			schema.Nullable = true
		}
		return schema
	}

	if t == timeType {
		return &types.RouteSchema{Type: "string", Format: "date-time"}
	}

	switch t.Kind() {
	case reflect.Struct:
		return structSchema(t, schemas)
	case reflect.Slice, reflect.Array:
		return &types.RouteSchema{Type: "array", Items: schemaRef(t.Elem(), schemas)}
	case reflect.Map:
		return &types.RouteSchema{Type: "object", AdditionalProperties: schemaRef(t.Elem(), schemas)}
	case reflect.String:
		return &types.RouteSchema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &types.RouteSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &types.RouteSchema{Type: "number"}
	case reflect.Bool:
		return &types.RouteSchema{Type: "boolean"}
	default:
		return &types.RouteSchema{Type: "object"}
	}
}

func structSchema(t reflect.Type, schemas map[string]*types.RouteSchema) *types.RouteSchema {
	schema := &types.RouteSchema{
		Type:       "object",
		Properties: make(map[string]*types.RouteSchema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(jsonTag, ",")
		if name == "" {
			name = field.Name
		}

		schema.Properties[name] = schemaFromType(field.Type, schemas)

		if field.Type.Kind() != reflect.Ptr && !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

const swaggerHTML = `<!DOCTYPE html>
<html>
<head>
  <title>%s API</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@4.15.5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui', deepLinking: true });
    };
  </script>
</body>
</html>`
