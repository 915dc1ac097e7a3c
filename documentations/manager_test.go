package documentations

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/logger"
	"github.com/saiset-co/b2b-portal/server"
	"github.com/saiset-co/b2b-portal/types"
	"github.com/saiset-co/b2b-portal/utils"
)

type line struct {
	SKU string  `json:"sku"`
	Qty float64 `json:"qty"`
}

type order struct {
	ID       string     `json:"id"`
	Lines    []line     `json:"lines"`
	Note     *string    `json:"note"`
	PlacedAt time.Time  `json:"placedAt"`
	Parent   *order     `json:"parent,omitempty"`
	Extra    string     `json:"-"`
	Shipped  *time.Time `json:"shipped,omitempty"`
}

func newManager(t *testing.T) *Manager {
	t.Helper()

	dm := NewManager(types.ServiceInfo{Name: "b2b-portal", Version: "1.0.0"}, logger.NewNop())
	require.NoError(t, dm.AddRoute(types.RouteDoc{Method: "get", Path: "/api/orders/{id}", Tag: "orders", ResponseType: reflect.TypeOf(order{})}))
	require.NoError(t, dm.AddRoute(types.RouteDoc{Method: "PUT", Path: "/api/orders/{id}", Tag: "orders",
		RequestType: reflect.TypeOf(map[string]interface{}{}), ResponseType: reflect.TypeOf(order{})}))
	require.NoError(t, dm.AddRoute(types.RouteDoc{Method: "DELETE", Path: "/api/cache", Tag: "cache", Protected: true}))
	return dm
}

func TestAddRouteValidates(t *testing.T) {
	dm := NewManager(types.ServiceInfo{}, logger.NewNop())
	assert.Error(t, dm.AddRoute(types.RouteDoc{Method: "TRACE", Path: "/x"}))
	assert.Error(t, dm.AddRoute(types.RouteDoc{Method: "GET", Path: "x"}))
}

func TestGenerate(t *testing.T) {
	spec := newManager(t).Generate()

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, "b2b-portal", spec.Info.Title)
	assert.Equal(t, []types.SpecTag{{Name: "cache"}, {Name: "orders"}}, spec.Tags)

	item := spec.Paths["/api/orders/{id}"]
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	require.NotNil(t, item.Put)

	require.Len(t, item.Get.Parameters, 1)
	assert.Equal(t, "id", item.Get.Parameters[0].Name)
	assert.Equal(t, "path", item.Get.Parameters[0].In)
	assert.Contains(t, item.Get.Responses, "404")
	assert.Equal(t, "#/components/schemas/order", item.Get.Responses["200"].Content["application/json"].Schema.Ref)

	require.NotNil(t, item.Put.RequestBody)
	assert.Equal(t, "object", item.Put.RequestBody.Content["application/json"].Schema.Type)

	schema := spec.Components.Schemas["order"]
	require.NotNil(t, schema)
	assert.Equal(t, "array", schema.Properties["lines"].Type)
	assert.Equal(t, "#/components/schemas/line", schema.Properties["lines"].Items.Ref)
	assert.True(t, schema.Properties["note"].Nullable)
	assert.Equal(t, "date-time", schema.Properties["placedAt"].Format)
	assert.Equal(t, "#/components/schemas/order", schema.Properties["parent"].Ref)
	assert.NotContains(t, schema.Properties, "Extra")
	assert.ElementsMatch(t, []string{"id", "lines", "placedAt"}, schema.Required)
	assert.Contains(t, spec.Components.Schemas, "ErrorResponse")

	cache := spec.Paths["/api/cache"].Delete
	require.NotNil(t, cache)
	assert.Contains(t, cache.Responses, "401")
	assert.Equal(t, []map[string][]string{{"AdminAuth": {}}}, cache.Security)
	assert.Contains(t, spec.Components.SecuritySchemes, "AdminAuth")
}

func TestGenerateIsCachedUntilRoutesChange(t *testing.T) {
	dm := newManager(t)
	first := dm.Generate()
	assert.Same(t, first, dm.Generate())

	require.NoError(t, dm.AddRoute(types.RouteDoc{Method: "GET", Path: "/api/products"}))
	assert.NotSame(t, first, dm.Generate())
	assert.Contains(t, dm.Generate().Paths, "/api/products")
}

func TestRegisterRoutes(t *testing.T) {
	dm := newManager(t)
	router := server.NewFastHTTPRouter()
	dm.RegisterRoutes(router, "/docs/")

	handler, _, found := router.Lookup(fasthttp.MethodGet, "/docs/openapi.json")
	require.True(t, found)

	ctx := &fasthttp.RequestCtx{}
	handler(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var spec types.OpenAPISpec
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &spec))
	assert.Contains(t, spec.Paths, "/api/orders/{id}")

	handler, _, found = router.Lookup(fasthttp.MethodGet, "/docs")
	require.True(t, found)

	ctx = &fasthttp.RequestCtx{}
	handler(ctx)
	assert.Contains(t, string(ctx.Response.Body()), "/docs/openapi.json")
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/html")
}
