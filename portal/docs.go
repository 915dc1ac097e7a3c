package portal

import (
	"reflect"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/b2b-portal/normalize"
	"github.com/saiset-co/b2b-portal/types"
)

var (
	recordType     = reflect.TypeOf(normalize.Record{})
	recordListType = reflect.TypeOf([]normalize.Record{})
)

// Docs describes every route Register mounts.
func (h *Handlers) Docs() []types.RouteDoc {
	return []types.RouteDoc{
		{Method: fasthttp.MethodGet, Path: "/api/users/{id}", Tag: "users", Title: "Get user", ResponseType: recordType},
		{Method: fasthttp.MethodGet, Path: "/api/users/{id}/orders", Tag: "users", Title: "List user orders",
			Description:  "Orders placed by the user, normalized for the frontend.",
			ResponseType: reflect.TypeOf([]normalize.FrontendOrder{})},
		{Method: fasthttp.MethodGet, Path: "/api/users/{id}/cart", Tag: "users", Title: "Get cart", ResponseType: recordType},

		{Method: fasthttp.MethodGet, Path: "/api/companies/{id}", Tag: "companies", Title: "Get company", ResponseType: recordType},
		{Method: fasthttp.MethodGet, Path: "/api/companies/{id}/users", Tag: "companies", Title: "List company users", ResponseType: recordListType},
		{Method: fasthttp.MethodGet, Path: "/api/companies/{id}/addresses", Tag: "companies", Title: "List addresses",
			ResponseType: reflect.TypeOf([]normalize.FrontendAddress{})},
		{Method: fasthttp.MethodPost, Path: "/api/companies/{id}/addresses", Tag: "companies", Title: "Create address",
			RequestType: recordType, ResponseType: reflect.TypeOf(normalize.FrontendAddress{}), Status: fasthttp.StatusCreated},
		{Method: fasthttp.MethodGet, Path: "/api/companies/{id}/invoices", Tag: "companies", Title: "List invoices",
			Description:  "Invoices with aging buckets and credit availability computed in the portal timezone.",
			ResponseType: reflect.TypeOf(InvoicesResponse{})},
		{Method: fasthttp.MethodGet, Path: "/api/companies/{id}/quotes", Tag: "companies", Title: "List quotes",
			ResponseType: reflect.TypeOf([]normalize.FrontendQuote{})},

		{Method: fasthttp.MethodGet, Path: "/api/orders/{id}", Tag: "orders", Title: "Get order",
			ResponseType: reflect.TypeOf(normalize.FrontendOrder{})},
		{Method: fasthttp.MethodPut, Path: "/api/orders/{id}", Tag: "orders", Title: "Update order",
			RequestType: recordType, ResponseType: reflect.TypeOf(normalize.FrontendOrder{})},

		{Method: fasthttp.MethodGet, Path: "/api/products", Tag: "products", Title: "Search products",
			Description: "Query parameters are passed through to the upstream catalog.", ResponseType: recordListType},

		{Method: fasthttp.MethodGet, Path: "/api/cache/stats", Tag: "cache", Title: "Cache statistics",
			ResponseType: reflect.TypeOf(types.CacheStats{}), Protected: true},
		{Method: fasthttp.MethodPost, Path: "/api/cache/invalidate", Tag: "cache", Title: "Invalidate keys",
			Description: "Removes keys matching a prefix, or a regular expression when regex is true.",
			RequestType: reflect.TypeOf(invalidateRequest{}), ResponseType: reflect.TypeOf(map[string]int{}), Protected: true},
		{Method: fasthttp.MethodDelete, Path: "/api/cache", Tag: "cache", Title: "Clear cache",
			ResponseType: reflect.TypeOf(map[string]bool{}), Protected: true},
	}
}
