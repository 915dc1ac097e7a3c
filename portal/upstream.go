package portal

import (
	"context"
	"net/url"

	"github.com/saiset-co/b2b-portal/normalize"
)

// Upstream is the part of the B2B API the portal reads and writes.
// client.B2BClient implements it.
type Upstream interface {
	Get(ctx context.Context, path string, query url.Values) (normalize.Record, error)
	List(ctx context.Context, path string, query url.Values) ([]normalize.Record, error)
	Put(ctx context.Context, path string, body interface{}) (normalize.Record, error)
	Post(ctx context.Context, path string, body interface{}) (normalize.Record, error)
	GraphQL(ctx context.Context, query string, variables map[string]interface{}) (normalize.Record, error)
}

// Upstream REST paths.
const (
	usersPath     = "/users"
	companiesPath = "/companies"
	ordersPath    = "/orders"
	addressesPath = "/addresses"
	invoicesPath  = "/ip/invoices"
	productsPath  = "/catalog/products"
)

func userPath(id string) string    { return usersPath + "/" + url.PathEscape(id) }
func companyPath(id string) string { return companiesPath + "/" + url.PathEscape(id) }
func orderPath(id string) string   { return ordersPath + "/" + url.PathEscape(id) }
func cartPath(userID string) string {
	return userPath(userID) + "/cart"
}
func creditPath(companyID string) string {
	return companyPath(companyID) + "/credit"
}

const quotesQuery = `query CompanyQuotes($companyId: String!, $first: Int) {
  quotes(companyId: $companyId, first: $first) {
    edges {
      node {
        id
        quoteNumber
        quoteTitle
        status
        contactInfo { name email }
        companyInfo { companyName }
        salesRep
        createdAt
        updatedAt
        expiredAt
        currency { currencyCode }
        totalAmount { value code }
        subtotal
        taxTotal
        shippingTotal
        grandTotal
        productsList { productId quantity }
        extraFields { fieldName fieldValue }
      }
    }
  }
}`

const quotesPageSize = 100
