package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key prefixes. Invalidation relies on every caller building keys through
// these helpers.
const (
	KindUser      = "user"
	KindUsers     = "users"
	KindCompany   = "company"
	KindOrders    = "orders"
	KindOrder     = "order"
	KindAddresses = "addresses"
	KindCart      = "cart"
	KindProducts  = "products"
	KindInvoices  = "invoices"
	KindQuotes    = "quotes"
	KindCredit    = "credit"
)

func UserKey(userID string) string {
	return KindUser + ":" + userID
}

func CompanyUsersKey(companyID string) string {
	return KindUsers + ":company:" + companyID
}

func CompanyKey(companyID string) string {
	return KindCompany + ":" + companyID
}

func UserOrdersKey(userID string) string {
	return KindOrders + ":user:" + userID
}

func OrderKey(orderID string) string {
	return KindOrder + ":" + orderID
}

func CompanyAddressesKey(companyID string) string {
	return KindAddresses + ":company:" + companyID
}

func UserCartKey(userID string) string {
	return KindCart + ":user:" + userID
}

func CompanyInvoicesKey(companyID string) string {
	return KindInvoices + ":company:" + companyID
}

func CompanyQuotesKey(companyID string) string {
	return KindQuotes + ":company:" + companyID
}

func CompanyCreditKey(companyID string) string {
	return KindCredit + ":company:" + companyID
}

// ProductsKey is stable regardless of parameter order.
func ProductsKey(params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(KindProducts)
	b.WriteByte(':')

	written := false
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)

		for _, value := range values {
			if written {
				b.WriteByte('&')
			}
			written = true
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}

	return b.String()
}
