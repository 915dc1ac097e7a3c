package normalize

import (
	"time"
)

var quoteTotals = totalFields{
	explicit: []string{"grandTotal", "totalIncTax", "total_inc_tax"},
	money:    []string{"totalAmount", "money"},
	subtotal: []string{"subtotal"},
	tax:      []string{"taxTotal", "totalTax"},
	shipping: []string{"shippingTotal"},
}

type FrontendQuote struct {
	ID              string        `json:"id"`
	QuoteNumber     string        `json:"quoteNumber"`
	Title           string        `json:"title"`
	RawStatus       interface{}   `json:"rawStatus"`
	Status          string        `json:"status"`
	ContactName     string        `json:"contactName"`
	ContactEmail    string        `json:"contactEmail"`
	CompanyName     string        `json:"companyName"`
	SalesRep        string        `json:"salesRep"`
	CreatedAt       *time.Time    `json:"createdAt"`
	UpdatedAt       *time.Time    `json:"updatedAt"`
	ExpiresAt       *time.Time    `json:"expiresAt"`
	Currency        string        `json:"currency"`
	ItemCount       int           `json:"itemCount"`
	Totals          Totals        `json:"totals"`
	CustomFields    []CustomField `json:"customFields"`
	HasCustomFields bool          `json:"hasCustomFields"`
}

func Quote(rec Record) FrontendQuote {
	rawStatus := First(rec, "status", "statusCode")
	fields := CustomFields(rec)

	contact := Str(First(rec, "contactInfo.name", "contactName"))
	if contact == "" {
		contact = Name(
			Str(First(rec, "firstName", "contactInfo.firstName")),
			Str(First(rec, "lastName", "contactInfo.lastName")),
		)
	}

	return FrontendQuote{
		ID:              Str(First(rec, "id", "quoteId")),
		QuoteNumber:     Str(First(rec, "quoteNumber", "quote_number", "id")),
		Title:           Str(First(rec, "quoteTitle", "title")),
		RawStatus:       rawStatus,
		Status:          QuoteStatus(rawStatus),
		ContactName:     contact,
		ContactEmail:    Str(First(rec, "contactInfo.email", "email")),
		CompanyName:     Str(First(rec, "companyName", "companyInfo.companyName", "company.companyName")),
		SalesRep:        Str(First(rec, "salesRep", "salesRepInfo.salesRepName")),
		CreatedAt:       TimePtr(First(rec, "createdAt", "created_at")),
		UpdatedAt:       TimePtr(First(rec, "updatedAt", "updated_at")),
		ExpiresAt:       TimePtr(First(rec, "expiredAt", "expiresAt", "expired_at")),
		Currency:        Currency(rec),
		ItemCount:       itemCount(rec),
		Totals:          resolveTotals(rec, quoteTotals),
		CustomFields:    fields,
		HasCustomFields: len(fields) > 0,
	}
}

func Quotes(recs []Record) []FrontendQuote {
	out := make([]FrontendQuote, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Quote(rec))
	}
	return out
}
