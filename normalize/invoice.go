package normalize

import (
	"time"
)

var invoiceTotals = totalFields{
	explicit: []string{"totalIncTax", "grandTotal", "total_inc_tax", "total"},
	money:    []string{"originalBalance", "money", "totalAmount"},
	subtotal: []string{"subtotal"},
	tax:      []string{"totalTax", "taxTotal"},
	shipping: []string{"shippingTotal", "freight"},
}

type FrontendInvoice struct {
	ID                  string        `json:"id"`
	InvoiceNumber       string        `json:"invoiceNumber"`
	OrderNumber         string        `json:"orderNumber"`
	PurchaseOrderNumber string        `json:"purchaseOrderNumber"`
	RawStatus           interface{}   `json:"rawStatus"`
	Status              string        `json:"status"`
	DerivedStatus       string        `json:"derivedStatus"`
	DaysOverdue         int           `json:"daysOverdue"`
	CustomerName        string        `json:"customerName"`
	CompanyName         string        `json:"companyName"`
	CreatedAt           *time.Time    `json:"createdAt"`
	DueDate             *time.Time    `json:"dueDate"`
	Currency            string        `json:"currency"`
	OriginalBalance     float64       `json:"originalBalance"`
	OpenBalance         float64       `json:"openBalance"`
	Totals              Totals        `json:"totals"`
	CustomFields        []CustomField `json:"customFields"`
	HasCustomFields     bool          `json:"hasCustomFields"`
}

// Invoice maps the upstream record. DerivedStatus and DaysOverdue depend on
// the current day and are filled in by Classify.
func Invoice(rec Record) FrontendInvoice {
	rawStatus := First(rec, "status", "statusCode")
	totals := resolveTotals(rec, invoiceTotals)
	fields := CustomFields(rec)

	original, ok := Float(First(rec, "originalBalance", "original_balance"))
	if !ok {
		original = totals.Total
	}

	return FrontendInvoice{
		ID:                  Str(First(rec, "id", "invoiceId")),
		InvoiceNumber:       Str(First(rec, "invoiceNumber", "invoice_number", "id")),
		OrderNumber:         Str(First(rec, "orderNumber", "orderId", "details.header.orderNumber")),
		PurchaseOrderNumber: Str(First(rec, "purchaseOrderNumber", "poNumber", "details.header.purchaseOrderNumber")),
		RawStatus:           rawStatus,
		Status:              InvoiceStatus(rawStatus),
		CustomerName:        invoiceCustomerName(rec),
		CompanyName:         Str(First(rec, "companyName", "details.header.billingAddress.companyName")),
		CreatedAt:           TimePtr(First(rec, "createdAt", "invoiceDate", "details.header.createdAt")),
		DueDate:             TimePtr(First(rec, "dueDate", "due_date", "details.header.dueDate")),
		Currency:            Currency(rec),
		OriginalBalance:     round2(original),
		OpenBalance:         round2(Amount(First(rec, "openBalance", "open_balance"))),
		Totals:              totals,
		CustomFields:        fields,
		HasCustomFields:     len(fields) > 0,
	}
}

func Invoices(recs []Record) []FrontendInvoice {
	out := make([]FrontendInvoice, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Invoice(rec))
	}
	return out
}

func invoiceCustomerName(rec Record) string {
	return Name(
		Str(First(rec, "details.header.billingAddress.firstName", "firstName")),
		Str(First(rec, "details.header.billingAddress.lastName", "lastName")),
		Str(rec["contactName"]),
		Str(rec["customerName"]),
	)
}
