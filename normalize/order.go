package normalize

import (
	"time"
)

var orderTotals = totalFields{
	explicit: []string{"totalIncTax", "grandTotal", "total_inc_tax"},
	money:    []string{"money", "totalAmount"},
	subtotal: []string{"subtotalIncTax", "subtotal_inc_tax", "subtotalExTax", "subtotal_ex_tax"},
	tax:      []string{"totalTax", "total_tax"},
	shipping: []string{"shippingCostIncTax", "shipping_cost_inc_tax"},
}

type FrontendOrder struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"orderNumber"`
	RawStatus       interface{}   `json:"rawStatus"`
	Status          string        `json:"status"`
	CustomerName    string        `json:"customerName"`
	CompanyName     string        `json:"companyName"`
	PONumber        string        `json:"poNumber"`
	CreatedAt       *time.Time    `json:"createdAt"`
	UpdatedAt       *time.Time    `json:"updatedAt"`
	Currency        string        `json:"currency"`
	ItemCount       int           `json:"itemCount"`
	Totals          Totals        `json:"totals"`
	CustomFields    []CustomField `json:"customFields"`
	HasCustomFields bool          `json:"hasCustomFields"`
}

func Order(rec Record) FrontendOrder {
	id := Str(First(rec, "orderId", "id", "bcOrderId"))
	rawStatus := First(rec, "statusCode", "status_id", "status")
	fields := CustomFields(rec)

	return FrontendOrder{
		ID:              id,
		OrderNumber:     Str(First(rec, "orderNumber", "bcOrderId", "orderId", "id")),
		RawStatus:       rawStatus,
		Status:          OrderStatus(rawStatus),
		CustomerName:    customerName(rec),
		CompanyName:     Str(First(rec, "companyName", "companyInfo.companyName", "company.name")),
		PONumber:        Str(First(rec, "poNumber", "po_number", "purchaseOrderNumber")),
		CreatedAt:       TimePtr(First(rec, "createdAt", "date_created", "dateCreated")),
		UpdatedAt:       TimePtr(First(rec, "updatedAt", "date_modified", "dateModified")),
		Currency:        Currency(rec),
		ItemCount:       itemCount(rec),
		Totals:          resolveTotals(rec, orderTotals),
		CustomFields:    fields,
		HasCustomFields: len(fields) > 0,
	}
}

func Orders(recs []Record) []FrontendOrder {
	out := make([]FrontendOrder, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Order(rec))
	}
	return out
}

func customerName(rec Record) string {
	return Name(
		Str(First(rec, "firstName", "first_name", "billingAddress.firstName")),
		Str(First(rec, "lastName", "last_name", "billingAddress.lastName")),
		Str(rec["customerName"]),
		Str(rec["name"]),
		Str(rec["email"]),
	)
}

func itemCount(rec Record) int {
	if n, ok := Int(First(rec, "itemsTotal", "items_total", "itemCount")); ok {
		return int(n)
	}

	if items := Nodes(First(rec, "products", "productsList", "lineItems", "items")); items != nil {
		return len(items)
	}

	return 0
}
