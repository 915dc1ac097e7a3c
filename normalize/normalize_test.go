package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func costLines(lines ...map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		out = append(out, line)
	}
	return out
}

func money(v interface{}) map[string]interface{} {
	return map[string]interface{}{"value": v}
}

func TestTotalsFallBackToCostLines(t *testing.T) {
	rec := Record{
		"costLines": costLines(
			map[string]interface{}{"description": "Subtotal", "amount": money(100)},
			map[string]interface{}{"description": "Sales Tax", "amount": money(20)},
		),
	}

	totals := Invoice(rec).Totals
	assert.Equal(t, 120.0, totals.Total)
	assert.Equal(t, 100.0, totals.Subtotal)
	assert.Equal(t, 20.0, totals.Tax)
	assert.Equal(t, TotalSourceCostLines, totals.TotalSource)
}

func TestTotalsPrecedence(t *testing.T) {
	lines := costLines(
		map[string]interface{}{"description": "Subtotal", "amount": money("50.00")},
		map[string]interface{}{"description": "Freight", "amount": money("7.5")},
		map[string]interface{}{"description": "Handling fee", "amount": money(2.5)},
		map[string]interface{}{"description": "Broken line"},
	)

	tests := []struct {
		name   string
		rec    Record
		total  float64
		source string
	}{
		{
			name:   "explicit total wins",
			rec:    Record{"totalIncTax": "99.99", "money": money("10"), "costLines": lines},
			total:  99.99,
			source: TotalSourceField,
		},
		{
			name:   "money object when no explicit total",
			rec:    Record{"money": money("10.50"), "costLines": lines},
			total:  10.5,
			source: TotalSourceMoney,
		},
		{
			name:   "non numeric explicit total is skipped",
			rec:    Record{"totalIncTax": "n/a", "costLines": lines},
			total:  60,
			source: TotalSourceCostLines,
		},
		{
			name:   "nested cost lines",
			rec:    Record{"details": map[string]interface{}{"header": map[string]interface{}{"costLines": lines}}},
			total:  60,
			source: TotalSourceCostLines,
		},
		{
			name:   "nothing usable",
			rec:    Record{},
			total:  0,
			source: TotalSourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := Order(tt.rec).Totals
			assert.InDelta(t, tt.total, totals.Total, 1e-9)
			assert.Equal(t, tt.source, totals.TotalSource)
		})
	}

	breakdown := Order(Record{"costLines": lines}).Totals
	assert.Equal(t, 50.0, breakdown.Subtotal)
	assert.Equal(t, 7.5, breakdown.Shipping)
	assert.Len(t, breakdown.CostLines, 4)
	assert.Equal(t, CategoryOther, breakdown.CostLines[2].Category)
	assert.Equal(t, 0.0, breakdown.CostLines[3].Amount)
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "awaiting_fulfillment", OrderStatus(11))
	assert.Equal(t, "awaiting_fulfillment", OrderStatus("Awaiting Fulfillment"))
	assert.Equal(t, "completed", OrderStatus("10"))
	assert.Equal(t, DefaultOrderStatus, OrderStatus(99))
	assert.Equal(t, DefaultOrderStatus, OrderStatus(nil))

	assert.Equal(t, "unpaid", InvoiceStatus(0))
	assert.Equal(t, "paid", InvoiceStatus(float64(1)))
	assert.Equal(t, "overdue", InvoiceStatus(2))
	assert.Equal(t, "refunded", InvoiceStatus("3"))
	assert.Equal(t, DefaultInvoiceStatus, InvoiceStatus(42))
	assert.Equal(t, DefaultInvoiceStatus, InvoiceStatus("mystery"))
	assert.Equal(t, DefaultInvoiceStatus, InvoiceStatus(1.5))

	assert.Equal(t, "in_process", QuoteStatus(2))
	assert.Equal(t, "expired", QuoteStatus("Expired"))
	assert.Equal(t, DefaultQuoteStatus, QuoteStatus(1))
}

func TestOrder(t *testing.T) {
	rec := Record{
		"orderId":     "1001",
		"bcOrderId":   "BC-1001",
		"status":      "Shipped",
		"firstName":   "Grace",
		"lastName":    "Hopper",
		"companyName": "Acme",
		"poNumber":    "PO-7",
		"createdAt":   float64(1710504000),
		"updatedAt":   "2024-03-16T08:30:00Z",
		"totalIncTax": 250.456,
		"money":       map[string]interface{}{"currency": "USD", "value": "250.46"},
		"products":    []interface{}{map[string]interface{}{"id": 1}, map[string]interface{}{"id": 2}},
		"extraInt1":   0,
	}

	order := Order(rec)
	assert.Equal(t, "1001", order.ID)
	assert.Equal(t, "BC-1001", order.OrderNumber)
	assert.Equal(t, "Shipped", order.RawStatus)
	assert.Equal(t, "shipped", order.Status)
	assert.Equal(t, "Grace Hopper", order.CustomerName)
	assert.Equal(t, "Acme", order.CompanyName)
	assert.Equal(t, "PO-7", order.PONumber)
	require.NotNil(t, order.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), *order.CreatedAt)
	require.NotNil(t, order.UpdatedAt)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, 2, order.ItemCount)
	assert.Equal(t, 250.46, order.Totals.Total)
	assert.True(t, order.HasCustomFields)
}

func TestOrderDegradesOnEmptyRecord(t *testing.T) {
	assert.NotPanics(t, func() {
		order := Order(nil)
		assert.Equal(t, DefaultOrderStatus, order.Status)
		assert.Equal(t, NotAvailable, order.CustomerName)
		assert.Nil(t, order.CreatedAt)
		assert.Equal(t, 0.0, order.Totals.Total)
		assert.False(t, order.HasCustomFields)
		assert.NotNil(t, order.CustomFields)
	})
}

func TestInvoice(t *testing.T) {
	rec := Record{
		"id":              "inv-1",
		"invoiceNumber":   "INV-0001",
		"orderNumber":     "1001",
		"status":          2,
		"dueDate":         "2024-03-01",
		"openBalance":     map[string]interface{}{"code": "EUR", "value": "80.00"},
		"originalBalance": map[string]interface{}{"code": "EUR", "value": "120.00"},
		"details": map[string]interface{}{
			"header": map[string]interface{}{
				"billingAddress": map[string]interface{}{"firstName": "Ada", "lastName": "L"},
			},
		},
	}

	invoice := Invoice(rec)
	assert.Equal(t, "inv-1", invoice.ID)
	assert.Equal(t, "INV-0001", invoice.InvoiceNumber)
	assert.Equal(t, "overdue", invoice.Status)
	assert.Equal(t, 80.0, invoice.OpenBalance)
	assert.Equal(t, 120.0, invoice.OriginalBalance)
	assert.Equal(t, 120.0, invoice.Totals.Total)
	assert.Equal(t, TotalSourceMoney, invoice.Totals.TotalSource)
	assert.Equal(t, "EUR", invoice.Currency)
	assert.Equal(t, "Ada L", invoice.CustomerName)
	require.NotNil(t, invoice.DueDate)

	empty := Invoice(Record{})
	assert.Equal(t, DefaultInvoiceStatus, empty.Status)
	assert.Equal(t, 0.0, empty.OpenBalance)
	assert.Nil(t, empty.DueDate)
}

func TestAddress(t *testing.T) {
	address := Address(Record{
		"addressId":         7,
		"firstName":         "Linus",
		"lastName":          "",
		"address1":          "1 Main St",
		"city":              "Springfield",
		"stateCode":         "IL",
		"postalCode":        "62701",
		"country":           "United States",
		"countryCode":       "US",
		"isBilling":         1,
		"isShipping":        "0",
		"isDefaultShipping": "true",
	})

	assert.Equal(t, "7", address.ID)
	assert.Equal(t, "Linus", address.FullName)
	assert.Equal(t, "1 Main St", address.Line1)
	assert.Equal(t, "IL", address.State)
	assert.Equal(t, "62701", address.Zip)
	assert.Equal(t, "United States", address.Country)
	assert.True(t, address.IsBilling)
	assert.False(t, address.IsShipping)
	assert.True(t, address.IsDefaultShipping)
	assert.False(t, address.IsDefaultBilling)

	assert.Equal(t, NotAvailable, Address(Record{}).FullName)
}

func TestQuote(t *testing.T) {
	quote := Quote(Record{
		"id":          "q1",
		"quoteNumber": "Q-100",
		"quoteTitle":  "Spring restock",
		"status":      4,
		"contactInfo": map[string]interface{}{"name": "Buyer One", "email": "buyer@example.com"},
		"companyInfo": map[string]interface{}{"companyName": "Acme"},
		"expiredAt":   float64(1712000000000),
		"totalAmount": money("300"),
		"currency":    map[string]interface{}{"currencyCode": "USD"},
		"productsList": map[string]interface{}{
			"edges": []interface{}{map[string]interface{}{"node": map[string]interface{}{"id": "p"}}},
		},
	})

	assert.Equal(t, "Q-100", quote.QuoteNumber)
	assert.Equal(t, "ordered", quote.Status)
	assert.Equal(t, "Buyer One", quote.ContactName)
	assert.Equal(t, "buyer@example.com", quote.ContactEmail)
	assert.Equal(t, "Acme", quote.CompanyName)
	assert.Equal(t, "USD", quote.Currency)
	assert.Equal(t, 300.0, quote.Totals.Total)
	assert.Equal(t, 1, quote.ItemCount)
	require.NotNil(t, quote.ExpiresAt)
	assert.Equal(t, int64(1712000000000), quote.ExpiresAt.UnixMilli())

	assert.Equal(t, NotAvailable, Quote(Record{}).ContactName)
}
