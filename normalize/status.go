package normalize

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultOrderStatus   = "pending"
	DefaultInvoiceStatus = "unpaid"
	DefaultQuoteStatus   = "new"
)

var orderStatuses = statusTable{
	codes: map[int]string{
		0:  "incomplete",
		1:  "pending",
		2:  "shipped",
		3:  "partially_shipped",
		4:  "refunded",
		5:  "cancelled",
		6:  "declined",
		7:  "awaiting_payment",
		8:  "awaiting_pickup",
		9:  "awaiting_shipment",
		10: "completed",
		11: "awaiting_fulfillment",
		12: "manual_verification_required",
		13: "disputed",
		14: "partially_refunded",
	},
	aliases: map[string]string{
		"canceled": "cancelled",
	},
	fallback: DefaultOrderStatus,
}

var invoiceStatuses = statusTable{
	codes: map[int]string{
		0: "unpaid",
		1: "paid",
		2: "overdue",
		3: "refunded",
	},
	aliases: map[string]string{
		"open":           "unpaid",
		"partially_paid": "unpaid",
		"closed":         "paid",
	},
	fallback: DefaultInvoiceStatus,
}

var quoteStatuses = statusTable{
	codes: map[int]string{
		0: "new",
		2: "in_process",
		3: "updated_by_customer",
		4: "ordered",
		5: "expired",
	},
	aliases: map[string]string{
		"open":       "new",
		"in_process": "in_process",
		"processing": "in_process",
	},
	fallback: DefaultQuoteStatus,
}

type statusTable struct {
	codes    map[int]string
	aliases  map[string]string
	fallback string
}

// label maps a numeric code or a free-form label to the canonical lowercase
// label. Unknown codes and labels give the table's fallback.
func (st statusTable) label(raw interface{}) string {
	if s, ok := raw.(string); ok {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return st.labelFromString(s)
		}
	}

	code, ok := scalar(raw)
	if !ok || code != math.Trunc(code) {
		return st.fallback
	}

	if label, ok := st.codes[int(code)]; ok {
		return label
	}

	return st.fallback
}

func (st statusTable) labelFromString(s string) string {
	canonical := canonicalLabel(s)
	if canonical == "" {
		return st.fallback
	}

	if alias, ok := st.aliases[canonical]; ok {
		return alias
	}

	for _, label := range st.codes {
		if label == canonical {
			return label
		}
	}

	return st.fallback
}

// canonicalLabel lower-cases and joins words with underscores:
// "Awaiting Fulfillment" and "awaiting-fulfillment" both become
// "awaiting_fulfillment".
func canonicalLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

func OrderStatus(raw interface{}) string {
	return orderStatuses.label(raw)
}

func InvoiceStatus(raw interface{}) string {
	return invoiceStatuses.label(raw)
}

func QuoteStatus(raw interface{}) string {
	return quoteStatuses.label(raw)
}
