package normalize

import (
	"strings"
)

const (
	CategorySubtotal = "subtotal"
	CategoryTax      = "tax"
	CategoryShipping = "shipping"
	CategoryOther    = "other"
)

const (
	TotalSourceField     = "total_field"
	TotalSourceMoney     = "money"
	TotalSourceCostLines = "cost_lines"
	TotalSourceNone      = "none"
)

var costLinePaths = []string{"costLines", "details.header.costLines", "header.costLines"}

type CostLine struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
}

// Totals is the canonical money block shared by orders, invoices and quotes.
type Totals struct {
	Subtotal    float64    `json:"subtotal"`
	Tax         float64    `json:"tax"`
	Shipping    float64    `json:"shipping"`
	Total       float64    `json:"total"`
	TotalSource string     `json:"totalSource"`
	CostLines   []CostLine `json:"costLines,omitempty"`
}

type totalFields struct {
	explicit []string
	money    []string
	subtotal []string
	tax      []string
	shipping []string
}

// CostLines reads the cost-line list from any of its known locations.
func CostLines(rec Record) []CostLine {
	nodes := Nodes(First(rec, costLinePaths...))
	lines := make([]CostLine, 0, len(nodes))

	for _, node := range nodes {
		description := Str(First(node, "description", "name", "label"))
		lines = append(lines, CostLine{
			Description: description,
			Category:    costCategory(description),
			Amount:      round2(Amount(First(node, "amount", "value", "price"))),
		})
	}

	return lines
}

func costCategory(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "subtotal"):
		return CategorySubtotal
	case strings.Contains(d, "tax"):
		return CategoryTax
	case strings.Contains(d, "freight"), strings.Contains(d, "shipping"):
		return CategoryShipping
	default:
		return CategoryOther
	}
}

// resolveTotals applies the monetary precedence: an explicit numeric total
// field, then a money object, then the sum of all cost lines.
func resolveTotals(rec Record, fields totalFields) Totals {
	lines := CostLines(rec)

	var totals Totals
	var lineSum float64
	for _, line := range lines {
		lineSum += line.Amount
		switch line.Category {
		case CategorySubtotal:
			totals.Subtotal += line.Amount
		case CategoryTax:
			totals.Tax += line.Amount
		case CategoryShipping:
			totals.Shipping += line.Amount
		}
	}

	totals.Subtotal = pickAmount(rec, fields.subtotal, totals.Subtotal)
	totals.Tax = pickAmount(rec, fields.tax, totals.Tax)
	totals.Shipping = pickAmount(rec, fields.shipping, totals.Shipping)
	if len(lines) > 0 {
		totals.CostLines = lines
	}

	switch {
	case explicitTotal(rec, fields.explicit, &totals.Total):
		totals.TotalSource = TotalSourceField
	case moneyTotal(rec, fields.money, &totals.Total):
		totals.TotalSource = TotalSourceMoney
	case len(lines) > 0:
		totals.Total = lineSum
		totals.TotalSource = TotalSourceCostLines
	default:
		totals.TotalSource = TotalSourceNone
	}

	totals.Subtotal = round2(totals.Subtotal)
	totals.Tax = round2(totals.Tax)
	totals.Shipping = round2(totals.Shipping)
	totals.Total = round2(totals.Total)

	return totals
}

func explicitTotal(rec Record, paths []string, out *float64) bool {
	for _, path := range paths {
		if v, ok := scalar(Lookup(rec, path)); ok {
			*out = v
			return true
		}
	}
	return false
}

func moneyTotal(rec Record, paths []string, out *float64) bool {
	for _, path := range paths {
		if v, ok := Float(Lookup(rec, path)); ok {
			*out = v
			return true
		}
	}
	return false
}

func pickAmount(rec Record, paths []string, fallback float64) float64 {
	for _, path := range paths {
		if v, ok := Float(Lookup(rec, path)); ok {
			return v
		}
	}
	return fallback
}

// Currency reads the currency code from the flat field or from money objects.
func Currency(rec Record) string {
	return Str(First(rec,
		"currencyCode",
		"currency.currencyCode",
		"currency",
		"money.currency",
		"money.code",
		"originalBalance.code",
		"openBalance.code",
		"totalAmount.code",
	))
}
