package normalize

import (
	"math"
	"time"
)

const (
	StatusPaid    = "paid"
	StatusUnpaid  = "unpaid"
	StatusOverdue = "overdue"
)

type AgingBuckets struct {
	Days1To30  float64 `json:"days1To30"`
	Days31To60 float64 `json:"days31To60"`
	Days61To90 float64 `json:"days61To90"`
	Over90     float64 `json:"over90"`
}

type AgingSummary struct {
	AsOf         time.Time    `json:"asOf"`
	TotalOpen    float64      `json:"totalOpen"`
	TotalOverdue float64      `json:"totalOverdue"`
	Buckets      AgingBuckets `json:"buckets"`
	PaidCount    int          `json:"paidCount"`
	UnpaidCount  int          `json:"unpaidCount"`
	OverdueCount int          `json:"overdueCount"`
}

type CreditSummary struct {
	Enabled   bool    `json:"enabled"`
	Limit     float64 `json:"limit"`
	Available float64 `json:"available"`
	Open      float64 `json:"open"`
	Currency  string  `json:"currency"`
	OverLimit bool    `json:"overLimit"`
}

// StartOfDay truncates t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DueDay is the calendar day a due date falls on in loc. Values at exactly
// midnight UTC come from date-only fields ("2024-01-10", whole-day epochs)
// and keep the date as written instead of shifting into the previous day
// west of UTC.
func DueDay(due time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	u := due.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc)
	}

	return StartOfDay(due, loc)
}

// DaysBetween counts calendar days from a to b in loc, ignoring the time of
// day and DST shifts.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()

	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	return int(math.Round(to.Sub(from).Hours() / 24))
}

// DeriveInvoiceStatus classifies by balance and due day. today must already
// be truncated to the start of its day in loc.
func DeriveInvoiceStatus(openBalance float64, dueDate *time.Time, today time.Time, loc *time.Location) string {
	if round2(openBalance) == 0 {
		return StatusPaid
	}

	if openBalance > 0 && dueDate != nil && DaysBetween(DueDay(*dueDate, loc), today, loc) > 0 {
		return StatusOverdue
	}

	return StatusUnpaid
}

// Classify fills DerivedStatus and DaysOverdue for each invoice.
func Classify(invoices []FrontendInvoice, now time.Time, loc *time.Location) []FrontendInvoice {
	today := StartOfDay(now, loc)

	out := make([]FrontendInvoice, len(invoices))
	for i, inv := range invoices {
		inv.DerivedStatus = DeriveInvoiceStatus(inv.OpenBalance, inv.DueDate, today, loc)
		inv.DaysOverdue = 0
		if inv.DerivedStatus == StatusOverdue {
			inv.DaysOverdue = DaysBetween(DueDay(*inv.DueDate, loc), today, loc)
		}
		out[i] = inv
	}

	return out
}

// Aging summarizes receivables as of the calendar day containing now in loc.
// Only overdue invoices land in buckets; paid ones contribute nothing.
func Aging(invoices []FrontendInvoice, now time.Time, loc *time.Location) AgingSummary {
	summary := AgingSummary{AsOf: StartOfDay(now, loc)}

	for _, inv := range Classify(invoices, now, loc) {
		switch inv.DerivedStatus {
		case StatusPaid:
			summary.PaidCount++
			continue
		case StatusUnpaid:
			summary.UnpaidCount++
		case StatusOverdue:
			summary.OverdueCount++
		}

		if inv.OpenBalance > 0 {
			summary.TotalOpen += inv.OpenBalance
		}

		if inv.DerivedStatus != StatusOverdue {
			continue
		}

		summary.TotalOverdue += inv.OpenBalance
		switch days := inv.DaysOverdue; {
		case days <= 30:
			summary.Buckets.Days1To30 += inv.OpenBalance
		case days <= 60:
			summary.Buckets.Days31To60 += inv.OpenBalance
		case days <= 90:
			summary.Buckets.Days61To90 += inv.OpenBalance
		default:
			summary.Buckets.Over90 += inv.OpenBalance
		}
	}

	summary.TotalOpen = round2(summary.TotalOpen)
	summary.TotalOverdue = round2(summary.TotalOverdue)
	summary.Buckets.Days1To30 = round2(summary.Buckets.Days1To30)
	summary.Buckets.Days31To60 = round2(summary.Buckets.Days31To60)
	summary.Buckets.Days61To90 = round2(summary.Buckets.Days61To90)
	summary.Buckets.Over90 = round2(summary.Buckets.Over90)

	return summary
}

// Credit combines the company credit record with the open receivables.
// Available credit comes from the record when present, otherwise it is the
// limit minus totalOpen, floored at zero.
func Credit(rec Record, totalOpen float64) CreditSummary {
	limit := Amount(First(rec, "creditLimit", "limit", "limitPurchases"))
	if limit < 0 {
		limit = 0
	}

	available, ok := Float(First(rec, "availableCredit", "available_credit"))
	if !ok {
		available = math.Max(limit-totalOpen, 0)
	}

	summary := CreditSummary{
		Enabled:   Bool(First(rec, "creditEnabled", "isEnabled", "enabled")),
		Limit:     round2(limit),
		Available: round2(available),
		Open:      round2(totalOpen),
		Currency:  Str(First(rec, "creditCurrency", "currency", "currencyCode")),
	}
	summary.OverLimit = summary.Limit > 0 && summary.Open > summary.Limit

	return summary
}
