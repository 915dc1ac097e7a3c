package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceDue(balance float64, due time.Time) FrontendInvoice {
	return FrontendInvoice{OpenBalance: balance, DueDate: &due}
}

func TestDeriveInvoiceStatus(t *testing.T) {
	today := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	laterToday := today.Add(23 * time.Hour)

	assert.Equal(t, StatusPaid, DeriveInvoiceStatus(0, &yesterday, today, time.UTC))
	assert.Equal(t, StatusPaid, DeriveInvoiceStatus(0.001, &yesterday, today, time.UTC))
	assert.Equal(t, StatusOverdue, DeriveInvoiceStatus(10, &yesterday, today, time.UTC))
	assert.Equal(t, StatusUnpaid, DeriveInvoiceStatus(10, &today, today, time.UTC))
	assert.Equal(t, StatusUnpaid, DeriveInvoiceStatus(10, &laterToday, today, time.UTC))
	assert.Equal(t, StatusUnpaid, DeriveInvoiceStatus(10, nil, today, time.UTC))
}

func TestAgingBucketBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 45, 0, 0, time.UTC)
	today := StartOfDay(now, time.UTC)

	invoices := []FrontendInvoice{
		invoiceDue(100, today.Add(9*time.Hour)),
		invoiceDue(30, today.AddDate(0, 0, -30)),
		invoiceDue(31, today.AddDate(0, 0, -31)),
		invoiceDue(60, today.AddDate(0, 0, -60)),
		invoiceDue(61, today.AddDate(0, 0, -61)),
		invoiceDue(90, today.AddDate(0, 0, -90)),
		invoiceDue(91, today.AddDate(0, 0, -91)),
		invoiceDue(0, today.AddDate(0, 0, -200)),
		invoiceDue(5, today.AddDate(0, 0, 10)),
	}

	summary := Aging(invoices, now, time.UTC)

	assert.Equal(t, today, summary.AsOf)
	assert.Equal(t, 30.0, summary.Buckets.Days1To30)
	assert.Equal(t, 91.0, summary.Buckets.Days31To60)
	assert.Equal(t, 151.0, summary.Buckets.Days61To90)
	assert.Equal(t, 91.0, summary.Buckets.Over90)
	assert.Equal(t, 363.0, summary.TotalOverdue)
	assert.Equal(t, 468.0, summary.TotalOpen)
	assert.Equal(t, 1, summary.PaidCount)
	assert.Equal(t, 2, summary.UnpaidCount)
	assert.Equal(t, 6, summary.OverdueCount)
}

func TestAgingDueTodayIsOpenButNotAged(t *testing.T) {
	now := time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)
	summary := Aging([]FrontendInvoice{invoiceDue(50, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))}, now, time.UTC)

	assert.Equal(t, 50.0, summary.TotalOpen)
	assert.Equal(t, 0.0, summary.TotalOverdue)
	assert.Equal(t, AgingBuckets{}, summary.Buckets)
	assert.Equal(t, 1, summary.UnpaidCount)
}

func TestAgingUsesConfiguredTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	due := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	// 01:00 UTC on the 11th is still the 10th in UTC-5.
	now := time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC)

	inUTC := Aging([]FrontendInvoice{invoiceDue(10, due)}, now, time.UTC)
	inZone := Aging([]FrontendInvoice{invoiceDue(10, due)}, now, loc)

	assert.Equal(t, 1, inUTC.OverdueCount)
	assert.Equal(t, 0, inZone.OverdueCount)
	assert.Equal(t, 1, inZone.UnpaidCount)
}

func TestAgingKeepsDateOnlyDueDatesWestOfUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	now := time.Date(2024, 1, 10, 15, 0, 0, 0, loc)
	dueToday := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	invoices := []FrontendInvoice{
		Invoice(Record{"id": 1, "dueDate": "2024-01-10", "openBalance": 50}),
		Invoice(Record{"id": 2, "dueDate": dueToday.Unix(), "openBalance": 20}),
		Invoice(Record{"id": 3, "dueDate": "2024-01-09", "openBalance": 7}),
	}

	classified := Classify(invoices, now, loc)
	require.Len(t, classified, 3)
	assert.Equal(t, StatusUnpaid, classified[0].DerivedStatus)
	assert.Equal(t, 0, classified[0].DaysOverdue)
	assert.Equal(t, StatusUnpaid, classified[1].DerivedStatus)
	assert.Equal(t, StatusOverdue, classified[2].DerivedStatus)
	assert.Equal(t, 1, classified[2].DaysOverdue)

	summary := Aging(invoices, now, loc)
	assert.Equal(t, 77.0, summary.TotalOpen)
	assert.Equal(t, 7.0, summary.TotalOverdue)
	assert.Equal(t, AgingBuckets{Days1To30: 7}, summary.Buckets)
	assert.Equal(t, 2, summary.UnpaidCount)
}

func TestDueDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	dateOnly := DueDay(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, loc), dateOnly)

	instant := DueDay(time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, loc), instant)
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC)
	classified := Classify([]FrontendInvoice{
		invoiceDue(10, now.AddDate(0, 0, -45)),
		invoiceDue(0, now.AddDate(0, 0, -45)),
	}, now, nil)

	require.Len(t, classified, 2)
	assert.Equal(t, StatusOverdue, classified[0].DerivedStatus)
	assert.Equal(t, 45, classified[0].DaysOverdue)
	assert.Equal(t, StatusPaid, classified[1].DerivedStatus)
	assert.Equal(t, 0, classified[1].DaysOverdue)
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	before := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	after := time.Date(2024, 3, 11, 0, 30, 0, 0, loc)

	assert.Equal(t, 2, DaysBetween(before, after, loc))
}

func TestCredit(t *testing.T) {
	derived := Credit(Record{"creditEnabled": true, "creditLimit": "500", "creditCurrency": "USD"}, 200)
	assert.True(t, derived.Enabled)
	assert.Equal(t, 500.0, derived.Limit)
	assert.Equal(t, 300.0, derived.Available)
	assert.Equal(t, "USD", derived.Currency)
	assert.False(t, derived.OverLimit)

	upstream := Credit(Record{"creditEnabled": 1, "limit": money(100), "availableCredit": "25"}, 150)
	assert.Equal(t, 25.0, upstream.Available)
	assert.True(t, upstream.OverLimit)

	floored := Credit(Record{"creditLimit": 100}, 150)
	assert.False(t, floored.Enabled)
	assert.Equal(t, 0.0, floored.Available)

	empty := Credit(nil, 0)
	assert.Equal(t, CreditSummary{}, empty)
}
