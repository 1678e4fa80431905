package shared

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBuckets holds outstanding balances grouped by days past due.
type AgingBuckets struct {
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_30"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Days91Plus decimal.Decimal `json:"days_91_plus"`
}

// ZeroBuckets returns buckets initialised to explicit zeros so JSON
// output never carries null decimals.
func ZeroBuckets() AgingBuckets {
	return AgingBuckets{
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Days91Plus: decimal.Zero,
	}
}

// Add places amount into the bucket for how far past due the item is
// as of asOf. Items due today or later count as current.
func (b *AgingBuckets) Add(amount decimal.Decimal, dueDate, asOf time.Time) {
	days := DaysPastDue(dueDate, asOf)
	switch {
	case days <= 0:
		b.Current = b.Current.Add(amount)
	case days <= 30:
		b.Days1To30 = b.Days1To30.Add(amount)
	case days <= 60:
		b.Days31To60 = b.Days31To60.Add(amount)
	case days <= 90:
		b.Days61To90 = b.Days61To90.Add(amount)
	default:
		b.Days91Plus = b.Days91Plus.Add(amount)
	}
}

// Merge accumulates other into b.
func (b *AgingBuckets) Merge(other AgingBuckets) {
	b.Current = b.Current.Add(other.Current)
	b.Days1To30 = b.Days1To30.Add(other.Days1To30)
	b.Days31To60 = b.Days31To60.Add(other.Days31To60)
	b.Days61To90 = b.Days61To90.Add(other.Days61To90)
	b.Days91Plus = b.Days91Plus.Add(other.Days91Plus)
}

// Total sums every bucket.
func (b AgingBuckets) Total() decimal.Decimal {
	return b.Current.Add(b.Days1To30).Add(b.Days31To60).Add(b.Days61To90).Add(b.Days91Plus)
}

// DaysPastDue counts whole calendar days between the due date and
// asOf, truncated to midnight UTC so intraday times do not shift an
// item across a bucket boundary.
func DaysPastDue(dueDate, asOf time.Time) int {
	due := truncateDay(dueDate)
	at := truncateDay(asOf)
	return int(at.Sub(due).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
