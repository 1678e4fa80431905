package shared

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAgingBucketBoundaries(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 23, 59, 0, 0, time.UTC)
	amount := decimal.NewFromInt(10)

	cases := []struct {
		name string
		due  time.Time
		pick func(AgingBuckets) decimal.Decimal
	}{
		{"due in the future", asOf.AddDate(0, 0, 5), func(b AgingBuckets) decimal.Decimal { return b.Current }},
		{"due today", time.Date(2026, 6, 30, 8, 0, 0, 0, time.UTC), func(b AgingBuckets) decimal.Decimal { return b.Current }},
		{"one day overdue", asOf.AddDate(0, 0, -1), func(b AgingBuckets) decimal.Decimal { return b.Days1To30 }},
		{"thirty days overdue", asOf.AddDate(0, 0, -30), func(b AgingBuckets) decimal.Decimal { return b.Days1To30 }},
		{"thirty one days overdue", asOf.AddDate(0, 0, -31), func(b AgingBuckets) decimal.Decimal { return b.Days31To60 }},
		{"sixty one days overdue", asOf.AddDate(0, 0, -61), func(b AgingBuckets) decimal.Decimal { return b.Days61To90 }},
		{"ninety one days overdue", asOf.AddDate(0, 0, -91), func(b AgingBuckets) decimal.Decimal { return b.Days91Plus }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ZeroBuckets()
			b.Add(amount, tc.due, asOf)
			require.True(t, tc.pick(b).Equal(amount), "amount landed in the wrong bucket")
			require.True(t, b.Total().Equal(amount))
		})
	}
}

func TestDaysPastDueIgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC)
	asOf := time.Date(2026, 6, 2, 1, 0, 0, 0, time.UTC)
	require.Equal(t, 1, DaysPastDue(due, asOf))
}

func TestBucketsMerge(t *testing.T) {
	a := ZeroBuckets()
	a.Current = decimal.NewFromInt(5)
	b := ZeroBuckets()
	b.Current = decimal.NewFromInt(7)
	b.Days91Plus = decimal.NewFromInt(3)

	a.Merge(b)
	require.True(t, a.Current.Equal(decimal.NewFromInt(12)))
	require.True(t, a.Total().Equal(decimal.NewFromInt(15)))
}
