package referral_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/swapcash/swapcash-api/internal/domain/referral"
)

func TestCommission(t *testing.T) {
	cases := []struct {
		name string
		paid string
		rate string
		want string
	}{
		{"ten percent", "5000", "10", "500"},
		{"five percent", "1000", "5", "50"},
		{"fractional result", "999", "10", "99.9"},
		{"fifteen percent", "15000", "15", "2250"},
		{"zero rate", "5000", "0", "0"},
		{"zero paid", "0", "10", "0"},
		{"negative paid", "-100", "10", "0"},
		{"negative rate", "5000", "-5", "0"},
		{"full rate", "2500", "100", "2500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			paid := decimal.RequireFromString(tc.paid)
			rate := decimal.RequireFromString(tc.rate)
			want := decimal.RequireFromString(tc.want)

			got := referral.Commission(paid, rate)
			if !got.Equal(want) {
				t.Fatalf("Commission(%s, %s) = %s, want %s", tc.paid, tc.rate, got, want)
			}
		})
	}
}
