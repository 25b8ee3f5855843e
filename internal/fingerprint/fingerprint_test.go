package fingerprint

import (
	"regexp"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

func tx(date *civil.Date, desc, amount string) domain.Transaction {
	t := domain.Transaction{TransactionDate: date, ActivityDescription: desc}
	if amount != "" {
		t.AmountSpent = domain.Decimal(decimal.RequireFromString(amount))
	}
	return t
}

func TestCanonical(t *testing.T) {
	jan15 := domain.Date(civil.Date{Year: 2024, Month: 1, Day: 15})

	tests := []struct {
		name string
		tx   domain.Transaction
		want string
	}{
		{name: "full", tx: tx(jan15, "NETFLIX.COM", "15.49"), want: "2024-01-15-netflix.com-15.49"},
		{name: "pads amount", tx: tx(jan15, "Coffee", "4.5"), want: "2024-01-15-coffee-4.50"},
		{name: "rounds amount", tx: tx(jan15, "Coffee", "4.505"), want: "2024-01-15-coffee-4.51"},
		{name: "negative", tx: tx(jan15, "PAYMENT", "-250"), want: "2024-01-15-payment--250.00"},
		{name: "trims description", tx: tx(jan15, "  Shell Oil ", "40"), want: "2024-01-15-shell oil-40.00"},
		{name: "absent date", tx: tx(nil, "X", "1"), want: "-x-1.00"},
		{name: "absent amount", tx: tx(jan15, "X", ""), want: "2024-01-15-x-"},
		{name: "all absent", tx: domain.Transaction{}, want: "--"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.tx); got != tt.want {
				t.Errorf("Canonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	jan15 := domain.Date(civil.Date{Year: 2024, Month: 1, Day: 15})

	a := Compute(tx(jan15, "NETFLIX.COM", "15.49"))
	if !hexPattern.MatchString(a) {
		t.Fatalf("Compute() = %q, want 32 lower-case hex chars", a)
	}

	if got := Compute(domain.Transaction{}); !hexPattern.MatchString(got) {
		t.Errorf("Compute(empty) = %q", got)
	}

	same := []domain.Transaction{
		tx(jan15, "netflix.com", "15.490"),
		tx(domain.Date(civil.Date{Year: 2024, Month: 1, Day: 15}), " Netflix.com ", "15.49"),
	}
	for i, other := range same {
		if got := Compute(other); got != a {
			t.Errorf("[%d] Compute() = %q, want %q", i, got, a)
		}
	}

	different := []domain.Transaction{
		tx(jan15, "NETFLIX.COM", "15.50"),
		tx(domain.Date(civil.Date{Year: 2024, Month: 1, Day: 16}), "NETFLIX.COM", "15.49"),
		tx(jan15, "NETFLIX", "15.49"),
		tx(nil, "NETFLIX.COM", "15.49"),
	}
	for i, other := range different {
		if got := Compute(other); got == a {
			t.Errorf("[%d] Compute() collided with %q", i, a)
		}
	}
}

func TestApply(t *testing.T) {
	txs := []domain.Transaction{tx(nil, "a", "1"), tx(nil, "b", "2")}
	Apply(txs)
	for i, got := range txs {
		if got.Fingerprint != Compute(got) {
			t.Errorf("[%d] Fingerprint = %q, want %q", i, got.Fingerprint, Compute(got))
		}
	}
}

func TestLegacyKey(t *testing.T) {
	if got := LegacyKey(domain.Transaction{}); got != "no_date-no_desc-no_amount" {
		t.Errorf("LegacyKey(empty) = %q", got)
	}
	jan15 := domain.Date(civil.Date{Year: 2024, Month: 1, Day: 15})
	if got := LegacyKey(tx(jan15, "Uber", "12.5")); got != "2024-01-15-Uber-12.5" {
		t.Errorf("LegacyKey() = %q", got)
	}
}
