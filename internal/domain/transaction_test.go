package domain

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func TestTransactionEqual(t *testing.T) {
	base := Transaction{
		ActivityDescription: "NETFLIX",
		TransactionDate:     Date(civil.Date{Year: 2024, Month: 1, Day: 15}),
		AmountSpent:         Decimal(decimal.RequireFromString("15.49")),
		Calendar:            &Calendar{Year: 2024, Month: 1, Day: 15, MonthName: "January", DayOfWeek: "Monday"},
	}

	tests := []struct {
		name  string
		other Transaction
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{
			name: "same amount different representation",
			other: func() Transaction {
				o := base
				o.AmountSpent = Decimal(decimal.RequireFromString("15.490"))
				return o
			}(),
			want: true,
		},
		{
			name: "different amount",
			other: func() Transaction {
				o := base
				o.AmountSpent = Decimal(decimal.RequireFromString("15.50"))
				return o
			}(),
		},
		{
			name: "absent amount",
			other: func() Transaction {
				o := base
				o.AmountSpent = decimal.NullDecimal{}
				return o
			}(),
		},
		{
			name: "absent date",
			other: func() Transaction {
				o := base
				o.TransactionDate = nil
				o.Calendar = nil
				return o
			}(),
		},
		{
			name: "different date pointer same value",
			other: func() Transaction {
				o := base
				o.TransactionDate = Date(civil.Date{Year: 2024, Month: 1, Day: 15})
				return o
			}(),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawTransactionLookup(t *testing.T) {
	var raw RawTransaction
	for _, name := range FieldNames {
		f := raw.Lookup(name)
		if f == nil {
			t.Fatalf("Lookup(%q) = nil", name)
		}
		*f = Text(name)
	}
	if raw.AmountSpent.Value != FieldAmountSpent || !raw.AmountSpent.Present {
		t.Errorf("AmountSpent = %+v", raw.AmountSpent)
	}
	if raw.Lookup("merchant") != nil {
		t.Error("Lookup(unknown) != nil")
	}
}

func TestTransactionAmount(t *testing.T) {
	var tx Transaction
	if !tx.Amount().IsZero() {
		t.Errorf("Amount() = %v, want 0", tx.Amount())
	}
	tx.AmountSpent = Decimal(decimal.NewFromInt(-20))
	if !tx.Amount().Equal(decimal.NewFromInt(-20)) {
		t.Errorf("Amount() = %v, want -20", tx.Amount())
	}
}
