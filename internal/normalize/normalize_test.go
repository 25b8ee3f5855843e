package normalize

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		years YearPolicy
		want  *civil.Date
	}{
		{name: "iso", input: "2024-01-15", want: &civil.Date{Year: 2024, Month: 1, Day: 15}},
		{name: "iso padded with spaces", input: "  2024-01-15 ", want: &civil.Date{Year: 2024, Month: 1, Day: 15}},
		{name: "us dashes", input: "01-15-2024", want: &civil.Date{Year: 2024, Month: 1, Day: 15}},
		{name: "us slashes", input: "1/5/2024", want: &civil.Date{Year: 2024, Month: 1, Day: 5}},
		{name: "two digit year", input: "03/07/24", want: &civil.Date{Year: 2024, Month: 3, Day: 7}},
		{name: "month name with year", input: "Jan 05 2024", want: &civil.Date{Year: 2024, Month: 1, Day: 5}},
		{name: "long month with comma", input: "March 3, 2023", want: &civil.Date{Year: 2023, Month: 3, Day: 3}},
		{name: "day first month name", input: "15 Feb 2024", want: &civil.Date{Year: 2024, Month: 2, Day: 15}},
		{name: "timestamp", input: "2024-06-30T10:00:00Z", want: &civil.Date{Year: 2024, Month: 6, Day: 30}},
		{name: "upper case month", input: "JAN 05 2024", want: &civil.Date{Year: 2024, Month: 1, Day: 5}},
		{name: "year-less fixed policy", input: "Jan 01", years: FixedYear(2025), want: &civil.Date{Year: 2025, Month: 1, Day: 1}},
		{name: "year-less numeric", input: "12/31", years: FixedYear(2023), want: &civil.Date{Year: 2023, Month: 12, Day: 31}},
		{name: "year-less leap day in leap year", input: "Feb 29", years: FixedYear(2024), want: &civil.Date{Year: 2024, Month: 2, Day: 29}},
		{name: "year-less leap day in common year", input: "Feb 29", years: FixedYear(2025)},
		{name: "year-less without policy", input: "Jan 01"},
		{name: "impossible day", input: "2024-02-30"},
		{name: "empty", input: ""},
		{name: "garbage", input: "not a date"},
		{name: "null literal", input: "null"},
		{name: "trailing text", input: "2024-01-15 pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input, tt.years)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestCurrentYear(t *testing.T) {
	policy := CurrentYear{Now: func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }}
	got := ParseDate("Mar 02", policy)
	if got == nil || *got != (civil.Date{Year: 2026, Month: 3, Day: 2}) {
		t.Errorf("ParseDate() = %v, want 2026-03-02", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{input: "15.49", want: "15.49", valid: true},
		{input: "-250.00", want: "-250", valid: true},
		{input: "0", want: "0", valid: true},
		{input: "$1,234.56", want: "1234.56", valid: true},
		{input: "-$20", want: "-20", valid: true},
		{input: " +7.5 ", want: "7.5", valid: true},
		{input: "1e2", want: "100", valid: true},
		{input: "99999999999999999999999999999.99", want: "99999999999999999999999999999.99", valid: true},
		{input: "1.500000000000", want: "1.5", valid: true},
		{input: "0e200000000", want: "0", valid: true},
		{input: "1e200000000"},
		{input: "1e30"},
		{input: "100000000000000000000000000000"},
		{input: "1e-20"},
		{input: "0.0000000001"},
		{input: ""},
		{input: "abc"},
		{input: "12.5.3"},
		{input: "1,23"},
		{input: "--5"},
		{input: "$"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("ParseAmount(%q).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			}
			if tt.valid && !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got.Decimal, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "t", "Y", "yes", " Yes "} {
		if !ParseBool(s) {
			t.Errorf("ParseBool(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"false", "0", "no", "n", "", "maybe", "2"} {
		if ParseBool(s) {
			t.Errorf("ParseBool(%q) = true, want false", s)
		}
	}
}

func TestNormalizeOne(t *testing.T) {
	n := New(FixedYear(2024))
	raw := domain.RawTransaction{
		FirstName:           domain.Text("  Jane "),
		TransactionDate:     domain.Text("01-15-2024"),
		PostingDate:         domain.Text("garbage"),
		ActivityDescription: domain.Text(" NETFLIX.COM "),
		Category:            domain.Text("Entertainment"),
		AmountSpent:         domain.Text("15.49"),
		CreditLimit:         domain.Text("n/a"),
		AvailableCredit:     domain.Text("984.51"),
		IsSubscription:      domain.Text("Yes"),
	}

	got := n.NormalizeOne(raw)

	if got.FirstName != "Jane" {
		t.Errorf("FirstName = %q, want %q", got.FirstName, "Jane")
	}
	if got.ActivityDescription != "NETFLIX.COM" {
		t.Errorf("ActivityDescription = %q", got.ActivityDescription)
	}
	if got.TransactionDate == nil || *got.TransactionDate != (civil.Date{Year: 2024, Month: 1, Day: 15}) {
		t.Errorf("TransactionDate = %v", got.TransactionDate)
	}
	if got.PostingDate != nil {
		t.Errorf("PostingDate = %v, want nil", got.PostingDate)
	}
	if got.CreditLimit.Valid {
		t.Errorf("CreditLimit = %v, want absent", got.CreditLimit)
	}
	if !got.IsSubscription {
		t.Error("IsSubscription = false, want true")
	}
	want := &domain.Calendar{Year: 2024, Month: 1, Day: 15, MonthName: "January", DayOfWeek: "Monday"}
	if got.Calendar == nil || *got.Calendar != *want {
		t.Errorf("Calendar = %+v, want %+v", got.Calendar, want)
	}
}

func TestNormalize_AbsentFields(t *testing.T) {
	n := New(FixedYear(2024))
	got := n.Normalize([]domain.RawTransaction{{}, {AmountSpent: domain.Text("")}})

	if len(got) != 2 {
		t.Fatalf("len(Normalize()) = %d, want 2", len(got))
	}
	for i, tx := range got {
		if tx.TransactionDate != nil || tx.Calendar != nil {
			t.Errorf("[%d] date/calendar present on empty record", i)
		}
		if tx.AmountSpent.Valid {
			t.Errorf("[%d] AmountSpent present, want absent", i)
		}
		if tx.IsSubscription {
			t.Errorf("[%d] IsSubscription = true, want false", i)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(FixedYear(2024))
	raws := []domain.RawTransaction{
		{
			CustomerID:          domain.Text("C-1"),
			TransactionDate:     domain.Text("Feb 03"),
			PostingDate:         domain.Text("02-05-2024"),
			ActivityDescription: domain.Text("AMAZON MKTPLACE"),
			SubCategory:         domain.Text("Online"),
			AmountSpent:         domain.Text("$1,020.10"),
			CreditLimit:         domain.Text("5000"),
			IsSubscription:      domain.Text("0"),
		},
		{AmountSpent: domain.Text("-45")},
		{},
	}

	for i, tx := range n.Normalize(raws) {
		again := n.NormalizeOne(Denormalize(tx))
		if !again.Equal(tx) {
			t.Errorf("[%d] Normalize(Denormalize(t)) = %+v, want %+v", i, again, tx)
		}
	}
}

func TestPolicyFromConfig(t *testing.T) {
	if got := PolicyFromConfig(config.NormalizeConfig{YearPolicy: config.YearPolicyFixed, DefaultYear: 2021}).Year(); got != 2021 {
		t.Errorf("fixed policy Year() = %d, want 2021", got)
	}
	if _, ok := PolicyFromConfig(config.NormalizeConfig{YearPolicy: config.YearPolicyCurrent}).(CurrentYear); !ok {
		t.Error("current policy is not CurrentYear")
	}
}
