package bigquery

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/shopspring/decimal"
)

func TestTransactionRowRoundTrip(t *testing.T) {
	date := civil.Date{Year: 2024, Month: time.March, Day: 5}
	tx := domain.Transaction{
		CustomerID:          "C1",
		ActivityDescription: "Netflix",
		Category:            "Entertainment",
		SubCategory:         "Streaming",
		TransactionDate:     domain.Date(date),
		AmountSpent:         domain.Decimal(decimal.RequireFromString("15.99")),
		AvailableCredit:     domain.Decimal(decimal.RequireFromString("984.01")),
		IsSubscription:      true,
		Calendar:            &domain.Calendar{Year: 2024, Month: 3, Day: 5, MonthName: "March", DayOfWeek: "Tuesday"},
		Fingerprint:         "fp",
		DocumentID:          "doc-1",
	}

	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	row := toTransactionRow("u1", "run-1", "tx-1", tx, now)

	if row.UserID != "u1" || row.RunID != "run-1" || row.TransactionID != "tx-1" {
		t.Errorf("ids = %q %q %q", row.UserID, row.RunID, row.TransactionID)
	}
	if row.PostingDate.Valid {
		t.Error("PostingDate should be NULL")
	}
	if row.CreditLimit != nil {
		t.Error("CreditLimit should be NULL")
	}
	if !row.Year.Valid || row.Year.Int64 != 2024 {
		t.Errorf("Year = %+v", row.Year)
	}

	got := row.toDomain()
	if !got.Equal(tx) {
		t.Errorf("toDomain() = %+v, want %+v", got, tx)
	}
}

func TestToDomain_DerivesMissingCalendarNames(t *testing.T) {
	row := &TransactionRow{}
	row.TransactionDate.Date = civil.Date{Year: 2024, Month: time.January, Day: 7}
	row.TransactionDate.Valid = true

	got := row.toDomain()
	if got.Calendar == nil {
		t.Fatal("Calendar = nil")
	}
	if got.Calendar.MonthName != "January" || got.Calendar.DayOfWeek != "Sunday" {
		t.Errorf("Calendar = %+v", got.Calendar)
	}
}

func TestFromRat(t *testing.T) {
	tests := []struct {
		name string
		in   *big.Rat
		want string
	}{
		{"nil", nil, ""},
		{"integer", big.NewRat(42, 1), "42"},
		{"fraction", big.NewRat(-1599, 100), "-15.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromRat(tt.in)
			if tt.want == "" {
				if got.Valid {
					t.Errorf("fromRat() = %v, want NULL", got.Decimal)
				}
				return
			}
			if !got.Valid || !got.Decimal.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("fromRat() = %v, want %s", got.Decimal, tt.want)
			}
		})
	}
}

func TestListQuery(t *testing.T) {
	r := NewRepositoryWithClient(nil, "proj", "ds")
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, params := r.listQuery("u1", store.ListFilter{From: &from, Limit: 10})

	if !strings.Contains(sql, "`proj.ds.transactions`") {
		t.Errorf("query does not reference table: %s", sql)
	}
	if !strings.Contains(sql, "transaction_date >= @start_date") || strings.Contains(sql, "@end_date") {
		t.Errorf("unexpected filters: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT @limit") {
		t.Errorf("missing limit: %s", sql)
	}
	if len(params) != 3 {
		t.Fatalf("len(params) = %d, want 3", len(params))
	}
	if params[1].Value != "2024-01-01" {
		t.Errorf("start_date = %v", params[1].Value)
	}
}

func TestTruncateError(t *testing.T) {
	long := strings.Repeat("x", maxErrorLength+10)
	if got := truncateError(long); len(got) != maxErrorLength {
		t.Errorf("len(truncateError()) = %d, want %d", len(got), maxErrorLength)
	}
	if got := truncateError("short"); got != "short" {
		t.Errorf("truncateError(short) = %q", got)
	}
}

func TestDocumentRowConversion(t *testing.T) {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	rec := store.DocumentRecord{DocumentID: "d1", UserID: "u1", Name: "march.pdf", Records: 4, Checksum: "abc"}

	row := toDocumentRow(rec, now)
	if !row.UploadTS.Equal(now) {
		t.Errorf("UploadTS = %v, want %v", row.UploadTS, now)
	}
	back := row.toRecord()
	if back.Name != "march.pdf" || back.Records != 4 || back.Checksum != "abc" {
		t.Errorf("toRecord() = %+v", back)
	}
}

func TestPendingMigrations(t *testing.T) {
	migs := []Migration{{Version: 3, Name: "c"}, {Version: 1, Name: "a"}, {Version: 2, Name: "b"}}
	got := PendingMigrations(migs, map[int]bool{2: true})
	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 3 {
		t.Errorf("PendingMigrations() = %+v", got)
	}
}

func TestExpand(t *testing.T) {
	r := NewRepositoryWithClient(nil, "p", "d")
	for _, m := range Migrations {
		sql := r.expand(m.SQL)
		if strings.Contains(sql, "{{") {
			t.Errorf("migration %d has unexpanded placeholder: %s", m.Version, sql)
		}
	}
}
