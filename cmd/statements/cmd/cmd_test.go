package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/notionsync"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/shopspring/decimal"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		format      string
		expectError bool
	}{
		{"console", false},
		{"json", false},
		{"csv", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			format := tt.format
			err := validateOutputFormat(&format)(nil, nil)
			if tt.expectError && err == nil {
				t.Errorf("expected error for format %q", tt.format)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for format %q: %v", tt.format, err)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	if _, err := requireUser(&config.Config{}); !errors.Is(err, errNoUser) {
		t.Errorf("requireUser() error = %v, want errNoUser", err)
	}
	got, err := requireUser(&config.Config{UserID: "alice"})
	if err != nil || got != "alice" {
		t.Errorf("requireUser() = %q, %v", got, err)
	}
}

func testReport() *ingest.Report {
	return &ingest.Report{
		RunID:          "run-1",
		Inserted:       3,
		DuplicateCount: 2,
		Documents: []pipeline.DocumentReport{
			{DocumentID: "d1", Name: "march.pdf", Records: 5},
			{DocumentID: "d2", Name: "scan.pdf", Err: errors.New("model unavailable")},
		},
		SkippedDocuments: []string{"april.pdf"},
		Exported:         &notionsync.ExportResult{Created: 3},
	}
}

func TestWriteIngestReport(t *testing.T) {
	var buf bytes.Buffer
	writeIngestReport(&buf, testReport())
	out := buf.String()

	for _, want := range []string{"march.pdf", "model unavailable", "april.pdf", "already ingested", "Inserted: 3", "Duplicates: 2", "run-1", "3 created"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestIngestViewJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, toIngestView(testReport())); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}

	var got struct {
		Inserted  int `json:"inserted"`
		Documents []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %s: %v", buf.String(), err)
	}
	if got.Inserted != 3 || len(got.Documents) != 2 || got.Documents[1].Error != "model unavailable" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestWriteSummary(t *testing.T) {
	day := civil.Date{Year: 2024, Month: 3, Day: 4}
	txs := []domain.Transaction{
		{
			TransactionDate:     domain.Date(day),
			Calendar:            &domain.Calendar{Year: 2024, Month: 3, Day: 4, MonthName: "March", DayOfWeek: "Monday"},
			ActivityDescription: "GROCER",
			Category:            "Food",
			AmountSpent:         decimal.NewNullDecimal(decimal.RequireFromString("40")),
		},
	}

	var buf bytes.Buffer
	writeSummary(&buf, analytics.Summarize(txs, analytics.Filter{}))
	out := buf.String()

	for _, want := range []string{"Transactions:        1", "Total spending:      40.00", "Spending by category", "Food", "GROCER"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	writeDocuments(&buf, []store.DocumentRecord{{DocumentID: "d1", Name: "march.pdf", Records: 4}})
	if !strings.Contains(buf.String(), "d1") || !strings.Contains(buf.String(), "march.pdf") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestSchemaCommand_Memory(t *testing.T) {
	out, err := execute(t, "schema", "--backend", "memory")
	if err != nil {
		t.Fatalf("schema error = %v", err)
	}
	if !strings.Contains(out, "memory backend is up to date") {
		t.Errorf("output = %s", out)
	}
}

func TestSummaryCommand_RequiresUser(t *testing.T) {
	t.Setenv("STATEMENTS_USER_ID", "")
	_ = rootCmd.PersistentFlags().Set("user", "")
	_, err := execute(t, "summary", "--backend", "memory")
	if !errors.Is(err, errNoUser) {
		t.Errorf("summary error = %v, want errNoUser", err)
	}
}

func TestSummaryCommand_BadMonth(t *testing.T) {
	_, err := execute(t, "summary", "--backend", "memory", "--user", "alice", "--month", "Smarch")
	if err == nil || !strings.Contains(err.Error(), "invalid month") {
		t.Errorf("summary error = %v, want invalid month", err)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2024-01-01")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "statements 1.2.3") || !strings.Contains(out, "abc123") {
		t.Errorf("output = %s", out)
	}
}
