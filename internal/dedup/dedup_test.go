package dedup

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/fingerprint"
	"github.com/dvloznov/statement-insights/internal/normalize"
	"github.com/shopspring/decimal"
)

func hashed(desc, amount string) domain.Transaction {
	tx := domain.Transaction{
		ActivityDescription: desc,
		TransactionDate:     domain.Date(civil.Date{Year: 2024, Month: 4, Day: 1}),
		AmountSpent:         domain.Decimal(decimal.RequireFromString(amount)),
	}
	tx.Fingerprint = fingerprint.Compute(tx)
	return tx
}

func TestPartition(t *testing.T) {
	netflix := hashed("NETFLIX", "15.49")
	spotify := hashed("SPOTIFY", "9.99")
	uber := hashed("UBER", "23.10")

	tests := []struct {
		name        string
		engine      Engine
		batch       []domain.Transaction
		corpus      *Corpus
		wantInsert  []string
		wantSkipped int
	}{
		{
			name:       "empty corpus keeps all",
			engine:     Engine{WithinBatch: true},
			batch:      []domain.Transaction{netflix, spotify},
			corpus:     NewCorpus(),
			wantInsert: []string{"NETFLIX", "SPOTIFY"},
		},
		{
			name:        "skips corpus members",
			engine:      Engine{WithinBatch: true},
			batch:       []domain.Transaction{netflix, spotify, uber},
			corpus:      NewCorpus(spotify.Fingerprint),
			wantInsert:  []string{"NETFLIX", "UBER"},
			wantSkipped: 1,
		},
		{
			name:        "within batch duplicates skipped",
			engine:      Engine{WithinBatch: true},
			batch:       []domain.Transaction{netflix, netflix, uber},
			corpus:      NewCorpus(),
			wantInsert:  []string{"NETFLIX", "UBER"},
			wantSkipped: 1,
		},
		{
			name:       "within batch duplicates kept when disabled",
			engine:     Engine{},
			batch:      []domain.Transaction{netflix, netflix},
			corpus:     NewCorpus(),
			wantInsert: []string{"NETFLIX", "NETFLIX"},
		},
		{
			name:        "nil corpus",
			engine:      Engine{WithinBatch: true},
			batch:       []domain.Transaction{uber},
			wantInsert:  []string{"UBER"},
			wantSkipped: 0,
		},
		{
			name:        "all duplicates",
			engine:      Engine{WithinBatch: true},
			batch:       []domain.Transaction{netflix, spotify},
			corpus:      NewCorpus(netflix.Fingerprint, spotify.Fingerprint),
			wantInsert:  []string{},
			wantSkipped: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.corpus.Len()
			got := tt.engine.Partition(tt.batch, tt.corpus)

			if len(got.ToInsert) != len(tt.wantInsert) {
				t.Fatalf("len(ToInsert) = %d, want %d", len(got.ToInsert), len(tt.wantInsert))
			}
			for i, want := range tt.wantInsert {
				if got.ToInsert[i].ActivityDescription != want {
					t.Errorf("ToInsert[%d] = %q, want %q", i, got.ToInsert[i].ActivityDescription, want)
				}
			}
			if got.SkippedCount != tt.wantSkipped || len(got.Skipped) != tt.wantSkipped {
				t.Errorf("SkippedCount = %d (len %d), want %d", got.SkippedCount, len(got.Skipped), tt.wantSkipped)
			}
			if len(got.ToInsert)+got.SkippedCount != len(tt.batch) {
				t.Errorf("partition lost records: %d + %d != %d", len(got.ToInsert), got.SkippedCount, len(tt.batch))
			}
			if tt.corpus.Len() != before {
				t.Errorf("corpus size changed from %d to %d", before, tt.corpus.Len())
			}
		})
	}
}

func TestCorpusFromTransactions(t *testing.T) {
	n := normalize.New(normalize.FixedYear(2024))
	stored := hashed("NETFLIX", "15.49")
	legacy := stored
	legacy.Fingerprint = ""
	legacy.ActivityDescription = "  netflix "

	c := CorpusFromTransactions([]domain.Transaction{legacy}, n)

	if !c.Contains(stored.Fingerprint) {
		t.Errorf("corpus %v does not contain re-derived fingerprint %q", c.Fingerprints(), stored.Fingerprint)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCorpusFingerprintsSorted(t *testing.T) {
	c := NewCorpus("b", "a", "c", "a")
	got := c.Fingerprints()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Fingerprints() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fingerprints()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
