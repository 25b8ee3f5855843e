// Package normalize coerces extracted field bags into typed transactions.
// Nothing in this package returns an error: values that cannot be coerced
// become absent.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Normalizer converts raw records into normalized transactions.
type Normalizer struct {
	Years YearPolicy
}

// New returns a Normalizer resolving year-less dates with years.
// A nil policy uses the current year.
func New(years YearPolicy) *Normalizer {
	if years == nil {
		years = CurrentYear{}
	}
	return &Normalizer{Years: years}
}

// PolicyFromConfig maps the normalize configuration section to a YearPolicy.
func PolicyFromConfig(cfg config.NormalizeConfig) YearPolicy {
	if cfg.YearPolicy == config.YearPolicyFixed {
		return FixedYear(cfg.DefaultYear)
	}
	return CurrentYear{}
}

// Normalize converts every record. The output has the same length and order as raws.
func (n *Normalizer) Normalize(raws []domain.RawTransaction) []domain.Transaction {
	out := make([]domain.Transaction, len(raws))
	for i, raw := range raws {
		out[i] = n.NormalizeOne(raw)
	}
	return out
}

// NormalizeOne converts a single record.
func (n *Normalizer) NormalizeOne(raw domain.RawTransaction) domain.Transaction {
	tx := domain.Transaction{
		CustomerID:          text(raw.CustomerID),
		FirstName:           text(raw.FirstName),
		LastName:            text(raw.LastName),
		Address:             text(raw.Address),
		TransactionDate:     n.date(raw.TransactionDate),
		PostingDate:         n.date(raw.PostingDate),
		ActivityDescription: text(raw.ActivityDescription),
		Category:            text(raw.Category),
		SubCategory:         text(raw.SubCategory),
		AmountSpent:         amount(raw.AmountSpent),
		CreditLimit:         amount(raw.CreditLimit),
		AvailableCredit:     amount(raw.AvailableCredit),
		IsSubscription:      raw.IsSubscription.Present && ParseBool(raw.IsSubscription.Value),
	}
	tx.Calendar = Derive(tx.TransactionDate)
	return tx
}

// Derive returns the calendar fields of d, or nil when d is absent.
func Derive(d *civil.Date) *domain.Calendar {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &domain.Calendar{
		Year:      d.Year,
		Month:     int(d.Month),
		Day:       d.Day,
		MonthName: d.Month.String(),
		DayOfWeek: t.Weekday().String(),
	}
}

// Denormalize renders tx back into raw text fields using canonical formats,
// so that normalizing the result yields tx again (apart from Fingerprint and DocumentID).
func Denormalize(tx domain.Transaction) domain.RawTransaction {
	return domain.RawTransaction{
		CustomerID:          rawText(tx.CustomerID),
		FirstName:           rawText(tx.FirstName),
		LastName:            rawText(tx.LastName),
		Address:             rawText(tx.Address),
		TransactionDate:     rawDate(tx.TransactionDate),
		PostingDate:         rawDate(tx.PostingDate),
		ActivityDescription: rawText(tx.ActivityDescription),
		Category:            rawText(tx.Category),
		SubCategory:         rawText(tx.SubCategory),
		AmountSpent:         rawDecimal(tx.AmountSpent),
		CreditLimit:         rawDecimal(tx.CreditLimit),
		AvailableCredit:     rawDecimal(tx.AvailableCredit),
		IsSubscription:      domain.Text(strconv.FormatBool(tx.IsSubscription)),
	}
}

func (n *Normalizer) date(f domain.Field) *civil.Date {
	if !f.Present {
		return nil
	}
	return ParseDate(f.Value, n.Years)
}

func text(f domain.Field) string {
	if !f.Present {
		return ""
	}
	return strings.TrimSpace(f.Value)
}

func amount(f domain.Field) decimal.NullDecimal {
	if !f.Present {
		return decimal.NullDecimal{}
	}
	return ParseAmount(f.Value)
}

func rawText(s string) domain.Field {
	if s == "" {
		return domain.Field{}
	}
	return domain.Text(s)
}

func rawDate(d *civil.Date) domain.Field {
	if d == nil {
		return domain.Field{}
	}
	return domain.Text(d.String())
}

func rawDecimal(d decimal.NullDecimal) domain.Field {
	if !d.Valid {
		return domain.Field{}
	}
	return domain.Text(d.Decimal.String())
}
