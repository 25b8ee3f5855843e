package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`
	DocumentID    string `bigquery:"document_id"`
	RunID         string `bigquery:"run_id"`
	// Fingerprint is unique per user_id. An empty value marks a row stored
	// before the column existed.
	Fingerprint string `bigquery:"fingerprint"`

	CustomerID string `bigquery:"customer_id"`
	FirstName  string `bigquery:"f_name"`
	LastName   string `bigquery:"l_name"`
	Address    string `bigquery:"address"`

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"`
	PostingDate     bigquery.NullDate `bigquery:"posting_date"`

	ActivityDescription string `bigquery:"activity_description"`
	Category            string `bigquery:"category"`
	SubCategory         string `bigquery:"sub_category"`

	AmountSpent     *big.Rat `bigquery:"amount_spent"`     // NULLABLE NUMERIC
	CreditLimit     *big.Rat `bigquery:"credit_limit"`     // NULLABLE NUMERIC
	AvailableCredit *big.Rat `bigquery:"available_credit"` // NULLABLE NUMERIC

	IsSubscription bool `bigquery:"is_subscription"`

	Year      bigquery.NullInt64  `bigquery:"year"`
	Month     bigquery.NullInt64  `bigquery:"month"`
	Day       bigquery.NullInt64  `bigquery:"day"`
	MonthName bigquery.NullString `bigquery:"month_name"`
	DayOfWeek bigquery.NullString `bigquery:"day_of_week"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

func toTransactionRow(userID, runID, txID string, tx domain.Transaction, now time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:       txID,
		UserID:              userID,
		DocumentID:          tx.DocumentID,
		RunID:               runID,
		Fingerprint:         tx.Fingerprint,
		CustomerID:          tx.CustomerID,
		FirstName:           tx.FirstName,
		LastName:            tx.LastName,
		Address:             tx.Address,
		ActivityDescription: tx.ActivityDescription,
		Category:            tx.Category,
		SubCategory:         tx.SubCategory,
		AmountSpent:         toRat(tx.AmountSpent),
		CreditLimit:         toRat(tx.CreditLimit),
		AvailableCredit:     toRat(tx.AvailableCredit),
		IsSubscription:      tx.IsSubscription,
		CreatedTS:           now,
	}
	if tx.TransactionDate != nil {
		row.TransactionDate = bigquery.NullDate{Date: *tx.TransactionDate, Valid: true}
	}
	if tx.PostingDate != nil {
		row.PostingDate = bigquery.NullDate{Date: *tx.PostingDate, Valid: true}
	}
	if c := tx.Calendar; c != nil {
		row.Year = bigquery.NullInt64{Int64: int64(c.Year), Valid: true}
		row.Month = bigquery.NullInt64{Int64: int64(c.Month), Valid: true}
		row.Day = bigquery.NullInt64{Int64: int64(c.Day), Valid: true}
		row.MonthName = bigquery.NullString{StringVal: c.MonthName, Valid: true}
		row.DayOfWeek = bigquery.NullString{StringVal: c.DayOfWeek, Valid: true}
	}
	return row
}

func (row *TransactionRow) toDomain() domain.Transaction {
	tx := domain.Transaction{
		CustomerID:          row.CustomerID,
		FirstName:           row.FirstName,
		LastName:            row.LastName,
		Address:             row.Address,
		ActivityDescription: row.ActivityDescription,
		Category:            row.Category,
		SubCategory:         row.SubCategory,
		AmountSpent:         fromRat(row.AmountSpent),
		CreditLimit:         fromRat(row.CreditLimit),
		AvailableCredit:     fromRat(row.AvailableCredit),
		IsSubscription:      row.IsSubscription,
		Fingerprint:         row.Fingerprint,
		DocumentID:          row.DocumentID,
	}
	if row.TransactionDate.Valid {
		tx.TransactionDate = domain.Date(row.TransactionDate.Date)
	}
	if row.PostingDate.Valid {
		tx.PostingDate = domain.Date(row.PostingDate.Date)
	}
	if tx.TransactionDate != nil {
		d := *tx.TransactionDate
		tx.Calendar = &domain.Calendar{
			Year:      d.Year,
			Month:     int(d.Month),
			Day:       d.Day,
			MonthName: row.MonthName.StringVal,
			DayOfWeek: row.DayOfWeek.StringVal,
		}
		if !row.MonthName.Valid {
			tx.Calendar.MonthName = d.Month.String()
		}
		if !row.DayOfWeek.Valid {
			tx.Calendar.DayOfWeek = d.In(time.UTC).Weekday().String()
		}
	}
	return tx
}

func toRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}

// fromRat converts a NUMERIC value, which carries at most 9 fractional digits.
func fromRat(r *big.Rat) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
