package mongo

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// transactionDoc is the stored shape of a transaction. Dates are kept as
// UTC midnight so range filters work natively.
type transactionDoc struct {
	ID          string `bson:"_id"`
	UserID      string `bson:"user_id"`
	DocumentID  string `bson:"document_id,omitempty"`
	RunID       string `bson:"run_id,omitempty"`
	Fingerprint string `bson:"fingerprint"`

	CustomerID string `bson:"customer_id,omitempty"`
	FirstName  string `bson:"f_name,omitempty"`
	LastName   string `bson:"l_name,omitempty"`
	Address    string `bson:"address,omitempty"`

	TransactionDate *time.Time `bson:"transaction_date"`
	PostingDate     *time.Time `bson:"posting_date,omitempty"`

	ActivityDescription string `bson:"activity_description,omitempty"`
	Category            string `bson:"category,omitempty"`
	SubCategory         string `bson:"sub_category,omitempty"`

	AmountSpent     *primitive.Decimal128 `bson:"amount_spent,omitempty"`
	CreditLimit     *primitive.Decimal128 `bson:"credit_limit,omitempty"`
	AvailableCredit *primitive.Decimal128 `bson:"available_credit,omitempty"`

	IsSubscription bool `bson:"is_subscription"`

	Calendar *calendarDoc `bson:"calendar,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}

type calendarDoc struct {
	Year      int    `bson:"year"`
	Month     int    `bson:"month"`
	Day       int    `bson:"day"`
	MonthName string `bson:"month_name"`
	DayOfWeek string `bson:"day_of_week"`
}

type runDoc struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user_id"`
	Status       string     `bson:"status"`
	Documents    int        `bson:"documents"`
	Inserted     int        `bson:"inserted"`
	Duplicates   int        `bson:"duplicates"`
	ErrorMessage string     `bson:"error_message,omitempty"`
	StartedAt    time.Time  `bson:"started_at"`
	FinishedAt   *time.Time `bson:"finished_at,omitempty"`
}

type documentDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	RunID       string    `bson:"run_id,omitempty"`
	Name        string    `bson:"name,omitempty"`
	MIMEType    string    `bson:"mime_type,omitempty"`
	Checksum    string    `bson:"checksum,omitempty"`
	SourceURI   string    `bson:"source_uri,omitempty"`
	Records     int       `bson:"records"`
	Error       string    `bson:"error,omitempty"`
	ModelName   string    `bson:"model_name,omitempty"`
	RawResponse string    `bson:"raw_response,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toTransactionDoc(id, userID, runID string, tx domain.Transaction, now time.Time) (transactionDoc, error) {
	var amounts [3]*primitive.Decimal128
	for i, d := range []decimal.NullDecimal{tx.AmountSpent, tx.CreditLimit, tx.AvailableCredit} {
		v, err := toDecimal128(d)
		if err != nil {
			return transactionDoc{}, fmt.Errorf("toTransactionDoc: %q: %w", tx.ActivityDescription, err)
		}
		amounts[i] = v
	}

	doc := transactionDoc{
		ID:                  id,
		UserID:              userID,
		DocumentID:          tx.DocumentID,
		RunID:               runID,
		Fingerprint:         tx.Fingerprint,
		CustomerID:          tx.CustomerID,
		FirstName:           tx.FirstName,
		LastName:            tx.LastName,
		Address:             tx.Address,
		TransactionDate:     fromCivil(tx.TransactionDate),
		PostingDate:         fromCivil(tx.PostingDate),
		ActivityDescription: tx.ActivityDescription,
		Category:            tx.Category,
		SubCategory:         tx.SubCategory,
		AmountSpent:         amounts[0],
		CreditLimit:         amounts[1],
		AvailableCredit:     amounts[2],
		IsSubscription:      tx.IsSubscription,
		CreatedAt:           now,
	}
	if c := tx.Calendar; c != nil {
		doc.Calendar = &calendarDoc{Year: c.Year, Month: c.Month, Day: c.Day, MonthName: c.MonthName, DayOfWeek: c.DayOfWeek}
	}
	return doc, nil
}

func (d transactionDoc) toDomain() domain.Transaction {
	tx := domain.Transaction{
		CustomerID:          d.CustomerID,
		FirstName:           d.FirstName,
		LastName:            d.LastName,
		Address:             d.Address,
		TransactionDate:     toCivil(d.TransactionDate),
		PostingDate:         toCivil(d.PostingDate),
		ActivityDescription: d.ActivityDescription,
		Category:            d.Category,
		SubCategory:         d.SubCategory,
		AmountSpent:         fromDecimal128(d.AmountSpent),
		CreditLimit:         fromDecimal128(d.CreditLimit),
		AvailableCredit:     fromDecimal128(d.AvailableCredit),
		IsSubscription:      d.IsSubscription,
		Fingerprint:         d.Fingerprint,
		DocumentID:          d.DocumentID,
	}
	if c := d.Calendar; c != nil {
		tx.Calendar = &domain.Calendar{Year: c.Year, Month: c.Month, Day: c.Day, MonthName: c.MonthName, DayOfWeek: c.DayOfWeek}
	}
	return tx
}

func toDocumentDoc(rec store.DocumentRecord, now time.Time) documentDoc {
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	return documentDoc{
		ID:          rec.DocumentID,
		UserID:      rec.UserID,
		RunID:       rec.RunID,
		Name:        rec.Name,
		MIMEType:    rec.MIMEType,
		Checksum:    rec.Checksum,
		SourceURI:   rec.SourceURI,
		Records:     rec.Records,
		Error:       rec.Error,
		ModelName:   rec.ModelName,
		RawResponse: rec.RawResponse,
		CreatedAt:   created,
	}
}

func (d documentDoc) toRecord() store.DocumentRecord {
	return store.DocumentRecord{
		DocumentID:  d.ID,
		UserID:      d.UserID,
		RunID:       d.RunID,
		Name:        d.Name,
		MIMEType:    d.MIMEType,
		Checksum:    d.Checksum,
		SourceURI:   d.SourceURI,
		Records:     d.Records,
		Error:       d.Error,
		ModelName:   d.ModelName,
		RawResponse: d.RawResponse,
		CreatedAt:   d.CreatedAt,
	}
}

func fromCivil(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.In(time.UTC)
	return &t
}

func toCivil(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	return domain.Date(civil.DateOf(t.UTC()))
}

// toDecimal128 fails rather than dropping a value, since the stored
// fingerprint covers the amount.
func toDecimal128(d decimal.NullDecimal) (*primitive.Decimal128, error) {
	if !d.Valid {
		return nil, nil
	}
	v, err := primitive.ParseDecimal128(d.Decimal.String())
	if err != nil {
		return nil, fmt.Errorf("amount %s: %w", d.Decimal.String(), err)
	}
	return &v, nil
}

func fromDecimal128(v *primitive.Decimal128) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
