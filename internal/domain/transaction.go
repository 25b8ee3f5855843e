package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Field names the extraction model is asked to produce.
const (
	FieldCustomerID          = "customer_id"
	FieldFirstName           = "f_name"
	FieldLastName            = "l_name"
	FieldAddress             = "address"
	FieldTransactionDate     = "transaction_date"
	FieldPostingDate         = "posting_date"
	FieldActivityDescription = "activity_description"
	FieldCategory            = "category"
	FieldSubCategory         = "sub_category"
	FieldAmountSpent         = "amount_spent"
	FieldCreditLimit         = "credit_limit"
	FieldAvailableCredit     = "available_credit"
	FieldIsSubscription      = "is_subscription"
)

// FieldNames lists the recognised raw fields in prompt order.
var FieldNames = []string{
	FieldCustomerID,
	FieldFirstName,
	FieldLastName,
	FieldAddress,
	FieldTransactionDate,
	FieldPostingDate,
	FieldActivityDescription,
	FieldCategory,
	FieldSubCategory,
	FieldAmountSpent,
	FieldCreditLimit,
	FieldAvailableCredit,
	FieldIsSubscription,
}

// Field is a single optional value as extracted, before any coercion.
type Field struct {
	Value   string
	Present bool
}

// Text returns a present field holding s.
func Text(s string) Field {
	return Field{Value: s, Present: true}
}

// RawTransaction is one record as read from the model output. Every field is
// optional and may hold text that does not parse as its intended type.
type RawTransaction struct {
	CustomerID          Field
	FirstName           Field
	LastName            Field
	Address             Field
	TransactionDate     Field
	PostingDate         Field
	ActivityDescription Field
	Category            Field
	SubCategory         Field
	AmountSpent         Field
	CreditLimit         Field
	AvailableCredit     Field
	IsSubscription      Field
}

// Lookup returns a pointer to the field with the given name, or nil if the name is unknown.
func (r *RawTransaction) Lookup(name string) *Field {
	switch name {
	case FieldCustomerID:
		return &r.CustomerID
	case FieldFirstName:
		return &r.FirstName
	case FieldLastName:
		return &r.LastName
	case FieldAddress:
		return &r.Address
	case FieldTransactionDate:
		return &r.TransactionDate
	case FieldPostingDate:
		return &r.PostingDate
	case FieldActivityDescription:
		return &r.ActivityDescription
	case FieldCategory:
		return &r.Category
	case FieldSubCategory:
		return &r.SubCategory
	case FieldAmountSpent:
		return &r.AmountSpent
	case FieldCreditLimit:
		return &r.CreditLimit
	case FieldAvailableCredit:
		return &r.AvailableCredit
	case FieldIsSubscription:
		return &r.IsSubscription
	}
	return nil
}

// Calendar holds the fields derived from a valid transaction date.
type Calendar struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	MonthName string `json:"month_name"`
	DayOfWeek string `json:"day_of_week"`
}

// Transaction is a normalized card transaction.
// Amounts are positive for purchases and negative for payments or credits.
type Transaction struct {
	CustomerID          string              `json:"customer_id,omitempty"`
	FirstName           string              `json:"f_name,omitempty"`
	LastName            string              `json:"l_name,omitempty"`
	Address             string              `json:"address,omitempty"`
	TransactionDate     *civil.Date         `json:"transaction_date"`
	PostingDate         *civil.Date         `json:"posting_date"`
	ActivityDescription string              `json:"activity_description"`
	Category            string              `json:"category,omitempty"`
	SubCategory         string              `json:"sub_category,omitempty"`
	AmountSpent         decimal.NullDecimal `json:"amount_spent"`
	CreditLimit         decimal.NullDecimal `json:"credit_limit"`
	AvailableCredit     decimal.NullDecimal `json:"available_credit"`
	IsSubscription      bool                `json:"is_subscription"`

	// Calendar is non-nil exactly when TransactionDate is non-nil.
	Calendar *Calendar `json:"calendar,omitempty"`

	Fingerprint string `json:"fingerprint"`
	DocumentID  string `json:"document_id,omitempty"`
}

// Equal reports whether t and o carry the same values. Decimals compare numerically.
func (t Transaction) Equal(o Transaction) bool {
	return t.CustomerID == o.CustomerID &&
		t.FirstName == o.FirstName &&
		t.LastName == o.LastName &&
		t.Address == o.Address &&
		equalDate(t.TransactionDate, o.TransactionDate) &&
		equalDate(t.PostingDate, o.PostingDate) &&
		t.ActivityDescription == o.ActivityDescription &&
		t.Category == o.Category &&
		t.SubCategory == o.SubCategory &&
		equalDecimal(t.AmountSpent, o.AmountSpent) &&
		equalDecimal(t.CreditLimit, o.CreditLimit) &&
		equalDecimal(t.AvailableCredit, o.AvailableCredit) &&
		t.IsSubscription == o.IsSubscription &&
		equalCalendar(t.Calendar, o.Calendar) &&
		t.Fingerprint == o.Fingerprint &&
		t.DocumentID == o.DocumentID
}

// Amount returns the amount spent, or zero when absent.
func (t Transaction) Amount() decimal.Decimal {
	if !t.AmountSpent.Valid {
		return decimal.Zero
	}
	return t.AmountSpent.Decimal
}

// Date returns a pointer to a copy of d.
func Date(d civil.Date) *civil.Date {
	return &d
}

// Decimal wraps d as a present value.
func Decimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

func equalDate(a, b *civil.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDecimal(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}

func equalCalendar(a, b *Calendar) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
