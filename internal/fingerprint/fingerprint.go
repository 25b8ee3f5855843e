// Package fingerprint derives the identity hash used to detect duplicate transactions.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Canonical returns "<date>-<description>-<amount>" where the date is ISO
// formatted, the description trimmed and lower-cased and the amount rendered
// with two decimals. Absent parts are empty.
func Canonical(tx domain.Transaction) string {
	var date, amount string
	if tx.TransactionDate != nil {
		date = tx.TransactionDate.String()
	}
	if tx.AmountSpent.Valid {
		amount = tx.AmountSpent.Decimal.StringFixed(2)
	}
	desc := strings.ToLower(strings.TrimSpace(tx.ActivityDescription))
	return date + "-" + desc + "-" + amount
}

// Compute returns the lower-case hex MD5 of the canonical string.
func Compute(tx domain.Transaction) string {
	sum := md5.Sum([]byte(Canonical(tx)))
	return hex.EncodeToString(sum[:])
}

// Apply sets the Fingerprint of every transaction in place.
func Apply(txs []domain.Transaction) {
	for i := range txs {
		txs[i].Fingerprint = Compute(txs[i])
	}
}

// LegacyKey reproduces the older concatenated key, which used placeholders
// for missing parts and did not lower-case the description. It is only used
// when back-filling fingerprints onto rows stored before the hash column existed.
func LegacyKey(tx domain.Transaction) string {
	date := "no_date"
	if tx.TransactionDate != nil {
		date = tx.TransactionDate.String()
	}
	desc := "no_desc"
	if tx.ActivityDescription != "" {
		desc = tx.ActivityDescription
	}
	amount := "no_amount"
	if tx.AmountSpent.Valid {
		amount = tx.AmountSpent.Decimal.String()
	}
	return date + "-" + desc + "-" + amount
}
