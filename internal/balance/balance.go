// Package balance rebuilds the available-credit trail of a statement from
// its single reported balance.
package balance

import (
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// Reconstruct returns a copy of txs sorted by transaction date (stable,
// absent dates last) with AvailableCredit recomputed from the first record
// that reports one. That record's balance B is the opening balance and every
// record from it onward gets B minus the running sum of amounts, including
// its own. Earlier records keep their values. Without any reported balance
// the sorted copy is returned unchanged.
func Reconstruct(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)

	sort.SliceStable(out, func(i, j int) bool {
		return dateBefore(out[i], out[j])
	})

	start := -1
	for i := range out {
		if out[i].AvailableCredit.Valid {
			start = i
			break
		}
	}
	if start < 0 {
		return out
	}

	opening := out[start].AvailableCredit.Decimal
	running := decimal.Zero
	for i := start; i < len(out); i++ {
		running = running.Add(out[i].Amount())
		out[i].AvailableCredit = decimal.NewNullDecimal(opening.Sub(running))
	}
	return out
}

func dateBefore(a, b domain.Transaction) bool {
	switch {
	case a.TransactionDate == nil:
		return false
	case b.TransactionDate == nil:
		return true
	default:
		return a.TransactionDate.Before(*b.TransactionDate)
	}
}
