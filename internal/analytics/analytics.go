// Package analytics computes the dashboard aggregates over stored transactions.
// Positive amounts are expenses and negative amounts are payments.
package analytics

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/shopspring/decimal"
)

// TopN bounds the ranked lists.
const TopN = 10

// Filter selects transactions by calendar year and month (1-12). An empty
// slice selects everything. Undated transactions only pass an empty filter.
type Filter struct {
	Years  []int
	Months []int
}

func (f Filter) empty() bool {
	return len(f.Years) == 0 && len(f.Months) == 0
}

func (f Filter) match(c *domain.Calendar) bool {
	if f.empty() {
		return true
	}
	if c == nil {
		return false
	}
	return containsInt(f.Years, c.Year) && containsInt(f.Months, c.Month)
}

func containsInt(list []int, v int) bool {
	if len(list) == 0 {
		return true
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Amount is a labelled total.
type Amount struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Count is a labelled occurrence count.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DailyPoint is the spend and payments of one day.
type DailyPoint struct {
	Date     civil.Date      `json:"date"`
	Spend    decimal.Decimal `json:"spend"`
	Payments decimal.Decimal `json:"payments"`
}

// Summary holds every aggregate of the dashboard.
type Summary struct {
	Transactions  int             `json:"transactions"`
	TotalSpending decimal.Decimal `json:"total_spending"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	// Balance is spending minus payments; positive means owing.
	Balance           decimal.Decimal `json:"balance"`
	AverageDailySpend decimal.Decimal `json:"average_daily_spend"`

	MostFrequentCategory string   `json:"most_frequent_category,omitempty"`
	ByCategory           []Amount `json:"by_category"`
	TopSubCategories     []Amount `json:"top_sub_categories"`

	ExpensesByMonth   []Amount `json:"expenses_by_month"`
	PaymentsByMonth   []Amount `json:"payments_by_month"`
	ExpensesByWeekday []Amount `json:"expenses_by_weekday"`
	PaymentsByWeekday []Amount `json:"payments_by_weekday"`

	TopMerchants    []Count              `json:"top_merchants"`
	Subscriptions   []Amount             `json:"subscriptions"`
	LargestExpenses []domain.Transaction `json:"largest_expenses"`
	Daily           []DailyPoint         `json:"daily"`
}

// Available lists the years and months present in txs, for building filters.
type Available struct {
	Years  []int `json:"years"`
	Months []int `json:"months"`
}

// Options returns the sorted distinct years and months of txs.
func Options(txs []domain.Transaction) Available {
	years := map[int]bool{}
	months := map[int]bool{}
	for _, tx := range txs {
		if c := calendarOf(tx); c != nil {
			years[c.Year] = true
			months[c.Month] = true
		}
	}
	return Available{Years: sortedKeys(years), Months: sortedKeys(months)}
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Summarize computes the aggregates of the transactions selected by filter.
// Transactions without an amount are counted but contribute to no total.
func Summarize(txs []domain.Transaction, filter Filter) Summary {
	var s Summary

	var (
		expenses []domain.Transaction
		byCat    = newTotals()
		bySub    = newTotals()
		expMonth = newTotals()
		payMonth = newTotals()
		expDay   = newTotals()
		payDay   = newTotals()
		subs     = newTotals()
		catCount = newCounts()
		merchant = newCounts()
		daily    = map[civil.Date]*DailyPoint{}
		dayMeans = map[civil.Date][]decimal.Decimal{}
	)

	for _, tx := range txs {
		c := calendarOf(tx)
		if !filter.match(c) {
			continue
		}
		s.Transactions++
		if !tx.AmountSpent.Valid {
			continue
		}
		amt := tx.AmountSpent.Decimal

		if tx.TransactionDate != nil {
			d := *tx.TransactionDate
			dayMeans[d] = append(dayMeans[d], amt)
			if daily[d] == nil {
				daily[d] = &DailyPoint{Date: d}
			}
		}

		switch {
		case amt.IsPositive():
			expenses = append(expenses, tx)
			s.TotalSpending = s.TotalSpending.Add(amt)
			byCat.add(tx.Category, amt)
			bySub.add(tx.SubCategory, amt)
			catCount.add(tx.Category)
			merchant.add(tx.ActivityDescription)
			if tx.IsSubscription {
				subs.add(tx.ActivityDescription, amt)
			}
			if c != nil {
				expMonth.add(c.MonthName, amt)
				expDay.add(c.DayOfWeek, amt)
			}
			if tx.TransactionDate != nil {
				p := daily[*tx.TransactionDate]
				p.Spend = p.Spend.Add(amt)
			}
		case amt.IsNegative():
			paid := amt.Abs()
			s.TotalPayments = s.TotalPayments.Add(paid)
			if c != nil {
				payMonth.add(c.MonthName, paid)
				payDay.add(c.DayOfWeek, paid)
			}
			if tx.TransactionDate != nil {
				p := daily[*tx.TransactionDate]
				p.Payments = p.Payments.Add(paid)
			}
		}
	}

	s.Balance = s.TotalSpending.Sub(s.TotalPayments)
	s.AverageDailySpend = meanOfDailyMeans(dayMeans)
	s.MostFrequentCategory = catCount.top()
	s.ByCategory = byCat.ranked(0)
	s.TopSubCategories = bySub.ranked(TopN)
	s.ExpensesByMonth = expMonth.ordered(monthOrder)
	s.PaymentsByMonth = payMonth.ordered(monthOrder)
	s.ExpensesByWeekday = expDay.ordered(weekdayOrder)
	s.PaymentsByWeekday = payDay.ordered(weekdayOrder)
	s.TopMerchants = merchant.ranked(TopN)
	s.Subscriptions = subs.ranked(0)
	s.LargestExpenses = largest(expenses, TopN)
	s.Daily = dailySeries(daily)
	return s
}

func calendarOf(tx domain.Transaction) *domain.Calendar {
	if tx.Calendar != nil {
		return tx.Calendar
	}
	if tx.TransactionDate == nil {
		return nil
	}
	d := *tx.TransactionDate
	return &domain.Calendar{
		Year:      d.Year,
		Month:     int(d.Month),
		Day:       d.Day,
		MonthName: d.Month.String(),
		DayOfWeek: d.In(time.UTC).Weekday().String(),
	}
}

var monthOrder = func() []string {
	out := make([]string, 12)
	for m := time.January; m <= time.December; m++ {
		out[m-1] = m.String()
	}
	return out
}()

var weekdayOrder = func() []string {
	out := make([]string, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		out[d] = d.String()
	}
	return out
}()

// meanOfDailyMeans averages each day's mean amount.
func meanOfDailyMeans(days map[civil.Date][]decimal.Decimal) decimal.Decimal {
	if len(days) == 0 {
		return decimal.Zero
	}
	var total decimal.Decimal
	for _, amounts := range days {
		total = total.Add(decimal.Avg(amounts[0], amounts[1:]...))
	}
	return total.Div(decimal.NewFromInt(int64(len(days))))
}

func largest(expenses []domain.Transaction, n int) []domain.Transaction {
	out := make([]domain.Transaction, len(expenses))
	copy(out, expenses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AmountSpent.Decimal.GreaterThan(out[j].AmountSpent.Decimal)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func dailySeries(days map[civil.Date]*DailyPoint) []DailyPoint {
	out := make([]DailyPoint, 0, len(days))
	for _, p := range days {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// totals accumulates amounts per label, remembering first-seen order so
// ties rank deterministically.
type totals struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newTotals() *totals {
	return &totals{sums: map[string]decimal.Decimal{}}
}

func (t *totals) add(label string, amt decimal.Decimal) {
	if label == "" {
		return
	}
	if _, ok := t.sums[label]; !ok {
		t.order = append(t.order, label)
	}
	t.sums[label] = t.sums[label].Add(amt)
}

// ranked returns totals by descending amount; n <= 0 means all.
func (t *totals) ranked(n int) []Amount {
	out := make([]Amount, 0, len(t.order))
	for _, l := range t.order {
		out = append(out, Amount{Label: l, Amount: t.sums[l]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ordered returns totals following order, skipping labels never seen.
func (t *totals) ordered(order []string) []Amount {
	var out []Amount
	for _, l := range order {
		if v, ok := t.sums[l]; ok {
			out = append(out, Amount{Label: l, Amount: v})
		}
	}
	return out
}

type counts struct {
	order []string
	n     map[string]int
}

func newCounts() *counts {
	return &counts{n: map[string]int{}}
}

func (c *counts) add(label string) {
	if label == "" {
		return
	}
	if _, ok := c.n[label]; !ok {
		c.order = append(c.order, label)
	}
	c.n[label]++
}

func (c *counts) ranked(n int) []Count {
	out := make([]Count, 0, len(c.order))
	for _, l := range c.order {
		out = append(out, Count{Label: l, Count: c.n[l]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (c *counts) top() string {
	if r := c.ranked(1); len(r) == 1 {
		return r[0].Label
	}
	return ""
}
