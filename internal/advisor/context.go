package advisor

import (
	"math"
	"sort"
)

// Transaction is the minimal transaction view the advisor needs. Negative
// amounts are expenses, positive amounts income.
type Transaction struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"` // YYYY-MM-DD
}

// Budget is one monthly category budget.
type Budget struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// MonthStats aggregates one month of transactions.
type MonthStats struct {
	Income           float64 `json:"income"`
	Expenses         float64 `json:"expenses"`
	Savings          float64 `json:"savings"`
	SavingsRate      float64 `json:"savings_rate"`
	TransactionCount int     `json:"transaction_count"`
}

// Trends are month-over-month percentage changes.
type Trends struct {
	IncomeChange  float64 `json:"income_change"`
	ExpenseChange float64 `json:"expense_change"`
	SavingsChange float64 `json:"savings_change"`
}

// CategorySpend is one category's share of the month's expenses.
type CategorySpend struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// CategoryChange compares one category's spend against the previous month.
type CategoryChange struct {
	Category      string  `json:"category"`
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
}

// BudgetStatus reports actual spend against one budget.
type BudgetStatus struct {
	Category   string  `json:"category"`
	Budgeted   float64 `json:"budgeted"`
	Spent      float64 `json:"spent"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"` // "over", "on_track", "good"
}

// LargeExpense is one of the month's biggest single expenses.
type LargeExpense struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
}

// MonthContext is the full financial picture the advisor reasons over.
type MonthContext struct {
	Year  int `json:"year"`
	Month int `json:"month"`

	Current  MonthStats `json:"current_month"`
	Previous MonthStats `json:"previous_month"`
	Trends   Trends     `json:"trends"`

	CategoryBreakdown []CategorySpend  `json:"category_breakdown"`
	CategoryChanges   []CategoryChange `json:"category_changes"`
	BudgetStatus      []BudgetStatus   `json:"budget_status"`
	LargestExpenses   []LargeExpense   `json:"unusual_expenses"`
	Frequency         map[string]int   `json:"transaction_frequency"`
}

const uncategorized = "Uncategorized"

// BuildMonthContext derives the advisor context from raw transactions for
// the target month and the month before it, plus the month's budgets.
func BuildMonthContext(year, month int, current, previous []Transaction, budgets []Budget) *MonthContext {
	cur := monthStats(current)
	prev := monthStats(previous)

	curByCat := expensesByCategory(current)
	prevByCat := expensesByCategory(previous)

	ctx := &MonthContext{
		Year:     year,
		Month:    month,
		Current:  cur,
		Previous: prev,
		Trends: Trends{
			IncomeChange:  pctChange(cur.Income, prev.Income),
			ExpenseChange: pctChange(cur.Expenses, prev.Expenses),
			SavingsChange: savingsChange(cur.Savings, prev.Savings),
		},
		Frequency: expenseFrequency(current),
	}

	for name, amt := range curByCat {
		pct := 0.0
		if cur.Expenses > 0 {
			pct = round1(amt / cur.Expenses * 100)
		}
		ctx.CategoryBreakdown = append(ctx.CategoryBreakdown, CategorySpend{
			Name: name, Amount: round2(amt), Percent: pct,
		})
	}
	sort.Slice(ctx.CategoryBreakdown, func(i, j int) bool {
		return ctx.CategoryBreakdown[i].Amount > ctx.CategoryBreakdown[j].Amount
	})

	for _, name := range unionKeys(curByCat, prevByCat) {
		c, p := curByCat[name], prevByCat[name]
		change := 0.0
		switch {
		case p > 0:
			change = round1((c - p) / p * 100)
		case c > 0:
			change = 100
		}
		ctx.CategoryChanges = append(ctx.CategoryChanges, CategoryChange{
			Category: name, Current: round2(c), Previous: round2(p), ChangePercent: change,
		})
	}
	sort.Slice(ctx.CategoryChanges, func(i, j int) bool {
		return math.Abs(ctx.CategoryChanges[i].ChangePercent) > math.Abs(ctx.CategoryChanges[j].ChangePercent)
	})
	if len(ctx.CategoryChanges) > 5 {
		ctx.CategoryChanges = ctx.CategoryChanges[:5]
	}

	for _, b := range budgets {
		spent := curByCat[b.Category]
		pct := 0.0
		if b.Amount > 0 {
			pct = round1(spent / b.Amount * 100)
		}
		status := "good"
		if spent > b.Amount {
			status = "over"
		} else if pct > 80 {
			status = "on_track"
		}
		ctx.BudgetStatus = append(ctx.BudgetStatus, BudgetStatus{
			Category: b.Category, Budgeted: b.Amount, Spent: round2(spent),
			Percentage: pct, Status: status,
		})
	}

	expenses := make([]Transaction, 0, len(current))
	for _, t := range current {
		if t.Amount < 0 {
			expenses = append(expenses, t)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		return math.Abs(expenses[i].Amount) > math.Abs(expenses[j].Amount)
	})
	if len(expenses) > 3 {
		expenses = expenses[:3]
	}
	for _, t := range expenses {
		ctx.LargestExpenses = append(ctx.LargestExpenses, LargeExpense{
			Description: t.Description,
			Amount:      round2(math.Abs(t.Amount)),
			Category:    categoryOf(t),
			Date:        t.Date,
		})
	}

	return ctx
}

func monthStats(txs []Transaction) MonthStats {
	var s MonthStats
	for _, t := range txs {
		if t.Amount > 0 {
			s.Income += t.Amount
		} else {
			s.Expenses += -t.Amount
		}
	}
	s.Savings = s.Income - s.Expenses
	if s.Income > 0 {
		s.SavingsRate = round1(s.Savings / s.Income * 100)
	}
	s.Income = round2(s.Income)
	s.Expenses = round2(s.Expenses)
	s.Savings = round2(s.Savings)
	s.TransactionCount = len(txs)
	return s
}

func expensesByCategory(txs []Transaction) map[string]float64 {
	out := map[string]float64{}
	for _, t := range txs {
		if t.Amount < 0 {
			out[categoryOf(t)] += -t.Amount
		}
	}
	return out
}

func expenseFrequency(txs []Transaction) map[string]int {
	out := map[string]int{}
	for _, t := range txs {
		if t.Amount < 0 {
			out[categoryOf(t)]++
		}
	}
	return out
}

func categoryOf(t Transaction) string {
	if t.Category == "" {
		return uncategorized
	}
	return t.Category
}

func unionKeys(a, b map[string]float64) []string {
	seen := map[string]bool{}
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func pctChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return round1((cur - prev) / prev * 100)
}

func savingsChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return round1((cur - prev) / math.Abs(prev) * 100)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
