package advisor

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const systemPrompt = "You are a financial advisor. Be CONCISE (150-200 words max). " +
	"Use clear sections. Be specific with numbers and actionable."

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// money renders a dollar amount with grouping, e.g. $1,234.56.
func money(v float64) string {
	return usPrinter.Sprintf("$%v",
		number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// buildSummaryPrompt renders the month context into the advisor prompt. The
// section order matters: models weight earlier sections more heavily, so the
// headline numbers come first and the instructions last.
func buildSummaryPrompt(ctx *MonthContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a professional financial advisor analyzing a user's finances. "+
		"Provide a comprehensive but concise analysis.\n\n")

	fmt.Fprintf(&b, "CURRENT MONTH (%d/%d):\n", ctx.Month, ctx.Year)
	fmt.Fprintf(&b, "- Income: %s\n", money(ctx.Current.Income))
	fmt.Fprintf(&b, "- Expenses: %s\n", money(ctx.Current.Expenses))
	fmt.Fprintf(&b, "- Net Savings: %s\n", money(ctx.Current.Savings))
	fmt.Fprintf(&b, "- Savings Rate: %.1f%%\n", ctx.Current.SavingsRate)
	fmt.Fprintf(&b, "- Transactions: %d\n\n", ctx.Current.TransactionCount)

	fmt.Fprintf(&b, "TRENDS (vs Last Month):\n")
	fmt.Fprintf(&b, "- Income: %s\n", signedPct(ctx.Trends.IncomeChange))
	fmt.Fprintf(&b, "- Expenses: %s\n", signedPct(ctx.Trends.ExpenseChange))
	fmt.Fprintf(&b, "- Savings: %s\n\n", signedPct(ctx.Trends.SavingsChange))

	fmt.Fprintf(&b, "TOP SPENDING CATEGORIES:\n")
	for _, cat := range capSpend(ctx.CategoryBreakdown, 5) {
		fmt.Fprintf(&b, "- %s: %s (%.1f%%)\n", cat.Name, money(cat.Amount), cat.Percent)
	}
	b.WriteString("\n")

	if len(ctx.CategoryChanges) > 0 {
		fmt.Fprintf(&b, "BIGGEST CATEGORY CHANGES (vs Last Month):\n")
		for _, ch := range capChanges(ctx.CategoryChanges, 3) {
			fmt.Fprintf(&b, "- %s: %s (%s now vs %s before)\n",
				ch.Category, signedPct(ch.ChangePercent), money(ch.Current), money(ch.Previous))
		}
		b.WriteString("\n")
	}

	if len(ctx.BudgetStatus) > 0 {
		fmt.Fprintf(&b, "BUDGET STATUS:\n")
		for _, bs := range ctx.BudgetStatus {
			fmt.Fprintf(&b, "- %s: %s / %s (%.1f%%) - %s\n",
				bs.Category, money(bs.Spent), money(bs.Budgeted), bs.Percentage, budgetLabel(bs.Status))
		}
		b.WriteString("\n")
	}

	if len(ctx.LargestExpenses) > 0 {
		fmt.Fprintf(&b, "LARGEST EXPENSES:\n")
		for _, exp := range ctx.LargestExpenses {
			fmt.Fprintf(&b, "- %s - %s (%s) on %s\n",
				money(exp.Amount), exp.Description, exp.Category, exp.Date)
		}
		b.WriteString("\n")
	}

	if len(ctx.Frequency) > 0 {
		fmt.Fprintf(&b, "SPENDING FREQUENCY:\n")
		for _, f := range topFrequencies(ctx.Frequency, 3) {
			fmt.Fprintf(&b, "- %s: %d transactions\n", f.name, f.count)
		}
		b.WriteString("\n")
	}

	b.WriteString(`PROVIDE A CONCISE ANALYSIS (150-200 words max):
1. **Financial Health** (1-2 sentences) - Savings rate assessment
2. **Key Win** (1 sentence) - One main achievement
3. **Main Concern** (1-2 sentences) - Biggest issue with specific numbers
4. **Top 2 Actions** (2 bullet points) - Specific, actionable steps

Be direct, encouraging, and specific with numbers. Keep it SHORT.`)

	return b.String()
}

// buildChatSystemPrompt frames a free-form conversation, grounding the model
// in the month's numbers when a context is available.
func buildChatSystemPrompt(ctx *MonthContext) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant for a spending tracker. " +
		"Answer the user's questions about their finances directly and concretely. " +
		"Keep answers short. If you do not know something, say so.")
	if ctx != nil && ctx.Current.TransactionCount > 0 {
		fmt.Fprintf(&b, "\n\nThis month (%d/%d): income %s, expenses %s, savings %s (%.1f%% rate) over %d transactions.",
			ctx.Month, ctx.Year,
			money(ctx.Current.Income), money(ctx.Current.Expenses), money(ctx.Current.Savings),
			ctx.Current.SavingsRate, ctx.Current.TransactionCount)
		for _, cat := range capSpend(ctx.CategoryBreakdown, 5) {
			fmt.Fprintf(&b, "\n- %s: %s (%.1f%%)", cat.Name, money(cat.Amount), cat.Percent)
		}
	}
	return b.String()
}

func budgetLabel(status string) string {
	switch status {
	case "over":
		return "OVER BUDGET"
	case "on_track":
		return "On Track"
	default:
		return "Good"
	}
}

func capSpend(s []CategorySpend, n int) []CategorySpend {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capChanges(s []CategoryChange, n int) []CategoryChange {
	if len(s) > n {
		return s[:n]
	}
	return s
}

type freq struct {
	name  string
	count int
}

func topFrequencies(m map[string]int, n int) []freq {
	out := make([]freq, 0, len(m))
	for k, v := range m {
		out = append(out, freq{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
