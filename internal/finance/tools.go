package finance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/tool"
)

// CurrencySymbol prefixes every amount.
const CurrencySymbol = "$"

const dateLayout = "2006-01-02"

// Category lists offered to the model.
var (
	ExpenseCategories = []string{"Food & Dining", "Transportation", "Shopping", "Entertainment", "Bills & Utilities", "Healthcare", "Other"}
	IncomeCategories  = []string{"Salary", "Freelance", "Investments", "Gifts", "Other"}
)

// ToolkitOptions configures a Toolkit.
type ToolkitOptions struct {
	// Now is the clock used for "today" and reporting windows.
	Now    func() time.Time
	Logger logging.Logger
}

// Toolkit exposes the finance tools backed by a Store.
type Toolkit struct {
	store  *Store
	now    func() time.Time
	logger logging.Logger
}

// NewToolkit creates a Toolkit.
func NewToolkit(store *Store, optFns ...func(o *ToolkitOptions)) *Toolkit {
	opts := ToolkitOptions{Now: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Toolkit{store: store, now: opts.Now, logger: opts.Logger}
}

// Store returns the backing store.
func (tk *Toolkit) Store() *Store { return tk.store }

// Close closes the backing store.
func (tk *Toolkit) Close() error { return tk.store.Close() }

// Tools returns add_transaction, get_spending_summary, manage_budget,
// manage_goal and analyze_spending_patterns.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"add_transaction",
			"Add a new transaction (income or expense).",
			tool.Object(map[string]any{
				"amount":           tool.NumberParam("Transaction amount (positive number)"),
				"category":         tool.StringParam("Category of the transaction, e.g. " + strings.Join(ExpenseCategories, ", ")),
				"description":      tool.StringParam("Description of the transaction"),
				"transaction_type": tool.StringParam(`"income" or "expense" (default expense)`),
				"date":             tool.StringParam("Optional date in YYYY-MM-DD format (default today)"),
			}, "amount", "category"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.AddTransaction(tc.Context(),
					tool.Float(args, "amount", 0),
					tool.String(args, "category", ""),
					tool.String(args, "description", ""),
					tool.String(args, "transaction_type", ""),
					tool.String(args, "date", ""),
				), nil
			},
		),
		tool.NewFunctionTool(
			"get_spending_summary",
			"Get spending summary for a period showing income, expenses, and spending by category.",
			tool.Object(map[string]any{
				"period": tool.StringParam(`"week", "month" (default) or "year"`),
			}),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.SpendingSummary(tc.Context(), tool.String(args, "period", "month")), nil
			},
		),
		tool.NewFunctionTool(
			"manage_budget",
			"Create or view monthly budgets. Viewing compares each budget with this month's spending.",
			tool.Object(map[string]any{
				"action":   tool.StringParam(`"create" or "view"`),
				"category": tool.StringParam("Budget category (required for create)"),
				"amount":   tool.NumberParam("Monthly budget amount (required for create)"),
			}, "action"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.ManageBudget(tc.Context(),
					tool.String(args, "action", "view"),
					tool.String(args, "category", ""),
					tool.Float(args, "amount", 0),
				), nil
			},
		),
		tool.NewFunctionTool(
			"manage_goal",
			"Create, view, or update financial savings goals.",
			tool.Object(map[string]any{
				"action":         tool.StringParam(`"create", "view" or "update"`),
				"name":           tool.StringParam("Goal name (required for create)"),
				"target_amount":  tool.NumberParam("Target amount (required for create)"),
				"current_amount": tool.NumberParam("Current saved amount (for create/update)"),
				"target_date":    tool.StringParam("Optional target date in YYYY-MM-DD format"),
				"goal_id":        tool.IntParam("Goal ID (required for update)"),
			}, "action"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				_, hasCurrent := args["current_amount"]

				return tk.ManageGoal(tc.Context(), GoalRequest{
					Action:        tool.String(args, "action", "view"),
					Name:          tool.String(args, "name", ""),
					TargetAmount:  tool.Float(args, "target_amount", 0),
					CurrentAmount: tool.Float(args, "current_amount", 0),
					HasCurrent:    hasCurrent,
					TargetDate:    tool.String(args, "target_date", ""),
					GoalID:        int64(tool.Int(args, "goal_id", 0)),
				}), nil
			},
		),
		tool.NewFunctionTool(
			"analyze_spending_patterns",
			"Analyze spending patterns and trends over multiple months.",
			tool.Object(map[string]any{
				"months": tool.IntParam("Number of months to analyze (default 3)"),
			}),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.AnalyzeSpendingPatterns(tc.Context(), tool.Int(args, "months", 3)), nil
			},
		),
	}
}

// AddTransaction records an income or expense. date is YYYY-MM-DD or empty
// for today.
func (tk *Toolkit) AddTransaction(ctx context.Context, amount float64, category, description, transactionType, date string) string {
	fail := func(err error) string { return fmt.Sprintf("Error adding transaction: %v", err) }

	typ, err := ParseTransactionType(transactionType)
	if err != nil {
		return fail(err)
	}

	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fail(errors.New("amount must be a positive number"))
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return fail(errors.New("category is required"))
	}

	when := tk.now()

	if date = strings.TrimSpace(date); date != "" {
		when, err = time.ParseInLocation(dateLayout, date, time.Local)
		if err != nil {
			return fail(fmt.Errorf("invalid date %q (use YYYY-MM-DD)", date))
		}
	}

	t := &Transaction{Date: when, Amount: amount, Category: category, Description: description, Type: typ}
	if err := tk.store.AddTransaction(ctx, t); err != nil {
		tk.logger.Error("finance.transaction.error", "error", err.Error())
		return fail(err)
	}

	tk.logger.Debug("finance.transaction.added", "id", t.ID, "type", string(typ), "category", category)

	msg := fmt.Sprintf("Successfully added %s: %s for %s", typ, Money(amount), category)
	if description != "" {
		msg += " - " + description
	}

	return msg
}

// periodStart maps week, month and year to a look-back window ending now.
func periodStart(now time.Time, period string) (time.Time, string) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "week":
		return now.AddDate(0, 0, -7), "week"
	case "year":
		return now.AddDate(0, 0, -365), "year"
	default:
		return now.AddDate(0, 0, -30), "month"
	}
}

// SpendingSummary reports income, expenses, net savings and per-category
// spending for the period.
func (tk *Toolkit) SpendingSummary(ctx context.Context, period string) string {
	fail := func(err error) string { return fmt.Sprintf("Error getting spending summary: %v", err) }

	end := tk.now()
	start, period := periodStart(end, period)

	income, err := tk.store.Total(ctx, Income, start, end)
	if err != nil {
		return fail(err)
	}

	expenses, err := tk.store.Total(ctx, Expense, start, end)
	if err != nil {
		return fail(err)
	}

	byCategory, err := tk.store.SpendingByCategory(ctx, start, end)
	if err != nil {
		return fail(err)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Spending Summary (%s):\n\n", period)
	fmt.Fprintf(&sb, "Total Income: %s\n", Money(income))
	fmt.Fprintf(&sb, "Total Expenses: %s\n", Money(expenses))
	fmt.Fprintf(&sb, "Net Savings: %s\n", Money(income-expenses))

	if len(byCategory) > 0 {
		sb.WriteString("\nSpending by Category:\n")

		for _, c := range rank(byCategory) {
			fmt.Fprintf(&sb, "  - %s: %s (%.1f%%)\n", c.name, Money(c.amount), percent(c.amount, expenses))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// ManageBudget creates a budget or compares the active budgets with this
// month's spending.
func (tk *Toolkit) ManageBudget(ctx context.Context, action, category string, amount float64) string {
	fail := func(err error) string { return fmt.Sprintf("Error managing budget: %v", err) }

	switch strings.ToLower(strings.TrimSpace(action)) {
	case "create":
		category = strings.TrimSpace(category)
		if category == "" || amount <= 0 {
			return "Error: Category and amount required for creating budget"
		}

		if _, err := tk.store.CreateBudget(ctx, category, amount, "monthly"); err != nil {
			return fail(err)
		}

		return fmt.Sprintf("Created budget: %s/month for %s", Money(amount), category)
	case "", "view":
	default:
		return fmt.Sprintf("Error: unknown action %q (use create or view)", action)
	}

	budgets, err := tk.store.Budgets(ctx, true)
	if err != nil {
		return fail(err)
	}

	if len(budgets) == 0 {
		return "No budgets set yet. Create a budget to start tracking!"
	}

	now := tk.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	spending, err := tk.store.SpendingByCategory(ctx, monthStart, now)
	if err != nil {
		return fail(err)
	}

	spent := make(map[string]float64, len(spending))
	for c, v := range spending {
		spent[strings.ToLower(c)] += v
	}

	var sb strings.Builder

	sb.WriteString("Current Budgets:\n")

	for _, b := range budgets {
		used := spent[strings.ToLower(b.Category)]

		fmt.Fprintf(&sb, "\n%s:\n", b.Category)
		fmt.Fprintf(&sb, "  Budget: %s\n", Money(b.Amount))
		fmt.Fprintf(&sb, "  Spent: %s (%.1f%%)\n", Money(used), percent(used, b.Amount))
		fmt.Fprintf(&sb, "  Remaining: %s\n", Money(b.Amount-used))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// GoalRequest carries the manage_goal arguments.
type GoalRequest struct {
	Action        string
	Name          string
	TargetAmount  float64
	CurrentAmount float64
	// HasCurrent distinguishes an explicit zero from an omitted amount.
	HasCurrent bool
	TargetDate string
	GoalID     int64
}

// ManageGoal creates, updates or lists savings goals.
func (tk *Toolkit) ManageGoal(ctx context.Context, req GoalRequest) string {
	fail := func(err error) string { return fmt.Sprintf("Error managing goal: %v", err) }

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "create":
		name := strings.TrimSpace(req.Name)
		if name == "" || req.TargetAmount <= 0 {
			return "Error: Name and target_amount required for creating goal"
		}

		g := Goal{Name: name, TargetAmount: req.TargetAmount, CurrentAmount: math.Max(req.CurrentAmount, 0)}

		if req.TargetDate != "" {
			d, err := time.ParseInLocation(dateLayout, req.TargetDate, time.Local)
			if err != nil {
				return fail(fmt.Errorf("invalid target_date %q (use YYYY-MM-DD)", req.TargetDate))
			}

			g.TargetDate = &d
		}

		g, err := tk.store.CreateGoal(ctx, g)
		if err != nil {
			return fail(err)
		}

		msg := fmt.Sprintf("Created goal #%d: %s - Save %s", g.ID, g.Name, Money(g.TargetAmount))
		if g.TargetDate != nil {
			msg += " by " + g.TargetDate.Format(dateLayout)
		}

		return msg
	case "update":
		if req.GoalID <= 0 || !req.HasCurrent {
			return "Error: goal_id and current_amount required for updating"
		}

		g, err := tk.store.UpdateGoalProgress(ctx, req.GoalID, req.CurrentAmount)
		if errors.Is(err, ErrGoalNotFound) {
			return "Error: Goal not found"
		}

		if err != nil {
			return fail(err)
		}

		msg := fmt.Sprintf("Updated goal: %s - %s of %s", g.Name, Money(g.CurrentAmount), Money(g.TargetAmount))
		if g.Status == GoalAchieved {
			msg += " - GOAL ACHIEVED!"
		}

		return msg
	case "", "view":
	default:
		return fmt.Sprintf("Error: unknown action %q (use create, view or update)", req.Action)
	}

	goals, err := tk.store.Goals(ctx, GoalActive, GoalAchieved)
	if err != nil {
		return fail(err)
	}

	if len(goals) == 0 {
		return "No financial goals set yet. Create a goal to start saving!"
	}

	var sb strings.Builder

	sb.WriteString("Your Financial Goals:\n")

	for _, g := range goals {
		fmt.Fprintf(&sb, "\nGoal #%d: %s\n", g.ID, g.Name)
		fmt.Fprintf(&sb, "  Target: %s\n", Money(g.TargetAmount))
		fmt.Fprintf(&sb, "  Current: %s (%.1f%%)\n", Money(g.CurrentAmount), g.Progress())
		fmt.Fprintf(&sb, "  Remaining: %s\n", Money(math.Max(g.TargetAmount-g.CurrentAmount, 0)))

		if g.TargetDate != nil {
			fmt.Fprintf(&sb, "  Target Date: %s\n", g.TargetDate.Format(dateLayout))
		}

		fmt.Fprintf(&sb, "  Status: %s\n", g.Status)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// AnalyzeSpendingPatterns reports monthly expense totals, their average and
// the top five categories over the last months (30 days each).
func (tk *Toolkit) AnalyzeSpendingPatterns(ctx context.Context, months int) string {
	months = max(1, min(months, 36))

	end := tk.now()
	start := end.AddDate(0, 0, -30*months)

	txs, err := tk.store.Transactions(ctx, TransactionFilter{Start: start, End: end, Type: Expense})
	if err != nil {
		return fmt.Sprintf("Error analyzing spending patterns: %v", err)
	}

	monthly := map[string]float64{}
	byCategory := map[string]float64{}

	for _, t := range txs {
		monthly[t.Date.In(end.Location()).Format("2006-01")] += t.Amount
		byCategory[t.Category] += t.Amount
	}

	var total float64
	for _, v := range monthly {
		total += v
	}

	var avg float64
	if len(monthly) > 0 {
		avg = total / float64(len(monthly))
	}

	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	fmt.Fprintf(&sb, "Spending Analysis (last %d months):\n\n", months)
	fmt.Fprintf(&sb, "Monthly Average: %s\n\n", Money(avg))
	sb.WriteString("Monthly Spending:\n")

	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %s\n", k, Money(monthly[k]))
	}

	sb.WriteString("\nTop Spending Categories:\n")

	ranked := rank(byCategory)
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	for _, c := range ranked {
		fmt.Fprintf(&sb, "  %s: %s\n", c.name, Money(c.amount))
	}

	return strings.TrimRight(sb.String(), "\n")
}

// Money formats v as "$1,234.50".
func Money(v float64) string {
	if v < 0 {
		return "-" + CurrencySymbol + humanize.FormatFloat("#,###.##", -v)
	}

	return CurrencySymbol + humanize.FormatFloat("#,###.##", v)
}

type categoryAmount struct {
	name   string
	amount float64
}

// rank orders categories by amount, largest first, then by name.
func rank(m map[string]float64) []categoryAmount {
	out := make([]categoryAmount, 0, len(m))
	for k, v := range m {
		out = append(out, categoryAmount{name: k, amount: v})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].amount != out[j].amount {
			return out[i].amount > out[j].amount
		}

		return out[i].name < out[j].name
	})

	return out
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}

	return part / whole * 100
}
