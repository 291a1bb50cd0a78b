package finance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/internal/testutil"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

var testNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.Local)

func newTestToolkit(t *testing.T) *Toolkit {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewToolkit(store, func(o *ToolkitOptions) {
		o.Now = func() time.Time { return testNow }
	})
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "finance.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var versions int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestParseTransactionType(t *testing.T) {
	typ, err := ParseTransactionType("")
	require.NoError(t, err)
	assert.Equal(t, Expense, typ)

	typ, err = ParseTransactionType(" Income ")
	require.NoError(t, err)
	assert.Equal(t, Income, typ)

	_, err = ParseTransactionType("refund")
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$45.00", Money(45))
	assert.Equal(t, "$1,234.50", Money(1234.5))
	assert.Equal(t, "-$60.00", Money(-60))
	assert.Equal(t, "$0.00", Money(0))
}

func TestAddTransaction(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	out := tk.AddTransaction(ctx, 45, "Food & Dining", "groceries", "expense", "")
	assert.Equal(t, "Successfully added expense: $45.00 for Food & Dining - groceries", out)

	out = tk.AddTransaction(ctx, 3000, "Salary", "", "INCOME", "2024-05-01")
	assert.Equal(t, "Successfully added income: $3,000.00 for Salary", out)

	txs, err := tk.Store().Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Newest first.
	assert.Equal(t, "Food & Dining", txs[0].Category)
	assert.Equal(t, Income, txs[1].Type)
	assert.Equal(t, "2024-05-01", txs[1].Date.Format("2006-01-02"))
}

func TestAddTransaction_Invalid(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   float64
		category string
		typ      string
		date     string
		want     string
	}{
		{"negative amount", -5, "Food & Dining", "expense", "", "amount must be a positive number"},
		{"zero amount", 0, "Food & Dining", "expense", "", "amount must be a positive number"},
		{"missing category", 10, " ", "expense", "", "category is required"},
		{"bad type", 10, "Food & Dining", "refund", "", `invalid transaction_type "refund"`},
		{"bad date", 10, "Food & Dining", "expense", "20/05/2024", `invalid date "20/05/2024"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tk.AddTransaction(ctx, tt.amount, tt.category, "", tt.typ, tt.date)
			assert.Contains(t, out, "Error adding transaction: ")
			assert.Contains(t, out, tt.want)
		})
	}

	txs, err := tk.Store().Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSpendingSummary(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	tk.AddTransaction(ctx, 3000, "Salary", "May salary", "income", "2024-05-01")
	tk.AddTransaction(ctx, 300, "Food & Dining", "groceries", "expense", "2024-05-10")
	tk.AddTransaction(ctx, 100, "Transportation", "gas", "expense", "2024-05-15")
	tk.AddTransaction(ctx, 500, "Shopping", "laptop bag", "expense", "2024-02-01")

	out := tk.SpendingSummary(ctx, "month")
	assert.Contains(t, out, "Spending Summary (month):")
	assert.Contains(t, out, "Total Income: $3,000.00")
	assert.Contains(t, out, "Total Expenses: $400.00")
	assert.Contains(t, out, "Net Savings: $2,600.00")
	assert.Contains(t, out, "  - Food & Dining: $300.00 (75.0%)\n  - Transportation: $100.00 (25.0%)")
	assert.NotContains(t, out, "Shopping")

	out = tk.SpendingSummary(ctx, "year")
	assert.Contains(t, out, "Total Expenses: $900.00")
	assert.Contains(t, out, "  - Shopping: $500.00 (55.6%)")

	out = tk.SpendingSummary(ctx, "week")
	assert.Contains(t, out, "Total Expenses: $100.00")

	// Unknown periods fall back to a month.
	assert.Contains(t, tk.SpendingSummary(ctx, "fortnight"), "Spending Summary (month):")
}

func TestSpendingSummary_Empty(t *testing.T) {
	tk := newTestToolkit(t)

	out := tk.SpendingSummary(context.Background(), "")
	assert.Contains(t, out, "Total Income: $0.00")
	assert.Contains(t, out, "Net Savings: $0.00")
	assert.NotContains(t, out, "Spending by Category")
}

func TestManageBudget(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	assert.Equal(t, "No budgets set yet. Create a budget to start tracking!", tk.ManageBudget(ctx, "view", "", 0))
	assert.Equal(t, "Error: Category and amount required for creating budget", tk.ManageBudget(ctx, "create", "Food & Dining", 0))
	assert.Contains(t, tk.ManageBudget(ctx, "delete", "", 0), `unknown action "delete"`)

	assert.Equal(t, "Created budget: $400.00/month for Food & Dining", tk.ManageBudget(ctx, "create", "Food & Dining", 400))
	assert.Equal(t, "Created budget: $500.00/month for Food & Dining", tk.ManageBudget(ctx, "Create", "Food & Dining", 500))

	// Spending from last month does not count against this month's budget.
	tk.AddTransaction(ctx, 125, "food & dining", "restaurant", "expense", "2024-05-05")
	tk.AddTransaction(ctx, 80, "Food & Dining", "groceries", "expense", "2024-04-28")

	out := tk.ManageBudget(ctx, "view", "", 0)
	assert.Contains(t, out, "Current Budgets:")
	assert.Contains(t, out, "  Budget: $500.00\n  Spent: $125.00 (25.0%)\n  Remaining: $375.00")
	assert.NotContains(t, out, "$400.00")

	all, err := tk.Store().Budgets(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].EndDate)
	assert.Nil(t, all[1].EndDate)
}

func TestManageGoal(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	assert.Equal(t, "No financial goals set yet. Create a goal to start saving!", tk.ManageGoal(ctx, GoalRequest{Action: "view"}))
	assert.Equal(t, "Error: Name and target_amount required for creating goal", tk.ManageGoal(ctx, GoalRequest{Action: "create", Name: "Vacation"}))

	out := tk.ManageGoal(ctx, GoalRequest{Action: "create", Name: "Vacation", TargetAmount: 5000, TargetDate: "2024-12-01"})
	assert.Equal(t, "Created goal #1: Vacation - Save $5,000.00 by 2024-12-01", out)

	out = tk.ManageGoal(ctx, GoalRequest{Action: "update", GoalID: 1, CurrentAmount: 1250, HasCurrent: true})
	assert.Equal(t, "Updated goal: Vacation - $1,250.00 of $5,000.00", out)

	out = tk.ManageGoal(ctx, GoalRequest{Action: "view"})
	assert.Contains(t, out, "Goal #1: Vacation")
	assert.Contains(t, out, "  Current: $1,250.00 (25.0%)")
	assert.Contains(t, out, "  Remaining: $3,750.00")
	assert.Contains(t, out, "  Target Date: 2024-12-01")
	assert.Contains(t, out, "  Status: active")

	out = tk.ManageGoal(ctx, GoalRequest{Action: "update", GoalID: 1, CurrentAmount: 5000, HasCurrent: true})
	assert.Equal(t, "Updated goal: Vacation - $5,000.00 of $5,000.00 - GOAL ACHIEVED!", out)
	assert.Contains(t, tk.ManageGoal(ctx, GoalRequest{Action: "view"}), "  Status: achieved")

	assert.Equal(t, "Error: Goal not found", tk.ManageGoal(ctx, GoalRequest{Action: "update", GoalID: 42, CurrentAmount: 1, HasCurrent: true}))
	assert.Equal(t, "Error: goal_id and current_amount required for updating", tk.ManageGoal(ctx, GoalRequest{Action: "update", GoalID: 1}))
	assert.Contains(t, tk.ManageGoal(ctx, GoalRequest{Action: "create", Name: "Car", TargetAmount: 1, TargetDate: "soon"}), `invalid target_date "soon"`)
}

func TestAnalyzeSpendingPatterns(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	tk.AddTransaction(ctx, 200, "Food & Dining", "", "expense", "2024-05-02")
	tk.AddTransaction(ctx, 100, "Transportation", "", "expense", "2024-05-12")
	tk.AddTransaction(ctx, 100, "Food & Dining", "", "expense", "2024-04-10")
	tk.AddTransaction(ctx, 5000, "Salary", "", "income", "2024-04-30")
	tk.AddTransaction(ctx, 999, "Shopping", "", "expense", "2023-01-01")

	out := tk.AnalyzeSpendingPatterns(ctx, 3)
	assert.Contains(t, out, "Spending Analysis (last 3 months):")
	assert.Contains(t, out, "Monthly Average: $200.00")
	assert.Contains(t, out, "  2024-04: $100.00\n  2024-05: $300.00")
	assert.Contains(t, out, "Top Spending Categories:\n  Food & Dining: $300.00\n  Transportation: $100.00")
	assert.NotContains(t, out, "Shopping")
	assert.NotContains(t, out, "Salary")

	assert.Contains(t, tk.AnalyzeSpendingPatterns(ctx, 0), "Spending Analysis (last 1 months):")
}

func TestNewAgent_Idempotent(t *testing.T) {
	tk := newTestToolkit(t)
	m := model.NewScriptedModel()

	first := NewAgent(m, tk)
	second := NewAgent(m, tk)

	want := []string{"add_transaction", "get_spending_summary", "manage_budget", "manage_goal", "analyze_spending_patterns"}
	assert.Equal(t, want, tool.Names(first.Tools()))
	assert.Equal(t, tool.Names(first.Tools()), tool.Names(second.Tools()))
	assert.Equal(t, MaxHistory, first.MaxHistoryMessages())
}

func TestAgent_RecordsExpense(t *testing.T) {
	tk := newTestToolkit(t)

	m := model.NewScriptedModel(
		model.Call("add_transaction", map[string]any{
			"amount":      45.0,
			"category":    "Food & Dining",
			"description": "groceries",
		}),
	)

	res := testutil.RunAgent(t, NewAgent(m, tk), "I spent $45 on groceries")

	responses := res.FunctionResponses()["add_transaction"]
	require.Len(t, responses, 1)
	assert.Equal(t, "Successfully added expense: $45.00 for Food & Dining - groceries", responses[0].Text())

	txs, err := tk.Store().Transactions(context.Background(), TransactionFilter{Type: Expense})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.InDelta(t, 45.0, txs[0].Amount, 0.001)
}
