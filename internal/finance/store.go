package finance

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrGoalNotFound is returned when a goal id does not exist.
var ErrGoalNotFound = errors.New("goal not found")

// TransactionType is income or expense.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// ParseTransactionType accepts "income" or "expense" in any case. An empty
// value means expense.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Expense):
		return Expense, nil
	case string(Income):
		return Income, nil
	default:
		return "", fmt.Errorf("invalid transaction_type %q (use income or expense)", s)
	}
}

// Goal statuses.
const (
	GoalActive    = "active"
	GoalAchieved  = "achieved"
	GoalCancelled = "cancelled"
)

type Transaction struct {
	ID          int64
	Date        time.Time
	Amount      float64
	Category    string
	Description string
	Type        TransactionType
	CreatedAt   time.Time
}

type Budget struct {
	ID        int64
	Category  string
	Amount    float64
	Period    string
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

type Goal struct {
	ID            int64
	Name          string
	TargetAmount  float64
	CurrentAmount float64
	TargetDate    *time.Time
	Status        string
	CreatedAt     time.Time
}

// Progress is the saved share of the target in percent.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}

	return g.CurrentAmount / g.TargetAmount * 100
}

// TransactionFilter narrows Transactions. Zero fields do not filter.
type TransactionFilter struct {
	Start    time.Time
	End      time.Time
	Category string
	Type     TransactionType
}

// Store persists transactions, budgets and goals in SQLite. Timestamps are
// stored as unix seconds.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Pass ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection keeps ":memory:" a single database and avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := migrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}

		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// migrationVersion extracts 1 from "001_init.sql".
func migrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename %q", name)
	}

	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %q: %w", name, err)
	}

	return v, nil
}

// AddTransaction inserts t and sets its ID and CreatedAt.
func (s *Store) AddTransaction(ctx context.Context, t *Transaction) error {
	if t.Date.IsZero() {
		t.Date = time.Now()
	}

	t.CreatedAt = time.Now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (date, amount, category, description, transaction_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Date.Unix(), t.Amount, t.Category, t.Description, string(t.Type), t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	t.ID, err = res.LastInsertId()

	return err
}

// Transactions returns matching transactions, newest first.
func (s *Store) Transactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)

	if !f.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.Start.Unix())
	}

	if !f.End.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.End.Unix())
	}

	if f.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, f.Category)
	}

	if f.Type != "" {
		where = append(where, "transaction_type = ?")
		args = append(args, string(f.Type))
	}

	query := "SELECT id, date, amount, category, description, transaction_type, created_at FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction

	for rows.Next() {
		var (
			t             Transaction
			date, created int64
			typ           string
		)

		if err := rows.Scan(&t.ID, &date, &t.Amount, &t.Category, &t.Description, &typ, &created); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		t.Date = time.Unix(date, 0)
		t.CreatedAt = time.Unix(created, 0)
		t.Type = TransactionType(typ)
		out = append(out, t)
	}

	return out, rows.Err()
}

// SpendingByCategory sums expenses per category between start and end.
func (s *Store) SpendingByCategory(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	txs, err := s.Transactions(ctx, TransactionFilter{Start: start, End: end, Type: Expense})
	if err != nil {
		return nil, err
	}

	spending := make(map[string]float64)
	for _, t := range txs {
		spending[t.Category] += t.Amount
	}

	return spending, nil
}

// Total sums the transactions of one type between start and end.
func (s *Store) Total(ctx context.Context, typ TransactionType, start, end time.Time) (float64, error) {
	var total sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM transactions WHERE transaction_type = ? AND date >= ? AND date <= ?`,
		string(typ), start.Unix(), end.Unix(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing %s: %w", typ, err)
	}

	return total.Float64, nil
}

// CreateBudget ends any active budget of the category and starts a new one.
func (s *Store) CreateBudget(ctx context.Context, category string, amount float64, period string) (Budget, error) {
	if period == "" {
		period = "monthly"
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Budget{}, fmt.Errorf("beginning budget transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE budgets SET end_date = ? WHERE category = ? COLLATE NOCASE AND end_date IS NULL`,
		now.Unix(), category,
	); err != nil {
		return Budget{}, fmt.Errorf("ending previous budget: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO budgets (category, amount, period, start_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		category, amount, period, now.Unix(), now.Unix(),
	)
	if err != nil {
		return Budget{}, fmt.Errorf("inserting budget: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Budget{}, err
	}

	if err := tx.Commit(); err != nil {
		return Budget{}, fmt.Errorf("committing budget: %w", err)
	}

	return Budget{ID: id, Category: category, Amount: amount, Period: period, StartDate: now, CreatedAt: now}, nil
}

// Budgets lists budgets in creation order; activeOnly drops ended ones.
func (s *Store) Budgets(ctx context.Context, activeOnly bool) ([]Budget, error) {
	query := "SELECT id, category, amount, period, start_date, end_date, created_at FROM budgets"
	if activeOnly {
		query += " WHERE end_date IS NULL"
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying budgets: %w", err)
	}
	defer rows.Close()

	var out []Budget

	for rows.Next() {
		var (
			b              Budget
			start, created int64
			end            sql.NullInt64
		)

		if err := rows.Scan(&b.ID, &b.Category, &b.Amount, &b.Period, &start, &end, &created); err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}

		b.StartDate = time.Unix(start, 0)
		b.CreatedAt = time.Unix(created, 0)
		b.EndDate = nullTime(end)
		out = append(out, b)
	}

	return out, rows.Err()
}

// CreateGoal inserts g. A goal that starts at or above its target is
// achieved right away.
func (s *Store) CreateGoal(ctx context.Context, g Goal) (Goal, error) {
	g.Status = GoalActive
	if g.CurrentAmount >= g.TargetAmount {
		g.Status = GoalAchieved
	}

	g.CreatedAt = time.Now()

	var target sql.NullInt64
	if g.TargetDate != nil {
		target = sql.NullInt64{Int64: g.TargetDate.Unix(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (name, target_amount, current_amount, target_date, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.Name, g.TargetAmount, g.CurrentAmount, target, g.Status, g.CreatedAt.Unix(),
	)
	if err != nil {
		return Goal{}, fmt.Errorf("inserting goal: %w", err)
	}

	g.ID, err = res.LastInsertId()

	return g, err
}

// UpdateGoalProgress sets the saved amount of a goal and marks it achieved
// once the target is reached.
func (s *Store) UpdateGoalProgress(ctx context.Context, id int64, amount float64) (Goal, error) {
	g, err := s.goal(ctx, id)
	if err != nil {
		return Goal{}, err
	}

	g.CurrentAmount = amount
	if g.CurrentAmount >= g.TargetAmount {
		g.Status = GoalAchieved
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE goals SET current_amount = ?, status = ? WHERE id = ?`,
		g.CurrentAmount, g.Status, id,
	); err != nil {
		return Goal{}, fmt.Errorf("updating goal %d: %w", id, err)
	}

	return g, nil
}

func (s *Store) goal(ctx context.Context, id int64) (Goal, error) {
	rows, err := s.queryGoals(ctx, "WHERE id = ?", id)
	if err != nil {
		return Goal{}, err
	}

	if len(rows) == 0 {
		return Goal{}, fmt.Errorf("%w: %d", ErrGoalNotFound, id)
	}

	return rows[0], nil
}

// Goals lists goals with one of the given statuses, or all goals when none
// are given.
func (s *Store) Goals(ctx context.Context, statuses ...string) ([]Goal, error) {
	if len(statuses) == 0 {
		return s.queryGoals(ctx, "")
	}

	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")

	return s.queryGoals(ctx, "WHERE status IN ("+placeholders+")", args...)
}

func (s *Store) queryGoals(ctx context.Context, where string, args ...any) ([]Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, target_amount, current_amount, target_date, status, created_at FROM goals "+where+" ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying goals: %w", err)
	}
	defer rows.Close()

	var out []Goal

	for rows.Next() {
		var (
			g       Goal
			target  sql.NullInt64
			created int64
		)

		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &target, &g.Status, &created); err != nil {
			return nil, fmt.Errorf("scanning goal: %w", err)
		}

		g.TargetDate = nullTime(target)
		g.CreatedAt = time.Unix(created, 0)
		out = append(out, g)
	}

	return out, rows.Err()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}

	t := time.Unix(v.Int64, 0)

	return &t
}
