package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"inoff/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context) (core.Budget, error) {
	var (
		b         core.Budget
		lastTopUp string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT current_cents, last_top_up FROM budgets WHERE id = 1`,
	).Scan(&b.Current.Cents, &lastTopUp)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	b.LastTopUp, err = parseTime(lastTopUp)
	if err != nil {
		return core.Budget{}, fmt.Errorf("parse last top-up: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, current_cents, last_top_up) VALUES (1, ?, ?)`,
		b.Current.Cents, formatTime(b.LastTopUp))
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget created", "current_cents", b.Current.Cents)
	return nil
}

func setBudgetTx(ctx context.Context, tx *sql.Tx, b core.Budget) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE budgets
		 SET current_cents = ?, last_top_up = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = 1`,
		b.Current.Cents, formatTime(b.LastTopUp))
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// adjustBudgetTx moves the budget by a relative delta. The arithmetic
// happens inside SQLite, so concurrent writers from other processes
// never overwrite each other's movements.
func adjustBudgetTx(ctx context.Context, tx *sql.Tx, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE budgets
		 SET current_cents = current_cents + ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = 1`,
		deltaCents)
	if err != nil {
		return fmt.Errorf("adjust budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust budget rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ApplyTopUp adds the daily amount at most once per UTC calendar day.
// The day guard lives in the WHERE clause, so two processes racing on
// the same day resolve to a single applied top-up.
func (r *SQLiteRepository) ApplyTopUp(ctx context.Context, amountCents int64, now time.Time) (bool, error) {
	day := now.UTC().Format("2006-01-02")
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets
		 SET current_cents = current_cents + ?, last_top_up = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE id = 1 AND substr(last_top_up, 1, 10) <> ?`,
		amountCents, formatTime(now), day)
	if err != nil {
		return false, fmt.Errorf("apply top-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply top-up rows: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) GetSupplier(ctx context.Context, id uuid.UUID) (core.Supplier, error) {
	var s core.Supplier
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM suppliers WHERE id = ?`, id.String(),
	).Scan(&s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Supplier{}, core.ErrNotFound
	}
	if err != nil {
		return core.Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	s.ID = id
	return s, nil
}

func (r *SQLiteRepository) SupplierByName(ctx context.Context, name string) (core.Supplier, error) {
	var (
		s  core.Supplier
		id string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM suppliers WHERE name = ? COLLATE NOCASE`, name,
	).Scan(&id, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Supplier{}, core.ErrNotFound
	}
	if err != nil {
		return core.Supplier{}, fmt.Errorf("get supplier by name: %w", err)
	}
	s.ID, err = uuid.Parse(id)
	if err != nil {
		return core.Supplier{}, fmt.Errorf("parse supplier id: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) SearchSuppliers(ctx context.Context, prefix string, limit int) ([]core.Supplier, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM suppliers
		 WHERE name LIKE ? || '%' ESCAPE '\'
		 ORDER BY name
		 LIMIT ?`,
		escapeLike(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("search suppliers: %w", err)
	}
	defer rows.Close()

	var out []core.Supplier
	for rows.Next() {
		var (
			s  core.Supplier
			id string
		)
		if err := rows.Scan(&id, &s.Name); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse supplier id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	// ON DELETE SET NULL detaches the supplier's expenses.
	res, err := r.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete supplier rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Supplier deleted", "id", id)
	return nil
}

const expenseColumns = `e.id, e.details, e.date, e.amount_cents, e.paid, e.category, e.currency, e.photo, e.supplier_id, s.name`

func scanExpense(scanner interface{ Scan(dest ...any) error }) (core.Expense, error) {
	var (
		e            core.Expense
		id, date     string
		supplierID   sql.NullString
		supplierName sql.NullString
	)
	err := scanner.Scan(&id, &e.Details, &date, &e.Amount.Cents, &e.Paid,
		&e.Category, &e.Currency, &e.Photo, &supplierID, &supplierName)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID, err = uuid.Parse(id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense id: %w", err)
	}
	e.Date, err = parseTime(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense date: %w", err)
	}
	if supplierID.Valid {
		e.SupplierID, err = uuid.Parse(supplierID.String)
		if err != nil {
			return core.Expense{}, fmt.Errorf("parse supplier id: %w", err)
		}
	}
	if supplierName.Valid {
		e.SupplierName = supplierName.String
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e
		 LEFT JOIN suppliers s ON s.id = e.supplier_id
		 WHERE e.id = ?`, id.String())
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func insertExpenseTx(ctx context.Context, tx *sql.Tx, e core.Expense) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (id, details, date, amount_cents, paid, category, currency, photo, supplier_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Details, formatTime(e.Date), e.Amount.Cents, e.Paid,
		e.Category, e.Currency, e.Photo, supplierIDValue(e.SupplierID))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense, newSupplier *core.Supplier, budgetDeltaCents *int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if newSupplier != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO suppliers (id, name) VALUES (?, ?)`,
				newSupplier.ID.String(), newSupplier.Name); err != nil {
				return fmt.Errorf("insert supplier: %w", err)
			}
		}
		if err := insertExpenseTx(ctx, tx, e); err != nil {
			return err
		}
		if budgetDeltaCents != nil {
			return adjustBudgetTx(ctx, tx, *budgetDeltaCents)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"paid", e.Paid)
	return nil
}

// RestoreExpense re-inserts a previously deleted expense. The budget,
// when carried, is an absolute snapshot overwrite rather than a delta.
func (r *SQLiteRepository) RestoreExpense(ctx context.Context, e core.Expense, budget *core.Budget) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertExpenseTx(ctx, tx, e); err != nil {
			return err
		}
		if budget != nil {
			return setBudgetTx(ctx, tx, *budget)
		}
		return nil
	})
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense, budgetDeltaCents *int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses
			 SET details = ?, date = ?, amount_cents = ?, paid = ?, category = ?, currency = ?, photo = ?
			 WHERE id = ?`,
			e.Details, formatTime(e.Date), e.Amount.Cents, e.Paid,
			e.Category, e.Currency, e.Photo, e.ID.String())
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update expense rows: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		if budgetDeltaCents != nil {
			return adjustBudgetTx(ctx, tx, *budgetDeltaCents)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id uuid.UUID, budgetDeltaCents *int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete expense rows: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		if budgetDeltaCents != nil {
			return adjustBudgetTx(ctx, tx, *budgetDeltaCents)
		}
		return nil
	})
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		 FROM expenses e
		 LEFT JOIN suppliers s ON s.id = e.supplier_id`
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "e.date >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "e.date < ?")
		args = append(args, formatTime(f.To))
	}
	if f.Category != "" {
		conds = append(conds, "e.category = ?")
		args = append(args, f.Category)
	}
	if f.Paid != nil {
		conds = append(conds, "e.paid = ?")
		args = append(args, *f.Paid)
	}
	if f.SupplierID != uuid.Nil {
		conds = append(conds, "e.supplier_id = ?")
		args = append(args, f.SupplierID.String())
	}
	if f.Search != "" {
		conds = append(conds, `(e.details LIKE '%' || ? || '%' ESCAPE '\' OR s.name LIKE '%' || ? || '%' ESCAPE '\')`)
		term := escapeLike(f.Search)
		args = append(args, term, term)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.date DESC, e.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertAuditEvent records a consumed ledger event for offline review.
func (r *SQLiteRepository) InsertAuditEvent(ctx context.Context, eventType, expenseID string, amountCents int64, occurredAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (event_type, expense_id, amount_cents, occurred_at)
		 VALUES (?, ?, ?, ?)`,
		eventType, expenseID, amountCents, formatTime(occurredAt))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func supplierIDValue(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
