// Package storage persists accounts and balance observations in SQLite.
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

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = "2006-01-02 15:04:05"

// SQLiteRepository is the single persistence handle for the application.
// It is opened once at process start and passed into every collaborator;
// there is no ambient global.
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

// CreateAccount inserts a new account. A name collision yields
// core.ErrDuplicateName.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, acc core.Account) (core.Account, error) {
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	if acc.Type == "" {
		acc.Type = core.DefaultAccountType
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, account_type, monthly_payment_enabled, monthly_payment_cents)
		 VALUES (?, ?, ?, ?)`,
		acc.Name, acc.Type, acc.MonthlyPaymentEnabled, acc.MonthlyPayment.Cents)
	if err != nil {
		if isUniqueViolation(err, "accounts.name") {
			return core.Account{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, acc.Name)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	acc.ID = id

	slog.InfoContext(ctx, "Account created", "id", id, "name", acc.Name, "type", acc.Type)
	return acc, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return r.scanAccount(r.db.QueryRowContext(ctx,
		`SELECT id, name, account_type, monthly_payment_enabled, monthly_payment_cents, created_at
		 FROM accounts WHERE id = ?`, id), fmt.Sprintf("account %d", id))
}

func (r *SQLiteRepository) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	return r.scanAccount(r.db.QueryRowContext(ctx,
		`SELECT id, name, account_type, monthly_payment_enabled, monthly_payment_cents, created_at
		 FROM accounts WHERE name = ?`, name), fmt.Sprintf("account %q", name))
}

// ListAccounts returns all accounts ordered by name.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, account_type, monthly_payment_enabled, monthly_payment_cents, created_at
		 FROM accounts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		acc, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// UpdateAccountSettings renames/retypes an account and adjusts its
// monthly payment. Renaming onto an existing name yields
// core.ErrDuplicateName.
func (r *SQLiteRepository) UpdateAccountSettings(ctx context.Context, acc core.Account) error {
	if err := acc.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET name = ?, account_type = ?, monthly_payment_enabled = ?, monthly_payment_cents = ?
		 WHERE id = ?`,
		acc.Name, acc.Type, acc.MonthlyPaymentEnabled, acc.MonthlyPayment.Cents, acc.ID)
	if err != nil {
		if isUniqueViolation(err, "accounts.name") {
			return fmt.Errorf("%w: %q", core.ErrDuplicateName, acc.Name)
		}
		return fmt.Errorf("update account %d: %w", acc.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %d: %w", acc.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, acc.ID)
	}
	return nil
}

// DeleteAccount removes an account and all of its balance points inside
// one transaction: first the child observations, then the account row.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balance_points WHERE account_id = ?`, id); err != nil {
		return fmt.Errorf("delete balance points for account %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %d", core.ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete account %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

// UpsertBalancePoint writes the observation for (accountID, day),
// overwriting an existing one for the same day. It reports whether a new
// row was created. The unique constraint on (account_id, as_of_date)
// backs the read-then-write inside the transaction.
func (r *SQLiteRepository) UpsertBalancePoint(ctx context.Context, accountID int64, day core.Date, balance core.Money) (created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM balance_points WHERE account_id = ? AND as_of_date = ?`,
		accountID, day.ISO()).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balance_points (account_id, as_of_date, balance_cents)
			 VALUES (?, ?, ?)
			 ON CONFLICT (account_id, as_of_date) DO UPDATE SET balance_cents = excluded.balance_cents`,
			accountID, day.ISO(), balance.Cents)
		if err != nil {
			return false, fmt.Errorf("insert balance point: %w", err)
		}
		created = true
	case err != nil:
		return false, fmt.Errorf("find balance point: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE balance_points SET balance_cents = ? WHERE id = ?`,
			balance.Cents, existingID)
		if err != nil {
			return false, fmt.Errorf("update balance point %d: %w", existingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return created, nil
}

func (r *SQLiteRepository) GetBalancePoint(ctx context.Context, id int64) (core.BalancePoint, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, as_of_date, balance_cents, created_at
		 FROM balance_points WHERE id = ?`, id)
	p, err := scanPointRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BalancePoint{}, fmt.Errorf("%w: balance point %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.BalancePoint{}, fmt.Errorf("get balance point %d: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) DeleteBalancePoint(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM balance_points WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete balance point %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete balance point %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: balance point %d", core.ErrNotFound, id)
	}
	return nil
}

// ListPointsByAccount returns one account's observations ordered by date
// ascending, write order breaking (theoretically impossible) date ties.
func (r *SQLiteRepository) ListPointsByAccount(ctx context.Context, accountID int64) ([]core.BalancePoint, error) {
	return r.listPoints(ctx,
		`SELECT id, account_id, as_of_date, balance_cents, created_at
		 FROM balance_points WHERE account_id = ?
		 ORDER BY as_of_date ASC, created_at ASC, id ASC`, accountID)
}

// ListAllPoints returns every observation across all accounts ordered by
// date ascending, the input the stacked series builder expects.
func (r *SQLiteRepository) ListAllPoints(ctx context.Context) ([]core.BalancePoint, error) {
	return r.listPoints(ctx,
		`SELECT id, account_id, as_of_date, balance_cents, created_at
		 FROM balance_points
		 ORDER BY as_of_date ASC, created_at ASC, id ASC`)
}

// CurrentBalance returns the amount of the account's most recent
// observation, zero when none exist. Ties on date (only possible if the
// uniqueness constraint were bypassed) go to the most recent write.
func (r *SQLiteRepository) CurrentBalance(ctx context.Context, accountID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM balance_points
		 WHERE account_id = ?
		 ORDER BY as_of_date DESC, created_at DESC, id DESC
		 LIMIT 1`, accountID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("current balance for account %d: %w", accountID, err)
	}
	return core.Money{Cents: cents}, nil
}

// MaxPointDate returns the most recent observation date across all
// accounts. ok is false when no observations exist at all.
func (r *SQLiteRepository) MaxPointDate(ctx context.Context) (day core.Date, ok bool, err error) {
	var iso sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(as_of_date) FROM balance_points`).Scan(&iso); err != nil {
		return core.Date{}, false, fmt.Errorf("max observation date: %w", err)
	}
	if !iso.Valid {
		return core.Date{}, false, nil
	}
	day, err = core.ParseFormDate(iso.String)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("max observation date: %w", err)
	}
	return day, true, nil
}

func (r *SQLiteRepository) listPoints(ctx context.Context, query string, args ...any) ([]core.BalancePoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list balance points: %w", err)
	}
	defer rows.Close()

	var points []core.BalancePoint
	for rows.Next() {
		p, err := scanPointRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanAccount(row *sql.Row, what string) (core.Account, error) {
	acc, err := scanAccountRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("%w: %s", core.ErrNotFound, what)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get %s: %w", what, err)
	}
	return acc, nil
}

func scanAccountRow(row rowScanner) (core.Account, error) {
	var (
		acc       core.Account
		cents     int64
		createdAt string
	)
	if err := row.Scan(&acc.ID, &acc.Name, &acc.Type, &acc.MonthlyPaymentEnabled, &cents, &createdAt); err != nil {
		return core.Account{}, err
	}
	acc.MonthlyPayment = core.Money{Cents: cents}
	acc.CreatedAt = parseTimestamp(createdAt)
	return acc, nil
}

func scanPointRow(row rowScanner) (core.BalancePoint, error) {
	var (
		p         core.BalancePoint
		iso       string
		cents     int64
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.AccountID, &iso, &cents, &createdAt); err != nil {
		return core.BalancePoint{}, err
	}
	day, err := core.ParseFormDate(iso)
	if err != nil {
		return core.BalancePoint{}, err
	}
	p.Date = day
	p.Balance = core.Money{Cents: cents}
	p.CreatedAt = parseTimestamp(createdAt)
	return p, nil
}

// parseTimestamp parses SQLite's CURRENT_TIMESTAMP text form. A zero
// time is returned for anything unexpected; created_at is informational
// only (it breaks date ties that the unique constraint already prevents).
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure
// on the given column. The modernc driver exposes constraint errors as
// text only.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
