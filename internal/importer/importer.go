// Package importer loads balance observations from delimited text files.
//
// The expected header is date, accountname, balance (case-insensitive).
// Rows are processed independently: a row that cannot be parsed is
// skipped with a logged reason and never aborts the batch.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
)

// sampleSize caps how much of the file feeds delimiter detection.
const sampleSize = 4096

// Store is the persistence surface the importer needs.
type Store interface {
	GetAccountByName(ctx context.Context, name string) (core.Account, error)
	CreateAccount(ctx context.Context, acc core.Account) (core.Account, error)
	UpsertBalancePoint(ctx context.Context, accountID int64, day core.Date, balance core.Money) (created bool, err error)
}

// Stats is the per-run import report.
type Stats struct {
	RowsTotal       int
	CreatedAccounts int
	InsertedPoints  int
	UpdatedPoints   int
	SkippedRows     int
}

type Importer struct {
	store Store
}

func New(store Store) *Importer {
	return &Importer{store: store}
}

// DetectDelimiter picks the delimiter for a CSV sample by counting the
// candidates (tab, comma, semicolon) in the sample's first line. Tab is
// the default when nothing matches and wins ties.
func DetectDelimiter(sample string) rune {
	line := sample
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		line = sample[:i]
	}

	best, bestCount := '\t', 0
	for _, cand := range []rune{'\t', ',', ';'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// Run imports all rows from r. Parse failures degrade to per-row skips;
// only I/O and storage failures abort the batch. The returned Stats are
// valid even on error.
func (imp *Importer) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats

	data, err := io.ReadAll(r)
	if err != nil {
		return stats, fmt.Errorf("read import source: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff") // tolerate a UTF-8 BOM

	sample := text
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	delim := DetectDelimiter(sample)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return stats, err
	}

	slog.InfoContext(ctx, "Import started", "delimiter", string(delim))

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.RowsTotal++
		if err != nil {
			stats.SkippedRows++
			slog.WarnContext(ctx, "Skipping malformed row", "row", stats.RowsTotal, "error", err)
			continue
		}

		if err := imp.importRow(ctx, &stats, cols, record); err != nil {
			return stats, err
		}
	}

	slog.InfoContext(ctx, "Import finished",
		"rows_total", stats.RowsTotal,
		"created_accounts", stats.CreatedAccounts,
		"inserted_points", stats.InsertedPoints,
		"updated_points", stats.UpdatedPoints,
		"skipped_rows", stats.SkippedRows)

	return stats, nil
}

// columns holds the positions of the required header fields.
type columns struct {
	date    int
	account int
	balance int
}

func headerIndex(header []string) (columns, error) {
	cols := columns{date: -1, account: -1, balance: -1}
	for i, field := range header {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "date":
			cols.date = i
		case "accountname":
			cols.account = i
		case "balance":
			cols.balance = i
		}
	}
	if cols.date < 0 || cols.account < 0 || cols.balance < 0 {
		return cols, fmt.Errorf("csv must contain headers date, accountname, balance; found %v", header)
	}
	return cols, nil
}

// importRow upserts one observation, creating the account on first
// mention. Parse errors are counted and logged, not returned; storage
// errors are returned and abort the batch.
func (imp *Importer) importRow(ctx context.Context, stats *Stats, cols columns, record []string) error {
	skip := func(reason string, args ...any) {
		stats.SkippedRows++
		slog.WarnContext(ctx, "Skipping row", append([]any{"row", stats.RowsTotal, "reason", reason}, args...)...)
	}

	max := cols.date
	if cols.account > max {
		max = cols.account
	}
	if cols.balance > max {
		max = cols.balance
	}
	if len(record) <= max {
		skip("too few fields", "fields", len(record))
		return nil
	}

	name := strings.TrimSpace(record[cols.account])
	if name == "" {
		skip("empty accountname")
		return nil
	}

	day, err := core.ParseImportDate(record[cols.date])
	if err != nil {
		skip("unparseable date", "value", record[cols.date], "error", err)
		return nil
	}

	balance, err := core.ParseAmount(record[cols.balance])
	if err != nil {
		skip("unparseable balance", "value", record[cols.balance], "error", err)
		return nil
	}

	acc, err := imp.store.GetAccountByName(ctx, name)
	if errors.Is(err, core.ErrNotFound) {
		acc, err = imp.store.CreateAccount(ctx, core.Account{Name: name, Type: "other"})
		if err != nil {
			return fmt.Errorf("create account %q: %w", name, err)
		}
		stats.CreatedAccounts++
	} else if err != nil {
		return fmt.Errorf("look up account %q: %w", name, err)
	}

	created, err := imp.store.UpsertBalancePoint(ctx, acc.ID, day, balance)
	if err != nil {
		return fmt.Errorf("upsert balance for %q on %s: %w", name, day.ISO(), err)
	}
	if created {
		stats.InsertedPoints++
	} else {
		stats.UpdatedPoints++
	}
	return nil
}
