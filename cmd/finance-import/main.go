// Command finance-import loads balance points from a CSV export into the
// SQLite database used by finance-tracker.
//
// Usage:
//
//	finance-import <csv-file>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AndreasDeCrinis/finance-tracker/internal/cli"
	"github.com/AndreasDeCrinis/finance-tracker/internal/importer"
	applog "github.com/AndreasDeCrinis/finance-tracker/internal/log"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <csv-file>\n", os.Args[0])
		os.Exit(2)
	}
	path := os.Args[1]

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	f, err := os.Open(path)
	if err != nil {
		logger.Error("Failed to open CSV file", applog.FieldError, err, "path", path)
		os.Exit(1)
	}
	defer f.Close()

	stats, err := importer.New(repo).Run(context.Background(), f)
	if err != nil {
		logger.Error("Import failed", applog.FieldError, err, "path", path)
		os.Exit(1)
	}

	fmt.Printf("Rows read:        %d\n", stats.RowsTotal)
	fmt.Printf("Accounts created: %d\n", stats.CreatedAccounts)
	fmt.Printf("Points inserted:  %d\n", stats.InsertedPoints)
	fmt.Printf("Points updated:   %d\n", stats.UpdatedPoints)
	fmt.Printf("Rows skipped:     %d\n", stats.SkippedRows)
}
