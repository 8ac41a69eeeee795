package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
	applog "github.com/AndreasDeCrinis/finance-tracker/internal/log"
)

func (s *Server) handleBalanceAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detailURL := fmt.Sprintf("/accounts/%d", id)
	ctx := r.Context()

	if _, err := s.store.GetAccount(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(ctx, "Get account failed", applog.FieldError, err, applog.FieldAccountID, id)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	day, err := core.ParseFormDate(r.FormValue("as_of_date"))
	if err != nil {
		setFlash(w, "danger", "Date must be in YYYY-MM-DD format.")
		http.Redirect(w, r, detailURL, http.StatusSeeOther)
		return
	}

	balance, err := core.ParseAmount(r.FormValue("balance"))
	if err != nil {
		setFlash(w, "danger", "Balance is not a valid number.")
		http.Redirect(w, r, detailURL, http.StatusSeeOther)
		return
	}

	created, err := s.store.UpsertBalancePoint(ctx, id, day, balance)
	if err != nil {
		slog.ErrorContext(ctx, "Upsert observation failed",
			applog.FieldError, err, applog.FieldAccountID, id, applog.FieldDate, day.ISO())
		setFlash(w, "danger", "Could not save the balance.")
		http.Redirect(w, r, detailURL, http.StatusSeeOther)
		return
	}

	slog.InfoContext(ctx, "Observation saved",
		applog.FieldAccountID, id, applog.FieldDate, day.ISO(), applog.FieldBalanceCents, balance.Cents)
	if created {
		setFlash(w, "success", "Balance point added.")
	} else {
		setFlash(w, "success", "Balance updated for that date.")
	}
	http.Redirect(w, r, detailURL, http.StatusSeeOther)
}

func (s *Server) handleBalanceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	point, err := s.store.GetBalancePoint(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Get observation failed", applog.FieldError, err, "point_id", id)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	if err := s.store.DeleteBalancePoint(ctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
		slog.ErrorContext(ctx, "Delete observation failed", applog.FieldError, err, "point_id", id)
		setFlash(w, "danger", "Could not delete the balance point.")
	} else {
		setFlash(w, "info", "Balance point deleted.")
	}
	http.Redirect(w, r, fmt.Sprintf("/accounts/%d", point.AccountID), http.StatusSeeOther)
}

// handleImport accepts a multipart CSV upload and runs the row-at-a-time
// importer over it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.importMaxBytes)

	if err := r.ParseMultipartForm(s.importMaxBytes); err != nil {
		setFlash(w, "danger", "Upload too large or malformed.")
		http.Redirect(w, r, "/accounts", http.StatusSeeOther)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		setFlash(w, "danger", "Choose a CSV file to import.")
		http.Redirect(w, r, "/accounts", http.StatusSeeOther)
		return
	}
	defer file.Close()

	stats, err := s.importer.Run(ctx, file)
	if err != nil {
		slog.ErrorContext(ctx, "Import failed", applog.FieldError, err)
		setFlash(w, "danger", fmt.Sprintf("Import failed: %v", err))
		http.Redirect(w, r, "/accounts", http.StatusSeeOther)
		return
	}

	setFlash(w, "success", fmt.Sprintf(
		"Import finished: %d rows, %d new accounts, %d inserted, %d updated, %d skipped.",
		stats.RowsTotal, stats.CreatedAccounts, stats.InsertedPoints, stats.UpdatedPoints, stats.SkippedRows))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
