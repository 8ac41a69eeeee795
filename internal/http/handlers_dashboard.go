package http

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
	applog "github.com/AndreasDeCrinis/finance-tracker/internal/log"
)

// accountRow pairs an account with its derived current balance for
// list views.
type accountRow struct {
	core.Account
	Current core.Money
}

// handleDashboard renders the net-worth overview: per-account current
// balances, totals, and the stacked chart over the shared date axis.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List accounts failed", applog.FieldError, err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	rows := make([]accountRow, 0, len(accounts))
	var totalBalance, totalMonthly core.Money
	for _, acc := range accounts {
		current, err := s.store.CurrentBalance(ctx, acc.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Current balance failed", applog.FieldError, err, applog.FieldAccountID, acc.ID)
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
			return
		}
		rows = append(rows, accountRow{Account: acc, Current: current})
		totalBalance = totalBalance.Add(current)
		totalMonthly = totalMonthly.Add(acc.MonthlyContribution())
	}

	lastUpdate := ""
	if day, ok, err := s.store.MaxPointDate(ctx); err != nil {
		slog.ErrorContext(ctx, "Max observation date failed", applog.FieldError, err)
	} else if ok {
		lastUpdate = day.ISO()
	}

	points, err := s.store.ListAllPoints(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List observations failed", applog.FieldError, err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	labels, datasets := core.BuildStackedSeries(accounts, points)

	data := struct {
		Flash        *Flash
		Accounts     []accountRow
		TotalBalance core.Money
		TotalMonthly core.Money
		LastUpdate   string
		ChartLabels  template.JS
		ChartData    template.JS
	}{
		Flash:        popFlash(w, r),
		Accounts:     rows,
		TotalBalance: totalBalance,
		TotalMonthly: totalMonthly,
		LastUpdate:   lastUpdate,
		ChartLabels:  chartJSON(labels),
		ChartData:    chartJSON(datasets),
	}

	s.render(w, r, "dashboard.html", data)
}
