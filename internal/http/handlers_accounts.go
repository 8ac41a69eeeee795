package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
	applog "github.com/AndreasDeCrinis/finance-tracker/internal/log"
)

func (s *Server) handleAccountsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "List accounts failed", applog.FieldError, err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	rows := make([]accountRow, 0, len(accounts))
	for _, acc := range accounts {
		current, err := s.store.CurrentBalance(ctx, acc.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Current balance failed", applog.FieldError, err, applog.FieldAccountID, acc.ID)
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
			return
		}
		rows = append(rows, accountRow{Account: acc, Current: current})
	}

	data := struct {
		Flash    *Flash
		Accounts []accountRow
	}{
		Flash:    popFlash(w, r),
		Accounts: rows,
	}
	s.render(w, r, "accounts.html", data)
}

// accountForm holds the fields shared by the create and settings forms.
type accountForm struct {
	Name           string
	Type           string
	MonthlyEnabled bool
	MonthlyAmount  core.Money
}

// parseAccountForm validates the shared account form fields. The
// returned message is flash-ready when err is non-nil.
func parseAccountForm(r *http.Request) (accountForm, string, error) {
	form := accountForm{
		Name:           sanitizeInput(r.FormValue("name")),
		Type:           sanitizeInput(r.FormValue("account_type")),
		MonthlyEnabled: r.FormValue("monthly_enabled") == "on",
	}
	if form.Type == "" {
		form.Type = core.DefaultAccountType
	}
	if form.Name == "" {
		return form, "Account name is required.", core.ErrMissingValue
	}

	raw := r.FormValue("monthly_amount")
	if raw == "" {
		raw = "0"
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return form, "Monthly payment amount is not a valid number.", err
	}
	if !form.MonthlyEnabled {
		amount = core.Money{}
	}
	form.MonthlyAmount = amount
	return form, "", nil
}

func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form, msg, err := parseAccountForm(r)
	if err != nil {
		setFlash(w, "danger", msg)
		http.Redirect(w, r, "/accounts", http.StatusSeeOther)
		return
	}

	_, err = s.store.CreateAccount(r.Context(), core.Account{
		Name:                  form.Name,
		Type:                  form.Type,
		MonthlyPaymentEnabled: form.MonthlyEnabled,
		MonthlyPayment:        form.MonthlyAmount,
	})
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		setFlash(w, "warning", "An account with that name already exists.")
	case err != nil:
		slog.ErrorContext(r.Context(), "Create account failed", applog.FieldError, err, applog.FieldAccountName, form.Name)
		setFlash(w, "danger", "Could not create the account.")
	default:
		setFlash(w, "success", "Account created.")
	}
	http.Redirect(w, r, "/accounts", http.StatusSeeOther)
}

func (s *Server) handleAccountDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	acc, err := s.store.GetAccount(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Get account failed", applog.FieldError, err, applog.FieldAccountID, id)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	points, err := s.store.ListPointsByAccount(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "List observations failed", applog.FieldError, err, applog.FieldAccountID, id)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	labels, values := core.BuildAccountSeries(points)

	// Newest first for the table; the chart keeps ascending order.
	table := make([]core.BalancePoint, len(points))
	for i, p := range points {
		table[len(points)-1-i] = p
	}

	data := struct {
		Flash       *Flash
		Account     core.Account
		Current     core.Money
		Points      []core.BalancePoint
		Today       string
		ChartLabels template.JS
		ChartValues template.JS
	}{
		Flash:       popFlash(w, r),
		Account:     acc,
		Current:     core.CurrentBalance(points),
		Points:      table,
		Today:       core.Today().ISO(),
		ChartLabels: chartJSON(labels),
		ChartValues: chartJSON(values),
	}
	s.render(w, r, "account_detail.html", data)
}

func (s *Server) handleAccountSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detailURL := fmt.Sprintf("/accounts/%d", id)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form, msg, err := parseAccountForm(r)
	if err != nil {
		setFlash(w, "danger", msg)
		http.Redirect(w, r, detailURL, http.StatusSeeOther)
		return
	}

	err = s.store.UpdateAccountSettings(r.Context(), core.Account{
		ID:                    id,
		Name:                  form.Name,
		Type:                  form.Type,
		MonthlyPaymentEnabled: form.MonthlyEnabled,
		MonthlyPayment:        form.MonthlyAmount,
	})
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		setFlash(w, "warning", "Another account already uses that name.")
	case errors.Is(err, core.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Update account failed", applog.FieldError, err, applog.FieldAccountID, id)
		setFlash(w, "danger", "Could not update the settings.")
	default:
		setFlash(w, "success", "Settings updated.")
	}
	http.Redirect(w, r, detailURL, http.StatusSeeOther)
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.store.DeleteAccount(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Delete account failed", applog.FieldError, err, applog.FieldAccountID, id)
		setFlash(w, "danger", "Could not delete the account.")
		http.Redirect(w, r, fmt.Sprintf("/accounts/%d", id), http.StatusSeeOther)
		return
	}

	setFlash(w, "info", "Account deleted.")
	http.Redirect(w, r, "/accounts", http.StatusSeeOther)
}
