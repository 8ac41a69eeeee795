package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/AndreasDeCrinis/finance-tracker/internal/core"
	"github.com/AndreasDeCrinis/finance-tracker/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewServer(":0", repo, Options{}), repo
}

func postForm(srv *Server, path, form string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestDashboardAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("dashboard status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Total balance") {
		t.Fatalf("dashboard body missing totals")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAccountCreateAndDuplicate(t *testing.T) {
	srv, repo := newTestServer(t)

	rr := postForm(srv, "/accounts/create", "name=Checking&account_type=bank")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("create status=%d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/accounts" {
		t.Fatalf("create redirect=%q", loc)
	}
	if _, err := repo.GetAccountByName(context.Background(), "Checking"); err != nil {
		t.Fatalf("account not stored: %v", err)
	}

	// Same name again redirects with a warning flash instead of failing.
	rr = postForm(srv, "/accounts/create", "name=Checking&account_type=bank")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("duplicate status=%d", rr.Code)
	}
	flash := rr.Header().Get("Set-Cookie")
	if !strings.Contains(flash, "warning") {
		t.Fatalf("expected warning flash cookie, got %q", flash)
	}
}

func TestAccountCreateMissingName(t *testing.T) {
	srv, repo := newTestServer(t)

	rr := postForm(srv, "/accounts/create", "name=&account_type=bank")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status=%d", rr.Code)
	}
	accounts, err := repo.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected no accounts, got %d", len(accounts))
	}
}

func TestBalanceAddAndOverwrite(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Depot", Type: "depot"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	path := "/accounts/" + itoa(acc.ID) + "/balances/add"

	rr := postForm(srv, path, "as_of_date=2024-03-01&balance=1.234,56")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("add status=%d", rr.Code)
	}

	// Second write for the same date replaces the first.
	rr = postForm(srv, path, "as_of_date=2024-03-01&balance=2.000,00")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("overwrite status=%d", rr.Code)
	}

	points, err := repo.ListPointsByAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("list points: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Balance.Cents != 200000 {
		t.Fatalf("expected 200000 cents, got %d", points[0].Balance.Cents)
	}

	// Detail page renders the stored balance.
	rr2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts/"+itoa(acc.ID), nil)
	srv.Handler.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("detail status=%d", rr2.Code)
	}
	if !strings.Contains(rr2.Body.String(), "2000.00") {
		t.Fatalf("detail body missing balance")
	}
}

func TestBalanceAddRejectsBadInput(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Bank", Type: "bank"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	path := "/accounts/" + itoa(acc.ID) + "/balances/add"

	for _, form := range []string{
		"as_of_date=01.03.2024&balance=100",
		"as_of_date=2024-03-01&balance=abc",
	} {
		rr := postForm(srv, path, form)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("form %q status=%d", form, rr.Code)
		}
		if !strings.Contains(rr.Header().Get("Set-Cookie"), "danger") {
			t.Fatalf("form %q expected danger flash", form)
		}
	}

	points, err := repo.ListPointsByAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("list points: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points, got %d", len(points))
	}
}

func TestAccountNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/accounts/999", "/accounts/notanumber"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAccountDeleteCascades(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	acc, err := repo.CreateAccount(ctx, core.Account{Name: "Old", Type: "bank"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	day, _ := core.ParseFormDate("2024-01-15")
	if _, err := repo.UpsertBalancePoint(ctx, acc.ID, day, core.Money{Cents: 5000}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rr := postForm(srv, "/accounts/"+itoa(acc.ID)+"/delete", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", rr.Code)
	}

	if _, err := repo.GetAccount(ctx, acc.ID); err == nil {
		t.Fatalf("account still present after delete")
	}
	all, err := repo.ListAllPoints(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no points after cascade, got %d", len(all))
	}
}

func TestImportUpload(t *testing.T) {
	srv, repo := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "balances.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("date;accountname;balance\n15.01.2024;Imported;1.000,00\n"))
	_ = mw.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("import status=%d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("import redirect=%q", loc)
	}

	acc, err := repo.GetAccountByName(context.Background(), "Imported")
	if err != nil {
		t.Fatalf("imported account missing: %v", err)
	}
	points, err := repo.ListPointsByAccount(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("list points: %v", err)
	}
	if len(points) != 1 || points[0].Balance.Cents != 100000 {
		t.Fatalf("unexpected imported points: %+v", points)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
