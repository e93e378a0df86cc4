package reconciliation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgersync-backend/internal/application/importer"
	reconsvc "ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var today = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	app  *fiber.App
	db   *gorm.DB
	imp  *importer.Service
	acct *domain.Account
}

func setup(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	clock := func() time.Time { return today }
	h := &Handlers{
		Service:   &reconsvc.Service{DB: db, Now: clock},
		StaleDays: reconsvc.DefaultStaleDays,
	}
	app := fiber.New()
	app.Post("/reconciliation/exclude-stale", h.ExcludeStale)
	app.Post("/reconciliation/run", h.Reconcile)
	app.Get("/accounts/:account_id/suggestions", h.ListSuggestions)
	app.Post("/entries/:entry_id/merge", h.Merge)
	app.Post("/entries/:entry_id/dismiss", h.Dismiss)
	app.Delete("/entries/:entry_id/suggestion", h.Clear)

	return &fixture{
		app:  app,
		db:   db,
		imp:  &importer.Service{DB: db, Now: clock},
		acct: testutil.CreateAccount(t, db, "Checking", domain.AccountKindDepository),
	}
}

func (f *fixture) importTxn(t *testing.T, id, amount, name string, daysAgo int, pending bool) domain.Entry {
	t.Helper()
	out, err := f.imp.ImportTransaction(context.Background(), f.acct.ID, importer.TransactionInput{
		ExternalID: id,
		Source:     "plaid",
		Amount:     decimal.RequireFromString(amount),
		Currency:   "USD",
		Date:       today.AddDate(0, 0, -daysAgo),
		Name:       name,
		Extra:      map[string]any{"plaid": map[string]any{"pending": pending}},
	})
	require.NoError(t, err)
	return out.Entry
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestExcludeStale(t *testing.T) {
	f := setup(t)
	old := f.importTxn(t, "p-old", "10", "OLD PENDING", 12, true)
	recent := f.importTxn(t, "p-new", "10", "NEW PENDING", 2, true)

	status, out := do(t, f.app, http.MethodPost, "/reconciliation/exclude-stale", `{"account_id":"`+f.acct.ID.String()+`"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), out["data"].(map[string]any)["excluded"])

	var stale, fresh domain.Entry
	require.NoError(t, f.db.First(&stale, "id = ?", old.ID).Error)
	assert.True(t, stale.Excluded)
	require.NoError(t, f.db.First(&fresh, "id = ?", recent.ID).Error)
	assert.False(t, fresh.Excluded)
}

func TestExcludeStale_BadAccountID(t *testing.T) {
	f := setup(t)
	status, _ := do(t, f.app, http.MethodPost, "/reconciliation/exclude-stale", `{"account_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReconcile_DryRunThenApply(t *testing.T) {
	f := setup(t)
	pending := f.importTxn(t, "p-1", "42.10", "GROCERY MART", 3, true)
	f.importTxn(t, "s-1", "42.10", "GROCERY MART #12", 1, false)

	status, out := do(t, f.app, http.MethodPost, "/reconciliation/run", `{"dry_run":true}`)
	assert.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, true, data["dry_run"])
	assert.Equal(t, float64(1), data["reconciled"])

	var e domain.Entry
	require.NoError(t, f.db.First(&e, "id = ?", pending.ID).Error)
	assert.False(t, e.Excluded)

	status, out = do(t, f.app, http.MethodPost, "/reconciliation/run", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), out["data"].(map[string]any)["reconciled"])
	var applied domain.Entry
	require.NoError(t, f.db.First(&applied, "id = ?", pending.ID).Error)
	assert.True(t, applied.Excluded)
}

func TestReconcile_RejectsNegativeTolerance(t *testing.T) {
	f := setup(t)
	status, _ := do(t, f.app, http.MethodPost, "/reconciliation/run", `{"amount_tolerance":"-0.5"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSuggestionLifecycle(t *testing.T) {
	f := setup(t)
	pending := f.importTxn(t, "p-1", "20.00", "UBER EATS ORDER", 2, true)
	posted := f.importTxn(t, "s-1", "23.50", "UBER EATS ORDER 8842", 1, false)

	_, out := do(t, f.app, http.MethodPost, "/reconciliation/run", "")
	assert.Equal(t, float64(1), out["data"].(map[string]any)["suggested"])

	status, out := do(t, f.app, http.MethodGet, "/accounts/"+f.acct.ID.String()+"/suggestions", "")
	assert.Equal(t, http.StatusOK, status)
	list := out["data"].([]any)
	require.Len(t, list, 1)
	sg := list[0].(map[string]any)["suggestion"].(map[string]any)
	assert.Equal(t, posted.ID.String(), sg["entry_id"])

	status, _ = do(t, f.app, http.MethodPost, "/entries/"+pending.ID.String()+"/dismiss", "")
	assert.Equal(t, http.StatusOK, status)
	_, out = do(t, f.app, http.MethodGet, "/accounts/"+f.acct.ID.String()+"/suggestions", "")
	assert.Empty(t, out["data"].([]any))

	status, _ = do(t, f.app, http.MethodDelete, "/entries/"+pending.ID.String()+"/suggestion", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, f.app, http.MethodPost, "/entries/"+pending.ID.String()+"/merge", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestMerge(t *testing.T) {
	f := setup(t)
	pending := f.importTxn(t, "p-1", "20.00", "UBER EATS ORDER", 2, true)
	posted := f.importTxn(t, "s-1", "23.50", "UBER EATS ORDER 8842", 1, false)
	do(t, f.app, http.MethodPost, "/reconciliation/run", "")

	status, out := do(t, f.app, http.MethodPost, "/entries/"+pending.ID.String()+"/merge", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, posted.ID.String(), out["data"].(map[string]any)["posted_entry_id"])

	var n int64
	f.db.Model(&domain.Entry{}).Where("id = ?", pending.ID).Count(&n)
	assert.Zero(t, n)
}

func TestSuggestionRoutes_ErrorMapping(t *testing.T) {
	f := setup(t)
	status, _ := do(t, f.app, http.MethodPost, "/entries/not-a-uuid/merge", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, f.app, http.MethodPost, "/entries/"+uuid.NewString()+"/dismiss", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, f.app, http.MethodGet, "/accounts/nope/suggestions", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
