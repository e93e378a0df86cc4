package activity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	activitysvc "ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/importer"
	"ledgersync-backend/internal/domain"
	"ledgersync-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Detector: &activitysvc.Detector{DB: db, Now: func() time.Time { return now }}}
	app := fiber.New()
	app.Post("/activity/infer-label", h.InferLabel)
	app.Get("/accounts/:account_id/activity/recent", h.Recent)
	return app, db
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func labelOf(out map[string]any) any {
	return out["data"].(map[string]any)["label"]
}

func TestInferLabel(t *testing.T) {
	app, db := setup(t)

	status, out := call(t, app, http.MethodPost, "/activity/infer-label", `{"name":"QUALIFIED DIVIDEND VTI","amount":"-12.40"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(domain.LabelDividend), labelOf(out))

	_, out = call(t, app, http.MethodPost, "/activity/infer-label", `{"name":"BOOKSTORE","amount":"4.50"}`)
	assert.Nil(t, labelOf(out))

	plan := testutil.CreateAccount(t, db, "Acme 401(k) Plan", domain.AccountKindInvestment)
	_, out = call(t, app, http.MethodPost, "/activity/infer-label",
		`{"name":"VANGUARD 500 INDEX FUND","amount":"-250","account_id":"`+plan.ID.String()+`"}`)
	assert.Equal(t, string(domain.LabelContribution), labelOf(out))
}

func TestInferLabel_Validation(t *testing.T) {
	app, _ := setup(t)
	cases := []struct {
		body string
		want int
	}{
		{`{"amount":"1"}`, http.StatusBadRequest},
		{`{"name":"FEE","amount":"abc"}`, http.StatusBadRequest},
		{`{"name":"FEE","amount":"1","account_id":"bad"}`, http.StatusBadRequest},
		{`{"name":"FEE","amount":"1","account_id":"` + uuid.NewString() + `"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		status, _ := call(t, app, http.MethodPost, "/activity/infer-label", tc.body)
		assert.Equal(t, tc.want, status, tc.body)
	}
}

func TestRecent(t *testing.T) {
	app, db := setup(t)
	acct := testutil.CreateAccount(t, db, "Brokerage", domain.AccountKindInvestment)
	imp := &importer.Service{DB: db, Now: func() time.Time { return now }}
	for i, daysAgo := range []int{2, 40} {
		_, err := imp.ImportTransaction(context.Background(), acct.ID, importer.TransactionInput{
			ExternalID: uuid.NewString(),
			Source:     "plaid",
			Amount:     decimal.NewFromInt(int64(100 * (i + 1))),
			Currency:   "USD",
			Date:       now.AddDate(0, 0, -daysAgo),
			Name:       "BUY VTI",
		})
		require.NoError(t, err)
	}

	status, out := call(t, app, http.MethodGet, "/accounts/"+acct.ID.String()+"/activity/recent", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"].([]any), 1)
	assert.Equal(t, float64(30), out["metadata"].(map[string]any)["days"])

	_, out = call(t, app, http.MethodGet, "/accounts/"+acct.ID.String()+"/activity/recent?days=60", "")
	assert.Len(t, out["data"].([]any), 2)
}
