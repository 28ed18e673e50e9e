package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/auth"
	"stockledger/internal/engine/enginetest"
	"stockledger/internal/infrastructure/export"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/pkg/logger"
)

func auditActions(m *audit.Memory) []audit.Action {
	entries := m.Entries()
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

type apiTest struct {
	t       *testing.T
	f       *enginetest.Fixture
	router  *gin.Engine
	jwt     *auth.JWTService
	auditor *audit.Memory
	ready   error
}

func newAPI(t *testing.T) *apiTest {
	t.Helper()

	f := enginetest.New(t)
	f.MapAll()

	a := &apiTest{
		t:       t,
		f:       f,
		jwt:     auth.NewJWTService(auth.DefaultJWTConfig("test-secret", "stockledger-test")),
		auditor: &audit.Memory{},
	}
	a.router = NewRouter(RouterConfig{
		Engine:       f.Engine,
		Logger:       logger.NewNop(),
		JWTValidator: a.jwt,
		Auditor:      a.auditor,
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return a.ready },
		},
	})
	return a
}

func (a *apiTest) token(perms ...security.Permission) string {
	a.t.Helper()
	if perms == nil {
		perms = []security.Permission{
			security.PermissionRecordEvents,
			security.PermissionReadReports,
			security.PermissionClosePeriod,
		}
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	tok, _, err := a.jwt.GenerateAccessToken(appctx.UserContext{
		UserID:      "user-1",
		Permissions: names,
		OrgIDs:      []string{a.f.OrgID.String()},
	})
	require.NoError(a.t, err)
	return tok
}

func (a *apiTest) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *apiTest) receipt(receiptID string, itemID id.ID, qty, unitCost string, at time.Time) map[string]any {
	return map[string]any{
		"orgId":      a.f.OrgID,
		"branchId":   a.f.BranchID,
		"receiptId":  receiptID,
		"receivedAt": at,
		"lines": []map[string]any{
			{"itemId": itemID, "qty": qty, "unitCost": unitCost},
		},
	}
}

func (a *apiTest) ensurePeriod(year, month int) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/inventory/periods", a.token(), map[string]any{
		"orgId":    a.f.OrgID,
		"branchId": a.f.BranchID,
		"year":     year,
		"month":    month,
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode(a.t, w)["id"].(string)
}

func TestHealth(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.ready = errors.New("connection refused")
	w = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["checks"].(map[string]any)["database"], "connection refused")
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/api/v1/inventory/journals?orgId="+api.f.OrgID.String(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/inventory/journals?orgId="+api.f.OrgID.String(), "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuth_RequiresPermission(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	readOnly := api.token(security.PermissionReadReports)
	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", readOnly,
		api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, auditActions(api.auditor))
}

func TestAuth_RejectsForeignOrg(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	body := api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10))
	body["orgId"] = id.New()
	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(), body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w)["code"])
}

func TestPostReceipt_CreatedThenReplayed(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")
	body := api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10))

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)
	assert.Equal(t, false, first["replayed"])
	require.Len(t, first["results"], 1)

	w = api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["replayed"])

	assert.Equal(t, []audit.Action{audit.ActionPostReceipt}, auditActions(api.auditor))
}

func TestRecordEvent_ValidationErrors(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	w := api.do(http.MethodPost, "/api/v1/inventory/events", api.token(), map[string]any{
		"orgId": api.f.OrgID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/inventory/events", api.token(), map[string]any{
		"orgId":      api.f.OrgID,
		"branchId":   api.f.BranchID,
		"itemId":     item,
		"eventType":  "SALE",
		"qtyDelta":   "-1",
		"sourceType": "ORDER",
		"sourceId":   "ord-1",
		"occurredAt": enginetest.Day(2026, 3, 10),
		"payload":    map[string]any{"kind": "refund", "data": map[string]any{}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordEvent_InsufficientStock(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	w := api.do(http.MethodPost, "/api/v1/inventory/events", api.token(), map[string]any{
		"orgId":      api.f.OrgID,
		"branchId":   api.f.BranchID,
		"itemId":     item,
		"eventType":  "SALE",
		"qtyDelta":   "-1",
		"sourceType": "ORDER",
		"sourceId":   "ord-1",
		"occurredAt": enginetest.Day(2026, 3, 10),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, w)["code"])
}

func TestPeriodClose_BlockedByAnnouncedReceipt(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")
	at := enginetest.Day(2026, 3, 10)
	periodID := api.ensurePeriod(2026, 3)

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/announce", api.token(),
		api.receipt("gr-1", item, "10", "2.50", at))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/preclose", api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode(t, w)
	assert.Equal(t, false, report["canClose"])
	blockers := report["blockers"].([]any)
	require.Len(t, blockers, 1)
	assert.Equal(t, "PENDING_RECEIPTS", blockers[0].(map[string]any)["code"])

	w = api.do(http.MethodPost, "/api/v1/inventory/periods/"+periodID+"/close", api.token(), map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PERIOD_BLOCKED", decode(t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(),
		api.receipt("gr-1", item, "10", "2.50", at))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	closer := api.token(security.PermissionClosePeriod)
	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/preclose", closer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["canClose"])
}

func TestPeriodClose_FreezesReports(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")
	at := enginetest.Day(2026, 3, 10)
	periodID := api.ensurePeriod(2026, 3)

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(),
		api.receipt("gr-1", item, "10", "2.50", at))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/v1/inventory/orders/deplete", api.token(), map[string]any{
		"orgId":       api.f.OrgID,
		"branchId":    api.f.BranchID,
		"orderId":     "ord-1",
		"completedAt": at.Add(time.Hour),
		"lines":       []map[string]any{{"itemId": item, "qty": "4"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/v1/inventory/periods/"+periodID+"/close", api.token(), map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	closed := decode(t, w)
	assert.Equal(t, "CLOSED", closed["period"].(map[string]any)["status"])

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/valuation", api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	val := decode(t, w)
	assert.Equal(t, true, val["frozen"])
	assert.True(t, types.MustMoney("15").Equal(types.MustMoney(val["totalValue"].(string))), val["totalValue"])

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/movements", api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["rows"], 2)

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/history", api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = api.do(http.MethodPost, "/api/v1/inventory/orders/deplete", api.token(), map[string]any{
		"orgId":       api.f.OrgID,
		"branchId":    api.f.BranchID,
		"orderId":     "ord-2",
		"completedAt": at.Add(2 * time.Hour),
		"lines":       []map[string]any{{"itemId": item, "qty": "1"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PERIOD_ALREADY_CLOSED", decode(t, w)["code"])

	assert.Equal(t, []audit.Action{
		audit.ActionEnsurePeriod,
		audit.ActionPostReceipt,
		audit.ActionDeplete,
		audit.ActionClosePeriod,
	}, auditActions(api.auditor))
}

func TestValuation_ExportsWorkbook(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")
	periodID := api.ensurePeriod(2026, 3)

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(),
		api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+periodID+"/valuation?format=xlsx", api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "valuation-2026-03.xlsx")

	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(export.ValuationSheet)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(rows), 2)
}

func TestPeriods_NotFoundAndBadID(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/api/v1/inventory/periods/not-a-uuid", api.token(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/inventory/periods/"+id.New().String(), api.token(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJournals_ListsPostedEntries(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(),
		api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/v1/inventory/journals?orgId="+api.f.OrgID.String(), api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 100, body["limit"])

	w = api.do(http.MethodGet, "/api/v1/inventory/journals", api.token(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHistory(t *testing.T) {
	api := newAPI(t)
	item := api.f.Item("flour", "dry")

	w := api.do(http.MethodPost, "/api/v1/inventory/goods-receipts/post", api.token(),
		api.receipt("gr-1", item, "10", "2.50", enginetest.Day(2026, 3, 10)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	path := "/api/v1/inventory/audit?orgId=" + api.f.OrgID.String() + "&entityType=goods_receipt&entityId=gr-1"
	w = api.do(http.MethodGet, path, api.token(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	entry := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, string(audit.ActionPostReceipt), entry["action"])
	assert.Equal(t, "user-1", entry["userId"])

	w = api.do(http.MethodGet, "/api/v1/inventory/audit?orgId="+api.f.OrgID.String(), api.token(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/inventory/audit?orgId="+id.New().String()+"&entityType=goods_receipt&entityId=gr-1", api.token(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
