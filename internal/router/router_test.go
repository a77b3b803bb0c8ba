package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beanstamp/internal/authz"
	"github.com/beanstamp/internal/config"
	"github.com/beanstamp/internal/models"
	"github.com/beanstamp/internal/provider"

	"github.com/gin-gonic/gin"
)

type apiEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type routerTestEnv struct {
	engine    *gin.Engine
	container *provider.Container
}

func setupRouterTest(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	if err := models.InitDB("sqlite", dsn, "release", models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
		t.Fatalf("init db failed: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.StaffJWT.SecretKey = "staff-secret-for-router-tests"
	cfg.CustomerJWT.SecretKey = "customer-secret-for-router-tests"
	cfg.Verification.WindowSeconds = 60
	cfg.Verification.BackupCodeLength = 6
	cfg.Redemption.DailyLimit = 1
	cfg.Redemption.Timezone = "UTC"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	container := provider.NewContainer(cfg)
	return &routerTestEnv{engine: SetupRouter(cfg, container), container: container}
}

func (e *routerTestEnv) staffToken(t *testing.T, role string) string {
	t.Helper()
	token, _, err := e.container.TokenService.IssueStaffToken("staff-"+role, "shop-1", role, time.Hour)
	if err != nil {
		t.Fatalf("issue staff token failed: %v", err)
	}
	return token
}

func (e *routerTestEnv) customerToken(t *testing.T, customerID string) string {
	t.Helper()
	token, _, err := e.container.TokenService.IssueCustomerToken(customerID, time.Hour)
	if err != nil {
		t.Fatalf("issue customer token failed: %v", err)
	}
	return token
}

func (e *routerTestEnv) call(t *testing.T, method, path, token string, body interface{}) apiEnvelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status want 200 got %d", method, path, w.Code)
	}
	var resp apiEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %s %s failed: %v", method, path, err)
	}
	return resp
}

func TestLoyaltyFlowThroughHTTP(t *testing.T) {
	env := setupRouterTest(t)
	barista := env.staffToken(t, authz.RoleBarista)

	ticketResp := env.call(t, http.MethodPost, "/api/v1/customer/verification", env.customerToken(t, "cust-1"), nil)
	if ticketResp.StatusCode != 0 {
		t.Fatalf("begin verification failed: %+v", ticketResp)
	}
	var ticket struct {
		SessionToken string `json:"session_token"`
		BackupCode   string `json:"backup_code"`
	}
	if err := json.Unmarshal(ticketResp.Data, &ticket); err != nil {
		t.Fatalf("decode ticket failed: %v", err)
	}

	resolved := env.call(t, http.MethodPost, "/api/v1/staff/verifications/resolve", barista, map[string]string{"token": ticket.BackupCode})
	if resolved.StatusCode != 0 {
		t.Fatalf("resolve failed: %+v", resolved)
	}
	var verification struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.Unmarshal(resolved.Data, &verification); err != nil {
		t.Fatalf("decode verification failed: %v", err)
	}
	if verification.CustomerID != "cust-1" {
		t.Fatalf("resolved customer want cust-1 got %s", verification.CustomerID)
	}

	credit := map[string]interface{}{
		"customer_id":     "cust-1",
		"amount":          30,
		"reason":          "scan_credit",
		"idempotency_key": "order-1",
		"session_token":   ticket.SessionToken,
	}
	first := env.call(t, http.MethodPost, "/api/v1/staff/credits", barista, credit)
	if first.StatusCode != 0 {
		t.Fatalf("credit failed: %+v", first)
	}
	replay := env.call(t, http.MethodPost, "/api/v1/staff/credits", barista, credit)
	var replayed struct {
		Replayed bool `json:"replayed"`
	}
	if err := json.Unmarshal(replay.Data, &replayed); err != nil || !replayed.Replayed {
		t.Fatalf("second credit with same key should replay, got %+v", replay)
	}

	redeem := env.call(t, http.MethodPost, "/api/v1/staff/redemptions", barista, map[string]interface{}{
		"customer_id": "cust-1", "cost": 10, "idempotency_key": "redeem-1",
	})
	if redeem.StatusCode != 0 {
		t.Fatalf("redeem failed: %+v", redeem)
	}
	capped := env.call(t, http.MethodPost, "/api/v1/staff/redemptions", barista, map[string]interface{}{
		"customer_id": "cust-1", "cost": 10, "idempotency_key": "redeem-2",
	})
	if capped.StatusCode != 409 {
		t.Fatalf("second redemption of the day want 409 got %+v", capped)
	}

	statement := env.call(t, http.MethodGet, "/api/v1/staff/accounts/cust-1", barista, nil)
	var stmt struct {
		Account struct {
			PointBalance int64 `json:"point_balance"`
		} `json:"account"`
		LedgerConsistent bool `json:"ledger_consistent"`
	}
	if err := json.Unmarshal(statement.Data, &stmt); err != nil {
		t.Fatalf("decode statement failed: %v", err)
	}
	if stmt.Account.PointBalance != 20 || !stmt.LedgerConsistent {
		t.Fatalf("unexpected statement: %+v", stmt)
	}

	accounts := env.call(t, http.MethodGet, "/api/v1/customer/accounts", env.customerToken(t, "cust-1"), nil)
	var list []map[string]interface{}
	if err := json.Unmarshal(accounts.Data, &list); err != nil || len(list) != 1 {
		t.Fatalf("customer should see one account, got %s", string(accounts.Data))
	}
}

func TestStaffRolesGateManagerRoutes(t *testing.T) {
	env := setupRouterTest(t)
	now := time.Now().UTC()
	body := map[string]interface{}{
		"name":     "Latte week",
		"type":     "discount",
		"start_at": now.Add(-time.Hour).Format(time.RFC3339),
		"end_at":   now.Add(24 * time.Hour).Format(time.RFC3339),
	}

	denied := env.call(t, http.MethodPost, "/api/v1/staff/campaigns", env.staffToken(t, authz.RoleBarista), body)
	if denied.StatusCode != 403 {
		t.Fatalf("barista create campaign want 403 got %d", denied.StatusCode)
	}
	created := env.call(t, http.MethodPost, "/api/v1/staff/campaigns", env.staffToken(t, authz.RoleManager), body)
	if created.StatusCode != 0 {
		t.Fatalf("manager create campaign failed: %+v", created)
	}
	var campaign struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(created.Data, &campaign); err != nil {
		t.Fatalf("decode campaign failed: %v", err)
	}
	if campaign.Status != "active" {
		t.Fatalf("campaign inside its window should be active, got %s", campaign.Status)
	}

	joined := env.call(t, http.MethodPost, fmt.Sprintf("/api/v1/staff/campaigns/%d/participants", campaign.ID), env.staffToken(t, authz.RoleBarista), map[string]string{"customer_id": "cust-9"})
	if joined.StatusCode != 0 {
		t.Fatalf("barista should record participation: %+v", joined)
	}

	missing := env.call(t, http.MethodGet, "/api/v1/staff/campaigns/9999", env.staffToken(t, authz.RoleBarista), nil)
	if missing.StatusCode != 404 {
		t.Fatalf("unknown campaign want 404 got %d", missing.StatusCode)
	}

	anonymous := env.call(t, http.MethodGet, "/api/v1/staff/rewards", "", nil)
	if anonymous.StatusCode != 401 {
		t.Fatalf("anonymous staff call want 401 got %d", anonymous.StatusCode)
	}
}

func TestStaffPermissionCatalogListsStaffRoutes(t *testing.T) {
	env := setupRouterTest(t)
	items := buildStaffPermissionCatalog(env.engine)
	found := false
	for _, item := range items {
		if item.Permission == "POST:/staff/credits" {
			found = true
			if item.Module != "credits" {
				t.Fatalf("credits module want credits got %s", item.Module)
			}
		}
		if item.Object == "/metrics" || item.Object == "/health" {
			t.Fatalf("ops routes should not be in the staff catalog")
		}
	}
	if !found {
		t.Fatalf("catalog should include POST:/staff/credits")
	}
	if got := deriveStaffPermissionModule("/staff/campaigns/:id/pause"); got != "campaigns" {
		t.Fatalf("module want campaigns got %s", got)
	}
}

func TestManagerCoversEveryStaffRoute(t *testing.T) {
	env := setupRouterTest(t)
	items := buildStaffPermissionCatalog(env.engine)
	if len(items) == 0 {
		t.Fatalf("expected staff routes in catalog")
	}
	for _, item := range items {
		allow, err := env.container.AuthzService.EnforceRole(authz.RoleManager, item.Object, item.Method)
		if err != nil {
			t.Fatalf("enforce %s failed: %v", item.Permission, err)
		}
		if !allow {
			t.Fatalf("manager has no policy for %s", item.Permission)
		}
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := setupRouterTest(t)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"database":"up"`)) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics want 200 got %d", w.Code)
	}
}
