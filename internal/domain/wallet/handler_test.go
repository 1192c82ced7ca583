package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := setupTestService(t)
	h := NewHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User-ID"); userID != "" {
			c.Set("user_id", int64(42))
		}
		c.Next()
	})

	v1 := r.Group("/api/v1")
	h.RegisterRoutes(v1)
	h.RegisterAdminRoutes(v1.Group("/admin"))
	return r, svc
}

func doJSONRequest(r http.Handler, method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("X-Test-User-ID", "42")
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestWalletEndpoints_Unauthorized(t *testing.T) {
	r, _ := setupTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{method: http.MethodGet, path: "/api/v1/wallets/me"},
		{method: http.MethodGet, path: "/api/v1/wallets/me/transactions"},
		{method: http.MethodPost, path: "/api/v1/wallets/me/withdrawals", body: map[string]any{"amount": 10}},
	}

	for _, tc := range cases {
		rr := doJSONRequest(r, tc.method, tc.path, tc.body, false)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestWalletEndpoints_CreditAndWithdraw(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/admin/wallets/42/credits", map[string]any{
		"amount":         1500,
		"reference_type": "insurance_payout",
		"reference_id":   "claim-7",
	}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/wallets/me/withdrawals", map[string]any{"amount": 2000}, true)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "INSUFFICIENT_FUNDS")

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/wallets/me/withdrawals", map[string]any{"amount": 500}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/wallets/me", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Wallet Wallet `json:"wallet"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(1000), body.Data.Wallet.AvailableBalance)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/wallets/me/transactions?limit=10", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"debit"`)
	assert.Contains(t, rr.Body.String(), `"kind":"credit"`)
}

func TestWalletEndpoints_InvalidBody(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/wallets/me/withdrawals", map[string]any{"amount": 0}, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/admin/wallets/abc/credits", map[string]any{"amount": 1}, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWalletEndpoints_FloorAndReconciliation(t *testing.T) {
	r, svc := setupTestRouter(t)
	_, err := svc.Credit(context.Background(), 42, 1000, "topup", "t-1")
	require.NoError(t, err)

	rr := doJSONRequest(r, http.MethodPut, "/api/v1/admin/wallets/42/floor", map[string]any{"floor": 800}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/wallets/me/withdrawals", map[string]any{"amount": 300}, true)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/admin/wallets/42/reconciliation", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"balanced":true`)
}
