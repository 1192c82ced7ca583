package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *stack) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := setupStack(t)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User-ID"); id != "" {
			v, _ := strconv.ParseInt(id, 10, 64)
			c.Set("user_id", v)
			c.Set("role", c.GetHeader("X-Test-Role"))
		}
		c.Next()
	})
	NewHandler(s.svc).RegisterRoutes(r.Group("/api/v1"))
	return r, s
}

func doJSONRequest(r http.Handler, method, path string, body any, userID int64) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-Test-User-ID", strconv.FormatInt(userID, 10))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func TestBookingEndpoints_RequireAuth(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, path := range []string{"/api/v1/quotes", "/api/v1/bookings", "/api/v1/bookings/1/cancel"} {
		rr := doJSONRequest(r, http.MethodPost, path, map[string]any{}, 0)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestBookingEndpoints_Lifecycle(t *testing.T) {
	r, s := setupTestRouter(t)
	_, err := s.ledger.Credit(context.Background(), renterID, 10000, "topup", "card-1")
	require.NoError(t, err)

	req := s.request()
	body := map[string]any{
		"car_id":     req.CarID,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
	}

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/quotes", body, renterID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var quoteData struct {
		Quote struct {
			TotalCents int64 `json:"total_cents"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &quoteData))
	assert.Equal(t, testTotal, quoteData.Quote.TotalCents)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/bookings", body, renterID)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created CreateResult
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &created))
	path := "/api/v1/bookings/" + strconv.FormatInt(created.Booking.ID, 10)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/bookings", body, renterID)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "CAR_NOT_AVAILABLE", decode(t, rr).Error.Code)

	rr = doJSONRequest(r, http.MethodGet, path, nil, 55)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, path+"/confirm", nil, renterID)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, path+"/complete", nil, ownerID)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", decode(t, rr).Error.Code)

	rr = doJSONRequest(r, http.MethodPost, path+"/confirm", nil, ownerID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = doJSONRequest(r, http.MethodPost, path+"/start", nil, ownerID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSONRequest(r, http.MethodPost, path+"/complete", map[string]any{"extra_charge_cents": 5000}, ownerID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var completed map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &completed))
	assert.Equal(t, float64(testTotal), completed["payout_cents"])
	// renter only has 10000 - 7080 left
	assert.Equal(t, "INSUFFICIENT_FUNDS", completed["extra_charge_error"])

	rr = doJSONRequest(r, http.MethodPost, path+"/cancel", map[string]any{"reason": "too late"}, renterID)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/bookings", nil, ownerID)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestBookingEndpoints_BadInput(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/bookings", map[string]any{"car_id": 0}, renterID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/bookings/abc", nil, renterID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/bookings/999", nil, renterID)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/bookings/1/complete", map[string]any{"extra_charge_cents": -5}, ownerID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
