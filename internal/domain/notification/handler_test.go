package notification

import (
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

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := setupTestService(t)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User-ID"); id != "" {
			v, _ := strconv.ParseInt(id, 10, 64)
			c.Set("user_id", v)
		}
		c.Next()
	})
	RegisterRoutes(r.Group("/api/v1"), NewHandler(svc))
	return r, svc
}

func doRequest(r http.Handler, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.Header.Set("X-Test-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestNotificationEndpoints(t *testing.T) {
	r, svc := setupTestRouter(t)
	ctx := context.Background()
	require.NoError(t, svc.NotifyPayoutReceived(ctx, 7, 11, 8000))
	require.NoError(t, svc.NotifyPayoutReceived(ctx, 7, 12, 500))

	rr := doRequest(r, http.MethodGet, "/api/v1/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(r, http.MethodGet, "/api/v1/notifications?limit=1", "7")
	require.Equal(t, http.StatusOK, rr.Code)
	var listResp struct {
		Success bool                     `json:"success"`
		Data    NotificationListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	assert.True(t, listResp.Success)
	assert.Len(t, listResp.Data.Notifications, 1)
	assert.Equal(t, int64(2), listResp.Data.UnreadCount)
	assert.Equal(t, int64(2), listResp.Data.Total)

	id := listResp.Data.Notifications[0].ID
	rr = doRequest(r, http.MethodPost, "/api/v1/notifications/"+strconv.FormatInt(id, 10)+"/read", "8")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(r, http.MethodPost, "/api/v1/notifications/"+strconv.FormatInt(id, 10)+"/read", "7")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(r, http.MethodPost, "/api/v1/notifications/abc/read", "7")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(r, http.MethodGet, "/api/v1/notifications/unread-count", "7")
	require.Equal(t, http.StatusOK, rr.Code)
	var countResp struct {
		Data UnreadCountResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &countResp))
	assert.Equal(t, int64(1), countResp.Data.UnreadCount)

	rr = doRequest(r, http.MethodPost, "/api/v1/notifications/read-all", "7")
	assert.Equal(t, http.StatusOK, rr.Code)
}
