package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"phone-rental-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)
	return w
}

func TestOK(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		OK(c, gin.H{"balance": 8100})
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestError_AppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, apperror.ErrInsufficientFunds())
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAY_001", resp.ErrorCode)
	assert.Contains(t, resp.Message, "Số dư không đủ")
}

func TestError_RateLimitedSetsRetryAfter(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, apperror.ErrRateLimited(12))
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "12", w.Header().Get("Retry-After"))
}

func TestError_UnknownErrorMapsTo500(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("something unexpected"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_000", resp.ErrorCode)
}

func TestError_WrappedAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		wrapped := apperror.Wrap("UP_001", "Hệ thống nhà cung cấp đang bận", http.StatusBadGateway, errors.New("dial timeout"))
		Error(c, wrapped)
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	// Internal error detail must not leak to the client
	assert.NotContains(t, w.Body.String(), "dial timeout")
}
