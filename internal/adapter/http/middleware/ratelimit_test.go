package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phone-rental-gateway/internal/antispam"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(limiter *antispam.Limiter, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.POST("/op", func(c *gin.Context) {
		c.Set(CtxUserID, userID)
	}, AntiSpam(limiter, "rental_tier1", nil, zerolog.Nop()), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAntiSpam_AllowsUnderThreshold(t *testing.T) {
	limiter := antispam.NewWithPolicy(time.Minute, 3, 30*time.Second)
	defer limiter.Stop()
	r := limitedRouter(limiter, uuid.New())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/op", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
}

func TestAntiSpam_TripsAndSetsRetryAfter(t *testing.T) {
	limiter := antispam.NewWithPolicy(time.Minute, 2, 30*time.Second)
	defer limiter.Stop()
	r := limitedRouter(limiter, uuid.New())

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/op", nil)
		r.ServeHTTP(w, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_001")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAntiSpam_KeysPerUser(t *testing.T) {
	limiter := antispam.NewWithPolicy(time.Minute, 1, 30*time.Second)
	defer limiter.Stop()

	first := limitedRouter(limiter, uuid.New())
	second := limitedRouter(limiter, uuid.New())

	// Trip the first user.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		first.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/op", nil))
	}

	// The second user is unaffected.
	w := httptest.NewRecorder()
	second.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/op", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAntiSpam_RejectsUnauthenticated(t *testing.T) {
	limiter := antispam.New()
	defer limiter.Stop()

	r := gin.New()
	r.POST("/op", AntiSpam(limiter, "rental_tier1", nil, zerolog.Nop()), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/op", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
