package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func TestHealthCheck(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	client, mr := testhelpers.SetupTestRedis(t)

	router := gin.New()
	NewHealthHandler(db, client).RegisterRoutes(router)
	probe := func() (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w.Code, decode(t, w)
	}

	code, body := probe()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["redis"])

	mr.Close()
	code, body = probe()
	assert.Equal(t, http.StatusOK, code, "redis is optional")
	assert.Equal(t, "unreachable", body["redis"])

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	code, body = probe()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealthCheckWithoutRedis(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	router := gin.New()
	NewHealthHandler(db, nil).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", decode(t, w)["redis"])
}
