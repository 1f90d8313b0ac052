package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TokenClaims), args.Error(1)
}

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", mw, func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "authenticated": ok})
	})
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	validator := new(mockValidator)
	validator.On("ValidateToken", mock.Anything, "good").Return(&types.TokenClaims{UserID: 7}, nil)
	validator.On("ValidateToken", mock.Anything, "revoked").Return(nil, service.ErrInvalidToken)
	validator.On("ValidateToken", mock.Anything, "broken").Return(nil, errors.New("redis down"))
	router := newAuthRouter(AuthMiddleware(validator))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"token scheme", "Token good", http.StatusOK, `{"authenticated":true,"user_id":7}`},
		{"bearer scheme", "Bearer good", http.StatusOK, `{"authenticated":true,"user_id":7}`},
		{"missing header", "", http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`},
		{"unknown scheme", "Basic good", http.StatusUnauthorized, `{"detail":"Invalid authorization header format."}`},
		{"no token", "Token", http.StatusUnauthorized, `{"detail":"Invalid authorization header format."}`},
		{"invalid token", "Token revoked", http.StatusUnauthorized, `{"detail":"Invalid token."}`},
		{"validator failure", "Token broken", http.StatusServiceUnavailable, `{"detail":"Authentication is temporarily unavailable."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.header)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	validator := new(mockValidator)
	validator.On("ValidateToken", mock.Anything, "good").Return(&types.TokenClaims{UserID: 7}, nil)
	validator.On("ValidateToken", mock.Anything, "bad").Return(nil, service.ErrInvalidToken)
	router := newAuthRouter(OptionalAuth(validator))

	w := serve(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false,"user_id":0}`, w.Body.String())

	w = serve(router, "Token good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":true,"user_id":7}`, w.Body.String())

	w = serve(router, "Token bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
