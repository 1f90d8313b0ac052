package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/foodgram/backend/internal/service"
)

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.auth.On("Login", mock.Anything, "alice@example.com", "s3cret-pass").Return("jwt-token", nil)

		w := a.request(http.MethodPost, "/api/auth/token/login/", map[string]string{
			"email":    "alice@example.com",
			"password": "s3cret-pass",
		}, false)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"auth_token":"jwt-token"}`, w.Body.String())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.auth.On("Login", mock.Anything, "alice@example.com", "wrong").Return("", service.ErrInvalidCredentials)

		w := a.request(http.MethodPost, "/api/auth/token/login/", map[string]string{
			"email":    "alice@example.com",
			"password": "wrong",
		}, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"non_field_errors":["Unable to log in with provided credentials."]}`, w.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		a := newTestAPI(t, nil)

		w := a.request(http.MethodPost, "/api/auth/token/login/", map[string]string{"email": "alice@example.com"}, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"password":["This field is required."]}`, w.Body.String())
	})

	t.Run("malformed json", func(t *testing.T) {
		a := newTestAPI(t, nil)

		w := a.request(http.MethodPost, "/api/auth/token/login/", `{"email":`, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w), "detail")
	})
}

func TestLogout(t *testing.T) {
	t.Run("revokes the token", func(t *testing.T) {
		a := newTestAPI(t, nil)
		claims := a.loginAs(1)
		a.auth.On("Logout", mock.Anything, claims).Return(nil)

		w := a.request(http.MethodPost, "/api/auth/token/logout/", nil, true)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("requires a token", func(t *testing.T) {
		a := newTestAPI(t, nil)

		w := a.request(http.MethodPost, "/api/auth/token/logout/", nil, false)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, w.Body.String())
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.auth.On("ValidateToken", mock.Anything, testToken).Return(nil, service.ErrInvalidToken)

		w := a.request(http.MethodPost, "/api/auth/token/logout/", nil, true)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Invalid token."}`, w.Body.String())
	})
}
