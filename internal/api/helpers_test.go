package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/mocks"
	"github.com/pageza/foodgram/backend/internal/types"
)

const testToken = "test-token"

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router      *gin.Engine
	auth        *mocks.MockAuthService
	users       *mocks.MockUserService
	recipes     *mocks.MockRecipeService
	tags        *mocks.MockTagService
	ingredients *mocks.MockIngredientService
}

func newTestAPI(t *testing.T, limiter middleware.Limiter) *testAPI {
	t.Helper()
	a := &testAPI{
		router:      gin.New(),
		auth:        new(mocks.MockAuthService),
		users:       new(mocks.MockUserService),
		recipes:     new(mocks.MockRecipeService),
		tags:        new(mocks.MockTagService),
		ingredients: new(mocks.MockIngredientService),
	}
	a.router.Use(middleware.ErrorHandler())
	RegisterRoutes(a.router, Services{
		Auth:          a.auth,
		Users:         a.users,
		Recipes:       a.recipes,
		Tags:          a.tags,
		Ingredients:   a.ingredients,
		RecipeLimiter: limiter,
	}, Options{})

	t.Cleanup(func() {
		a.auth.AssertExpectations(t)
		a.users.AssertExpectations(t)
		a.recipes.AssertExpectations(t)
		a.tags.AssertExpectations(t)
		a.ingredients.AssertExpectations(t)
	})
	return a
}

// loginAs makes testToken resolve to userID.
func (a *testAPI) loginAs(userID uint) *types.TokenClaims {
	claims := &types.TokenClaims{UserID: userID, Username: "alice"}
	a.auth.On("ValidateToken", mock.Anything, testToken).Return(claims, nil)
	return claims
}

// request sends body as JSON, or verbatim when it is a string. When authed
// is set the request carries testToken.
func (a *testAPI) request(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Token "+testToken)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

