package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// UserHandler serves accounts and subscriptions.
type UserHandler struct {
	userService service.IUserService
	authService service.IAuthService
	opts        Options
}

func NewUserHandler(userService service.IUserService, authService service.IAuthService, opts Options) *UserHandler {
	return &UserHandler{userService: userService, authService: authService, opts: opts.withDefaults()}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	required := middleware.AuthMiddleware(h.authService)
	optional := middleware.OptionalAuth(h.authService)

	users := router.Group("/users")
	{
		users.POST("/", h.Register)
		users.GET("/", optional, h.ListUsers)
		users.GET("/me/", required, h.Me)
		users.POST("/set_password/", required, h.SetPassword)
		users.GET("/subscriptions/", required, h.Subscriptions)
		users.GET("/:id/", optional, h.GetUser)
		users.POST("/:id/subscribe/", required, h.Subscribe)
		users.DELETE("/:id/subscribe/", required, h.Unsubscribe)
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, types.CreatedUserResponse{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	p, ok := parsePage(c, h.opts.PageSize)
	if !ok {
		return
	}
	users, total, err := h.userService.ListUsers(c.Request.Context(), viewerID(c), p.request())
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, p, users, total)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), id, viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Me(c *gin.Context) {
	id := viewerID(c)
	user, err := h.userService.GetUser(c.Request.Context(), id, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.SetPassword(c.Request.Context(), viewerID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	p, ok := parsePage(c, h.opts.SubscriptionPageSize)
	if !ok {
		return
	}
	subs, total, err := h.userService.Subscriptions(c.Request.Context(), viewerID(c), p.request(), h.recipesLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, p, subs, total)
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	authorID, ok := idParam(c)
	if !ok {
		return
	}
	view, err := h.userService.Subscribe(c.Request.Context(), viewerID(c), authorID, h.recipesLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	authorID, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.userService.Unsubscribe(c.Request.Context(), viewerID(c), authorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recipesLimit reads ?recipes_limit=, falling back to the configured
// preview size when it is absent or malformed.
func (h *UserHandler) recipesLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("recipes_limit"))
	if err != nil || limit < 0 {
		return h.opts.RecipesLimit
	}
	return limit
}
