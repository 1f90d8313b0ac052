package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// RecipeHandler serves recipes, favorites and the shopping cart.
type RecipeHandler struct {
	recipeService service.IRecipeService
	userService   service.IUserService
	authService   service.IAuthService
	createLimiter middleware.Limiter
	opts          Options
}

func NewRecipeHandler(recipeService service.IRecipeService, userService service.IUserService, authService service.IAuthService, createLimiter middleware.Limiter, opts Options) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		userService:   userService,
		authService:   authService,
		createLimiter: createLimiter,
		opts:          opts.withDefaults(),
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	required := middleware.AuthMiddleware(h.authService)
	optional := middleware.OptionalAuth(h.authService)

	create := []gin.HandlerFunc{required}
	if h.createLimiter != nil {
		create = append(create, middleware.RateLimitMiddleware(h.createLimiter))
	}
	create = append(create, h.CreateRecipe)

	recipes := router.Group("/recipes")
	{
		recipes.GET("/", optional, h.ListRecipes)
		recipes.POST("/", create...)
		recipes.GET("/download_shopping_cart/", required, h.DownloadShoppingCart)
		recipes.GET("/:id/", optional, h.GetRecipe)
		recipes.PATCH("/:id/", required, h.UpdateRecipe)
		recipes.DELETE("/:id/", required, h.DeleteRecipe)
		recipes.POST("/:id/favorite/", required, h.AddFavorite)
		recipes.DELETE("/:id/favorite/", required, h.RemoveFavorite)
		recipes.POST("/:id/shopping_cart/", required, h.AddToShoppingCart)
		recipes.DELETE("/:id/shopping_cart/", required, h.RemoveFromShoppingCart)
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	filter, ok := recipeFilter(c)
	if !ok {
		return
	}
	p, ok := parsePage(c, h.opts.PageSize)
	if !ok {
		return
	}

	recipes, total, err := h.recipeService.ListRecipes(c.Request.Context(), filter, viewerID(c), p.request())
	if err != nil {
		respondError(c, err)
		return
	}
	writePage(c, p, recipes, total)
}

// recipeFilter reads the listing query parameters.
func recipeFilter(c *gin.Context) (types.RecipeFilter, bool) {
	var filter types.RecipeFilter
	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"author": []string{"Enter a number."}})
			return filter, false
		}
		filter.AuthorID = uint(id)
	}
	for _, slug := range c.QueryArray("tags") {
		if slug != "" {
			filter.TagSlugs = append(filter.TagSlugs, slug)
		}
	}
	filter.IsFavorited = queryFlag(c, "is_favorited")
	filter.IsInShoppingCart = queryFlag(c, "is_in_shopping_cart")
	return filter, true
}

func queryFlag(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "True":
		return true
	}
	return false
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), id, viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	var req types.RecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := viewerID(c)
	recipe, err := h.recipeService.CreateRecipe(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req types.RecipeRequest
	if !bindJSON(c, &req) {
		return
	}

	recipe, err := h.recipeService.UpdateRecipe(c.Request.Context(), id, viewerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	userID := viewerID(c)
	if err := h.recipeService.DeleteRecipe(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) AddFavorite(c *gin.Context) {
	h.addMember(c, h.recipeService.AddFavorite)
}

func (h *RecipeHandler) RemoveFavorite(c *gin.Context) {
	h.removeMember(c, h.recipeService.RemoveFavorite)
}

func (h *RecipeHandler) AddToShoppingCart(c *gin.Context) {
	h.addMember(c, h.recipeService.AddToShoppingCart)
}

func (h *RecipeHandler) RemoveFromShoppingCart(c *gin.Context) {
	h.removeMember(c, h.recipeService.RemoveFromShoppingCart)
}

type addFunc func(ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error)

type removeFunc func(ctx context.Context, userID, recipeID uint) error

func (h *RecipeHandler) addMember(c *gin.Context, add addFunc) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	short, err := add(c.Request.Context(), viewerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, short)
}

func (h *RecipeHandler) removeMember(c *gin.Context, remove removeFunc) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), viewerID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.userService.GetUserByID(ctx, viewerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	body, err := h.recipeService.DownloadShoppingList(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ShoppingListFilename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}
