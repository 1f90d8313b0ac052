package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Auth          service.IAuthService
	Users         service.IUserService
	Recipes       service.IRecipeService
	Tags          service.ITagService
	Ingredients   service.IIngredientService
	RecipeLimiter middleware.Limiter
}

// Options tunes list sizes and the request body cap.
type Options struct {
	PageSize             int
	SubscriptionPageSize int
	RecipesLimit         int
	MaxBodyBytes         int64
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 9
	}
	if o.SubscriptionPageSize <= 0 {
		o.SubscriptionPageSize = 3
	}
	if o.RecipesLimit <= 0 {
		o.RecipesLimit = 3
	}
	if o.MaxBodyBytes <= 0 {
		// Room for a base64 encoded image at the decoded size limit.
		o.MaxBodyBytes = 8 << 20
	}
	return o
}

// RegisterRoutes mounts the Foodgram API under /api.
func RegisterRoutes(router *gin.Engine, svcs Services, opts Options) *gin.RouterGroup {
	opts = opts.withDefaults()
	group := router.Group("/api", middleware.BodyLimit(opts.MaxBodyBytes))

	NewAuthHandler(svcs.Auth).RegisterRoutes(group)
	NewUserHandler(svcs.Users, svcs.Auth, opts).RegisterRoutes(group)
	NewRecipeHandler(svcs.Recipes, svcs.Users, svcs.Auth, svcs.RecipeLimiter, opts).RegisterRoutes(group)
	NewCatalogHandler(svcs.Tags, svcs.Ingredients).RegisterRoutes(group)

	return group
}

// idParam parses the :id path parameter. Anything that is not a positive
// integer cannot name a row, so it answers 404.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, errNotFoundBody)
		return 0, false
	}
	return uint(id), true
}

// viewerID is the authenticated caller or 0 for anonymous requests.
func viewerID(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}
