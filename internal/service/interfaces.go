package service

import (
	"context"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	GenerateToken(user *models.User) (string, error)
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
	Logout(ctx context.Context, claims *types.TokenClaims) error
}

// IUserService defines the interface for account and subscription operations
type IUserService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUser(ctx context.Context, id, viewerID uint) (*types.UserResponse, error)
	ListUsers(ctx context.Context, viewerID uint, page types.PageRequest) ([]types.UserResponse, int64, error)
	SetPassword(ctx context.Context, userID uint, currentPassword, newPassword string) error
	Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*types.SubscriptionResponse, error)
	Unsubscribe(ctx context.Context, userID, authorID uint) error
	Subscriptions(ctx context.Context, userID uint, page types.PageRequest, recipesLimit int) ([]types.SubscriptionResponse, int64, error)
}

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, authorID uint, req *types.RecipeRequest) (*types.RecipeResponse, error)
	GetRecipe(ctx context.Context, id, viewerID uint) (*types.RecipeResponse, error)
	UpdateRecipe(ctx context.Context, id, userID uint, req *types.RecipeRequest) (*types.RecipeResponse, error)
	DeleteRecipe(ctx context.Context, id, userID uint) error
	ListRecipes(ctx context.Context, filter types.RecipeFilter, viewerID uint, page types.PageRequest) ([]types.RecipeResponse, int64, error)
	AddFavorite(ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error)
	RemoveFavorite(ctx context.Context, userID, recipeID uint) error
	AddToShoppingCart(ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error)
	RemoveFromShoppingCart(ctx context.Context, userID, recipeID uint) error
	DownloadShoppingList(ctx context.Context, user *models.User) ([]byte, error)
}

// ITagService defines the interface for tag lookups
type ITagService interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
}

// IIngredientService defines the interface for ingredient lookups
type IIngredientService interface {
	ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error)
}

var (
	_ IAuthService       = (*AuthService)(nil)
	_ IUserService       = (*UserService)(nil)
	_ IRecipeService     = (*RecipeService)(nil)
	_ ITagService        = (*TagService)(nil)
	_ IIngredientService = (*IngredientService)(nil)
)
