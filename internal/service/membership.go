package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// membership describes a per-user recipe set backed by a (user_id,
// recipe_id) table.
type membership struct {
	name    string
	model   func(userID, recipeID uint) interface{}
	present string
	absent  string
}

var (
	favorites = membership{
		name: "favorites",
		model: func(userID, recipeID uint) interface{} {
			return &models.Favorite{UserID: userID, RecipeID: recipeID}
		},
		present: "Recipe is already in favorites.",
		absent:  "Recipe is not in favorites.",
	}
	shoppingCart = membership{
		name: "shopping cart",
		model: func(userID, recipeID uint) interface{} {
			return &models.ShoppingCart{UserID: userID, RecipeID: recipeID}
		},
		present: "Recipe is already in the shopping cart.",
		absent:  "Recipe is not in the shopping cart.",
	}
)

// AddFavorite bookmarks a recipe for the user.
func (s *RecipeService) AddFavorite(ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error) {
	return s.addMember(ctx, favorites, userID, recipeID)
}

// RemoveFavorite drops a bookmark.
func (s *RecipeService) RemoveFavorite(ctx context.Context, userID, recipeID uint) error {
	return s.removeMember(ctx, favorites, userID, recipeID)
}

// AddToShoppingCart queues a recipe for the user's shopping list.
func (s *RecipeService) AddToShoppingCart(ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error) {
	return s.addMember(ctx, shoppingCart, userID, recipeID)
}

// RemoveFromShoppingCart takes a recipe out of the cart.
func (s *RecipeService) RemoveFromShoppingCart(ctx context.Context, userID, recipeID uint) error {
	return s.removeMember(ctx, shoppingCart, userID, recipeID)
}

func (s *RecipeService) addMember(ctx context.Context, m membership, userID, recipeID uint) (*types.ShortRecipe, error) {
	recipe, err := s.findRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(m.model(0, 0)).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", m.name, err)
	}
	if count > 0 {
		return nil, &ConflictError{Message: m.present}
	}

	// The unique index catches a concurrent insert that passed the check.
	if err := db.Create(m.model(userID, recipeID)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: m.present}
		}
		return nil, fmt.Errorf("failed to add recipe to %s: %w", m.name, err)
	}

	logger.Debug("recipe added", "set", m.name, "user_id", userID, "recipe_id", recipeID)
	short := types.NewShortRecipe(recipe)
	return &short, nil
}

func (s *RecipeService) removeMember(ctx context.Context, m membership, userID, recipeID uint) error {
	if _, err := s.findRecipe(ctx, recipeID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(m.model(0, 0))
	if result.Error != nil {
		return fmt.Errorf("failed to remove recipe from %s: %w", m.name, result.Error)
	}
	if result.RowsAffected == 0 {
		return &ConflictError{Message: m.absent}
	}

	logger.Debug("recipe removed", "set", m.name, "user_id", userID, "recipe_id", recipeID)
	return nil
}
