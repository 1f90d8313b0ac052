package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// ShoppingListFilename is the attachment name of the rendered list.
const ShoppingListFilename = "shopping_list.txt"

// ShoppingList sums ingredient amounts over every recipe in the user's cart.
// Lines are keyed by ingredient id, so two ingredients sharing a name stay
// separate, and come back ordered by name then id.
func (s *RecipeService) ShoppingList(ctx context.Context, userID uint) ([]types.ShoppingItem, error) {
	var items []types.ShoppingItem
	err := s.db.WithContext(ctx).
		Table("shopping_carts").
		Select("ingredients.id AS ingredient_id, ingredients.name AS name, " +
			"ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = shopping_carts.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("shopping_carts.user_id = ?", userID).
		Group("ingredients.id, ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name, ingredients.id").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shopping list: %w", err)
	}
	return items, nil
}

// DownloadShoppingList renders the user's aggregated cart as a plain-text
// attachment body.
func (s *RecipeService) DownloadShoppingList(ctx context.Context, user *models.User) ([]byte, error) {
	items, err := s.ShoppingList(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return RenderShoppingList(user.Username, items), nil
}

// RenderShoppingList formats items as a numbered list:
//
//	Foodgram shopping list for alice
//
//	1. Flour — 300 g
//
// Names are printed as stored.
func RenderShoppingList(username string, items []types.ShoppingItem) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Foodgram shopping list for %s\n\n", username)
	if len(items) == 0 {
		buf.WriteString("Your shopping cart is empty.\n")
		return buf.Bytes()
	}
	for i, item := range items {
		fmt.Fprintf(&buf, "%d. %s — %d %s\n", i+1, item.Name, item.Total, item.MeasurementUnit)
	}
	return buf.Bytes()
}
