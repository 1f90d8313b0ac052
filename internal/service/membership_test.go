package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestMembershipToggles(t *testing.T) {
	type ops struct {
		add    func(s *service.RecipeService, ctx context.Context, userID, recipeID uint) (*types.ShortRecipe, error)
		remove func(s *service.RecipeService, ctx context.Context, userID, recipeID uint) error
		model  interface{}
	}
	sets := map[string]ops{
		"favorites":     {(*service.RecipeService).AddFavorite, (*service.RecipeService).RemoveFavorite, &models.Favorite{}},
		"shopping cart": {(*service.RecipeService).AddToShoppingCart, (*service.RecipeService).RemoveFromShoppingCart, &models.ShoppingCart{}},
	}

	for name, set := range sets {
		t.Run(name, func(t *testing.T) {
			f := setupRecipeTest(t)
			ctx := context.Background()
			recipe := testhelpers.CreateRecipe(t, f.db, f.author, "Cake", []*models.Tag{f.breakfast},
				testhelpers.Amount{Ingredient: f.flour, Amount: 200})

			short, err := set.add(f.svc, ctx, f.other.ID, recipe.ID)
			require.NoError(t, err)
			assert.Equal(t, types.ShortRecipe{ID: recipe.ID, Name: "Cake", Image: recipe.Image, CookingTime: recipe.CookingTime}, *short)
			assert.Equal(t, int64(1), f.count(t, set.model))

			_, err = set.add(f.svc, ctx, f.other.ID, recipe.ID)
			var conflict *service.ConflictError
			assert.True(t, errors.As(err, &conflict), "second add must conflict, got %v", err)
			assert.Equal(t, int64(1), f.count(t, set.model))

			require.NoError(t, set.remove(f.svc, ctx, f.other.ID, recipe.ID))
			assert.Zero(t, f.count(t, set.model))

			err = set.remove(f.svc, ctx, f.other.ID, recipe.ID)
			assert.True(t, errors.As(err, &conflict), "removing a non-member must conflict, got %v", err)
			assert.Zero(t, f.count(t, set.model))

			_, err = set.add(f.svc, ctx, f.other.ID, 9999)
			assert.ErrorIs(t, err, service.ErrNotFound)
			assert.ErrorIs(t, set.remove(f.svc, ctx, f.other.ID, 9999), service.ErrNotFound)
		})
	}
}
