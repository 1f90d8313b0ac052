package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

type recipeFixture struct {
	db        *gorm.DB
	svc       *service.RecipeService
	images    *memImageStore
	author    *models.User
	other     *models.User
	breakfast *models.Tag
	lunch     *models.Tag
	flour     *models.Ingredient
	sugar     *models.Ingredient
	egg       *models.Ingredient
}

func setupRecipeTest(t *testing.T) *recipeFixture {
	db := testhelpers.SetupTestDatabase(t)
	images := newMemImageStore()
	return &recipeFixture{
		db:        db,
		svc:       service.NewRecipeService(db, images),
		images:    images,
		author:    testhelpers.CreateUser(t, db, "author"),
		other:     testhelpers.CreateUser(t, db, "other"),
		breakfast: testhelpers.CreateTag(t, db, "Breakfast", "breakfast"),
		lunch:     testhelpers.CreateTag(t, db, "Lunch", "lunch"),
		flour:     testhelpers.CreateIngredient(t, db, "Flour", "g"),
		sugar:     testhelpers.CreateIngredient(t, db, "Sugar", "g"),
		egg:       testhelpers.CreateIngredient(t, db, "Egg", "pcs"),
	}
}

func (f *recipeFixture) request(name string) *types.RecipeRequest {
	return &types.RecipeRequest{
		Tags: []uint{f.breakfast.ID},
		Ingredients: []types.IngredientAmount{
			{ID: f.flour.ID, Amount: 200},
			{ID: f.sugar.ID, Amount: 50},
		},
		Name:        ptr(name),
		Text:        ptr("Mix and bake."),
		Image:       ptr(pngDataURL()),
		CookingTime: ptr(30),
	}
}

func (f *recipeFixture) storedIngredients(t *testing.T, recipeID uint) map[uint]int {
	var rows []models.RecipeIngredient
	require.NoError(t, f.db.Where("recipe_id = ?", recipeID).Find(&rows).Error)
	got := make(map[uint]int, len(rows))
	for _, row := range rows {
		got[row.IngredientID] = row.Amount
	}
	assert.Len(t, got, len(rows), "ingredient rows must not repeat")
	return got
}

func (f *recipeFixture) storedTags(t *testing.T, recipeID uint) []uint {
	var ids []uint
	require.NoError(t, f.db.Model(&models.RecipeTag{}).Where("recipe_id = ?", recipeID).Order("tag_id").Pluck("tag_id", &ids).Error)
	return ids
}

func (f *recipeFixture) count(t *testing.T, model interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestCreateRecipe(t *testing.T) {
	f := setupRecipeTest(t)

	resp, err := f.svc.CreateRecipe(context.Background(), f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", resp.Name)
	assert.Equal(t, 30, resp.CookingTime)
	assert.Equal(t, f.author.ID, resp.Author.ID)
	assert.False(t, resp.Author.IsSubscribed)
	assert.False(t, resp.IsFavorited)
	assert.True(t, strings.HasPrefix(resp.Image, "/media/recipes/"))
	assert.True(t, strings.HasSuffix(resp.Image, ".png"))
	assert.Equal(t, 1, f.images.count())

	require.Len(t, resp.Tags, 1)
	assert.Equal(t, "breakfast", resp.Tags[0].Slug)
	require.Len(t, resp.Ingredients, 2)
	assert.Equal(t, types.RecipeIngredientResponse{ID: f.flour.ID, Name: "Flour", MeasurementUnit: "g", Amount: 200}, resp.Ingredients[0])
	assert.Equal(t, types.RecipeIngredientResponse{ID: f.sugar.ID, Name: "Sugar", MeasurementUnit: "g", Amount: 50}, resp.Ingredients[1])

	assert.Equal(t, map[uint]int{f.flour.ID: 200, f.sugar.ID: 50}, f.storedIngredients(t, resp.ID))
	assert.Equal(t, []uint{f.breakfast.ID}, f.storedTags(t, resp.ID))
}

func TestCreateRecipeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *recipeFixture, req *types.RecipeRequest)
		field  string
	}{
		{"missing tags", func(f *recipeFixture, req *types.RecipeRequest) { req.Tags = nil }, "tags"},
		{"empty tags", func(f *recipeFixture, req *types.RecipeRequest) { req.Tags = []uint{} }, "tags"},
		{"repeated tag", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Tags = []uint{f.breakfast.ID, f.breakfast.ID}
		}, "tags"},
		{"unknown tag", func(f *recipeFixture, req *types.RecipeRequest) { req.Tags = []uint{9999} }, "tags"},
		{"missing ingredients", func(f *recipeFixture, req *types.RecipeRequest) { req.Ingredients = nil }, "ingredients"},
		{"empty ingredients", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Ingredients = []types.IngredientAmount{}
		}, "ingredients"},
		{"repeated ingredient", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Ingredients = []types.IngredientAmount{{ID: f.flour.ID, Amount: 1}, {ID: f.flour.ID, Amount: 2}}
		}, "ingredients"},
		{"zero amount", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Ingredients = []types.IngredientAmount{{ID: f.flour.ID, Amount: 0}}
		}, "ingredients"},
		{"negative amount", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Ingredients = []types.IngredientAmount{{ID: f.flour.ID, Amount: -5}}
		}, "ingredients"},
		{"unknown ingredient", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Ingredients = []types.IngredientAmount{{ID: 9999, Amount: 1}}
		}, "ingredients"},
		{"zero cooking time", func(f *recipeFixture, req *types.RecipeRequest) { req.CookingTime = ptr(0) }, "cooking_time"},
		{"missing cooking time", func(f *recipeFixture, req *types.RecipeRequest) { req.CookingTime = nil }, "cooking_time"},
		{"missing name", func(f *recipeFixture, req *types.RecipeRequest) { req.Name = nil }, "name"},
		{"blank text", func(f *recipeFixture, req *types.RecipeRequest) { req.Text = ptr("   ") }, "text"},
		{"name too long", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Name = ptr(strings.Repeat("a", 201))
		}, "name"},
		{"missing image", func(f *recipeFixture, req *types.RecipeRequest) { req.Image = nil }, "image"},
		{"image not a data url", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Image = ptr("https://example.com/cake.png")
		}, "image"},
		{"image not an image", func(f *recipeFixture, req *types.RecipeRequest) {
			req.Image = ptr("data:image/png;base64,aGVsbG8gd29ybGQ=")
		}, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupRecipeTest(t)
			req := f.request("Pancakes")
			tt.mutate(f, req)

			resp, err := f.svc.CreateRecipe(context.Background(), f.author.ID, req)
			assert.Nil(t, resp)

			var verr *service.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Contains(t, verr.Fields, tt.field)

			assert.Zero(t, f.count(t, &models.Recipe{}))
			assert.Zero(t, f.count(t, &models.RecipeIngredient{}))
			assert.Zero(t, f.count(t, &models.RecipeTag{}))
			assert.Zero(t, f.images.count())
		})
	}
}

func TestCreateRecipeCollectsAllErrors(t *testing.T) {
	f := setupRecipeTest(t)
	req := f.request("Pancakes")
	req.Tags = []uint{}
	req.Ingredients = []types.IngredientAmount{}
	req.CookingTime = ptr(-1)

	_, err := f.svc.CreateRecipe(context.Background(), f.author.ID, req)

	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Contains(t, verr.Fields, "tags")
	assert.Contains(t, verr.Fields, "ingredients")
	assert.Contains(t, verr.Fields, "cooking_time")
}

func TestCreateRecipeDuplicateName(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)

	_, err = f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")

	// Another author may reuse the name.
	_, err = f.svc.CreateRecipe(ctx, f.other.ID, f.request("Pancakes"))
	assert.NoError(t, err)
}

func TestUpdateRecipeReplacesComponents(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)
	var before models.Recipe
	require.NoError(t, f.db.First(&before, created.ID).Error)

	updated, err := f.svc.UpdateRecipe(ctx, created.ID, f.author.ID, &types.RecipeRequest{
		Tags:        []uint{f.lunch.ID, f.breakfast.ID},
		Ingredients: []types.IngredientAmount{{ID: f.egg.ID, Amount: 3}},
		CookingTime: ptr(15),
	})
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", updated.Name)
	assert.Equal(t, "Mix and bake.", updated.Text)
	assert.Equal(t, created.Image, updated.Image)
	assert.Equal(t, 15, updated.CookingTime)
	assert.Equal(t, map[uint]int{f.egg.ID: 3}, f.storedIngredients(t, created.ID))
	assert.Equal(t, []uint{f.breakfast.ID, f.lunch.ID}, f.storedTags(t, created.ID))
	assert.Equal(t, int64(1), f.count(t, &models.RecipeIngredient{}))

	var after models.Recipe
	require.NoError(t, f.db.First(&after, created.ID).Error)
	assert.True(t, before.PubDate.Equal(after.PubDate), "publication date must not change")
	assert.Equal(t, 1, f.images.count())
}

func TestUpdateRecipeImage(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)

	// Echoing the stored URL keeps the image.
	req := f.request("Pancakes")
	req.Image = ptr(created.Image)
	updated, err := f.svc.UpdateRecipe(ctx, created.ID, f.author.ID, req)
	require.NoError(t, err)
	assert.Equal(t, created.Image, updated.Image)
	assert.Equal(t, 1, f.images.count())

	updated, err = f.svc.UpdateRecipe(ctx, created.ID, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)
	assert.NotEqual(t, created.Image, updated.Image)
	assert.Equal(t, 2, f.images.count())
}

func TestUpdateRecipeRequiresTagsAndIngredients(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)

	_, err = f.svc.UpdateRecipe(ctx, created.ID, f.author.ID, &types.RecipeRequest{Name: ptr("Waffles")})
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "tags")
	assert.Contains(t, verr.Fields, "ingredients")

	stored, err := f.svc.GetRecipe(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", stored.Name)
	assert.Len(t, stored.Ingredients, 2)
}

func TestUpdateRecipePermissions(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)

	_, err = f.svc.UpdateRecipe(ctx, created.ID, f.other.ID, f.request("Hijacked"))
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	require.NoError(t, f.db.Model(f.other).Update("is_staff", true).Error)
	updated, err := f.svc.UpdateRecipe(ctx, created.ID, f.other.ID, f.request("Moderated"))
	require.NoError(t, err)
	assert.Equal(t, "Moderated", updated.Name)
	assert.Equal(t, f.author.ID, updated.Author.ID)

	_, err = f.svc.UpdateRecipe(ctx, 9999, f.author.ID, f.request("Missing"))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestDeleteRecipe(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)
	_, err = f.svc.AddFavorite(ctx, f.other.ID, created.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToShoppingCart(ctx, f.other.ID, created.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteRecipe(ctx, created.ID, f.other.ID), service.ErrPermissionDenied)

	require.NoError(t, f.svc.DeleteRecipe(ctx, created.ID, f.author.ID))
	assert.Zero(t, f.count(t, &models.Recipe{}))
	assert.Zero(t, f.count(t, &models.RecipeIngredient{}))
	assert.Zero(t, f.count(t, &models.RecipeTag{}))
	assert.Zero(t, f.count(t, &models.Favorite{}))
	assert.Zero(t, f.count(t, &models.ShoppingCart{}))

	assert.ErrorIs(t, f.svc.DeleteRecipe(ctx, created.ID, f.author.ID), service.ErrNotFound)
}

func TestGetRecipeAnnotations(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)
	_, err = f.svc.AddFavorite(ctx, f.other.ID, created.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToShoppingCart(ctx, f.other.ID, created.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Follow{UserID: f.other.ID, AuthorID: f.author.ID}).Error)

	seen, err := f.svc.GetRecipe(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	assert.True(t, seen.IsFavorited)
	assert.True(t, seen.IsInShoppingCart)
	assert.True(t, seen.Author.IsSubscribed)

	anonymous, err := f.svc.GetRecipe(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.False(t, anonymous.IsFavorited)
	assert.False(t, anonymous.IsInShoppingCart)
	assert.False(t, anonymous.Author.IsSubscribed)

	_, err = f.svc.GetRecipe(ctx, 9999, 0)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListRecipes(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	r1 := testhelpers.CreateRecipe(t, f.db, f.author, "Porridge", []*models.Tag{f.breakfast},
		testhelpers.Amount{Ingredient: f.flour, Amount: 100})
	r2 := testhelpers.CreateRecipe(t, f.db, f.author, "Soup", []*models.Tag{f.lunch},
		testhelpers.Amount{Ingredient: f.egg, Amount: 2})
	r3 := testhelpers.CreateRecipe(t, f.db, f.other, "Omelette", []*models.Tag{f.breakfast, f.lunch},
		testhelpers.Amount{Ingredient: f.egg, Amount: 3})
	_, err := f.svc.AddFavorite(ctx, f.other.ID, r2.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToShoppingCart(ctx, f.other.ID, r1.ID)
	require.NoError(t, err)

	ids := func(recipes []types.RecipeResponse) []uint {
		out := make([]uint, len(recipes))
		for i, r := range recipes {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		name    string
		filter  types.RecipeFilter
		viewer  uint
		want    []uint
		wantLen int64
	}{
		{"all newest first", types.RecipeFilter{}, 0, []uint{r3.ID, r2.ID, r1.ID}, 3},
		{"by author", types.RecipeFilter{AuthorID: f.author.ID}, 0, []uint{r2.ID, r1.ID}, 2},
		{"by tag", types.RecipeFilter{TagSlugs: []string{"breakfast"}}, 0, []uint{r3.ID, r1.ID}, 2},
		{"tags are ORed", types.RecipeFilter{TagSlugs: []string{"breakfast", "lunch"}}, 0, []uint{r3.ID, r2.ID, r1.ID}, 3},
		{"favorited", types.RecipeFilter{IsFavorited: true}, f.other.ID, []uint{r2.ID}, 1},
		{"in cart", types.RecipeFilter{IsInShoppingCart: true}, f.other.ID, []uint{r1.ID}, 1},
		{"favorited ignored for anonymous", types.RecipeFilter{IsFavorited: true}, 0, []uint{r3.ID, r2.ID, r1.ID}, 3},
		{"combined", types.RecipeFilter{AuthorID: f.author.ID, TagSlugs: []string{"lunch"}}, 0, []uint{r2.ID}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipes, total, err := f.svc.ListRecipes(ctx, tt.filter, tt.viewer, firstPage())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, total)
			assert.Equal(t, tt.want, ids(recipes))
		})
	}

	t.Run("paginated", func(t *testing.T) {
		recipes, total, err := f.svc.ListRecipes(ctx, types.RecipeFilter{}, 0, types.PageRequest{Offset: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []uint{r1.ID}, ids(recipes))
	})
}

// failIngredientRows makes every insert into recipe_ingredients fail.
func failIngredientRows(t *testing.T, db *gorm.DB) {
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_recipe_ingredients", func(tx *gorm.DB) {
		if tx.Statement.Table == "recipe_ingredients" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
}

func TestCreateRecipeRollsBack(t *testing.T) {
	f := setupRecipeTest(t)
	failIngredientRows(t, f.db)

	_, err := f.svc.CreateRecipe(context.Background(), f.author.ID, f.request("Pancakes"))
	require.ErrorContains(t, err, "disk full")

	assert.Zero(t, f.count(t, &models.Recipe{}))
	assert.Zero(t, f.count(t, &models.RecipeTag{}))
	assert.Zero(t, f.count(t, &models.RecipeIngredient{}))
	assert.Zero(t, f.images.count(), "the uploaded image must be discarded")
}

func TestUpdateRecipeRollsBack(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.CreateRecipe(ctx, f.author.ID, f.request("Pancakes"))
	require.NoError(t, err)
	failIngredientRows(t, f.db)

	req := f.request("Waffles")
	req.Tags = []uint{f.lunch.ID}
	req.Ingredients = []types.IngredientAmount{{ID: f.egg.ID, Amount: 3}}
	_, err = f.svc.UpdateRecipe(ctx, created.ID, f.author.ID, req)
	require.ErrorContains(t, err, "disk full")

	var stored models.Recipe
	require.NoError(t, f.db.First(&stored, created.ID).Error)
	assert.Equal(t, "Pancakes", stored.Name)
	assert.Equal(t, created.Image, stored.Image)
	assert.Equal(t, []uint{f.breakfast.ID}, f.storedTags(t, created.ID))
	assert.Equal(t, map[uint]int{f.flour.ID: 200, f.sugar.ID: 50}, f.storedIngredients(t, created.ID))
	assert.Equal(t, 1, f.images.count(), "only the original image remains")
}
