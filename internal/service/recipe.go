package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// RecipeService handles recipe operations
type RecipeService struct {
	db     *gorm.DB
	images ImageStore
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, images ImageStore) *RecipeService {
	return &RecipeService{
		db:     db,
		images: images,
	}
}

// CreateRecipe validates req and writes the recipe, its tags and its
// ingredient rows in one transaction.
func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uint, req *types.RecipeRequest) (*types.RecipeResponse, error) {
	w, err := validateRecipe(ctx, s.db, authorID, nil, req)
	if err != nil {
		return nil, err
	}

	image, err := storeRecipeImage(ctx, s.images, w.image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        *w.name,
		Text:        *w.text,
		Image:       image.url,
		CookingTime: *w.cookingTime,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return err
		}
		return replaceComponents(tx, recipe.ID, w)
	})
	if err != nil {
		discardRecipeImage(ctx, s.images, image)
		return nil, translateRecipeWriteError(err)
	}

	logger.Info("recipe created", "recipe_id", recipe.ID, "author_id", authorID)
	return s.GetRecipe(ctx, recipe.ID, authorID)
}

// UpdateRecipe applies a partial update. Tags and ingredients are replaced
// wholesale; the publication date never changes.
func (s *RecipeService) UpdateRecipe(ctx context.Context, id, userID uint, req *types.RecipeRequest) (*types.RecipeResponse, error) {
	recipe, err := s.findRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, recipe, userID); err != nil {
		return nil, err
	}

	w, err := validateRecipe(ctx, s.db, recipe.AuthorID, recipe, req)
	if err != nil {
		return nil, err
	}

	var image *storedImage
	if w.image != nil {
		if image, err = storeRecipeImage(ctx, s.images, w.image); err != nil {
			return nil, err
		}
		recipe.Image = image.url
	}
	if w.name != nil {
		recipe.Name = *w.name
	}
	if w.text != nil {
		recipe.Text = *w.text
	}
	if w.cookingTime != nil {
		recipe.CookingTime = *w.cookingTime
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(recipe).Error; err != nil {
			return err
		}
		return replaceComponents(tx, recipe.ID, w)
	})
	if err != nil {
		discardRecipeImage(ctx, s.images, image)
		return nil, translateRecipeWriteError(err)
	}

	logger.Info("recipe updated", "recipe_id", recipe.ID, "user_id", userID)
	return s.GetRecipe(ctx, recipe.ID, userID)
}

// DeleteRecipe deletes a recipe together with every row that references it
func (s *RecipeService) DeleteRecipe(ctx context.Context, id, userID uint) error {
	recipe, err := s.findRecipe(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, recipe, userID); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []interface{}{
			&models.RecipeTag{},
			&models.RecipeIngredient{},
			&models.Favorite{},
			&models.ShoppingCart{},
		}
		for _, model := range dependents {
			if err := tx.Where("recipe_id = ?", recipe.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Recipe{}, recipe.ID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", id, err)
	}

	logger.Info("recipe deleted", "recipe_id", id, "user_id", userID)
	return nil
}

// GetRecipe retrieves a recipe by ID as seen by viewerID (0 for anonymous)
func (s *RecipeService) GetRecipe(ctx context.Context, id, viewerID uint) (*types.RecipeResponse, error) {
	var recipes []models.Recipe
	if err := withRecipeDetails(s.db.WithContext(ctx)).Where("recipes.id = ?", id).Limit(1).Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipe %d: %w", id, err)
	}
	if len(recipes) == 0 {
		return nil, ErrNotFound
	}

	responses, err := s.toResponses(ctx, recipes, viewerID)
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// ListRecipes returns one page of recipes matching filter, newest first,
// together with the total number of matches.
func (s *RecipeService) ListRecipes(ctx context.Context, filter types.RecipeFilter, viewerID uint, page types.PageRequest) ([]types.RecipeResponse, int64, error) {
	var total int64
	if err := s.filtered(ctx, filter, viewerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := withRecipeDetails(s.filtered(ctx, filter, viewerID)).
		Order("recipes.pub_date DESC, recipes.id DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	responses, err := s.toResponses(ctx, recipes, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return responses, total, nil
}

func (s *RecipeService) filtered(ctx context.Context, filter types.RecipeFilter, viewerID uint) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Recipe{})
	if filter.AuthorID != 0 {
		query = query.Where("recipes.author_id = ?", filter.AuthorID)
	}
	if len(filter.TagSlugs) > 0 {
		tagged := s.db.Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", filter.TagSlugs)
		query = query.Where("recipes.id IN (?)", tagged)
	}
	// Membership filters only apply to signed-in viewers.
	if viewerID != 0 && filter.IsFavorited {
		query = query.Where("recipes.id IN (?)",
			s.db.Model(&models.Favorite{}).Select("recipe_id").Where("user_id = ?", viewerID))
	}
	if viewerID != 0 && filter.IsInShoppingCart {
		query = query.Where("recipes.id IN (?)",
			s.db.Model(&models.ShoppingCart{}).Select("recipe_id").Where("user_id = ?", viewerID))
	}
	return query
}

func withRecipeDetails(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("tags.id")
		}).
		Preload("RecipeIngredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("recipe_ingredients.id")
		}).
		Preload("RecipeIngredients.Ingredient")
}

// toResponses annotates recipes with the viewer's favorite, cart and
// subscription state using one query per relation.
func (s *RecipeService) toResponses(ctx context.Context, recipes []models.Recipe, viewerID uint) ([]types.RecipeResponse, error) {
	var favorited, inCart, subscribed map[uint]bool
	if viewerID != 0 && len(recipes) > 0 {
		recipeIDs := make([]uint, len(recipes))
		authorIDs := make([]uint, len(recipes))
		for i := range recipes {
			recipeIDs[i] = recipes[i].ID
			authorIDs[i] = recipes[i].AuthorID
		}

		var err error
		favorited, err = pluckSet(s.db.WithContext(ctx).Model(&models.Favorite{}).
			Where("user_id = ? AND recipe_id IN ?", viewerID, recipeIDs), "recipe_id")
		if err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
		inCart, err = pluckSet(s.db.WithContext(ctx).Model(&models.ShoppingCart{}).
			Where("user_id = ? AND recipe_id IN ?", viewerID, recipeIDs), "recipe_id")
		if err != nil {
			return nil, fmt.Errorf("failed to load shopping cart: %w", err)
		}
		subscribed, err = pluckSet(s.db.WithContext(ctx).Model(&models.Follow{}).
			Where("user_id = ? AND author_id IN ?", viewerID, authorIDs), "author_id")
		if err != nil {
			return nil, fmt.Errorf("failed to load subscriptions: %w", err)
		}
	}

	responses := make([]types.RecipeResponse, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		tags := r.Tags
		if tags == nil {
			tags = []models.Tag{}
		}
		ingredients := make([]types.RecipeIngredientResponse, len(r.RecipeIngredients))
		for j, ri := range r.RecipeIngredients {
			ingredients[j] = types.RecipeIngredientResponse{
				ID:              ri.IngredientID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			}
		}
		responses[i] = types.RecipeResponse{
			ID:               r.ID,
			Tags:             tags,
			Author:           types.NewUserResponse(&r.Author, subscribed[r.AuthorID]),
			Ingredients:      ingredients,
			IsFavorited:      favorited[r.ID],
			IsInShoppingCart: inCart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		}
	}
	return responses, nil
}

func (s *RecipeService) findRecipe(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load recipe %d: %w", id, err)
	}
	return &recipe, nil
}

// authorize allows the recipe's author and staff users.
func (s *RecipeService) authorize(ctx context.Context, recipe *models.Recipe, userID uint) error {
	if recipe.AuthorID == userID {
		return nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "is_staff").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionDenied
		}
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.IsStaff {
		return ErrPermissionDenied
	}
	return nil
}

// replaceComponents swaps the recipe's tag and ingredient rows for the
// validated sets. It must run inside the write transaction.
func replaceComponents(tx *gorm.DB, recipeID uint, w *recipeWrite) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
		return err
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}

	tags := make([]models.RecipeTag, len(w.tagIDs))
	for i, id := range w.tagIDs {
		tags[i] = models.RecipeTag{RecipeID: recipeID, TagID: id}
	}
	if err := tx.Create(&tags).Error; err != nil {
		return err
	}

	rows := make([]models.RecipeIngredient, len(w.ingredients))
	for i, item := range w.ingredients {
		rows[i] = models.RecipeIngredient{RecipeID: recipeID, IngredientID: item.ID, Amount: item.Amount}
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

// translateRecipeWriteError maps constraint violations that slipped past
// validation, typically from a concurrent write, onto field errors.
func translateRecipeWriteError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fieldError("name", "You already have a recipe with this name.")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fieldError("non_field_errors", "A referenced tag or ingredient no longer exists.")
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fieldError("non_field_errors", "Cooking time and amounts must be at least 1.")
	}
	return fmt.Errorf("failed to save recipe: %w", err)
}

// pluckSet collects column values of query into a set.
func pluckSet(query *gorm.DB, column string) (map[uint]bool, error) {
	var ids []uint
	if err := query.Pluck(column, &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
