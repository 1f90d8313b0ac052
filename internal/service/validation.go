package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	maxRecipeNameLength = 200

	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
)

// recipeWrite is a validated recipe create or update.
type recipeWrite struct {
	tagIDs      []uint
	ingredients []types.IngredientAmount
	name        *string
	text        *string
	cookingTime *int
	// nil when the stored image is kept
	image *Image
}

// validateRecipe checks req against the store. existing is nil on create.
// Every violation is collected into a single *ValidationError.
func validateRecipe(ctx context.Context, db *gorm.DB, authorID uint, existing *models.Recipe, req *types.RecipeRequest) (*recipeWrite, error) {
	create := existing == nil
	verr := NewValidationError()
	w := &recipeWrite{
		tagIDs:      req.Tags,
		ingredients: req.Ingredients,
		cookingTime: req.CookingTime,
	}

	if err := validateTags(ctx, db, req.Tags, verr); err != nil {
		return nil, err
	}
	if err := validateIngredients(ctx, db, req.Ingredients, verr); err != nil {
		return nil, err
	}

	switch {
	case req.CookingTime == nil:
		if create {
			verr.Add("cooking_time", msgRequired)
		}
	case *req.CookingTime < 1:
		verr.Add("cooking_time", "Cooking time must be at least 1 minute.")
	}

	w.name = requiredText(req.Name, "name", create, verr)
	if w.name != nil && utf8.RuneCountInString(*w.name) > maxRecipeNameLength {
		verr.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxRecipeNameLength))
	}
	w.text = requiredText(req.Text, "text", create, verr)

	switch {
	case req.Image == nil:
		if create {
			verr.Add("image", msgRequired)
		}
	case strings.TrimSpace(*req.Image) == "":
		verr.Add("image", msgBlank)
	case !create && *req.Image == existing.Image:
		// unchanged
	default:
		img, err := DecodeImage(*req.Image)
		if err != nil {
			verr.Add("image", err.Error())
		} else {
			w.image = img
		}
	}

	if w.name != nil && !verr.Has("name") {
		query := db.WithContext(ctx).Model(&models.Recipe{}).
			Where("author_id = ? AND name = ?", authorID, *w.name)
		if existing != nil {
			query = query.Where("id <> ?", existing.ID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check recipe name: %w", err)
		}
		if count > 0 {
			verr.Add("name", "You already have a recipe with this name.")
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

func requiredText(value *string, field string, create bool, verr *ValidationError) *string {
	if value == nil {
		if create {
			verr.Add(field, msgRequired)
		}
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		verr.Add(field, msgBlank)
		return nil
	}
	return &trimmed
}

func validateTags(ctx context.Context, db *gorm.DB, ids []uint, verr *ValidationError) error {
	if ids == nil {
		verr.Add("tags", msgRequired)
		return nil
	}
	if len(ids) == 0 {
		verr.Add("tags", "At least one tag is required.")
		return nil
	}

	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			verr.Add("tags", fmt.Sprintf("Tag %d is listed more than once.", id))
		}
		seen[id] = true
	}

	var found []uint
	if err := db.WithContext(ctx).Model(&models.Tag{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("failed to look up tags: %w", err)
	}
	for _, id := range missingIDs(ids, found) {
		verr.Add("tags", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
	}
	return nil
}

func validateIngredients(ctx context.Context, db *gorm.DB, items []types.IngredientAmount, verr *ValidationError) error {
	if items == nil {
		verr.Add("ingredients", msgRequired)
		return nil
	}
	if len(items) == 0 {
		verr.Add("ingredients", "At least one ingredient is required.")
		return nil
	}

	ids := make([]uint, 0, len(items))
	seen := make(map[uint]bool, len(items))
	for _, item := range items {
		if item.Amount < 1 {
			verr.Add("ingredients", fmt.Sprintf("Amount of ingredient %d must be at least 1.", item.ID))
		}
		if seen[item.ID] {
			verr.Add("ingredients", fmt.Sprintf("Ingredient %d is listed more than once.", item.ID))
			continue
		}
		seen[item.ID] = true
		ids = append(ids, item.ID)
	}

	var found []uint
	if err := db.WithContext(ctx).Model(&models.Ingredient{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("failed to look up ingredients: %w", err)
	}
	for _, id := range missingIDs(ids, found) {
		verr.Add("ingredients", fmt.Sprintf("Ingredient %d does not exist.", id))
	}
	return nil
}

// missingIDs returns the distinct members of want absent from have, in
// the order they first appear in want.
func missingIDs(want, have []uint) []uint {
	present := make(map[uint]bool, len(have))
	for _, id := range have {
		present[id] = true
	}
	var missing []uint
	for _, id := range want {
		if !present[id] {
			missing = append(missing, id)
			present[id] = true
		}
	}
	return missing
}
