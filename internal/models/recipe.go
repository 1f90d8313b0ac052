package models

import "time"

// Tag labels recipes; the slug is what clients filter by.
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:200;not null;uniqueIndex" json:"name"`
	Color string `gorm:"size:7;not null;uniqueIndex" json:"color"`
	Slug  string `gorm:"size:200;not null;uniqueIndex" json:"slug"`
}

// Ingredient is a catalogue entry. The same name may exist with different
// measurement units.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit" json:"name"`
	MeasurementUnit string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}

type Recipe struct {
	ID                uint               `gorm:"primaryKey"`
	PubDate           time.Time          `gorm:"autoCreateTime;not null;index"`
	UpdatedAt         time.Time
	AuthorID          uint               `gorm:"not null;index;uniqueIndex:idx_recipe_author_name"`
	Author            User               `gorm:"constraint:OnDelete:CASCADE"`
	Name              string             `gorm:"size:200;not null;uniqueIndex:idx_recipe_author_name"`
	Text              string             `gorm:"type:text;not null"`
	Image             string             `gorm:"size:500;not null"`
	CookingTime       int                `gorm:"not null;check:chk_recipe_cooking_time,cooking_time >= 1"`
	Tags              []Tag              `gorm:"many2many:recipe_tags"`
	RecipeIngredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`
}

// RecipeTag is the join row between recipes and tags.
type RecipeTag struct {
	RecipeID uint `gorm:"primaryKey"`
	TagID    uint `gorm:"primaryKey;index"`
}

func (RecipeTag) TableName() string {
	return "recipe_tags"
}

// RecipeIngredient binds an ingredient to a recipe with a positive amount.
type RecipeIngredient struct {
	ID           uint       `gorm:"primaryKey"`
	RecipeID     uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient"`
	IngredientID uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient;index"`
	Ingredient   Ingredient `gorm:"constraint:OnDelete:CASCADE"`
	Amount       int        `gorm:"not null;check:chk_recipe_ingredient_amount,amount >= 1"`
}

// Favorite is a user's bookmark of a recipe.
type Favorite struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"not null;uniqueIndex:idx_favorite_user_recipe"`
	RecipeID  uint   `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe    Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

// ShoppingCart holds the recipes a user is shopping for.
type ShoppingCart struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"not null;uniqueIndex:idx_shopping_cart_user_recipe"`
	RecipeID  uint   `gorm:"not null;uniqueIndex:idx_shopping_cart_user_recipe;index"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe    Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Follow{},
		&Tag{},
		&Ingredient{},
		&Recipe{},
		&RecipeTag{},
		&RecipeIngredient{},
		&Favorite{},
		&ShoppingCart{},
	}
}
