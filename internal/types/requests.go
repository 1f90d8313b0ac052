package types

// RegisterRequest represents the request body for creating a user
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest represents the request body for obtaining a token
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SetPasswordRequest represents the request body for changing a password
type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// IngredientAmount is one ingredient line of a recipe write.
type IngredientAmount struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeRequest is the body of recipe create and update calls. Tags and
// ingredients are always required and replace the stored sets; the other
// fields are required on create and optional on update.
type RecipeRequest struct {
	Tags        []uint             `json:"tags"`
	Ingredients []IngredientAmount `json:"ingredients"`
	Name        *string            `json:"name"`
	Text        *string            `json:"text"`
	Image       *string            `json:"image"`
	CookingTime *int               `json:"cooking_time"`
}

// RecipeFilter narrows a recipe listing.
type RecipeFilter struct {
	AuthorID         uint
	TagSlugs         []string
	IsFavorited      bool
	IsInShoppingCart bool
}

// PageRequest is an offset window into a listing.
type PageRequest struct {
	Offset int
	Limit  int
}
