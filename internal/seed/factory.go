package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
)

// DemoPassword is the password of every generated account.
const DemoPassword = "foodgram-demo"

// Options sizes a demo run.
type Options struct {
	Users          int
	RecipesPerUser int
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
	// FastHash uses bcrypt.MinCost for generated passwords.
	FastHash bool
}

// Factory builds demo users and recipes and persists them.
type Factory struct {
	db           *gorm.DB
	faker        *gofakeit.Faker
	passwordHash string
	names        map[uint]map[string]bool
}

func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}
	return &Factory{
		db:           db,
		faker:        gofakeit.New(opts.Seed),
		passwordHash: string(hash),
		names:        make(map[uint]map[string]bool),
	}, nil
}

// CreateUser persists a user with a generated identity.
func (f *Factory) CreateUser(ctx context.Context) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, f.faker.Number(100, 9999)))
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    first,
		LastName:     last,
		PasswordHash: f.passwordHash,
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}
	return user, nil
}

// CreateRecipe persists a recipe by author using one or two of tags and
// up to five distinct ingredients.
func (f *Factory) CreateRecipe(ctx context.Context, author *models.User, tags []models.Tag, ingredients []models.Ingredient) (*models.Recipe, error) {
	if len(tags) == 0 || len(ingredients) == 0 {
		return nil, errors.New("demo recipes need at least one tag and one ingredient")
	}

	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        f.recipeName(author.ID),
		Text:        f.faker.Paragraph(2, 3, 12, "\n\n"),
		Image:       fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID()),
		CookingTime: f.faker.Number(5, 180),
	}

	pickedTags := f.pick(len(tags), f.faker.Number(1, min(2, len(tags))))
	pickedIngredients := f.pick(len(ingredients), f.faker.Number(1, min(5, len(ingredients))))

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(recipe).Error; err != nil {
			return err
		}
		for _, i := range pickedTags {
			if err := tx.Create(&models.RecipeTag{RecipeID: recipe.ID, TagID: tags[i].ID}).Error; err != nil {
				return err
			}
		}
		for _, i := range pickedIngredients {
			row := models.RecipeIngredient{
				RecipeID:     recipe.ID,
				IngredientID: ingredients[i].ID,
				Amount:       f.faker.Number(1, 500),
			}
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create demo recipe: %w", err)
	}
	return recipe, nil
}

// recipeName returns a dish name that author has not used yet.
func (f *Factory) recipeName(authorID uint) string {
	used := f.names[authorID]
	if used == nil {
		used = make(map[string]bool)
		f.names[authorID] = used
	}
	name := f.faker.Dinner()
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s %d", f.faker.Dinner(), n)
	}
	used[name] = true
	return name
}

// pick returns k distinct indexes below n.
func (f *Factory) pick(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	return idx[:k]
}

// Demo creates opts.Users accounts with opts.RecipesPerUser recipes each,
// then lets every user follow, favorite and cart a few of the others'.
func Demo(ctx context.Context, db *gorm.DB, opts Options) error {
	if opts.Users <= 0 {
		return nil
	}

	var tags []models.Tag
	if err := db.WithContext(ctx).Order("id").Find(&tags).Error; err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	var ingredients []models.Ingredient
	if err := db.WithContext(ctx).Order("id").Find(&ingredients).Error; err != nil {
		return fmt.Errorf("failed to load ingredients: %w", err)
	}
	if opts.RecipesPerUser > 0 && (len(tags) == 0 || len(ingredients) == 0) {
		return errors.New("import tags and ingredients before generating demo recipes")
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return err
	}

	users := make([]*models.User, 0, opts.Users)
	var recipes []*models.Recipe
	for i := 0; i < opts.Users; i++ {
		user, err := f.CreateUser(ctx)
		if err != nil {
			return err
		}
		users = append(users, user)
		for j := 0; j < opts.RecipesPerUser; j++ {
			recipe, err := f.CreateRecipe(ctx, user, tags, ingredients)
			if err != nil {
				return err
			}
			recipes = append(recipes, recipe)
		}
	}

	if err := f.link(ctx, users, recipes); err != nil {
		return err
	}
	logger.Info("demo data created", "users", len(users), "recipes", len(recipes))
	return nil
}

// link wires follows, favorites and cart entries between demo users.
func (f *Factory) link(ctx context.Context, users []*models.User, recipes []*models.Recipe) error {
	db := f.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Session(&gorm.Session{})
	for i, user := range users {
		if len(users) > 1 {
			author := users[(i+1)%len(users)]
			if err := db.Create(&models.Follow{UserID: user.ID, AuthorID: author.ID}).Error; err != nil {
				return fmt.Errorf("failed to create demo follow: %w", err)
			}
		}
		for _, k := range f.pick(len(recipes), min(2, len(recipes))) {
			recipe := recipes[k]
			if recipe.AuthorID == user.ID {
				continue
			}
			if err := db.Create(&models.Favorite{UserID: user.ID, RecipeID: recipe.ID}).Error; err != nil {
				return fmt.Errorf("failed to create demo favorite: %w", err)
			}
			if err := db.Create(&models.ShoppingCart{UserID: user.ID, RecipeID: recipe.ID}).Error; err != nil {
				return fmt.Errorf("failed to create demo cart entry: %w", err)
			}
		}
	}
	return nil
}
