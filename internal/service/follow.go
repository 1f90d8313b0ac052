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

// Subscribe makes userID follow authorID and returns the author's
// subscription view with up to recipesLimit recipes.
func (s *UserService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*types.SubscriptionResponse, error) {
	author, err := s.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if userID == authorID {
		return nil, &ConflictError{Message: "You cannot subscribe to yourself."}
	}

	subscribed, err := s.isSubscribed(ctx, userID, authorID)
	if err != nil {
		return nil, err
	}
	if subscribed {
		return nil, &ConflictError{Message: "You are already subscribed to this user."}
	}

	if err := s.db.WithContext(ctx).Create(&models.Follow{UserID: userID, AuthorID: authorID}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: "You are already subscribed to this user."}
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.Info("subscribed", "user_id", userID, "author_id", authorID)
	return s.subscriptionView(ctx, author, recipesLimit)
}

// Unsubscribe removes the follow edge from userID to authorID.
func (s *UserService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if _, err := s.GetUserByID(ctx, authorID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return fmt.Errorf("failed to unsubscribe: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &ConflictError{Message: "You are not subscribed to this user."}
	}

	logger.Info("unsubscribed", "user_id", userID, "author_id", authorID)
	return nil
}

// Subscriptions lists one page of the authors userID follows.
func (s *UserService) Subscriptions(ctx context.Context, userID uint, page types.PageRequest, recipesLimit int) ([]types.SubscriptionResponse, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Follow{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var authors []models.User
	err := db.Joins("JOIN follows ON follows.author_id = users.id").
		Where("follows.user_id = ?", userID).
		Order("users.id").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	result := make([]types.SubscriptionResponse, 0, len(authors))
	for i := range authors {
		view, err := s.subscriptionView(ctx, &authors[i], recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *view)
	}
	return result, total, nil
}

// subscriptionView builds the view of a followed author: newest recipes
// first, capped at recipesLimit, plus the author's total recipe count.
func (s *UserService) subscriptionView(ctx context.Context, author *models.User, recipesLimit int) (*types.SubscriptionResponse, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Recipe{}).Where("author_id = ?", author.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count recipes: %w", err)
	}

	recipes := []models.Recipe{}
	if recipesLimit > 0 {
		err := db.Where("author_id = ?", author.ID).
			Order("pub_date DESC, id DESC").
			Limit(recipesLimit).
			Find(&recipes).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load recipes: %w", err)
		}
	}

	short := make([]types.ShortRecipe, len(recipes))
	for i := range recipes {
		short[i] = types.NewShortRecipe(&recipes[i])
	}
	return &types.SubscriptionResponse{
		UserResponse: types.NewUserResponse(author, true),
		Recipes:      short,
		RecipesCount: count,
	}, nil
}
