package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mtum/internal/cache"
	"mtum/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and their profiles.
type UserRepository interface {
	CreateWithProfile(ctx context.Context, user *models.User, slug string) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetBySlug(ctx context.Context, slug string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateWithProfile inserts the user and its profile in one transaction.
// A slug collision yields ErrSlugTaken; any other duplicate is a validation error.
func (r *userRepository) CreateWithProfile(ctx context.Context, user *models.User, slug string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Profile").Create(user).Error; err != nil {
			return err
		}
		profile := &models.UserProfile{UserID: user.ID, Slug: slug}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		if strings.Contains(strings.ToLower(err.Error()), "slug") {
			return ErrSlugTaken
		}
		return models.NewValidationError("Username or email is already taken")
	}
	return models.NewInternalError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername matches the username exactly. It is never served from cache since callers check the password hash.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Profile").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetBySlug resolves a blog slug, ignoring case.
func (r *userRepository) GetBySlug(ctx context.Context, slug string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.ProfileKey(slug), &user, cache.ProfileTTL, func() error {
		var profile models.UserProfile
		if err := r.db.WithContext(ctx).Where("LOWER(slug) = ?", strings.ToLower(slug)).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Blog", slug)
			}
			return models.NewInternalError(err)
		}
		if err := r.db.WithContext(ctx).First(&user, profile.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Blog", slug)
			}
			return models.NewInternalError(err)
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, &models.User{}, "LOWER(username) = ?", strings.ToLower(username))
}

func (r *userRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, &models.User{}, "LOWER(email) = ?", strings.ToLower(email))
}

func (r *userRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, &models.UserProfile{}, "LOWER(slug) = ?", strings.ToLower(slug))
}

func (r *userRepository) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Delete removes the user and everything that references it: profile, likes, follows in either
// direction, and authored posts together with their reblog trees.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	var profile models.UserProfile
	slugErr := r.db.WithContext(ctx).Where("user_id = ?", id).First(&profile).Error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return err
		}

		var authored []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", id).Pluck("id", &authored).Error; err != nil {
			return err
		}
		if err := deletePostTrees(tx, authored); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		if err := tx.Where("follower_id = ? OR following_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return fmt.Errorf("delete follows: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserProfile{}).Error; err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	slug := ""
	if slugErr == nil {
		slug = profile.Slug
	}
	cache.InvalidateUser(ctx, id, slug)
	return nil
}
