package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lireddit/backend/internal/models"
)

type UserRepository interface {
	// Create inserts a new user and assigns its ID.
	Create(ctx context.Context, user *models.User) error
	// FindByID returns the user or nil when no row exists.
	FindByID(ctx context.Context, id int) (*models.User, error)
	// FindByIDs bulk-fetches users for a set of ids. Missing ids are simply
	// absent from the result; the batch loader turns that into nil entries.
	FindByIDs(ctx context.Context, ids []int) ([]models.User, error)
	// FindByLogin looks a user up by username or email.
	FindByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	// FindByEmail returns the user owning the address, or nil.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePassword replaces the stored credential hash.
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &user, nil
}

func (r *userRepo) FindByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users by ids: %w", err)
	}
	return users, nil
}

func (r *userRepo) FindByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by login: %w", err)
	}
	return &user, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("password", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	return nil
}
