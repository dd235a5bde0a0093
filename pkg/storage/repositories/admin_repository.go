package repositories

import (
	"context"
	"fmt"

	"github.com/tphan267/xui-hub/pkg/models"
	"gorm.io/gorm"
)

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) (*AdminRepository, error) {
	if err := db.AutoMigrate(&models.AdminUser{}); err != nil {
		return nil, fmt.Errorf("failed to migrate admin_users table: %w", err)
	}
	return &AdminRepository{db: db}, nil
}

// Create stores a new admin account with an already hashed password
func (r *AdminRepository) Create(ctx context.Context, username, passwordHash string) (*models.AdminUser, error) {
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalid)
	}
	user := &models.AdminUser{Username: username, PasswordHash: passwordHash}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id uint) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdatePasswordHash replaces the stored hash for the given account
func (r *AdminRepository) UpdatePasswordHash(ctx context.Context, id uint, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.AdminUser{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
