package storage

import (
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
	"gorm.io/gorm"
)

// Storage is the database storage interface
type Storage interface {
	// DB returns the underlying GORM database instance
	DB() *gorm.DB

	// Servers returns the remote panel registry
	Servers() *repositories.ServerRepository

	// Admins returns the dashboard account store
	Admins() *repositories.AdminRepository

	Close() error
}
