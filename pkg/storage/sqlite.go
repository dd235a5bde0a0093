package storage

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db     *gorm.DB
	logger *logger.Logger

	serverRepo *repositories.ServerRepository
	adminRepo  *repositories.AdminRepository
}

// NewSQLiteStorage opens the database and migrates all tables
func NewSQLiteStorage(dbPath string, appLogger *logger.Logger) (Storage, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" databases shared.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	serverRepo, err := repositories.NewServerRepository(db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	adminRepo, err := repositories.NewAdminRepository(db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	if appLogger != nil {
		appLogger.Info("SQLite database opened: %s", dbPath)
	} else {
		log.Printf("SQLite database opened: %s", dbPath)
	}

	return &SQLiteStorage{
		db:         db,
		logger:     appLogger,
		serverRepo: serverRepo,
		adminRepo:  adminRepo,
	}, nil
}

// DB returns the underlying GORM database instance
func (s *SQLiteStorage) DB() *gorm.DB {
	return s.db
}

// Servers returns the server repository
func (s *SQLiteStorage) Servers() *repositories.ServerRepository {
	return s.serverRepo
}

// Admins returns the admin repository
func (s *SQLiteStorage) Admins() *repositories.AdminRepository {
	return s.adminRepo
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("SQLite database closed")
	} else {
		log.Println("SQLite database closed")
	}
	return nil
}
