package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/utils"
	"gorm.io/gorm"
)

type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) (*ServerRepository, error) {
	if err := db.AutoMigrate(&models.Server{}); err != nil {
		return nil, fmt.Errorf("failed to migrate servers table: %w", err)
	}
	return &ServerRepository{db: db}, nil
}

// AddServer validates and stores a new server record
func (r *ServerRepository) AddServer(ctx context.Context, in models.ServerInput) (*models.Server, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Host = strings.TrimSpace(in.Host)
	in.Username = strings.TrimSpace(in.Username)
	in.WebBasePath = strings.TrimSpace(in.WebBasePath)

	switch {
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	case in.Host == "":
		return nil, fmt.Errorf("%w: host is required", ErrInvalid)
	case in.Port == 0:
		return nil, fmt.Errorf("%w: port is required", ErrInvalid)
	case in.Username == "":
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	case in.Password == "":
		return nil, fmt.Errorf("%w: password is required", ErrInvalid)
	}
	if err := validatePort(in.Port); err != nil {
		return nil, err
	}

	id, err := utils.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate server id: %w", err)
	}

	server := &models.Server{
		ID:          id,
		Name:        in.Name,
		Host:        in.Host,
		Port:        in.Port,
		Username:    in.Username,
		Password:    in.Password,
		WebBasePath: in.WebBasePath,
		UseTLS:      in.UseTLS,
	}

	if err := r.db.WithContext(ctx).Create(server).Error; err != nil {
		return nil, err
	}

	return server, nil
}

// UpdateServer applies a partial update and returns the stored record
func (r *ServerRepository) UpdateServer(ctx context.Context, id string, patch models.ServerPatch) (*models.Server, error) {
	updates := map[string]any{}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Host != nil {
		if strings.TrimSpace(*patch.Host) == "" {
			return nil, fmt.Errorf("%w: host cannot be empty", ErrInvalid)
		}
		updates["host"] = strings.TrimSpace(*patch.Host)
	}
	if patch.Port != nil {
		if err := validatePort(*patch.Port); err != nil {
			return nil, err
		}
		updates["port"] = *patch.Port
	}
	if patch.Username != nil {
		if strings.TrimSpace(*patch.Username) == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrInvalid)
		}
		updates["username"] = strings.TrimSpace(*patch.Username)
	}
	if patch.Password != nil && *patch.Password != "" {
		updates["password"] = *patch.Password
	}
	if patch.WebBasePath != nil {
		updates["web_base_path"] = strings.TrimSpace(*patch.WebBasePath)
	}
	if patch.UseTLS != nil {
		updates["use_tls"] = *patch.UseTLS
	}

	server, err := r.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return server, nil
	}

	if err := r.db.WithContext(ctx).Model(server).Updates(updates).Error; err != nil {
		return nil, err
	}

	return r.GetServer(ctx, id)
}

// DeleteServer deletes a server record. Unknown ids yield ErrNotFound.
func (r *ServerRepository) DeleteServer(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Server{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetServers returns all server records in creation order
func (r *ServerRepository) GetServers(ctx context.Context) ([]*models.Server, error) {
	var servers []*models.Server
	if err := r.db.WithContext(ctx).Order("created_at, id").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

// GetServer returns a single server record by ID
func (r *ServerRepository) GetServer(ctx context.Context, id string) (*models.Server, error) {
	var server models.Server
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&server).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

func (r *ServerRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Server{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalid, port)
	}
	return nil
}
