package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"gorm.io/gorm"
)

// SourceRepository defines the interface for mining source data access
type SourceRepository interface {
	Create(ctx context.Context, source *models.MiningSource) error
	GetByID(ctx context.Context, userID string, id uint) (*models.MiningSource, error)
	ListByUser(ctx context.Context, userID string) ([]models.MiningSource, error)
	UpdateToken(ctx context.Context, id uint, accessToken string, expiry time.Time) error
	Delete(ctx context.Context, userID string, id uint) error
}

// sourceRepository implements SourceRepository using GORM
type sourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository instance
func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &sourceRepository{db: db}
}

// Create registers a new mining source
func (r *sourceRepository) Create(ctx context.Context, source *models.MiningSource) error {
	result := r.db.WithContext(ctx).Create(source)
	if result.Error != nil {
		return fmt.Errorf("failed to create mining source: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a mining source scoped to its owner
func (r *sourceRepository) GetByID(ctx context.Context, userID string, id uint) (*models.MiningSource, error) {
	var source models.MiningSource
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&source, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mining source: %w", result.Error)
	}
	return &source, nil
}

// ListByUser retrieves all mining sources owned by a user
func (r *sourceRepository) ListByUser(ctx context.Context, userID string) ([]models.MiningSource, error) {
	var sources []models.MiningSource
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&sources)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list mining sources: %w", result.Error)
	}
	return sources, nil
}

// UpdateToken persists a refreshed access token and its expiry
func (r *sourceRepository) UpdateToken(ctx context.Context, id uint, accessToken string, expiry time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.MiningSource{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"token_expiry": expiry,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update source token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a mining source
func (r *sourceRepository) Delete(ctx context.Context, userID string, id uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.MiningSource{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete mining source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
