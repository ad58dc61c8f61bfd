package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"gorm.io/gorm"
)

// TaskRepository defines the interface for mining task data access
type TaskRepository interface {
	Create(ctx context.Context, task *models.MiningTask) error
	GetByID(ctx context.Context, id string) (*models.MiningTask, error)
	Update(ctx context.Context, task *models.MiningTask) error
	ListByUser(ctx context.Context, userID string) ([]models.MiningTask, error)
}

// taskRepository implements TaskRepository using GORM
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository instance
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create records a new mining task
func (r *taskRepository) Create(ctx context.Context, task *models.MiningTask) error {
	result := r.db.WithContext(ctx).Create(task)
	if result.Error != nil {
		return fmt.Errorf("failed to create mining task: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a mining task
func (r *taskRepository) GetByID(ctx context.Context, id string) (*models.MiningTask, error) {
	var task models.MiningTask
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mining task: %w", result.Error)
	}
	return &task, nil
}

// Update persists task status, cursors and counters
func (r *taskRepository) Update(ctx context.Context, task *models.MiningTask) error {
	result := r.db.WithContext(ctx).Save(task)
	if result.Error != nil {
		return fmt.Errorf("failed to update mining task: %w", result.Error)
	}
	return nil
}

// ListByUser retrieves all mining tasks owned by a user
func (r *taskRepository) ListByUser(ctx context.Context, userID string) ([]models.MiningTask, error) {
	var tasks []models.MiningTask
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list mining tasks: %w", result.Error)
	}
	return tasks, nil
}
