package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactRepository defines the interface for contact aggregate data access
type ContactRepository interface {
	UpsertBatch(ctx context.Context, contacts []*models.Contact) error
	GetByEmail(ctx context.Context, userID, email string) (*models.Contact, error)
	Exists(ctx context.Context, userID, email string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Contact, int64, error)
}

// contactRepository implements ContactRepository using GORM
type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new ContactRepository instance
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

// UpsertBatch writes a batch of aggregates, replacing existing rows
// on the (user_id, email) unique key. Upserts are idempotent; the
// aggregation layer relies on at-least-once semantics here.
func (r *contactRepository) UpsertBatch(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "field_counts", "category", "replied", "last_seen_at", "updated_at",
		}),
	}).Create(&contacts)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert contacts: %w", result.Error)
	}
	return nil
}

// GetByEmail retrieves one contact aggregate by its unique key
func (r *contactRepository) GetByEmail(ctx context.Context, userID, email string) (*models.Contact, error) {
	var contact models.Contact
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND email = ?", userID, email).
		First(&contact)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", result.Error)
	}
	return &contact, nil
}

// Exists reports whether an aggregate already exists for the address
func (r *contactRepository) Exists(ctx context.Context, userID, email string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("user_id = ? AND email = ?", userID, email).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check contact existence: %w", result.Error)
	}
	return count > 0, nil
}

// ListByUser retrieves a user's contacts with pagination, most
// recently seen first
func (r *contactRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Contact, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	var contacts []models.Contact
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Limit(limit).Offset(offset).
		Find(&contacts)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", result.Error)
	}

	return contacts, total, nil
}
