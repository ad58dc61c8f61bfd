// Package aggregate merges repeat sightings of the same address into
// one contact record and batches writes to durable storage.
package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
	"github.com/ankaboot-source/leadminer-engine/internal/extract"
	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

// Sighting is one occurrence of an address in one message field.
type Sighting struct {
	Name     string
	Email    string
	Field    extract.Field
	Date     time.Time
	Category string
	Replied  bool
}

// Config tunes batching and write retries.
type Config struct {
	// FlushBatchSize is the number of distinct addresses accumulated
	// in memory before a flush to durable storage.
	FlushBatchSize int

	// MaxWriteRetries bounds upsert retries before the batch fails.
	MaxWriteRetries uint64
}

// Aggregator accumulates sightings for one mining task. The same
// address seen as a from in one message and a to in another merges
// into a single record with both field counters incremented.
type Aggregator struct {
	userID   string
	contacts repository.ContactRepository
	cache    *ExistenceCache
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	batch map[string]*models.Contact
}

// NewAggregator creates an aggregator for one user's mining task.
func NewAggregator(userID string, contacts repository.ContactRepository, cache *ExistenceCache, cfg Config, logger *slog.Logger) *Aggregator {
	if cfg.FlushBatchSize < 1 {
		cfg.FlushBatchSize = 1
	}
	if cfg.MaxWriteRetries == 0 {
		cfg.MaxWriteRetries = 3
	}
	return &Aggregator{
		userID:   userID,
		contacts: contacts,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		batch:    make(map[string]*models.Contact),
	}
}

// Add merges one sighting into the running batch, flushing when the
// batch reaches the configured size. Field counters only grow and
// the last-seen date never moves backward.
func (a *Aggregator) Add(ctx context.Context, s Sighting) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	contact, ok := a.batch[s.Email]
	if !ok {
		contact = a.load(ctx, s.Email)
		a.batch[s.Email] = contact
	}

	if contact.FieldCounts == nil {
		contact.FieldCounts = models.FieldCounts{}
	}
	contact.FieldCounts[string(s.Field)]++

	if contact.Name == "" && s.Name != "" {
		contact.Name = s.Name
	}
	if s.Date.After(contact.LastSeenAt) {
		contact.LastSeenAt = s.Date
	}
	// Category is recomputed from the latest classification pass
	if s.Category != "" {
		contact.Category = s.Category
	}
	if s.Replied {
		contact.Replied = true
	}

	if len(a.batch) >= a.cfg.FlushBatchSize {
		return a.flushLocked(ctx)
	}
	return nil
}

// load seeds the batch entry, pulling the stored aggregate when the
// existence cache says the address was mined before.
func (a *Aggregator) load(ctx context.Context, email string) *models.Contact {
	if a.cache.Has(a.userID, email) {
		stored, err := a.contacts.GetByEmail(ctx, a.userID, email)
		if err == nil {
			return stored
		}
		if err != repository.ErrNotFound {
			a.logger.Warn("failed to load stored contact, merging fresh",
				slog.String("email", email),
				slog.String("error", err.Error()))
		}
	}
	return &models.Contact{
		UserID:      a.userID,
		Email:       email,
		FieldCounts: models.FieldCounts{},
	}
}

// Flush writes any accumulated aggregates to durable storage.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(ctx)
}

func (a *Aggregator) flushLocked(ctx context.Context) error {
	if len(a.batch) == 0 {
		return nil
	}

	contacts := make([]*models.Contact, 0, len(a.batch))
	for _, c := range a.batch {
		contacts = append(contacts, c)
	}

	operation := func() error {
		return a.contacts.UpsertBatch(ctx, contacts)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.cfg.MaxWriteRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		a.logger.Error("contact batch flush failed",
			slog.Int("batch_size", len(contacts)),
			slog.String("error", err.Error()))
		return apperrors.Wrap(apperrors.ErrStorageWrite, err.Error())
	}

	for _, c := range contacts {
		a.cache.MarkMined(c.UserID, c.Email)
	}
	a.batch = make(map[string]*models.Contact)

	a.logger.Debug("contact batch flushed", slog.Int("batch_size", len(contacts)))
	return nil
}

// Size returns the number of distinct addresses pending flush.
func (a *Aggregator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batch)
}
