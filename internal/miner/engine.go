package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ankaboot-source/leadminer-engine/internal/aggregate"
	"github.com/ankaboot-source/leadminer-engine/internal/credentials"
	"github.com/ankaboot-source/leadminer-engine/internal/dnscheck"
	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
	"github.com/ankaboot-source/leadminer-engine/internal/extract"
	"github.com/ankaboot-source/leadminer-engine/internal/mailclient"
	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"github.com/ankaboot-source/leadminer-engine/internal/progress"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

// Config tunes one engine instance. Zero values fall back to safe
// minimums at construction time.
type Config struct {
	MaxConnsPerAccount int
	MaxConnsPerFolder  int
	ConnectTimeout     time.Duration
	ChunkSize          uint32
	BodyMaxBytes       int
	FetchBody          bool
	ParseWorkers       int
	FlushBatchSize     int
	MaxWriteRetries    uint64
}

// Engine runs mining tasks: one lightweight goroutine per selected
// folder drives fetching while a fixed worker pool parses, and a
// single consumer merges extractions into the aggregate batch.
type Engine struct {
	cfg       Config
	tasks     repository.TaskRepository
	contacts  repository.ContactRepository
	creds     *credentials.Provider
	validator *dnscheck.Validator
	cache     *aggregate.ExistenceCache
	hub       *progress.Hub
	logger    *slog.Logger

	// newDialer builds a mail dialer per task; swapped in tests
	newDialer func(credentials.Credentials, mailclient.DialerConfig) mailclient.Dialer

	mu      sync.Mutex
	running map[string]*runTask
}

// NewEngine creates a mining engine. The existence cache and domain
// validator are shared across all tasks the engine runs.
func NewEngine(
	cfg Config,
	tasks repository.TaskRepository,
	contacts repository.ContactRepository,
	creds *credentials.Provider,
	validator *dnscheck.Validator,
	cache *aggregate.ExistenceCache,
	hub *progress.Hub,
	logger *slog.Logger,
) *Engine {
	// errgroup.SetLimit(0) would block every folder goroutine forever
	if cfg.MaxConnsPerAccount < 1 {
		cfg.MaxConnsPerAccount = 1
	}
	return &Engine{
		cfg:       cfg,
		tasks:     tasks,
		contacts:  contacts,
		creds:     creds,
		validator: validator,
		cache:     cache,
		hub:       hub,
		logger:    logger,
		newDialer: func(c credentials.Credentials, dc mailclient.DialerConfig) mailclient.Dialer {
			return mailclient.NewIMAPDialer(c, dc, logger)
		},
		running: make(map[string]*runTask),
	}
}

// runTask is the mutable state of one in-flight mining run.
type runTask struct {
	task   *models.MiningTask
	cancel context.CancelFunc

	fetched   atomic.Int64
	extracted atomic.Int64

	mu       sync.Mutex
	cursors  models.FolderCursors
	fatalErr error
	canceled bool
}

func (rt *runTask) cursor(folder string) uint32 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cursors[folder]
}

func (rt *runTask) setCursor(folder string, next uint32) {
	rt.mu.Lock()
	rt.cursors[folder] = next
	rt.mu.Unlock()
}

func (rt *runTask) setFatal(err error) {
	rt.mu.Lock()
	if rt.fatalErr == nil {
		rt.fatalErr = err
	}
	rt.mu.Unlock()
	rt.cancel()
}

func (rt *runTask) fatal() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.fatalErr
}

// Start creates a mining task over the selected folders and launches
// it in the background. Credentials are resolved up front so auth
// and scope failures surface to the caller instead of a dead task.
func (e *Engine) Start(ctx context.Context, userID string, sourceID uint, folders []string) (*models.MiningTask, error) {
	if len(folders) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "no folders selected")
	}

	creds, err := e.creds.GetCredentials(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}

	task := &models.MiningTask{
		ID:       uuid.New().String(),
		UserID:   userID,
		SourceID: sourceID,
		Status:   models.TaskStatusRunning,
		Folders:  models.FolderList(folders),
		Cursors:  models.FolderCursors{},
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt := &runTask{
		task:    task,
		cancel:  cancel,
		cursors: models.FolderCursors{},
	}

	e.mu.Lock()
	e.running[task.ID] = rt
	e.mu.Unlock()

	go e.run(runCtx, rt, creds)

	e.logger.Info("mining task started",
		slog.String("mining_id", task.ID),
		slog.String("user_id", userID),
		slog.Int("folders", len(folders)))

	return task, nil
}

// Cancel stops a running task. In-flight worker results are
// discarded; writes already flushed are kept.
func (e *Engine) Cancel(miningID string) error {
	e.mu.Lock()
	rt, ok := e.running[miningID]
	e.mu.Unlock()
	if !ok {
		return apperrors.ErrTaskNotFound
	}

	rt.mu.Lock()
	rt.canceled = true
	rt.mu.Unlock()
	rt.cancel()

	e.logger.Info("mining task canceled", slog.String("mining_id", miningID))
	return nil
}

func (e *Engine) run(ctx context.Context, rt *runTask, creds credentials.Credentials) {
	defer func() {
		e.mu.Lock()
		delete(e.running, rt.task.ID)
		e.mu.Unlock()
	}()

	dialer := e.newDialer(creds, mailclient.DialerConfig{
		ConnectTimeout: e.cfg.ConnectTimeout,
		BodyMaxBytes:   int64(e.cfg.BodyMaxBytes),
		FetchBody:      e.cfg.FetchBody,
	})

	pool := mailclient.NewPool(dialer, mailclient.PoolConfig{
		MaxPerAccount: int64(e.cfg.MaxConnsPerAccount),
		MaxPerFolder:  int64(e.cfg.MaxConnsPerFolder),
	}, e.logger)
	defer pool.Close()

	workers := NewWorkerPool(e.cfg.ParseWorkers, e.cfg.BodyMaxBytes, e.logger)
	workers.Start(ctx)

	fetcher := NewFetcher(pool, workers, e.cfg.ChunkSize, e.logger)
	agg := aggregate.NewAggregator(rt.task.UserID, e.contacts, e.cache, aggregate.Config{
		FlushBatchSize:  e.cfg.FlushBatchSize,
		MaxWriteRetries: e.cfg.MaxWriteRetries,
	}, e.logger)

	var consumerWG sync.WaitGroup
	consumerWG.Add(1)
	go func() {
		defer consumerWG.Done()
		for msg := range workers.Results() {
			// Results returning after cancellation are discarded
			if ctx.Err() != nil {
				continue
			}
			e.processMessage(ctx, rt, agg, msg)
			if msg.IsLast {
				e.hub.Publish(progress.Event{
					Type:     progress.EventFolderScanned,
					MiningID: rt.task.ID,
					Folder:   msg.Folder,
				})
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConnsPerAccount)
	for _, folder := range rt.task.Folders {
		folder := folder
		g.Go(func() error {
			cursor := rt.cursor(folder)
			next, _, err := fetcher.FetchFolder(gctx, folder, cursor, func(fetched int, nextCursor uint32) {
				rt.setCursor(folder, nextCursor)
				total := rt.fetched.Add(int64(fetched))
				e.hub.Publish(progress.Event{
					Type:     progress.EventFetched,
					MiningID: rt.task.ID,
					Count:    total,
				})
			})
			rt.setCursor(folder, next)
			if err != nil {
				if apperrors.IsFatalForTask(err) || gctx.Err() != nil {
					return err
				}
				// Folder-level failure degrades; other folders continue
				e.logger.Warn("folder aborted",
					slog.String("mining_id", rt.task.ID),
					slog.String("folder", folder),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	runErr := g.Wait()
	workers.Close()
	consumerWG.Wait()

	if fatal := rt.fatal(); fatal != nil {
		runErr = fatal
	}

	rt.mu.Lock()
	canceled := rt.canceled
	rt.mu.Unlock()

	// Flushes use a fresh context so a canceled run context cannot
	// strand in-memory aggregates that already passed extraction
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFlush()
	if !canceled {
		if err := agg.Flush(flushCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	e.finish(flushCtx, rt, canceled, runErr)
}

// finish settles terminal state: exactly one close event, persisted
// status and cursors.
func (e *Engine) finish(ctx context.Context, rt *runTask, canceled bool, runErr error) {
	task := rt.task
	task.TotalFetched = rt.fetched.Load()
	task.TotalExtracted = rt.extracted.Load()
	rt.mu.Lock()
	task.Cursors = rt.cursors
	rt.mu.Unlock()

	closeEvent := progress.Event{Type: progress.EventClose, MiningID: task.ID}
	switch {
	case canceled:
		task.Status = models.TaskStatusCanceled
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		task.Status = models.TaskStatusError
		task.Error = runErr.Error()
		closeEvent.Error = runErr.Error()
	default:
		task.Status = models.TaskStatusDone
		e.hub.Publish(progress.Event{
			Type:     progress.EventFetchingFinished,
			MiningID: task.ID,
			Count:    task.TotalFetched,
		})
	}

	if err := e.tasks.Update(ctx, task); err != nil {
		e.logger.Error("failed to persist task state",
			slog.String("mining_id", task.ID),
			slog.String("error", err.Error()))
	}

	e.hub.Publish(closeEvent)

	e.logger.Info("mining task finished",
		slog.String("mining_id", task.ID),
		slog.String("status", string(task.Status)),
		slog.Int64("fetched", task.TotalFetched),
		slog.Int64("extracted", task.TotalExtracted))
}

// processMessage extracts contacts from one parsed message and merges
// them into the aggregate batch. Each (address, field) pair counts at
// most once per message even when the address repeats within a field.
func (e *Engine) processMessage(ctx context.Context, rt *runTask, agg *aggregate.Aggregator, msg ParsedMessage) {
	seen := make(map[string]bool)
	inSentFolder := strings.Contains(strings.ToLower(msg.Folder), "sent")

	handle := func(c extract.Contact, field extract.Field) {
		if c.Email == "" || extract.IsNoReply(c.Email, c.Name) {
			return
		}
		key := c.Email + "|" + string(field)
		if seen[key] {
			return
		}
		seen[key] = true

		// Reachability probe is advisory and cached; the category
		// stands regardless of the result
		e.validator.CheckDomain(ctx, extract.DomainOf(c.Email))

		replied := inSentFolder &&
			(field == extract.FieldTo || field == extract.FieldCc || field == extract.FieldBcc)

		err := agg.Add(ctx, aggregate.Sighting{
			Name:     c.Name,
			Email:    c.Email,
			Field:    field,
			Date:     msg.Date,
			Category: extract.Classify(c.Email),
			Replied:  replied,
		})
		if err != nil {
			rt.setFatal(fmt.Errorf("aggregation failed: %w", err))
			return
		}

		total := rt.extracted.Add(1)
		e.hub.Publish(progress.Event{
			Type:     progress.EventExtracted,
			MiningID: rt.task.ID,
			Count:    total,
		})
	}

	for _, field := range extract.HeaderFields {
		for _, c := range extract.FromHeader(msg.Fields[field]) {
			handle(c, field)
		}
	}
	if msg.BodyText != "" {
		for _, c := range extract.FromBody(msg.BodyText) {
			handle(c, extract.FieldBody)
		}
	}
}

// ListFolders opens one session for the source and returns the
// account's folder tree with per-node totals.
func (e *Engine) ListFolders(ctx context.Context, userID string, sourceID uint) (*FolderNode, error) {
	creds, err := e.creds.GetCredentials(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}

	dialer := e.newDialer(creds, mailclient.DialerConfig{
		ConnectTimeout: e.cfg.ConnectTimeout,
	})

	conn, err := dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	listing, err := conn.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	return BuildFolderTree(creds.UserEmail(), listing), nil
}

// GetTask returns the persisted state of a mining task.
func (e *Engine) GetTask(ctx context.Context, miningID string) (*models.MiningTask, error) {
	task, err := e.tasks.GetByID(ctx, miningID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}
