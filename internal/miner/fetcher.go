package miner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
	"github.com/ankaboot-source/leadminer-engine/internal/extract"
	"github.com/ankaboot-source/leadminer-engine/internal/mailclient"
)

// Fetcher drains folders chunk by chunk, submitting every message to
// the parse pool. It owns cursor advancement and message-id
// synthesis; it never parses MIME itself.
type Fetcher struct {
	pool      *mailclient.Pool
	workers   *WorkerPool
	chunkSize uint32
	logger    *slog.Logger
}

// NewFetcher creates a fetcher over the connection pool.
func NewFetcher(pool *mailclient.Pool, workers *WorkerPool, chunkSize uint32, logger *slog.Logger) *Fetcher {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Fetcher{pool: pool, workers: workers, chunkSize: chunkSize, logger: logger}
}

// FetchFolder fetches a folder's messages from the cursor onward in
// bounded chunks, reporting progress after every chunk. cursor is
// the last sequence number already mined, zero for a fresh folder.
// Returns the final cursor and the number of messages fetched.
//
// A connection failure is retried once on a fresh session; a second
// consecutive failure aborts this folder only.
func (f *Fetcher) FetchFolder(ctx context.Context, folder string, cursor uint32, report func(fetched int, nextCursor uint32)) (uint32, int64, error) {
	lease, err := f.pool.Acquire(ctx, folder)
	if err != nil {
		return cursor, 0, err
	}
	// The lease variable may be swapped for a fresh session on retry
	defer func() { lease.Release() }()

	total, err := lease.Conn.SelectFolder(ctx, folder)
	if err != nil {
		lease.Discard()
		return cursor, 0, err
	}

	if total == 0 || cursor >= total {
		return cursor, 0, nil
	}

	var fetched int64
	start := cursor + 1
	for start <= total {
		end := start + f.chunkSize - 1
		if end > total {
			end = total
		}

		messages, err := f.fetchChunk(ctx, &lease, folder, start, end)
		if err != nil {
			return start - 1, fetched, err
		}

		for _, msg := range messages {
			f.ensureMessageID(&msg)
			job := ParseJob{
				Msg:    msg,
				Folder: folder,
				IsLast: msg.SeqNum == total,
			}
			if err := f.workers.Submit(ctx, job); err != nil {
				return start - 1, fetched, err
			}
			fetched++
		}

		if report != nil {
			report(len(messages), end)
		}
		start = end + 1
	}

	f.logger.Info("folder drained",
		slog.String("folder", folder),
		slog.Int64("fetched", fetched))

	return total, fetched, nil
}

// fetchChunk fetches one sequence range, replacing the lease with a
// fresh session and retrying once on a connection failure.
func (f *Fetcher) fetchChunk(ctx context.Context, lease **mailclient.Lease, folder string, start, end uint32) ([]mailclient.RawMessage, error) {
	messages, err := (*lease).Conn.FetchRange(ctx, start, end)
	if err == nil {
		return messages, nil
	}
	if !apperrors.IsConnection(err) {
		return nil, err
	}

	f.logger.Warn("fetch failed, retrying with fresh session",
		slog.String("folder", folder),
		slog.Uint64("start", uint64(start)),
		slog.Uint64("end", uint64(end)),
		slog.String("error", err.Error()))

	(*lease).Discard()

	fresh, err := f.pool.Acquire(ctx, folder)
	if err != nil {
		return nil, err
	}
	*lease = fresh

	if _, err := fresh.Conn.SelectFolder(ctx, folder); err != nil {
		fresh.Discard()
		return nil, err
	}

	messages, err = fresh.Conn.FetchRange(ctx, start, end)
	if err != nil {
		fresh.Discard()
		return nil, fmt.Errorf("folder %q aborted after retry: %w", folder, err)
	}
	return messages, nil
}

// ensureMessageID fills a missing message id with a synthesized
// pseudo-id so deduplication downstream always has a stable key.
// Format: "UNKNOWN <epoch>@<return-path-domain>".
func (f *Fetcher) ensureMessageID(msg *mailclient.RawMessage) {
	if msg.MessageID != "" {
		return
	}

	domain := returnPathDomain(msg.Header)
	if domain == "" {
		domain = "NO-RETURN-PATH"
	}

	msg.MessageID = fmt.Sprintf("UNKNOWN %d@%s", msg.Envelope.Date.Unix(), domain)
	msg.Envelope.MessageID = msg.MessageID
}

// returnPathDomain scans a raw header block for the Return-Path
// domain.
func returnPathDomain(header []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(header))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.ToLower(line), "return-path:") {
			continue
		}
		value := strings.Trim(strings.TrimSpace(line[len("return-path:"):]), "<>")
		if domain := extract.DomainOf(value); domain != "" {
			return domain
		}
	}
	return ""
}
