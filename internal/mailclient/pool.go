package mailclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// PoolConfig bounds how many sessions the pool opens.
type PoolConfig struct {
	// MaxPerAccount caps concurrent sessions against the account.
	// Providers enforce their own per-account session limits; staying
	// under them avoids hard disconnects mid-mining.
	MaxPerAccount int64

	// MaxPerFolder caps concurrent sessions working one folder.
	MaxPerFolder int64
}

// Pool hands out authenticated sessions under per-account and
// per-folder limits, reusing idle sessions across leases.
type Pool struct {
	dialer Dialer
	cfg    PoolConfig
	logger *slog.Logger

	accountSem *semaphore.Weighted

	mu         sync.Mutex
	folderSems map[string]*semaphore.Weighted
	idle       []Conn
	closed     bool

	inUse atomic.Int64
}

// NewPool creates a connection pool over the dialer.
func NewPool(dialer Dialer, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.MaxPerAccount < 1 {
		cfg.MaxPerAccount = 1
	}
	if cfg.MaxPerFolder < 1 {
		cfg.MaxPerFolder = 1
	}
	return &Pool{
		dialer:     dialer,
		cfg:        cfg,
		logger:     logger,
		accountSem: semaphore.NewWeighted(cfg.MaxPerAccount),
		folderSems: make(map[string]*semaphore.Weighted),
	}
}

// Lease is a session checked out for one folder. Exactly one of
// Release or Discard must be called; extra calls are no-ops.
type Lease struct {
	Conn Conn

	pool   *Pool
	folder string
	once   sync.Once
}

// Release returns a healthy session to the pool for reuse.
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.put(l, false) })
}

// Discard drops a broken session so the next lease dials fresh.
func (l *Lease) Discard() {
	l.once.Do(func() { l.pool.put(l, true) })
}

// Acquire checks out a session for work on the given folder,
// blocking until both the folder and account limits allow it.
func (p *Pool) Acquire(ctx context.Context, folder string) (*Lease, error) {
	folderSem := p.folderSem(folder)

	if err := folderSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := p.accountSem.Acquire(ctx, 1); err != nil {
		folderSem.Release(1)
		return nil, err
	}

	conn, err := p.checkout(ctx)
	if err != nil {
		p.accountSem.Release(1)
		folderSem.Release(1)
		return nil, err
	}

	p.inUse.Add(1)
	return &Lease{Conn: conn, pool: p, folder: folder}, nil
}

func (p *Pool) folderSem(folder string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.folderSems[folder]
	if !ok {
		sem = semaphore.NewWeighted(p.cfg.MaxPerFolder)
		p.folderSems[folder] = sem
	}
	return sem
}

func (p *Pool) checkout(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool is closed")
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	return p.dialer.Dial(ctx)
}

func (p *Pool) put(l *Lease, broken bool) {
	p.inUse.Add(-1)

	p.mu.Lock()
	closed := p.closed
	if !broken && !closed {
		p.idle = append(p.idle, l.Conn)
	}
	p.mu.Unlock()

	if broken || closed {
		if err := l.Conn.Close(); err != nil {
			p.logger.Debug("failed to close imap session", slog.String("error", err.Error()))
		}
	}

	p.accountSem.Release(1)
	p.folderSem(l.folder).Release(1)
}

// InUse returns the number of currently leased sessions.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

// Close closes all idle sessions and stops reuse. Leased sessions
// are closed as they come back.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		if err := conn.Close(); err != nil {
			p.logger.Debug("failed to close imap session", slog.String("error", err.Error()))
		}
	}
}
