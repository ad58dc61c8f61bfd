// Package dnscheck flags whether a domain can receive mail by probing
// its MX records. Positive results are cached for a TTL; negatives
// are never cached so transient failures get retried on the next
// sighting.
package dnscheck

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
)

// Result of a domain reachability check.
type Result string

const (
	ResultOK Result = "ok"
	ResultKO Result = "ko"
)

// Config holds configuration for the domain validator
type Config struct {
	CacheTTL      time.Duration
	LookupTimeout time.Duration
}

// DefaultConfig returns default configuration for the validator
func DefaultConfig() Config {
	return Config{
		CacheTTL:      240 * time.Hour,
		LookupTimeout: 5 * time.Second,
	}
}

// Resolver performs MX lookups (allows mocking in tests)
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// defaultResolver implements Resolver using the net package
type defaultResolver struct {
	resolver *net.Resolver
}

func newDefaultResolver(timeout time.Duration) *defaultResolver {
	return &defaultResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{
					Timeout: timeout,
				}
				return d.DialContext(ctx, network, address)
			},
		},
	}
}

func (r *defaultResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return r.resolver.LookupMX(ctx, name)
}

// Validator checks domain mail reachability with a shared TTL cache.
// Safe for concurrent use across mining runs; cache writes are
// idempotent upserts keyed by domain.
type Validator struct {
	config   Config
	resolver Resolver
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]time.Time // domain -> cache entry expiry, positives only
}

// NewValidator creates a Validator with the default net resolver.
func NewValidator(config Config, logger *slog.Logger) *Validator {
	return &Validator{
		config:   config,
		resolver: newDefaultResolver(config.LookupTimeout),
		logger:   logger,
		cache:    make(map[string]time.Time),
	}
}

// NewValidatorWithResolver creates a Validator with a custom resolver (for testing)
func NewValidatorWithResolver(config Config, resolver Resolver, logger *slog.Logger) *Validator {
	return &Validator{
		config:   config,
		resolver: resolver,
		logger:   logger,
		cache:    make(map[string]time.Time),
	}
}

// CheckDomain reports whether the domain has at least one MX record.
// Empty input and lookup failures return ko immediately, uncached.
func (v *Validator) CheckDomain(ctx context.Context, domain string) Result {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ResultKO
	}

	if v.cachedOK(domain) {
		return ResultOK
	}

	if err := v.lookup(ctx, domain); err != nil {
		if v.logger != nil {
			v.logger.Debug("domain check failed", slog.String("domain", domain), slog.Any("error", err))
		}
		return ResultKO
	}

	v.mu.Lock()
	v.cache[domain] = time.Now().Add(v.config.CacheTTL)
	v.mu.Unlock()

	return ResultOK
}

// lookup resolves MX records for the domain, mapping every failure
// mode into the engine's DNS error so callers can log one taxonomy.
func (v *Validator) lookup(ctx context.Context, domain string) error {
	lookupCtx, cancel := context.WithTimeout(ctx, v.config.LookupTimeout)
	defer cancel()

	records, err := v.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperrors.ErrDNSLookup, domain, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s: no MX records", apperrors.ErrDNSLookup, domain)
	}
	return nil
}

// cachedOK checks for an unexpired positive cache entry, purging the
// entry lazily when it has lapsed.
func (v *Validator) cachedOK(domain string) bool {
	v.mu.RLock()
	expiry, ok := v.cache[domain]
	v.mu.RUnlock()
	if !ok {
		return false
	}

	if time.Now().After(expiry) {
		v.mu.Lock()
		delete(v.cache, domain)
		v.mu.Unlock()
		return false
	}

	return true
}
