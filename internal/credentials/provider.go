package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
	"github.com/ankaboot-source/leadminer-engine/internal/models"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

const (
	googleIMAPHost = "imap.gmail.com"
	azureIMAPHost  = "outlook.office365.com"
	imapTLSPort    = 993

	// GoogleMailScope grants full IMAP access to a Gmail mailbox.
	GoogleMailScope = "https://mail.google.com/"

	// AzureIMAPScope grants delegated IMAP access on the Microsoft
	// identity platform.
	AzureIMAPScope = "https://outlook.office.com/IMAP.AccessAsUser.All"

	// azureOfflineScope keeps the refresh token alive across sessions.
	azureOfflineScope = "offline_access"

	// expiryLeeway refreshes tokens slightly before their stated
	// expiry so a token never dies mid-handshake.
	expiryLeeway = 5 * time.Minute
)

// Credentials is what the mail client needs to open a session.
type Credentials interface {
	// Addr returns the host:port to dial.
	Addr() string

	// UserEmail returns the mailbox address being mined.
	UserEmail() string
}

// Password authenticates with LOGIN.
type Password struct {
	Host     string
	Port     int
	Email    string
	Password string
}

// Addr returns the host:port to dial.
func (p Password) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// UserEmail returns the mailbox address being mined.
func (p Password) UserEmail() string { return p.Email }

// OAuth authenticates with SASL XOAUTH2 using a bearer token.
type OAuth struct {
	Host        string
	Port        int
	Email       string
	AccessToken string
}

// Addr returns the host:port to dial.
func (o OAuth) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// UserEmail returns the mailbox address being mined.
func (o OAuth) UserEmail() string { return o.Email }

// Provider resolves a mining source into ready-to-use credentials,
// transparently refreshing expired OAuth tokens.
type Provider struct {
	sources repository.SourceRepository
	google  *oauth2.Config
	azure   *oauth2.Config
	logger  *slog.Logger

	// now is a clock seam for tests
	now func() time.Time
}

// OAuthApp holds the registered client for one identity provider.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewProvider creates a credential provider backed by the sources
// repository.
func NewProvider(sources repository.SourceRepository, googleApp, azureApp OAuthApp, logger *slog.Logger) *Provider {
	return &Provider{
		sources: sources,
		google: &oauth2.Config{
			ClientID:     googleApp.ClientID,
			ClientSecret: googleApp.ClientSecret,
			RedirectURL:  googleApp.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{GoogleMailScope},
		},
		azure: &oauth2.Config{
			ClientID:     azureApp.ClientID,
			ClientSecret: azureApp.ClientSecret,
			RedirectURL:  azureApp.RedirectURL,
			Endpoint:     microsoft.AzureADEndpoint("common"),
			Scopes:       []string{AzureIMAPScope, azureOfflineScope},
		},
		logger: logger,
		now:    time.Now,
	}
}

// GetCredentials resolves the source into dialable credentials. For
// OAuth sources an expired access token is refreshed and the new token
// is persisted before the credentials are returned.
func (p *Provider) GetCredentials(ctx context.Context, userID string, sourceID uint) (Credentials, error) {
	source, err := p.sources.GetByID(ctx, userID, sourceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to load mining source: %w", err)
	}

	if !source.IsOAuth() {
		return Password{
			Host:     source.Host,
			Port:     source.Port,
			Email:    source.Email,
			Password: source.Password,
		}, nil
	}

	return p.oauthCredentials(ctx, source)
}

func (p *Provider) oauthCredentials(ctx context.Context, source *models.MiningSource) (Credentials, error) {
	accessToken := source.AccessToken
	if p.tokenExpired(source) {
		tok, err := p.refresh(ctx, source)
		if err != nil {
			return nil, err
		}
		accessToken = tok.AccessToken
	}

	host := googleIMAPHost
	if source.Type == models.SourceTypeAzure {
		host = azureIMAPHost
	}

	return OAuth{
		Host:        host,
		Port:        imapTLSPort,
		Email:       source.Email,
		AccessToken: accessToken,
	}, nil
}

func (p *Provider) tokenExpired(source *models.MiningSource) bool {
	if source.AccessToken == "" {
		return true
	}
	if source.TokenExpiry.IsZero() {
		return true
	}
	return p.now().Add(expiryLeeway).After(source.TokenExpiry)
}

func (p *Provider) refresh(ctx context.Context, source *models.MiningSource) (*oauth2.Token, error) {
	conf := p.google
	if source.Type == models.SourceTypeAzure {
		conf = p.azure
	}

	if source.RefreshToken == "" {
		return nil, apperrors.Wrap(apperrors.ErrAuthExpired, "no refresh token on record")
	}

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: source.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		// A rejected refresh token means the grant was revoked or
		// expired server-side. Only a new consent flow can recover.
		p.logger.Warn("oauth token refresh rejected",
			slog.String("email", source.Email),
			slog.String("source_type", string(source.Type)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: token refresh rejected: %v", apperrors.ErrAuthExpired, err)
	}

	if err := p.validateScopes(source.Type, tok); err != nil {
		return nil, err
	}

	if err := p.sources.UpdateToken(ctx, source.ID, tok.AccessToken, tok.Expiry); err != nil {
		// The refreshed token is still usable for this run even if
		// persisting it failed. The next run refreshes again.
		p.logger.Error("failed to persist refreshed token",
			slog.Uint64("source_id", uint64(source.ID)),
			slog.String("error", err.Error()))
	}

	p.logger.Info("oauth token refreshed",
		slog.String("email", source.Email),
		slog.Time("expiry", tok.Expiry))

	return tok, nil
}

// validateScopes checks that the provider granted the scope mining
// needs. Providers that do not echo scopes on refresh pass through.
func (p *Provider) validateScopes(sourceType models.SourceType, tok *oauth2.Token) error {
	raw, ok := tok.Extra("scope").(string)
	if !ok || raw == "" {
		return nil
	}

	required := GoogleMailScope
	if sourceType == models.SourceTypeAzure {
		required = AzureIMAPScope
	}

	for _, granted := range strings.Fields(raw) {
		if strings.EqualFold(granted, required) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", apperrors.ErrScopeMissing, required)
}
