package models

import (
	"time"
)

// SourceType discriminates how a mining source authenticates.
type SourceType string

const (
	// SourceTypeIMAP is a password-based IMAP account.
	SourceTypeIMAP SourceType = "imap"

	// SourceTypeGoogle is an OAuth source on Google's consent flow.
	SourceTypeGoogle SourceType = "oauth_google"

	// SourceTypeAzure is an OAuth source on the Microsoft identity platform.
	SourceTypeAzure SourceType = "oauth_azure"
)

// MiningSource is a mailbox registered for mining. Password-based
// sources fill Host/Port/Password; OAuth sources fill the token
// columns. The Type column is the discriminant, never field probing.
type MiningSource struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	UserID string     `gorm:"not null;size:36;index" json:"user_id"`
	Email  string     `gorm:"not null;size:255" json:"email"`
	Type   SourceType `gorm:"not null;size:32" json:"type"`

	// Password-based credentials
	Host     string `gorm:"size:255" json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Password string `gorm:"size:255" json:"-"`

	// OAuth credentials, mutated on token refresh
	AccessToken  string    `gorm:"size:2048" json:"-"`
	RefreshToken string    `gorm:"size:2048" json:"-"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for MiningSource
func (MiningSource) TableName() string {
	return "mining_sources"
}

// IsOAuth reports whether the source authenticates with bearer tokens.
func (s *MiningSource) IsOAuth() bool {
	return s.Type == SourceTypeGoogle || s.Type == SourceTypeAzure
}
