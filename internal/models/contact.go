package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FieldCounts records how many times a contact appeared in each
// address field (from, to, cc, bcc, reply-to, body). Counters only
// grow; the category is recomputed on merge, never appended.
type FieldCounts map[string]int

// Value implements driver.Valuer, storing counts as JSON.
func (f FieldCounts) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field counts: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *FieldCounts) Scan(value interface{}) error {
	if value == nil {
		*f = FieldCounts{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for field counts: %T", value)
	}
	return json.Unmarshal(data, f)
}

// Contact is the deduplicated aggregate for one email address across
// all messages mined for a user. (user_id, email) is the unique key.
type Contact struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      string      `gorm:"not null;size:36;uniqueIndex:idx_contacts_user_email" json:"user_id"`
	Email       string      `gorm:"not null;size:255;uniqueIndex:idx_contacts_user_email" json:"email"`
	Name        string      `gorm:"size:255" json:"name,omitempty"`
	FieldCounts FieldCounts `gorm:"type:text" json:"field_counts"`
	Category    string      `gorm:"size:64" json:"category,omitempty"`
	Replied     bool        `gorm:"default:false" json:"replied"`
	LastSeenAt  time.Time   `json:"last_seen_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}
