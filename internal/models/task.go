package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a mining task.
type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusDone     TaskStatus = "done"
	TaskStatusCanceled TaskStatus = "canceled"
	TaskStatusError    TaskStatus = "error"
)

// FolderCursors maps a folder path to the next sequence number to
// fetch, making a paused task resumable.
type FolderCursors map[string]uint32

// Value implements driver.Valuer, storing cursors as JSON.
func (c FolderCursors) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal folder cursors: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (c *FolderCursors) Scan(value interface{}) error {
	if value == nil {
		*c = FolderCursors{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for folder cursors: %T", value)
	}
	return json.Unmarshal(data, c)
}

// FolderList stores the selected folder paths as JSON.
type FolderList []string

// Value implements driver.Valuer.
func (l FolderList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal folder list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *FolderList) Scan(value interface{}) error {
	if value == nil {
		*l = FolderList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for folder list: %T", value)
	}
	return json.Unmarshal(data, l)
}

// MiningTask is one run of folder traversal and extraction for one
// source. Created when mining starts, mutated as folders complete,
// terminal on completion, cancellation or error.
type MiningTask struct {
	ID       string     `gorm:"primaryKey;size:36" json:"id"`
	UserID   string     `gorm:"not null;size:36;index" json:"user_id"`
	SourceID uint       `gorm:"not null;index" json:"source_id"`
	Status   TaskStatus `gorm:"not null;size:16" json:"status"`

	Folders FolderList    `gorm:"type:text" json:"folders"`
	Cursors FolderCursors `gorm:"type:text" json:"cursors"`

	TotalFetched   int64  `json:"total_fetched"`
	TotalExtracted int64  `json:"total_extracted"`
	Error          string `gorm:"size:1024" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for MiningTask
func (MiningTask) TableName() string {
	return "mining_tasks"
}
