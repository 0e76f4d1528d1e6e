package tree

import (
	"time"

	"gorm.io/datatypes"
)

// SessionCheckpoint is the relational row backing a persisted Session.
type SessionCheckpoint struct {
	ID         string         `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	OwnerID    string         `gorm:"column:owner_id;type:varchar(128);index" json:"owner_id,omitempty"`
	State      string         `gorm:"column:state;not null;index" json:"state"`
	EntryLevel string         `gorm:"column:entry_level" json:"entry_level"`
	Version    int64          `gorm:"column:version;not null" json:"version"`
	Snapshot   datatypes.JSON `gorm:"column:snapshot;type:jsonb;not null" json:"snapshot"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null;index" json:"updated_at"`
}

func (SessionCheckpoint) TableName() string { return "tree_session_checkpoint" }

// Book is a finished tree rendered for readers.
type Book struct {
	ID          string         `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	SessionID   string         `gorm:"column:session_id;type:varchar(64);uniqueIndex" json:"session_id"`
	OwnerID     string         `gorm:"column:owner_id;type:varchar(128);index" json:"owner_id,omitempty"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	EntryLevel  string         `gorm:"column:entry_level;not null" json:"entry_level"`
	Styles      datatypes.JSON `gorm:"column:styles;type:jsonb" json:"styles"`
	Content     datatypes.JSON `gorm:"column:content;type:jsonb;not null" json:"content"`
	ExportURI   string         `gorm:"column:export_uri" json:"export_uri,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Book) TableName() string { return "tree_book" }
