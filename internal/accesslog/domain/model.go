package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AccessType string

const (
	AccessView        AccessType = "view"
	AccessDownloadPDF AccessType = "download_pdf"
	AccessDownloadXML AccessType = "download_xml"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessView, AccessDownloadPDF, AccessDownloadXML:
		return true
	default:
		return false
	}
}

// DocumentAccessLog is append-only. DocumentID points at a gateway document
// and carries no foreign key.
type DocumentAccessLog struct {
	ID         string            `gorm:"primaryKey;type:varchar(26)" json:"id"`
	UserID     snowflake.ID      `gorm:"column:user_id;not null;index" json:"user_id"`
	DocumentID string            `gorm:"column:document_id;size:768;not null;index" json:"document_id"`
	AccessType AccessType        `gorm:"column:access_type;type:varchar(32);not null" json:"access_type"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	AccessedAt time.Time         `gorm:"column:accessed_at;not null;index" json:"accessed_at"`
}

func (DocumentAccessLog) TableName() string { return "document_access_logs" }

// Event is one access to record. Metadata is captured from the request
// context at enqueue time so the write never holds on to the request.
type Event struct {
	UserID     snowflake.ID
	DocumentID string
	AccessType AccessType
	Metadata   map[string]any
	OccurredAt time.Time
}
