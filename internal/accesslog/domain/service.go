package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrLogWriteFailed    = errors.New("log_write_failed")
	ErrInvalidAccessType = errors.New("invalid_access_type")
	ErrInvalidDocumentID = errors.New("invalid_document_id")
	ErrInvalidUser       = errors.New("invalid_user")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *DocumentAccessLog) error
}

//go:generate mockgen -source=service.go -destination=../mocks/mock_recorder.go -package=mocks

// Recorder is fire-and-forget: Record never blocks on storage and never
// reports failures to the caller.
type Recorder interface {
	Record(ctx context.Context, userID snowflake.ID, documentID string, accessType AccessType)
}
