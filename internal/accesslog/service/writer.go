package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/billingportal/internal/accesslog/domain"
	"github.com/smallbiznis/billingportal/internal/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Writer persists a single access event synchronously.
type Writer struct {
	db    *gorm.DB
	repo  domain.Repository
	clock clock.Clock
}

func NewWriter(db *gorm.DB, repo domain.Repository, clk clock.Clock) *Writer {
	if clk == nil {
		clk = clock.New()
	}
	return &Writer{db: db, repo: repo, clock: clk}
}

func (w *Writer) Write(ctx context.Context, event domain.Event) (*domain.DocumentAccessLog, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	accessedAt := event.OccurredAt
	if accessedAt.IsZero() {
		accessedAt = w.clock.Now()
	}
	accessedAt = accessedAt.UTC()

	entry := &domain.DocumentAccessLog{
		ID:         ulid.MustNew(ulid.Timestamp(accessedAt), ulid.DefaultEntropy()).String(),
		UserID:     event.UserID,
		DocumentID: strings.TrimSpace(event.DocumentID),
		AccessType: event.AccessType,
		AccessedAt: accessedAt,
	}
	if len(event.Metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(event.Metadata)
	}

	if err := w.repo.Insert(ctx, w.db, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLogWriteFailed, err)
	}
	return entry, nil
}

func validateEvent(event domain.Event) error {
	if event.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if strings.TrimSpace(event.DocumentID) == "" {
		return domain.ErrInvalidDocumentID
	}
	if !event.AccessType.Valid() {
		return domain.ErrInvalidAccessType
	}
	return nil
}
