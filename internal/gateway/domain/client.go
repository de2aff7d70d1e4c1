package domain

import (
	"context"
	"errors"
)

var (
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrArtifactNotFound   = errors.New("artifact_not_found")
	ErrInvalidFormat      = errors.New("invalid_format")
	ErrInvalidCustomerRef = errors.New("invalid_customer_ref")
	ErrInvalidDocumentID  = errors.New("invalid_document_id")
)

// MaxDocumentIDLength is the longest document id the portal accepts from a
// caller. It matches the indexable access log column on mysql.
const MaxDocumentIDLength = 768

//go:generate mockgen -source=client.go -destination=../mocks/mock_client.go -package=mocks

// Client talks to the external document gateway. Every call is scoped to a
// single customer reference.
type Client interface {
	ListDocuments(ctx context.Context, customerRef string, opts ListOptions) (ListResult, error)
	FetchArtifact(ctx context.Context, customerRef string, documentID string, format Format) (Artifact, error)
}
