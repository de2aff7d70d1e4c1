// Package stub is a local stand-in for the external document gateway. It
// serves fixture documents and renders their artifacts on demand.
package stub

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/smallbiznis/billingportal/internal/gateway/domain"
)

type Store struct {
	mu        sync.RWMutex
	documents []domain.Document
}

func NewStore(documents []domain.Document) *Store {
	copied := make([]domain.Document, len(documents))
	copy(copied, documents)
	return &Store{documents: copied}
}

// LoadStore reads a JSON array of documents. An empty path yields the
// built-in fixtures.
func LoadStore(path string) (*Store, error) {
	if path == "" {
		return NewStore(DefaultFixtures()), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var documents []domain.Document
	if err := json.Unmarshal(raw, &documents); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return NewStore(documents), nil
}

// ForCustomer keeps insertion order.
func (s *Store) ForCustomer(customerID string) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0)
	for _, doc := range s.documents {
		if doc.CustomerID == customerID {
			out = append(out, doc)
		}
	}
	return out
}

func (s *Store) Get(documentID string) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.ID == documentID {
			return doc, true
		}
	}
	return domain.Document{}, false
}

func DefaultFixtures() []domain.Document {
	return []domain.Document{
		{
			ID:             "D1",
			DocumentType:   "invoice",
			DocumentNumber: "001-001-000000001",
			Date:           "2024-01-01",
			Amount:         json.RawMessage("150.50"),
			Status:         "active",
			CustomerID:     "CUST-42",
		},
		{
			ID:             "D2",
			DocumentType:   "credit_note",
			DocumentNumber: "001-001-000000002",
			Date:           "2024-02-15",
			Amount:         json.RawMessage("-20.00"),
			Status:         "active",
			CustomerID:     "CUST-42",
		},
		{
			ID:             "D3",
			DocumentType:   "invoice",
			DocumentNumber: "001-002-000000010",
			Date:           "2024-03-09",
			Amount:         json.RawMessage("1024"),
			Status:         "voided",
			CustomerID:     "CUST-7",
		},
	}
}
