package domain

import (
	"encoding/json"
	"strings"
)

// Document is owned by the external gateway and never persisted locally.
// Date and Amount are passed through exactly as the gateway sent them.
type Document struct {
	ID             string          `json:"id"`
	DocumentType   string          `json:"document_type"`
	DocumentNumber string          `json:"document_number"`
	Date           string          `json:"date"`
	Amount         json.RawMessage `json:"amount"`
	Status         string          `json:"status"`
	CustomerID     string          `json:"customer_id"`
}

// AmountText is the amount as text without JSON quoting, or "" when the
// gateway sent null or nothing.
func AmountText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		return strings.TrimSpace(quoted)
	}
	return text
}

type ListOptions struct {
	Page    int
	PerPage int
}

// ListResult keeps the gateway ordering. Total falls back to the number of
// documents when the gateway omits it; TotalReported tells the two apart.
type ListResult struct {
	Documents     []Document
	Total         int
	TotalReported bool
	Page          *int
	PerPage       *int
}

// Find returns the document with the given id from the listing.
func (r ListResult) Find(documentID string) (Document, bool) {
	for _, doc := range r.Documents {
		if doc.ID == documentID {
			return doc, true
		}
	}
	return Document{}, false
}

type Format string

const (
	FormatPDF Format = "pdf"
	FormatXML Format = "xml"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatXML:
		return FormatXML, nil
	default:
		return "", ErrInvalidFormat
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Artifact is a fully buffered binary rendition of one document.
type Artifact struct {
	Body        []byte
	ContentType string
	Format      Format
}
