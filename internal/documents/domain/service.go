package domain

import (
	"context"

	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
)

// DocumentView is a gateway document plus display-only fields.
type DocumentView struct {
	gatewaydomain.Document
	AmountDisplay string `json:"amount_display"`
	DateDisplay   string `json:"date_display"`
}

type ListRequest struct {
	Page    int
	PerPage int
}

type ListResponse struct {
	Documents []DocumentView `json:"documents"`
	Total     int            `json:"total"`
	Page      *int           `json:"page,omitempty"`
	PerPage   *int           `json:"per_page,omitempty"`
}

// Download is a buffered artifact ready to hand to the presentation layer.
type Download struct {
	DocumentID  string
	Filename    string
	ContentType string
	Body        []byte
}

type ProfileSnippet struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	DisplayName   *string `json:"display_name,omitempty"`
	Email         string  `json:"email"`
	ERPCustomerID string  `json:"erp_customer_id"`
}

// DashboardSummary is non-authoritative when CustomerRefDegraded is set:
// the count was looked up with the raw identity id.
type DashboardSummary struct {
	GreetingName        string          `json:"greeting_name"`
	DocumentCount       int             `json:"document_count"`
	CountAvailable      bool            `json:"count_available"`
	CustomerRefDegraded bool            `json:"customer_ref_degraded"`
	Profile             *ProfileSnippet `json:"profile,omitempty"`
}

type Service interface {
	List(ctx context.Context, identity authdomain.Identity, req ListRequest) (ListResponse, error)
	Download(ctx context.Context, identity authdomain.Identity, documentID string, format gatewaydomain.Format) (Download, error)
	Dashboard(ctx context.Context, identity authdomain.Identity) (DashboardSummary, error)
}
