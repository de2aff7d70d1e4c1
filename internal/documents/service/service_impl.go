package service

import (
	"context"
	"fmt"
	"strings"

	accesslogdomain "github.com/smallbiznis/billingportal/internal/accesslog/domain"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	"github.com/smallbiznis/billingportal/internal/customerref"
	"github.com/smallbiznis/billingportal/internal/documents/domain"
	"github.com/smallbiznis/billingportal/internal/documents/format"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
	"github.com/smallbiznis/billingportal/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ownershipPageLimit bounds how many listing pages are scanned when
// confirming that a document belongs to the customer.
const ownershipPageLimit = 20

// CustomerMapper resolves the customer reference for an identity.
type CustomerMapper interface {
	Map(ctx context.Context, identity authdomain.Identity, strategy customerref.Strategy) (customerref.Ref, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Mapper   CustomerMapper
	Gateway  gatewaydomain.Client
	Recorder accesslogdomain.Recorder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	mapper   CustomerMapper
	gateway  gatewaydomain.Client
	recorder accesslogdomain.Recorder
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("documents.service"),
		mapper:   p.Mapper,
		gateway:  p.Gateway,
		recorder: p.Recorder,
		metrics:  p.Metrics,
	}
}

// List returns the customer's documents in gateway order and records one
// view event per returned document.
func (s *Service) List(ctx context.Context, identity authdomain.Identity, req domain.ListRequest) (domain.ListResponse, error) {
	ref, err := s.mapper.Map(ctx, identity, customerref.FailFast)
	if err != nil {
		return domain.ListResponse{}, err
	}

	result, err := s.gateway.ListDocuments(ctx, ref.Value, gatewaydomain.ListOptions{
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		s.log.Warn("list documents failed",
			zap.String("user_id", identity.ID.String()),
			zap.Error(err),
		)
		return domain.ListResponse{}, err
	}

	views := make([]domain.DocumentView, 0, len(result.Documents))
	for _, doc := range result.Documents {
		views = append(views, domain.DocumentView{
			Document:      doc,
			AmountDisplay: format.AmountDisplay(doc.Amount),
			DateDisplay:   format.DateDisplay(doc.Date),
		})
	}

	for _, doc := range result.Documents {
		s.record(ctx, identity, doc.ID, accesslogdomain.AccessView)
	}

	return domain.ListResponse{
		Documents: views,
		Total:     result.Total,
		Page:      result.Page,
		PerPage:   result.PerPage,
	}, nil
}

// Download confirms the document is listed for the customer, fetches the
// whole artifact and only then records the download.
func (s *Service) Download(ctx context.Context, identity authdomain.Identity, documentID string, f gatewaydomain.Format) (domain.Download, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" || len(documentID) > gatewaydomain.MaxDocumentIDLength {
		return domain.Download{}, gatewaydomain.ErrInvalidDocumentID
	}
	if f != gatewaydomain.FormatPDF && f != gatewaydomain.FormatXML {
		return domain.Download{}, gatewaydomain.ErrInvalidFormat
	}

	ref, err := s.mapper.Map(ctx, identity, customerref.FailFast)
	if err != nil {
		return domain.Download{}, err
	}

	doc, err := s.findOwned(ctx, ref.Value, documentID)
	if err != nil {
		return domain.Download{}, err
	}

	artifact, err := s.gateway.FetchArtifact(ctx, ref.Value, documentID, f)
	if err != nil {
		s.log.Warn("fetch artifact failed",
			zap.String("user_id", identity.ID.String()),
			zap.String("document_id", documentID),
			zap.String("format", string(f)),
			zap.Error(err),
		)
		return domain.Download{}, err
	}

	s.record(ctx, identity, documentID, accessTypeFor(f))

	return domain.Download{
		DocumentID:  documentID,
		Filename:    format.ArtifactFilename(doc, f),
		ContentType: artifact.ContentType,
		Body:        artifact.Body,
	}, nil
}

// Dashboard may degrade to the identity id when no profile exists; the
// summary is flagged so it is never mistaken for authoritative data. A
// gateway failure leaves the count unavailable instead of failing the page.
func (s *Service) Dashboard(ctx context.Context, identity authdomain.Identity) (domain.DashboardSummary, error) {
	ref, err := s.mapper.Map(ctx, identity, customerref.DegradeToIdentity)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	summary := domain.DashboardSummary{
		GreetingName:        identity.Email,
		CustomerRefDegraded: ref.Degraded,
	}
	if ref.Profile != nil {
		summary.GreetingName = ref.Profile.GreetingName()
		summary.Profile = &domain.ProfileSnippet{
			FirstName:     ref.Profile.FirstName,
			LastName:      ref.Profile.LastName,
			DisplayName:   ref.Profile.DisplayName,
			Email:         ref.Profile.Email,
			ERPCustomerID: ref.Profile.ERPCustomerID,
		}
	}

	result, err := s.gateway.ListDocuments(ctx, ref.Value, gatewaydomain.ListOptions{})
	if err != nil {
		s.log.Warn("dashboard document count unavailable",
			zap.String("user_id", identity.ID.String()),
			zap.Bool("degraded", ref.Degraded),
			zap.Error(err),
		)
		return summary, nil
	}
	summary.DocumentCount = result.Total
	summary.CountAvailable = true
	return summary, nil
}

func (s *Service) findOwned(ctx context.Context, customerRef, documentID string) (gatewaydomain.Document, error) {
	opts := gatewaydomain.ListOptions{}
	seen := 0
	for page := 1; page <= ownershipPageLimit; page++ {
		result, err := s.gateway.ListDocuments(ctx, customerRef, opts)
		if err != nil {
			return gatewaydomain.Document{}, fmt.Errorf("confirm document ownership: %w", err)
		}
		if doc, ok := result.Find(documentID); ok {
			return doc, nil
		}

		seen += len(result.Documents)
		if len(result.Documents) == 0 || !result.TotalReported || seen >= result.Total {
			break
		}
		// Gateways that paginate without echoing page fields are walked with
		// the local counter.
		next := page + 1
		if result.Page != nil {
			next = *result.Page + 1
		}
		opts = gatewaydomain.ListOptions{Page: next}
		if result.PerPage != nil {
			opts.PerPage = *result.PerPage
		}
	}

	s.log.Warn("document not listed for customer",
		zap.String("document_id", documentID),
	)
	return gatewaydomain.Document{}, gatewaydomain.ErrArtifactNotFound
}

func (s *Service) record(ctx context.Context, identity authdomain.Identity, documentID string, accessType accesslogdomain.AccessType) {
	s.metrics.RecordDocumentAccess(ctx, string(accessType))
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, identity.ID, documentID, accessType)
}

func accessTypeFor(f gatewaydomain.Format) accesslogdomain.AccessType {
	if f == gatewaydomain.FormatXML {
		return accesslogdomain.AccessDownloadXML
	}
	return accesslogdomain.AccessDownloadPDF
}
