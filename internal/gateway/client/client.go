package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/internal/gateway/domain"
	"github.com/smallbiznis/billingportal/internal/observability/metrics"
	"github.com/smallbiznis/billingportal/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	operationList  = "list_documents"
	operationFetch = "fetch_artifact"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Tuning  *config.GatewayConfigHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics       `optional:"true"`
	Portal  *metrics.PortalMetrics `optional:"true"`
	Base    http.RoundTripper      `optional:"true"`
}

type listResponse struct {
	Documents *[]domain.Document `json:"documents"`
	Total     *int               `json:"total"`
	Page      *int               `json:"page"`
	PerPage   *int               `json:"per_page"`
}

type Client struct {
	baseURL      string
	serviceToken string
	tuning       *config.GatewayConfigHolder
	http         *http.Client
	log          *zap.Logger
	metrics      *metrics.Metrics
	portal       *metrics.PortalMetrics
}

func New(p Params) domain.Client {
	tuning := p.Tuning
	if tuning == nil {
		tuning = config.NewStaticGatewayConfigHolder(config.DefaultGatewayConfig(p.Cfg.Gateway))
	}
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(p.Cfg.Gateway.BaseURL), "/"),
		serviceToken: strings.TrimSpace(p.Cfg.Gateway.ServiceToken),
		tuning:       tuning,
		http:         &http.Client{Transport: tracing.NewTransport(p.Base, "gateway")},
		log:          p.Log.Named("gateway.client"),
		metrics:      p.Metrics,
		portal:       p.Portal,
	}
}

// ListDocuments never reports an empty success for a failed call; any
// transport error or non-2xx status is ErrGatewayUnavailable.
func (c *Client) ListDocuments(ctx context.Context, customerRef string, opts domain.ListOptions) (domain.ListResult, error) {
	customerRef = strings.TrimSpace(customerRef)
	if customerRef == "" {
		return domain.ListResult{}, domain.ErrInvalidCustomerRef
	}

	query := url.Values{}
	query.Set("customer_id", customerRef)
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	start := time.Now()
	resp, cancel, err := c.do(ctx, "/documents", query)
	if err != nil {
		c.observe(ctx, operationList, metrics.GatewayOutcomeUnavailable, start)
		return domain.ListResult{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.observe(ctx, operationList, metrics.GatewayOutcomeUnavailable, start)
		c.log.Warn("gateway list rejected",
			zap.Int("status_code", resp.StatusCode),
		)
		return domain.ListResult{}, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.observe(ctx, operationList, metrics.GatewayOutcomeUnavailable, start)
		return domain.ListResult{}, fmt.Errorf("%w: decode list: %v", domain.ErrGatewayUnavailable, err)
	}
	if payload.Documents == nil {
		c.observe(ctx, operationList, metrics.GatewayOutcomeUnavailable, start)
		return domain.ListResult{}, fmt.Errorf("%w: response has no documents", domain.ErrGatewayUnavailable)
	}
	c.observe(ctx, operationList, metrics.GatewayOutcomeOK, start)

	result := domain.ListResult{
		Documents: *payload.Documents,
		Total:     len(*payload.Documents),
		Page:      payload.Page,
		PerPage:   payload.PerPage,
	}
	if payload.Total != nil {
		result.Total = *payload.Total
		result.TotalReported = true
	}
	return result, nil
}

// FetchArtifact buffers the whole artifact before returning.
func (c *Client) FetchArtifact(ctx context.Context, customerRef string, documentID string, format domain.Format) (domain.Artifact, error) {
	customerRef = strings.TrimSpace(customerRef)
	documentID = strings.TrimSpace(documentID)
	if customerRef == "" {
		return domain.Artifact{}, domain.ErrInvalidCustomerRef
	}
	if documentID == "" {
		return domain.Artifact{}, domain.ErrInvalidDocumentID
	}
	if format != domain.FormatPDF && format != domain.FormatXML {
		return domain.Artifact{}, domain.ErrInvalidFormat
	}

	query := url.Values{}
	query.Set("customer_id", customerRef)
	path := "/documents/" + url.PathEscape(documentID) + "/" + string(format)

	start := time.Now()
	resp, cancel, err := c.do(ctx, path, query)
	if err != nil {
		c.observe(ctx, operationFetch, metrics.GatewayOutcomeUnavailable, start)
		return domain.Artifact{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.observe(ctx, operationFetch, metrics.GatewayOutcomeNotFound, start)
		return domain.Artifact{}, domain.ErrArtifactNotFound
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		c.observe(ctx, operationFetch, metrics.GatewayOutcomeUnavailable, start)
		c.log.Warn("gateway fetch rejected",
			zap.String("document_id", documentID),
			zap.String("format", string(format)),
			zap.Int("status_code", resp.StatusCode),
		)
		return domain.Artifact{}, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	limit := c.tuning.Get().MaxArtifactBytes
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		c.observe(ctx, operationFetch, metrics.GatewayOutcomeUnavailable, start)
		return domain.Artifact{}, fmt.Errorf("%w: read artifact: %v", domain.ErrGatewayUnavailable, err)
	}
	if int64(len(body)) > limit {
		c.observe(ctx, operationFetch, metrics.GatewayOutcomeUnavailable, start)
		return domain.Artifact{}, fmt.Errorf("%w: artifact exceeds %d bytes", domain.ErrGatewayUnavailable, limit)
	}
	c.observe(ctx, operationFetch, metrics.GatewayOutcomeOK, start)
	c.portal.ObserveArtifactBytes(string(format), len(body))

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = format.ContentType()
	}
	return domain.Artifact{
		Body:        body,
		ContentType: contentType,
		Format:      format,
	}, nil
}

// do issues a GET bounded by the hot-reloaded timeout. The returned cancel
// must run after the body has been consumed.
func (c *Client) do(ctx context.Context, path string, query url.Values) (*http.Response, context.CancelFunc, error) {
	if c.baseURL == "" {
		return nil, nil, fmt.Errorf("%w: base url not configured", domain.ErrGatewayUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.tuning.Get().Timeout)
	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Accept", "application/json, application/pdf, application/xml")
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) {
			return nil, nil, err
		}
		c.log.Warn("gateway request failed",
			zap.String("path", path),
			zap.Error(tracing.SafeError(err)),
		)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, tracing.SafeError(err))
	}
	return resp, cancel, nil
}

func (c *Client) observe(ctx context.Context, operation, outcome string, start time.Time) {
	c.metrics.RecordGatewayRequest(ctx, operation, outcome)
	c.portal.ObserveGatewayRequest(operation, outcome, time.Since(start))
}
