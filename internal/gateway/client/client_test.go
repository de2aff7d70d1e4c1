package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*config.GatewayConfig)) domain.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{Gateway: config.GatewayEndpoint{
		BaseURL:      srv.URL,
		ServiceToken: "svc-token",
		Timeout:      2 * time.Second,
	}}
	tuning := config.DefaultGatewayConfig(cfg.Gateway)
	if mutate != nil {
		mutate(&tuning)
	}
	return New(Params{
		Cfg:    cfg,
		Tuning: config.NewStaticGatewayConfigHolder(tuning),
		Log:    zap.NewNop(),
	})
}

func TestListDocumentsPassesThroughGatewayPayload(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/documents", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"documents":[{"id":"D1","document_type":"invoice","document_number":"001-001-000000001","date":"2024-01-01","amount":150.50,"status":"active","customer_id":"CUST-42"}],"total":1,"page":1,"per_page":20}`))
	}, nil)

	result, err := c.ListDocuments(context.Background(), "CUST-42", domain.ListOptions{Page: 1, PerPage: 20})
	require.NoError(t, err)

	assert.Equal(t, "customer_id=CUST-42&page=1&per_page=20", gotQuery)
	assert.Equal(t, "Bearer svc-token", gotAuth)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, 1, result.Total)
	assert.True(t, result.TotalReported)
	require.NotNil(t, result.Page)
	assert.Equal(t, 1, *result.Page)

	doc := result.Documents[0]
	assert.Equal(t, "D1", doc.ID)
	assert.Equal(t, "150.50", string(doc.Amount))
	assert.Equal(t, "2024-01-01", doc.Date)
}

func TestListDocumentsKeepsNullAmount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"id":"D1","amount":null},{"id":"D2","amount":"99.90"}]}`))
	}, nil)

	result, err := c.ListDocuments(context.Background(), "CUST-42", domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)

	encoded, err := json.Marshal(result.Documents[0])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"amount":null`)
	assert.Equal(t, "", domain.AmountText(result.Documents[0].Amount))

	encoded, err = json.Marshal(result.Documents[1])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"amount":"99.90"`)
}

func TestListDocumentsTotalDefaultsToLength(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[{"id":"A"},{"id":"B"}]}`))
	}, nil)

	result, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.False(t, result.TotalReported)
	assert.Nil(t, result.Page)
	assert.Equal(t, []string{"A", "B"}, []string{result.Documents[0].ID, result.Documents[1].ID})
}

func TestListDocumentsEmptyIsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":[],"total":0}`))
	}, nil)

	result, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Equal(t, 0, result.Total)
}

func TestListDocumentsFailuresAreUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"documents":`))
		},
		"missing documents": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"total":3}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, handler, nil)
			_, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
			assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		})
	}
}

func TestListDocumentsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := New(Params{
		Cfg: config.Config{Gateway: config.GatewayEndpoint{BaseURL: baseURL, Timeout: time.Second}},
		Log: zap.NewNop(),
	})
	_, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestListDocumentsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, func(cfg *config.GatewayConfig) {
		cfg.Timeout = 20 * time.Millisecond
	})

	_, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestListDocumentsRejectsBlankCustomer(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, nil)

	_, err := c.ListDocuments(context.Background(), "  ", domain.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomerRef)
	assert.False(t, called)
}

func TestFetchArtifactBuffersBody(t *testing.T) {
	payload := []byte("%PDF-1.4 test")
	var gotPath, gotCustomer string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCustomer = r.URL.Query().Get("customer_id")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}, nil)

	artifact, err := c.FetchArtifact(context.Background(), "CUST-42", "D1", domain.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "/documents/D1/pdf", gotPath)
	assert.Equal(t, "CUST-42", gotCustomer)
	assert.Equal(t, payload, artifact.Body)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, domain.FormatPDF, artifact.Format)
}

func TestFetchArtifactDefaultsContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte("<factura/>"))
	}, nil)

	artifact, err := c.FetchArtifact(context.Background(), "CUST-42", "D1", domain.FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "application/xml", artifact.ContentType)
}

func TestFetchArtifactNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	_, err := c.FetchArtifact(context.Background(), "CUST-42", "missing", domain.FormatXML)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}

func TestFetchArtifactServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	_, err := c.FetchArtifact(context.Background(), "CUST-42", "D1", domain.FormatPDF)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestFetchArtifactRejectsOversizedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
	}, func(cfg *config.GatewayConfig) {
		cfg.MaxArtifactBytes = 32
	})

	_, err := c.FetchArtifact(context.Background(), "CUST-42", "D1", domain.FormatPDF)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestFetchArtifactValidatesInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	}, nil)

	_, err := c.FetchArtifact(context.Background(), "CUST-42", "D1", domain.Format("docx"))
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	_, err = c.FetchArtifact(context.Background(), "CUST-42", "", domain.FormatPDF)
	assert.ErrorIs(t, err, domain.ErrInvalidDocumentID)
}

func TestMissingBaseURLIsUnavailable(t *testing.T) {
	c := New(Params{Log: zap.NewNop()})
	_, err := c.ListDocuments(context.Background(), "CUST-1", domain.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
