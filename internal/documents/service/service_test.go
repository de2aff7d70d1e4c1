package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	accesslogdomain "github.com/smallbiznis/billingportal/internal/accesslog/domain"
	accesslogmocks "github.com/smallbiznis/billingportal/internal/accesslog/mocks"
	accesslogrepo "github.com/smallbiznis/billingportal/internal/accesslog/repository"
	accesslogservice "github.com/smallbiznis/billingportal/internal/accesslog/service"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	"github.com/smallbiznis/billingportal/internal/customerref"
	"github.com/smallbiznis/billingportal/internal/documents/domain"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
	gatewaymocks "github.com/smallbiznis/billingportal/internal/gateway/mocks"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/smallbiznis/billingportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var user = authdomain.Identity{ID: 1001, Email: "jane@example.com"}

type fakeMapper struct {
	refs map[customerref.Strategy]customerref.Ref
	err  error
}

func (f fakeMapper) Map(_ context.Context, _ authdomain.Identity, strategy customerref.Strategy) (customerref.Ref, error) {
	if f.err != nil {
		return customerref.Ref{}, f.err
	}
	ref, ok := f.refs[strategy]
	if !ok {
		return customerref.Ref{}, customerref.ErrProfileNotFound
	}
	return ref, nil
}

func mappedTo(value string) fakeMapper {
	profile := &profiledomain.Profile{ID: user.ID, FirstName: "Jane", LastName: "Doe", Email: user.Email, ERPCustomerID: value}
	ref := customerref.Ref{Value: value, Profile: profile}
	return fakeMapper{refs: map[customerref.Strategy]customerref.Ref{
		customerref.FailFast:          ref,
		customerref.DegradeToIdentity: ref,
	}}
}

func unmapped() fakeMapper {
	return fakeMapper{refs: map[customerref.Strategy]customerref.Ref{
		customerref.DegradeToIdentity: {Value: user.ID.String(), Degraded: true},
	}}
}

var d1 = gatewaydomain.Document{
	ID:             "D1",
	DocumentType:   "invoice",
	DocumentNumber: "001-001-000000001",
	Date:           "2024-01-01",
	Amount:         json.RawMessage("150.50"),
	Status:         "active",
	CustomerID:     "CUST-42",
}

func newService(mapper CustomerMapper, gateway gatewaydomain.Client, recorder accesslogdomain.Recorder) domain.Service {
	return New(Params{
		Log:      zap.NewNop(),
		Mapper:   mapper,
		Gateway:  gateway,
		Recorder: recorder,
	})
}

func TestListWithoutProfileNeverCallsGateway(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)
	// no EXPECT: any gateway or recorder call fails the test

	svc := newService(unmapped(), gateway, recorder)

	_, err := svc.List(context.Background(), user, domain.ListRequest{})
	assert.ErrorIs(t, err, customerref.ErrProfileNotFound)

	_, err = svc.Download(context.Background(), user, "D1", gatewaydomain.FormatPDF)
	assert.ErrorIs(t, err, customerref.ErrProfileNotFound)
}

func TestListRendersDisplayFieldsAndRecordsViews(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{}).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 1, TotalReported: true}, nil)
	recorder.EXPECT().Record(gomock.Any(), user.ID, "D1", accesslogdomain.AccessView).Times(1)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	resp, err := svc.List(context.Background(), user, domain.ListRequest{})
	require.NoError(t, err)

	require.Len(t, resp.Documents, 1)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "$150.50", resp.Documents[0].AmountDisplay)
	assert.Equal(t, "Jan 01, 2024", resp.Documents[0].DateDisplay)
	assert.Equal(t, json.RawMessage("150.50"), resp.Documents[0].Amount)
}

func TestListGatewayFailureWritesNoLogs(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
		Return(gatewaydomain.ListResult{}, gatewaydomain.ErrGatewayUnavailable)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	_, err := svc.List(context.Background(), user, domain.ListRequest{})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)
}

func TestListPassesPaginationThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	page, perPage := 2, 1
	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{Page: 2, PerPage: 1}).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 5, TotalReported: true, Page: &page, PerPage: &perPage}, nil)
	recorder.EXPECT().Record(gomock.Any(), user.ID, "D1", accesslogdomain.AccessView)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	resp, err := svc.List(context.Background(), user, domain.ListRequest{Page: 2, PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	require.NotNil(t, resp.Page)
	assert.Equal(t, 2, *resp.Page)
}

func TestDownloadRecordsAfterSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	body := []byte("<document/>")
	gomock.InOrder(
		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{}).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 1}, nil),
		gateway.EXPECT().
			FetchArtifact(gomock.Any(), "CUST-42", "D1", gatewaydomain.FormatXML).
			Return(gatewaydomain.Artifact{Body: body, ContentType: "application/xml", Format: gatewaydomain.FormatXML}, nil),
		recorder.EXPECT().Record(gomock.Any(), user.ID, "D1", accesslogdomain.AccessDownloadXML),
	)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	download, err := svc.Download(context.Background(), user, "D1", gatewaydomain.FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "001-001-000000001.xml", download.Filename)
	assert.Equal(t, body, download.Body)
	assert.Equal(t, "application/xml", download.ContentType)
}

func TestDownloadRejectsDocumentOfAnotherCustomer(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 1}, nil)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	_, err := svc.Download(context.Background(), user, "D3", gatewaydomain.FormatPDF)
	assert.ErrorIs(t, err, gatewaydomain.ErrArtifactNotFound)
}

func TestDownloadScansFollowingPages(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	one, two, perPage := 1, 2, 1
	d2 := gatewaydomain.Document{ID: "D2", DocumentNumber: "001-001-000000002", CustomerID: "CUST-42"}
	gomock.InOrder(
		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{}).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 2, TotalReported: true, Page: &one, PerPage: &perPage}, nil),
		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{Page: 2, PerPage: 1}).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d2}, Total: 2, TotalReported: true, Page: &two, PerPage: &perPage}, nil),
		gateway.EXPECT().
			FetchArtifact(gomock.Any(), "CUST-42", "D2", gatewaydomain.FormatPDF).
			Return(gatewaydomain.Artifact{Body: []byte("%PDF"), ContentType: "application/pdf"}, nil),
		recorder.EXPECT().Record(gomock.Any(), user.ID, "D2", accesslogdomain.AccessDownloadPDF),
	)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	download, err := svc.Download(context.Background(), user, "D2", gatewaydomain.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "001-001-000000002.pdf", download.Filename)
}

func TestDownloadScansPagesWithoutPageFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	recorder := accesslogmocks.NewMockRecorder(ctrl)

	d2 := gatewaydomain.Document{ID: "D2", DocumentNumber: "001-001-000000002", CustomerID: "CUST-42"}
	gomock.InOrder(
		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{}).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 2, TotalReported: true}, nil),
		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gatewaydomain.ListOptions{Page: 2}).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d2}, Total: 2, TotalReported: true}, nil),
		gateway.EXPECT().
			FetchArtifact(gomock.Any(), "CUST-42", "D2", gatewaydomain.FormatPDF).
			Return(gatewaydomain.Artifact{Body: []byte("%PDF"), ContentType: "application/pdf"}, nil),
		recorder.EXPECT().Record(gomock.Any(), user.ID, "D2", accesslogdomain.AccessDownloadPDF),
	)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	download, err := svc.Download(context.Background(), user, "D2", gatewaydomain.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "001-001-000000002.pdf", download.Filename)
}

func TestDownloadFailureWritesNoLogs(t *testing.T) {
	for _, fetchErr := range []error{gatewaydomain.ErrArtifactNotFound, gatewaydomain.ErrGatewayUnavailable} {
		ctrl := gomock.NewController(t)
		gateway := gatewaymocks.NewMockClient(ctrl)
		recorder := accesslogmocks.NewMockRecorder(ctrl)

		gateway.EXPECT().
			ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
			Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 1}, nil)
		gateway.EXPECT().
			FetchArtifact(gomock.Any(), "CUST-42", "D1", gatewaydomain.FormatPDF).
			Return(gatewaydomain.Artifact{}, fetchErr)

		svc := newService(mappedTo("CUST-42"), gateway, recorder)
		_, err := svc.Download(context.Background(), user, "D1", gatewaydomain.FormatPDF)
		assert.ErrorIs(t, err, fetchErr)
	}
}

func TestDownloadValidatesFormat(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newService(mappedTo("CUST-42"), gatewaymocks.NewMockClient(ctrl), accesslogmocks.NewMockRecorder(ctrl))

	_, err := svc.Download(context.Background(), user, "D1", gatewaydomain.Format("csv"))
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidFormat)
}

func TestDownloadRejectsOverlongDocumentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newService(mappedTo("CUST-42"), gatewaymocks.NewMockClient(ctrl), accesslogmocks.NewMockRecorder(ctrl))

	id := strings.Repeat("d", gatewaydomain.MaxDocumentIDLength+1)
	_, err := svc.Download(context.Background(), user, id, gatewaydomain.FormatPDF)
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidDocumentID)
}

func TestRepeatedDownloadsLogTwiceWithSameBytes(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&accesslogdomain.DocumentAccessLog{}))

	recorder := accesslogservice.NewRecorder(accesslogservice.Params{
		DB:   conn,
		Log:  zap.NewNop(),
		Repo: accesslogrepo.Provide(),
	})
	recorder.Start()
	t.Cleanup(func() { _ = recorder.Stop(context.Background()) })

	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)
	body := []byte("%PDF-1.4 D1")
	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 1, TotalReported: true}, nil).
		Times(2)
	gateway.EXPECT().
		FetchArtifact(gomock.Any(), "CUST-42", "D1", gatewaydomain.FormatPDF).
		Return(gatewaydomain.Artifact{Body: body, ContentType: "application/pdf", Format: gatewaydomain.FormatPDF}, nil).
		Times(2)

	svc := newService(mappedTo("CUST-42"), gateway, recorder)
	first, err := svc.Download(context.Background(), user, "D1", gatewaydomain.FormatPDF)
	require.NoError(t, err)
	second, err := svc.Download(context.Background(), user, "D1", gatewaydomain.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, first.Body, second.Body)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, recorder.Flush(ctx))

	var rows []accesslogdomain.DocumentAccessLog
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.EqualValues(t, 1001, row.UserID)
		assert.Equal(t, "D1", row.DocumentID)
		assert.Equal(t, accesslogdomain.AccessDownloadPDF, row.AccessType)
	}
}

func TestDashboardDegradesAndFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), user.ID.String(), gatewaydomain.ListOptions{}).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{}, Total: 0}, nil)

	svc := newService(unmapped(), gateway, accesslogmocks.NewMockRecorder(ctrl))
	summary, err := svc.Dashboard(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, summary.CustomerRefDegraded)
	assert.True(t, summary.CountAvailable)
	assert.Equal(t, "jane@example.com", summary.GreetingName)
	assert.Nil(t, summary.Profile)
}

func TestDashboardCountUnavailableOnGatewayError(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
		Return(gatewaydomain.ListResult{}, gatewaydomain.ErrGatewayUnavailable)

	svc := newService(mappedTo("CUST-42"), gateway, accesslogmocks.NewMockRecorder(ctrl))
	summary, err := svc.Dashboard(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, summary.CountAvailable)
	assert.Equal(t, 0, summary.DocumentCount)
	assert.Equal(t, "Jane", summary.GreetingName)
	require.NotNil(t, summary.Profile)
	assert.Equal(t, "CUST-42", summary.Profile.ERPCustomerID)
}

func TestDashboardUsesReportedTotal(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := gatewaymocks.NewMockClient(ctrl)

	gateway.EXPECT().
		ListDocuments(gomock.Any(), "CUST-42", gomock.Any()).
		Return(gatewaydomain.ListResult{Documents: []gatewaydomain.Document{d1}, Total: 12, TotalReported: true}, nil)

	svc := newService(mappedTo("CUST-42"), gateway, accesslogmocks.NewMockRecorder(ctrl))
	summary, err := svc.Dashboard(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 12, summary.DocumentCount)
	assert.False(t, summary.CustomerRefDegraded)
}
