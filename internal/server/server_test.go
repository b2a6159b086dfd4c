package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/invoice-readiness/internal/analysis"
	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/storage"
	"github.com/Veraticus/invoice-readiness/internal/testutil"
)

func newTestServer(t *testing.T, store Store, opts Options) *Server {
	t.Helper()
	analyzer, err := analysis.NewEngine(analysis.Deps{Uploads: store}, analysis.DefaultConfig())
	require.NoError(t, err)
	if opts.RateLimit == 0 {
		opts.RateLimit = 1000
		opts.Burst = 1000
	}
	return New(store, analyzer, nil, opts)
}

func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_UploadAnalyzeReport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	csv := "Invoice ID,Issue Date,Currency,Total Excl VAT,VAT Amount,Total Incl VAT,Buyer TRN,Seller TRN\n" +
		"INV-1,2025-01-31,AED,100,5,105,100000000000003,100000000000011\n" +
		"INV-2,2025/02/01,EUR,100,5,110,123,100000000000011\n"

	rec := serve(s, multipartRequest(t, "invoices.csv", csv, map[string]string{"erp": "SAP"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploaded := decode[uploadResponse](t, rec)
	assert.Equal(t, 2, uploaded.RowsParsed)
	assert.Equal(t, "File uploaded successfully", uploaded.Message)

	stored, err := db.Storage.GetUpload(context.Background(), uploaded.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "UAE", stored.Country)
	assert.Equal(t, "SAP", stored.ERP)

	body := fmt.Sprintf(`{"uploadId":%q,"questionnaire":{"webhooks":true,"sandbox_env":false,"retries":true}}`, uploaded.UploadID)
	rec = serve(s, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[analysis.Report](t, rec)
	assert.True(t, strings.HasPrefix(report.ReportID, "r_"))
	assert.Equal(t, uploaded.UploadID, report.UploadID)
	assert.Equal(t, "UAE", report.Meta.Country)
	assert.Equal(t, 7, report.Scores.Posture)
	assert.NotEmpty(t, report.Failed())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/report/"+report.ReportID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode[analysis.Report](t, rec)
	assert.Equal(t, report.Scores, fetched.Scores)
	assert.Equal(t, report.Gaps, fetched.Gaps)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	recent := decode[[]model.ReportSummary](t, rec)
	require.Len(t, recent, 1)
	assert.Equal(t, report.ReportID, recent[0].ID)
	assert.Equal(t, report.Scores.Overall, recent[0].ScoresOverall)
}

func TestServer_Upload_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)

	tests := []struct {
		name       string
		filename   string
		content    string
		wantError  string
		wantStatus int
	}{
		{name: "no file", wantStatus: http.StatusBadRequest, wantError: "No file uploaded. Please select a CSV or JSON file."},
		{name: "unsupported", filename: "invoices.xlsx", content: "x", wantStatus: http.StatusBadRequest, wantError: "Unsupported file format. Use CSV or JSON."},
		{name: "bad json", filename: "invoices.json", content: "42", wantStatus: http.StatusBadRequest, wantError: "Upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, db.Storage, Options{})
			rec := serve(s, multipartRequest(t, tt.filename, tt.content, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestServer_Upload_JSONWithCountry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	rec := serve(s, multipartRequest(t, "sample.json", `[{"total_excl_vat":100,"vat_amount":15}]`, map[string]string{"country": "KSA"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploaded := decode[uploadResponse](t, rec)
	stored, err := db.Storage.GetUpload(context.Background(), uploaded.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "KSA", stored.Country)
	assert.Equal(t, "Unknown", stored.ERP)
}

func TestServer_Analyze_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	tests := []struct {
		name       string
		body       string
		wantError  string
		wantStatus int
	}{
		{name: "missing upload id", body: `{"questionnaire":{}}`, wantStatus: http.StatusBadRequest, wantError: "uploadId is required"},
		{name: "blank upload id", body: `{"uploadId":"  "}`, wantStatus: http.StatusBadRequest, wantError: "uploadId is required"},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest, wantError: "Invalid JSON body"},
		{name: "unknown upload", body: `{"uploadId":"u_missing"}`, wantStatus: http.StatusNotFound, wantError: "Upload not found"},
		{
			name:       "oversized body",
			body:       `{"uploadId":"u_missing","questionnaire":{"notes":"` + strings.Repeat("x", maxAnalyzeBody) + `"}}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  fmt.Sprintf("Request body too large. The limit is %d bytes.", maxAnalyzeBody),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestServer_Analyze_SeededFixture(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.CleanUAEUpload())
	s := newTestServer(t, db.Storage, Options{})

	body := fmt.Sprintf(`{"uploadId":%q}`, db.MustUploadID(testutil.FixtureCleanUAE))
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[analysis.Report](t, rec)
	assert.Empty(t, report.Coverage.Missing)
	assert.Empty(t, report.Failed())
	assert.Equal(t, 30, report.Scores.Rules)
	assert.Equal(t, 35, report.Scores.Coverage)
}

func TestServer_GetReport_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/report/r_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Report not found", decode[errorResponse](t, rec).Error)
}

func TestServer_RecentReports_Limit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, db.Storage.SaveReport(ctx, &analysis.Report{}))
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?limit=3", 3},
		{"?limit=abc", 10},
		{"?limit=-4", 10},
		{"?limit=50", 12},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, "/reports"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decode[[]model.ReportSummary](t, rec), tt.want)
		})
	}
}

type unreachableStore struct {
	*storage.Storage
}

func (unreachableStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestServer_Health(t *testing.T) {
	db := testutil.SetupTestDB(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time { return now }

	s := newTestServer(t, db.Storage, Options{Now: clock})
	now = start.Add(90 * time.Second)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, "connected", health.Database)
	assert.Equal(t, 90.0, health.Uptime)

	down := newTestServer(t, unreachableStore{db.Storage}, Options{})
	rec = serve(down, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health = decode[healthResponse](t, rec)
	assert.Equal(t, "Service Unavailable", health.Status)
	assert.Equal(t, "connection refused", health.Error)
}

func TestServer_IndexAndRouting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	index := decode[map[string]any](t, rec)
	assert.Equal(t, APIVersion, index["version"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodOptions, "/upload", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{RateLimit: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decode[errorResponse](t, rec).Error)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestServer_Run_Shutdown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestServer(t, db.Storage, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
