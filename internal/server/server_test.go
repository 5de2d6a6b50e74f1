package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pride/internal/audit"
	"pride/internal/config"
	"pride/internal/crypto"
	"pride/internal/forecast"
	"pride/internal/repository"
	"pride/internal/schema"
	"pride/internal/service"
	"pride/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const modelYAML = `
scaler:
  mean: [0, 0, 0, 0, 0, 0, 0]
  scale: [1, 1, 1, 1, 1, 1, 1]
regression:
  coefficients: [1, 1, 1, 1, 1, 1, 1]
  intercept: 0
classifier:
  coefficients: [1, 0, 0, 0, 0, 0, 0]
  intercept: -100
`

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, allowRegistration bool) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Server.MaxUploadBytes = 1 << 20
	cfg.Auth.AllowRegistration = allowRegistration

	logger := zap.NewNop()
	store, err := repository.NewFileCredentialStore(filepath.Join(t.TempDir(), "accounts.jsonl"), crypto.NewPasswordHasher(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	model, err := forecast.ParseLinearModel([]byte(modelYAML))
	require.NoError(t, err)
	trend, err := forecast.FitTrend(map[int]float64{2020: 10, 2021: 20, 2022: 30})
	require.NoError(t, err)

	sessions := session.NewManager([]byte("secret"), time.Hour)
	trail := audit.New(io.Discard)

	srv := NewServer(Deps{
		Config:    cfg,
		Sessions:  sessions,
		Auth:      service.NewAuthService(store, sessions, trail, nil, allowRegistration, logger),
		Datasets:  service.NewDatasetService(trail, nil, logger),
		Forecasts: forecast.NewService(model, model, trend),
		Audit:     trail,
		Logger:    logger,
	})
	return &testServer{t: t, handler: srv.Handler()}
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

func (s *testServer) upload(path, token, fileName, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(s.t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req, token)
}

func (s *testServer) login(username, password string) string {
	w := s.json(http.MethodPost, "/api/auth/login", "", body{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

type body map[string]interface{}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func ossCSV() string {
	var b strings.Builder
	b.WriteString("No.,")
	b.WriteString(strings.Join(schema.OSS.Fields, ","))
	rows := []struct {
		sub, date, inv string
	}{
		{"Bengkalis", "2023-01-05", "100"},
		{"Bengkalis", "2023-02-05", "300"},
		{"Mandau", "N/A", "50"},
	}
	for i, r := range rows {
		cells := make([]string, len(schema.OSS.Fields))
		cells[schema.OSS.Index(schema.FieldSubDistrict)] = r.sub
		cells[schema.OSS.DateIndex()] = r.date
		cells[schema.OSS.Index(schema.FieldInvestment)] = r.inv
		fmt.Fprintf(&b, "\n%d,%s", i+1, strings.Join(cells, ","))
	}
	return b.String()
}

func TestPing(t *testing.T) {
	s := newTestServer(t, false)
	w := s.json(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.json(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRegisterRouteDisabled(t *testing.T) {
	s := newTestServer(t, false)
	w := s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, true)

	w := s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Other456"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(http.MethodPost, "/api/auth/register", "", body{"username": "a,b", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", "", body{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", "", body{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := s.login("alice", "Secret123")

	w = s.json(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode(t, w)["username"])

	w = s.json(http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.json(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, false)

	w := s.json(http.MethodGet, "/api/schema", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	req.Header.Set("Authorization", "Token abc")
	w = s.do(req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodGet, "/api/schema", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDatasetAndAnalysisFlow(t *testing.T) {
	s := newTestServer(t, true)
	require.Equal(t, http.StatusCreated, s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Secret123"}).Code)
	token := s.login("alice", "Secret123")

	w := s.json(http.MethodGet, "/api/schema", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["fields"], 33)

	w = s.json(http.MethodGet, "/api/datasets/current", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.upload("/api/datasets", token, "oss.pdf", "x")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = s.upload("/api/datasets", token, "short.csv", "a,b\n1,2")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload("/api/datasets", token, "oss.csv", ossCSV())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	summary := decode(t, w)
	assert.EqualValues(t, 3, summary["rows"])
	assert.EqualValues(t, 1, summary["date_warnings"])
	assert.Equal(t, true, summary["row_number_dropped"])

	w = s.json(http.MethodGet, "/api/datasets/current/options?column="+schema.FieldSubDistrict, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	opts := decode(t, w)
	assert.Equal(t, []interface{}{2023.0}, opts["years"])

	w = s.json(http.MethodPost, "/api/analysis/count", token, body{"group_by": schema.FieldSubDistrict, "top": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	count := decode(t, w)
	assert.Contains(t, count["insight"], "Bengkalis")
	assert.Len(t, count["top"], 1)

	w = s.json(http.MethodPost, "/api/analysis/sum", token, body{
		"group_by": schema.FieldSubDistrict,
		"filter":   body{"year": 2023},
	})
	require.Equal(t, http.StatusOK, w.Code)
	groups := decode(t, w)["groups"].([]interface{})
	require.Len(t, groups, 1)
	assert.EqualValues(t, 400, groups[0].(map[string]interface{})["value"])

	w = s.json(http.MethodPost, "/api/analysis/monthly", token, body{})
	require.Equal(t, http.StatusOK, w.Code)
	monthly := decode(t, w)
	assert.Len(t, monthly["points"], 2)
	assert.EqualValues(t, 1, monthly["undated"])

	w = s.json(http.MethodPost, "/api/analysis/stats", token, body{"group_by": schema.FieldSubDistrict})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.json(http.MethodPost, "/api/analysis/count", token, body{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/analysis/count", token, body{"group_by": "Nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodGet, "/api/datasets/current/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, schema.XLSXContentType, w.Header().Get("Content-Type"))

	reread, err := schema.ReadBytes("export.xlsx", w.Body.Bytes())
	require.NoError(t, err)
	again, err := schema.Normalize(reread, schema.OSS)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Len())
	assert.Equal(t, 1, again.MissingDates())
}

func TestForecastRoutes(t *testing.T) {
	s := newTestServer(t, true)
	require.Equal(t, http.StatusCreated, s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Secret123"}).Code)
	token := s.login("alice", "Secret123")

	w := s.json(http.MethodPost, "/api/forecast/year", token, body{"year": 2025})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 60, decode(t, w)["prediction"], 1e-6)

	w = s.json(http.MethodPost, "/api/forecast/year", token, body{"year": 1999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/forecast/components", token, body{"values": body{"Mesin Peralatan": 200, "TKI": 5}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.EqualValues(t, 205, res["amount"])
	assert.Equal(t, forecast.LabelHigh, res["category"])

	w = s.json(http.MethodPost, "/api/forecast/components", token, body{"values": body{"Gaji": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sheet := strings.Join(forecast.FeatureColumns, ",") + "\n1,1,1,1,1,1,1\n200,0,0,0,0,0,0"
	w = s.upload("/api/forecast/batch", token, "komponen.csv", sheet)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode(t, w)
	assert.Len(t, batch["predictions"], 2)
	assert.Contains(t, batch["insight"], "Tinggi")

	w = s.upload("/api/forecast/batch?format=xlsx", token, "komponen.csv", sheet)
	require.Equal(t, http.StatusOK, w.Code)
	table, err := schema.ReadBytes("hasil.xlsx", w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, forecast.ColumnCategory, table.Headers[len(table.Headers)-1])

	w = s.upload("/api/forecast/batch", token, "komponen.csv", "Mesin Peralatan\n1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisSkipsNonFiniteAndMapsPoints(t *testing.T) {
	s := newTestServer(t, true)
	require.Equal(t, http.StatusCreated, s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Secret123"}).Code)
	token := s.login("alice", "Secret123")

	var b strings.Builder
	b.WriteString(strings.Join(schema.OSS.Fields, ","))
	for _, r := range []struct{ sub, date, inv, lat, lon string }{
		{"Kuta", "2023-01-05", "NaN", "-8.72", "115.17"},
		{"Kuta", "2023-01-20", "100", "-8.71", "115.18"},
		{"Mengwi", "2023-03-01", "Inf", "", ""},
	} {
		cells := make([]string, len(schema.OSS.Fields))
		cells[schema.OSS.Index(schema.FieldSubDistrict)] = r.sub
		cells[schema.OSS.DateIndex()] = r.date
		cells[schema.OSS.Index(schema.FieldInvestment)] = r.inv
		cells[schema.OSS.Index(schema.FieldLatitude)] = r.lat
		cells[schema.OSS.Index(schema.FieldLongitude)] = r.lon
		b.WriteString("\n" + strings.Join(cells, ","))
	}
	w := s.upload("/api/datasets", token, "oss.csv", b.String())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.json(http.MethodPost, "/api/analysis/sum", token, body{"group_by": schema.FieldSubDistrict})
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode(t, w)
	assert.EqualValues(t, 2, sum["skipped"])
	groups := sum["groups"].([]interface{})
	require.Len(t, groups, 2)
	assert.EqualValues(t, 100, groups[0].(map[string]interface{})["value"])

	for _, path := range []string{"/api/analysis/monthly", "/api/analysis/stats"} {
		w = s.json(http.MethodPost, path, token, body{"group_by": schema.FieldSubDistrict})
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.EqualValues(t, 2, decode(t, w)["skipped"], path)
	}

	w = s.json(http.MethodPost, "/api/analysis/monthly", token, body{"measure": "count"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	monthly := decode(t, w)
	assert.Equal(t, "count", monthly["measure"])
	points := monthly["points"].([]interface{})
	require.Len(t, points, 2)
	assert.EqualValues(t, 2, points[0].(map[string]interface{})["total"])
	assert.Contains(t, monthly["insight"], "Jumlah proyek tertinggi terjadi pada bulan Januari 2023")

	w = s.json(http.MethodPost, "/api/analysis/monthly", token, body{"measure": "median"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/analysis/points", token, body{"filter": body{"equals": body{schema.FieldSubDistrict: "Kuta"}}})
	require.Equal(t, http.StatusOK, w.Code)
	geo := decode(t, w)
	assert.Len(t, geo["points"], 2)
	assert.EqualValues(t, 0, geo["unplaced"])

	w = s.json(http.MethodPost, "/api/analysis/points", token, body{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["unplaced"])
}

func TestUploadOverLimit(t *testing.T) {
	s := newTestServer(t, true)
	require.Equal(t, http.StatusCreated, s.json(http.MethodPost, "/api/auth/register", "", body{"username": "alice", "password": "Secret123"}).Code)
	token := s.login("alice", "Secret123")

	w := s.upload("/api/datasets", token, "oss.csv", strings.Repeat("x", 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, decode(t, w)["error"], "exceeds")

	w = s.json(http.MethodGet, "/api/datasets/current", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "a rejected upload leaves no dataset")
}
