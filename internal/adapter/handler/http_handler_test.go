package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, withQuerier bool) *httptest.Server {
	engine, gw := newTestEngine(t)
	h := NewHTTPHandler(engine, nil, zaptest.NewLogger(t))
	if withQuerier {
		h = NewHTTPHandler(engine, gw, zaptest.NewLogger(t))
	}
	srv := httptest.NewServer(h.Routes(prometheus.NewRegistry()))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, false)

	var health HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "idle", health.State)
}

func TestReport_FromJournal(t *testing.T) {
	srv := newTestServer(t, false)

	var report ReportResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/report", &report))
	assert.Equal(t, ReportSourceJournal, report.Source)
	require.Len(t, report.Rows, 7)
	assert.Equal(t, "Whole Chicken Breast (4pc)", report.Rows[0].ItemName)
	assert.Equal(t, "31.98", report.Rows[0].TotalRevenue)
}

func TestReport_FromStore(t *testing.T) {
	srv := newTestServer(t, true)

	var report ReportResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/report?source=store", &report))
	assert.Equal(t, ReportSourceStore, report.Source)
	require.Len(t, report.Rows, 7)
	assert.Equal(t, "Beefsteak Tomato", report.Rows[6].ItemName)
}

func TestReport_StoreUnavailable(t *testing.T) {
	srv := newTestServer(t, false)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotImplemented, getJSON(t, srv.URL+"/api/report?source=store", &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestReportText(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := http.Get(srv.URL + "/api/report.txt")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "########### REPORT ###########")
	assert.Contains(t, body, "Eggs (Dozen) has been purchased 5 times yielding $26.25")
	assert.Contains(t, body, "Oreos (8oz) stock remaining: 100")
}

func TestStockAndReplenish(t *testing.T) {
	srv := newTestServer(t, false)

	var stock StockResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stock/300000002", &stock))
	assert.Equal(t, "Eggs (Dozen)", stock.Name)
	assert.Equal(t, "5.25", stock.Price)
	assert.Equal(t, 100, stock.Stock)

	resp, err := http.Post(srv.URL+"/api/restock/300000002", "application/json", strings.NewReader(`{"amount": 25}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stock))
	assert.Equal(t, 125, stock.Stock)

	var items []StockResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/items", &items))
	require.Len(t, items, 7)
	assert.Equal(t, 125, items[1].Stock)
}

func TestStock_Errors(t *testing.T) {
	srv := newTestServer(t, false)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/stock/42", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stock/abc", nil))

	resp, err := http.Post(srv.URL+"/api/restock/300000001", "application/json", strings.NewReader(`{"amount": 0}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/restock/300000001", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
