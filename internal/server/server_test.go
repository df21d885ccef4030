package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/config"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSampler struct{}

func (stubSampler) Sample(_ context.Context) []roster.Account {
	return roster.DemoRoster("883745000")
}

type stubSnapshots struct {
	snaps map[string]*bank.Snapshot
}

func (s *stubSnapshots) Snapshot(_ context.Context, account roster.Account) *bank.Snapshot {
	if snap, ok := s.snaps[account.ID]; ok {
		return snap
	}
	return &bank.Snapshot{}
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "8080",
		Env:                  "development",
		LogLevel:             "error",
		MonitoringInterval:   30 * time.Second,
		AccountDelay:         time.Second,
		CycleBackoff:         time.Second,
		BalanceAPIAddr:       "http://127.0.0.1:1",
		HistoryAPIAddr:       "http://127.0.0.1:1",
		UserserviceAPIAddr:   "http://127.0.0.1:1",
		LocalRoutingNum:      "883745000",
		HTTPTimeout:          time.Second,
		AITimeout:            time.Second,
		LargeTxThreshold:     5000,
		VelocityThreshold:    50000,
		FrequencyThreshold:   15,
		HighBalanceThreshold: 100000,
		AlertLevel:           "MEDIUM",
	}
}

func testServer(t *testing.T, snaps *stubSnapshots) *Server {
	t.Helper()
	if snaps == nil {
		snaps = &stubSnapshots{snaps: map[string]*bank.Snapshot{}}
	}
	s, err := New(testConfig(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithSampler(stubSampler{}),
		WithSnapshotter(snaps),
	)
	require.NoError(t, err)
	return s
}

func doGET(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestLiveness(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestReadiness_NotReadyUntilRun(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.ready.Store(true)
	w = doGET(s, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInfo(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/api")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "fraud-monitor", body["name"])
	assert.Equal(t, "rules", body["mode"])
}

func TestStatus(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(0), body["alertsSent"])
	assert.Equal(t, "MEDIUM", body["alertLevel"])

	monitoring, ok := body["monitoring"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rules", monitoring["mode"])
}

func TestAlerts_EmptyByDefault(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/api/alerts")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(0), body["total"])
}

func TestAlerts_RejectsBadLimit(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/api/alerts?limit=-3")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysis_KnownAccount(t *testing.T) {
	neg := -200.00
	snaps := &stubSnapshots{snaps: map[string]*bank.Snapshot{
		"1033623433": {Balance: &neg},
	}}
	s := testServer(t, snaps)

	w := doGET(s, "/api/accounts/1033623433/analysis")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Account struct {
			Username string `json:"username"`
		} `json:"account"`
		Verdict struct {
			Level  string  `json:"riskLevel"`
			Score  float64 `json:"riskScore"`
			Source string  `json:"source"`
		} `json:"verdict"`
		HasBalance bool `json:"hasBalance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Account.Username)
	assert.Equal(t, "CRITICAL", body.Verdict.Level)
	assert.Equal(t, "rules", body.Verdict.Source)
	assert.True(t, body.HasBalance)
}

func TestAnalysis_UnknownAccountIs404(t *testing.T) {
	s := testServer(t, nil)
	w := doGET(s, "/api/accounts/9999999999/analysis")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_account")
}

func TestInvalidAlertLevelRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AlertLevel = "SEVERE"
	_, err := New(cfg, WithLogger(slog.New(slog.DiscardHandler)), WithSampler(stubSampler{}))
	assert.Error(t, err)
}
