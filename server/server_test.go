package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/srvreg"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := repository.NewRepositoryWithDB(db)
	repo.Migrate()
	repo.Seed()

	nopLogger := cmtlog.NewNopLogger()
	sr := srvreg.NewServiceRegistry(repo, nil, nopLogger)
	sr.RegisterDefaultServices()

	ws, err := NewWebServer("0", nopLogger, nil, sr, repo)
	require.NoError(t, err)

	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestResponseEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data   map[string]interface{} `json:"data"`
		Meta   map[string]interface{} `json:"meta"`
		NodeID string                 `json:"node_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "ok", envelope.Data["status"])
	assert.NotEmpty(t, envelope.Meta["request_id"])
	assert.Equal(t, "standalone", envelope.NodeID)
}

func TestErrorStatusPassthrough(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/products/PRD-NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDebugWithoutLedger(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/debug")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var debugInfo map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&debugInfo))
	assert.Equal(t, "disabled", debugInfo["audit_ledger"])
	assert.Equal(t, "shipcheck", debugInfo["service"])
}

func TestCORSHeaders(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/products", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
