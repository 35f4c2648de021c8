package client

import (
	"net/http/httptest"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/server"
	"github.com/shipcheck/shipcheck/srvreg"
)

// newTestNode spins up the full HTTP stack over in-memory SQLite
func newTestNode(t *testing.T) *InspectionClient {
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

	ws, err := server.NewWebServer("0", nopLogger, nil, sr, repo)
	require.NoError(t, err)

	ts := httptest.NewServer(ws.Handler())
	t.Cleanup(ts.Close)

	return NewInspectionClient(ts.URL)
}

func TestHealthCheck(t *testing.T) {
	c := newTestNode(t)
	require.NoError(t, c.HealthCheck())
}

func TestHealthCheckUnreachable(t *testing.T) {
	c := NewInspectionClient("http://127.0.0.1:1")
	assert.Error(t, c.HealthCheck())
}

func TestInspectionLifecycle(t *testing.T) {
	c := newTestNode(t)

	started, err := c.StartInspection("SI-001", "tester")
	require.NoError(t, err)
	assert.True(t, started.Success)
	assert.Equal(t, "in_progress", started.Inspection.Status)
	assert.Equal(t, 3, started.Inspection.TotalRequired)
	inspectionID := started.Inspection.ID
	require.NotEmpty(t, inspectionID)

	// Valid scan
	scan, err := c.SubmitScan(inspectionID, "QR-WX100-MAIN")
	require.NoError(t, err)
	assert.True(t, scan.Success)
	assert.Equal(t, "scanned", scan.Outcome)

	// Duplicate is a soft failure, not a transport error
	scan, err = c.SubmitScan(inspectionID, "QR-WX100-MAIN")
	require.NoError(t, err)
	assert.False(t, scan.Success)
	assert.Equal(t, "duplicate", scan.Outcome)

	// Unmatched code likewise
	scan, err = c.SubmitScan(inspectionID, "QR-BOGUS")
	require.NoError(t, err)
	assert.False(t, scan.Success)
	assert.Equal(t, "error", scan.Outcome)

	for _, code := range []string{"QR-WX100-ADPT", "QR-WX100-CBL"} {
		scan, err = c.SubmitScan(inspectionID, code)
		require.NoError(t, err)
		assert.True(t, scan.Success)
	}

	completed, err := c.CompleteInspection(inspectionID, "done")
	require.NoError(t, err)
	assert.True(t, completed.Success)
	assert.Equal(t, "pass", completed.Result)
	assert.Equal(t, "completed", completed.Inspection.Status)
	assert.Equal(t, 110, completed.Inspection.StockAfter)

	detail, err := c.GetInspection(inspectionID)
	require.NoError(t, err)
	assert.Equal(t, "completed", detail.Inspection.Status)
	// Every attempt ledgered, including the duplicate and the bogus code
	assert.Len(t, detail.Details, 5)
}

func TestStartInspectionErrors(t *testing.T) {
	c := newTestNode(t)

	_, err := c.StartInspection("SI-NOPE", "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = c.StartInspection("SI-001", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGetInstructionComponents(t *testing.T) {
	c := newTestNode(t)

	resp, err := c.GetInstructionComponents("SI-001")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalRequired)
	assert.Len(t, resp.Components, 4)
	assert.NotEmpty(t, resp.Components[0].QRCode)
}
