package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/robot"
	"github.com/ghrobotics/visiontrack/internal/tracker"
	"github.com/ghrobotics/visiontrack/internal/version"
)

type staticSource struct{ snap *robot.Snapshot }

func (s staticSource) Snapshot() *robot.Snapshot { return s.snap }

var at = time.Unix(1_700_000_000, 0).UTC()

func testSnapshot() *robot.Snapshot {
	ahead := tracker.TrackedTarget{
		ID:          "ahead",
		CreatedAt:   at,
		LastUpdated: at,
		AveragePose: geometry.NewPose(120, 0, 180),
		Samples:     []tracker.Sample{{Timestamp: at, Pose: geometry.NewPose(120, 0, 180)}},
	}
	side := tracker.TrackedTarget{
		ID:          "side",
		AveragePose: geometry.NewPose(0, 36, -90),
		Samples:     []tracker.Sample{{}, {}},
	}
	return &robot.Snapshot{
		At:      at,
		Robot:   geometry.Pose2d{},
		Best:    &ahead,
		Targets: []tracker.TrackedTarget{ahead, side},
		Tracker: tracker.Stats{Created: 2, Merged: 5},
		Ingest:  robot.IngestStats{Frames: 7, Candidates: 7},
	}
}

func localHostRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func serve(t *testing.T, src SnapshotSource, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(src).AttachAdminRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, localHostRequest(http.MethodGet, path))
	return rec
}

func TestTargets_JSON(t *testing.T) {
	rec := serve(t, staticSource{testSnapshot()}, "/debug/targets")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got snapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "in", got.Units)
	require.Len(t, got.Targets, 2)
	assert.True(t, got.Targets[0].Best)
	assert.False(t, got.Targets[1].Best)
	assert.InDelta(t, 90, got.Targets[1].BearingDeg, 1e-9)
	assert.Equal(t, 2, got.Targets[1].Samples)
	require.NotNil(t, got.Best)
	assert.Equal(t, "ahead", got.Best.ID)
	assert.InDelta(t, 120, got.Best.Pose.X, 1e-9)
	require.NotNil(t, got.AimErrorDeg)
	assert.InDelta(t, 0, *got.AimErrorDeg, 1e-9)
	assert.Equal(t, uint64(5), got.Tracker.Merged)
	assert.Equal(t, uint64(7), got.Ingest.Frames)
}

func TestTargets_Units(t *testing.T) {
	rec := serve(t, staticSource{testSnapshot()}, "/debug/targets?units=ft")
	require.Equal(t, http.StatusOK, rec.Code)

	var got snapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ft", got.Units)
	assert.InDelta(t, 10, got.Best.Pose.X, 1e-9)
	assert.InDelta(t, 3, got.Targets[1].Pose.Y, 1e-9)

	rec = serve(t, staticSource{testSnapshot()}, "/debug/targets?units=furlong")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "in, ft, m")
}

func TestTargets_NoSnapshotYet(t *testing.T) {
	rec := serve(t, staticSource{}, "/debug/targets")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(t, staticSource{}, "/debug/targets-chart")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTargets_NoBest(t *testing.T) {
	snap := &robot.Snapshot{At: at}
	rec := serve(t, staticSource{snap}, "/debug/targets")
	require.Equal(t, http.StatusOK, rec.Code)

	var got snapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.Targets)
	assert.Nil(t, got.Best)
	assert.Nil(t, got.AimErrorDeg)
}

func TestTargetsChart(t *testing.T) {
	rec := serve(t, staticSource{testSnapshot()}, "/debug/targets-chart?units=m")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	body := rec.Body.String()
	assert.Contains(t, body, "Tracked Targets")
	assert.Contains(t, body, "Y (m)")
	assert.Contains(t, body, "best")
}

func TestBuild(t *testing.T) {
	rec := serve(t, staticSource{}, "/debug/build")
	require.Equal(t, http.StatusOK, rec.Code)

	var got buildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, version.Version, got.Version)
}
