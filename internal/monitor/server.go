// Package monitor serves the vision pipeline's live state on the /debug/
// surface: a JSON view of tracked targets, a scatter chart of the field and
// build information.
package monitor

import (
	"fmt"
	"net/http"
	"time"

	"tailscale.com/tsweb"

	"github.com/ghrobotics/visiontrack/internal/httputil"
	"github.com/ghrobotics/visiontrack/internal/robot"
	"github.com/ghrobotics/visiontrack/internal/tracker"
	"github.com/ghrobotics/visiontrack/internal/units"
	"github.com/ghrobotics/visiontrack/internal/version"
)

// DefaultAssetsHost is where rendered charts load echarts from.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// SnapshotSource is satisfied by *robot.Loop.
type SnapshotSource interface {
	Snapshot() *robot.Snapshot
}

// Server renders snapshots. It never touches the tracker directly.
type Server struct {
	source     SnapshotSource
	AssetsHost string
}

// NewServer serves snapshots read from source.
func NewServer(source SnapshotSource) *Server {
	return &Server{source: source, AssetsHost: DefaultAssetsHost}
}

// AttachAdminRoutes mounts the monitor under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("Vision build", version.String())
	debug.Handle("targets", "Tracked targets as JSON (?units=in|ft|m)", http.HandlerFunc(s.handleTargets))
	debug.Handle("targets-chart", "Tracked targets on the field", http.HandlerFunc(s.handleTargetsChart))
	debug.Handle("build", "Build information", http.HandlerFunc(s.handleBuild))
}

type poseView struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	RotationDeg float64 `json:"rotation_deg"`
}

type targetView struct {
	ID          string    `json:"id"`
	Pose        poseView  `json:"pose"`
	Samples     int       `json:"samples"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	BearingDeg  float64   `json:"bearing_deg"`
	Best        bool      `json:"best"`
}

type snapshotView struct {
	At          time.Time         `json:"at"`
	Units       string            `json:"units"`
	Robot       poseView          `json:"robot"`
	Targets     []targetView      `json:"targets"`
	Best        *targetView       `json:"best,omitempty"`
	AimErrorDeg *float64          `json:"aim_error_deg,omitempty"`
	Reversed    bool              `json:"reversed,omitempty"`
	Tracker     tracker.Stats     `json:"tracker"`
	Ingest      robot.IngestStats `json:"ingest"`
}

// requestUnits reads ?units=, defaulting to inches.
func requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return units.Inch, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q: must be one of %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

func buildView(snap *robot.Snapshot, unit string) snapshotView {
	conv := func(x, y, deg float64) poseView {
		return poseView{X: units.ConvertLength(x, unit), Y: units.ConvertLength(y, unit), RotationDeg: deg}
	}

	v := snapshotView{
		At:      snap.At,
		Units:   unit,
		Robot:   conv(snap.Robot.X(), snap.Robot.Y(), snap.Robot.Degrees()),
		Targets: make([]targetView, 0, len(snap.Targets)),
		Tracker: snap.Tracker,
		Ingest:  snap.Ingest,
	}
	for _, t := range snap.Targets {
		tv := targetView{
			ID:          t.ID,
			Pose:        conv(t.AveragePose.X(), t.AveragePose.Y(), t.AveragePose.Degrees()),
			Samples:     len(t.Samples),
			CreatedAt:   t.CreatedAt,
			LastUpdated: t.LastUpdated,
			BearingDeg:  tracker.RobotRelativeBearing(t.AveragePose, snap.Robot).Degrees(),
			Best:        snap.Best != nil && snap.Best.ID == t.ID,
		}
		if tv.Best {
			best := tv
			v.Best = &best
		}
		v.Targets = append(v.Targets, tv)
	}
	if snap.Best != nil {
		aim := robot.AimError(snap.Robot, snap.Best.AveragePose).Degrees()
		v.AimErrorDeg = &aim
		v.Reversed = robot.Reversed(snap.Robot, snap.Best.AveragePose)
	}
	return v
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	unit, err := requestUnits(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "%v", err)
		return
	}
	snap := s.source.Snapshot()
	if snap == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "control loop has not run yet")
		return
	}

	httputil.WriteJSONOK(w, buildView(snap, unit))
}

type buildInfo struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, buildInfo{
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		BuildTime: version.BuildTime,
	})
}
