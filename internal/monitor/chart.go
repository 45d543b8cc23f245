package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ghrobotics/visiontrack/internal/httputil"
	"github.com/ghrobotics/visiontrack/internal/units"
)

// minChartExtent keeps an empty field readable: roughly half an FRC field.
const minChartExtent = 324.0 // inches

// handleTargetsChart renders the robot, every tracked target and the best
// target on one field-frame scatter.
func (s *Server) handleTargetsChart(w http.ResponseWriter, r *http.Request) {
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
	view := buildView(snap, unit)

	pad := units.ConvertLength(minChartExtent, unit)
	grow := func(x, y float64) {
		pad = math.Max(pad, math.Max(math.Abs(x), math.Abs(y))*1.1)
	}

	robotPts := []opts.ScatterData{{Value: []interface{}{view.Robot.X, view.Robot.Y, view.Robot.RotationDeg}}}
	grow(view.Robot.X, view.Robot.Y)

	targetPts := make([]opts.ScatterData, 0, len(view.Targets))
	var bestPts []opts.ScatterData
	for _, t := range view.Targets {
		pt := opts.ScatterData{
			Name:  t.ID,
			Value: []interface{}{t.Pose.X, t.Pose.Y, t.Samples},
		}
		grow(t.Pose.X, t.Pose.Y)
		if t.Best {
			bestPts = append(bestPts, pt)
			continue
		}
		targetPts = append(targetPts, pt)
	}

	subtitle := fmt.Sprintf("at=%s targets=%d", view.At.Format(time.RFC3339Nano), len(view.Targets))
	if view.AimErrorDeg != nil {
		subtitle += fmt.Sprintf(" aim=%.1f°", *view.AimErrorDeg)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vision Targets", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: s.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked Targets", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: fmt.Sprintf("X (%s)", unit), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: fmt.Sprintf("Y (%s)", unit), NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("robot", robotPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2196f3"}))
	scatter.AddSeries("targets", targetPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("best", bestPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to render targets chart: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
