// Command vision-plot draws the best-target field trajectory recorded in a
// match log.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ghrobotics/visiontrack/internal/db"
	"github.com/ghrobotics/visiontrack/internal/security"
	"github.com/ghrobotics/visiontrack/internal/units"
)

var (
	dbPath  = flag.String("db", "matchlog.db", "Match log database path")
	outPath = flag.String("out", "best-targets.png", "Output PNG path")
	limit   = flag.Int("limit", 0, "Plot only the most recent N rows (0 = all)")
	unit    = flag.String("units", units.Inch, "Length units: "+units.GetValidUnitsString())
)

// shortID keeps legend entries readable.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// renderTrajectory plots the best-target positions, one colour per tracked
// target, joined by the path the best pick took.
func renderTrajectory(records []db.BestTargetRecord, unit, out string) error {
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid units %q: must be one of %s", unit, units.GetValidUnitsString())
	}
	if len(records) == 0 {
		return fmt.Errorf("no best-target rows to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Best target trajectory (%d cycles)", len(records))
	p.X.Label.Text = fmt.Sprintf("X (%s)", unit)
	p.Y.Label.Text = fmt.Sprintf("Y (%s)", unit)
	p.Add(plotter.NewGrid())

	path := make(plotter.XYs, 0, len(records))
	byTarget := make(map[string]plotter.XYs)
	var order []string
	for _, r := range records {
		xy := plotter.XY{X: units.ConvertLength(r.XInches, unit), Y: units.ConvertLength(r.YInches, unit)}
		path = append(path, xy)
		if _, ok := byTarget[r.TargetID]; !ok {
			order = append(order, r.TargetID)
		}
		byTarget[r.TargetID] = append(byTarget[r.TargetID], xy)
	}

	line, err := plotter.NewLine(path)
	if err != nil {
		return fmt.Errorf("build trajectory line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = plotutil.Color(len(order))
	p.Add(line)

	for i, id := range order {
		sc, err := plotter.NewScatter(byTarget[id])
		if err != nil {
			return fmt.Errorf("build scatter for %s: %w", id, err)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(shortID(id), sc)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}

func main() {
	flag.Parse()

	if err := security.ValidateOutputPath(*outPath); err != nil {
		log.Fatalf("Invalid --out: %v", err)
	}

	matchLog, err := db.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open match log: %v", err)
	}
	defer matchLog.Close()

	records, err := matchLog.RecentBestTargets(*limit)
	if err != nil {
		log.Fatalf("Failed to read best targets: %v", err)
	}
	if err := renderTrajectory(records, *unit, *outPath); err != nil {
		log.Fatalf("Failed to plot: %v", err)
	}
	log.Printf("wrote %d best-target rows to %s", len(records), *outPath)
}
