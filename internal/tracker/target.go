package tracker

import (
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ghrobotics/visiontrack/internal/geometry"
)

// Sample is one field-frame observation of a target.
type Sample struct {
	Timestamp time.Time
	Pose      geometry.Pose2d
}

// TrackedTarget is a persistent hypothesis about one physical target's
// field pose. AveragePose is the mean of exactly the samples inside the
// lifetime window at the last update; a target with no samples is dead.
type TrackedTarget struct {
	ID          string
	CreatedAt   time.Time
	LastUpdated time.Time
	AveragePose geometry.Pose2d
	Samples     []Sample
}

func newTrackedTarget(timestamp time.Time, pose geometry.Pose2d) *TrackedTarget {
	return &TrackedTarget{
		ID:          uuid.NewString(),
		CreatedAt:   timestamp,
		LastUpdated: timestamp,
		AveragePose: pose,
		Samples:     []Sample{{Timestamp: timestamp, Pose: pose}},
	}
}

// IsAlive reports whether the target still has samples in its window.
func (t *TrackedTarget) IsAlive() bool {
	return len(t.Samples) > 0
}

// update appends a sample, purges anything older than lifetime relative to
// now and recomputes the average.
func (t *TrackedTarget) update(now, timestamp time.Time, pose geometry.Pose2d, lifetime time.Duration, circular bool) {
	t.Samples = append(t.Samples, Sample{Timestamp: timestamp, Pose: pose})
	t.LastUpdated = timestamp
	t.purge(now, lifetime)
	if t.IsAlive() {
		t.AveragePose = averageOf(t.Samples, circular)
	}
}

// expire drops samples that have aged out of the window and reports how many
// were removed. The average is refreshed when anything survives.
func (t *TrackedTarget) expire(now time.Time, lifetime time.Duration, circular bool) int {
	removed := t.purge(now, lifetime)
	if removed > 0 && t.IsAlive() {
		t.AveragePose = averageOf(t.Samples, circular)
	}
	return removed
}

func (t *TrackedTarget) purge(now time.Time, lifetime time.Duration) int {
	kept := t.Samples[:0]
	for _, s := range t.Samples {
		if now.Sub(s.Timestamp) > lifetime {
			continue
		}
		kept = append(kept, s)
	}
	removed := len(t.Samples) - len(kept)
	// Clear the tail so purged samples are not retained by the backing array.
	for i := len(kept); i < len(t.Samples); i++ {
		t.Samples[i] = Sample{}
	}
	t.Samples = kept
	return removed
}

func (t *TrackedTarget) clone() TrackedTarget {
	c := *t
	c.Samples = append([]Sample(nil), t.Samples...)
	return c
}

// averageOf is the coordinate-wise mean of the samples. Rotation is either a
// plain mean of the degree values, which is wrong across the ±180° seam, or
// the circular mean of the unit headings.
func averageOf(samples []Sample, circular bool) geometry.Pose2d {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	rs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Pose.X()
		ys[i] = s.Pose.Y()
		if circular {
			rs[i] = s.Pose.Rotation.Radians()
		} else {
			rs[i] = s.Pose.Degrees()
		}
	}

	var rotation s1.Angle
	if circular {
		rotation = s1.Angle(stat.CircularMean(rs, nil)).Normalized()
	} else {
		rotation = s1.Angle(stat.Mean(rs, nil)) * s1.Degree
	}

	return geometry.Pose2d{
		Translation: r2.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)},
		Rotation:    rotation,
	}
}
