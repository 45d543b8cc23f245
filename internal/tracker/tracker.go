package tracker

import (
	"math"
	"time"

	"github.com/golang/geo/s1"

	"github.com/ghrobotics/visiontrack/internal/config"
	"github.com/ghrobotics/visiontrack/internal/geometry"
)

// PoseSource supplies the robot's live field pose. It is only consulted to
// rank targets for the best-target pick, never for ingest.
type PoseSource interface {
	CurrentPose() geometry.Pose2d
}

// PoseSourceFunc adapts a function to PoseSource.
type PoseSourceFunc func() geometry.Pose2d

// CurrentPose calls f.
func (f PoseSourceFunc) CurrentPose() geometry.Pose2d { return f() }

// Config holds configuration parameters for the tracker.
type Config struct {
	MaxTrackingDistance  float64       // Association gate on translation distance (inches)
	MaxLifetime          time.Duration // Sample window length
	CircularRotationMean bool          // Average headings on the circle instead of as scalars
	MaxTargets           int           // Cap on live targets; extra new targets are rejected
}

// DefaultConfig returns the competition defaults: a 16 inch gate and a one
// second window.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxTrackingDistance:  cfg.GetMaxTrackingDistanceInches(),
		MaxLifetime:          cfg.GetMaxTrackingLifetime(),
		CircularRotationMean: cfg.GetCircularRotationMean(),
		MaxTargets:           cfg.GetMaxTargets(),
	}
}

// Stats counts tracker events since construction or the last Reset.
type Stats struct {
	Created  uint64 `json:"created"`
	Merged   uint64 `json:"merged"`
	Expired  uint64 `json:"expired"`
	Rejected uint64 `json:"rejected"`
}

// Tracker maintains the set of live targets and the current best target.
type Tracker struct {
	cfg     Config
	poses   PoseSource
	targets []*TrackedTarget
	best    *TrackedTarget
	stats   Stats
}

// NewTracker creates an empty tracker. A nil PoseSource ranks targets
// relative to the field origin.
func NewTracker(cfg Config, poses PoseSource) *Tracker {
	if poses == nil {
		poses = PoseSourceFunc(func() geometry.Pose2d { return geometry.Pose2d{} })
	}
	return &Tracker{
		cfg:   cfg,
		poses: poses,
	}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// AddSamples is the single mutation entry point. Candidates are field-frame
// poses observed at timestamp; now is the current control-loop time used for
// sample expiry.
//
// Each candidate merges into the nearest live target when it lies within
// MaxTrackingDistance of that target's average pose, otherwise it seeds a new
// target. Every target then drops samples older than MaxLifetime, empty
// targets are removed, and the best target is recomputed. Calling with no
// candidates only ever shrinks the live set.
func (t *Tracker) AddSamples(now, timestamp time.Time, candidates []geometry.Pose2d) {
	for _, pose := range candidates {
		if !pose.IsFinite() {
			t.stats.Rejected++
			continue
		}

		closest, dist := t.closest(pose)
		if closest == nil || dist > t.cfg.MaxTrackingDistance {
			if t.cfg.MaxTargets > 0 && len(t.targets) >= t.cfg.MaxTargets {
				t.stats.Rejected++
				continue
			}
			t.targets = append(t.targets, newTrackedTarget(timestamp, pose))
			t.stats.Created++
			continue
		}

		closest.update(now, timestamp, pose, t.cfg.MaxLifetime, t.cfg.CircularRotationMean)
		t.stats.Merged++
	}

	live := t.targets[:0]
	for _, target := range t.targets {
		target.expire(now, t.cfg.MaxLifetime, t.cfg.CircularRotationMean)
		if !target.IsAlive() {
			t.stats.Expired++
			continue
		}
		live = append(live, target)
	}
	for i := len(live); i < len(t.targets); i++ {
		t.targets[i] = nil
	}
	t.targets = live

	t.best = t.selectBest()
}

// closest returns the live target whose average pose is nearest to pose.
// Ties go to the earliest created target.
func (t *Tracker) closest(pose geometry.Pose2d) (*TrackedTarget, float64) {
	var (
		best     *TrackedTarget
		bestDist = math.Inf(1)
	)
	for _, target := range t.targets {
		if d := target.AveragePose.Distance(pose); d < bestDist {
			best, bestDist = target, d
		}
	}
	return best, bestDist
}

// selectBest picks the target most nearly on the robot's current heading.
func (t *Tracker) selectBest() *TrackedTarget {
	if len(t.targets) == 0 {
		return nil
	}
	robot := t.poses.CurrentPose()

	var (
		best      *TrackedTarget
		bestAngle = math.Inf(1)
	)
	for _, target := range t.targets {
		angle := math.Abs(RobotRelativeBearing(target.AveragePose, robot).Radians())
		if angle < bestAngle {
			best, bestAngle = target, angle
		}
	}
	return best
}

// RobotRelativeBearing is the bearing of target seen from robot, in the
// robot frame. Zero is dead ahead.
func RobotRelativeBearing(target, robot geometry.Pose2d) s1.Angle {
	return target.InFrameOfReferenceOf(robot).Bearing()
}

// BestTarget returns a copy of the current best target. ok is false when no
// target is being tracked, which is a normal steady state.
func (t *Tracker) BestTarget() (target TrackedTarget, ok bool) {
	if t.best == nil {
		return TrackedTarget{}, false
	}
	return t.best.clone(), true
}

// BestPose returns the averaged pose of the best target.
func (t *Tracker) BestPose() (geometry.Pose2d, bool) {
	if t.best == nil {
		return geometry.Pose2d{}, false
	}
	return t.best.AveragePose, true
}

// TrackedTargets returns copies of all live targets in creation order.
func (t *Tracker) TrackedTargets() []TrackedTarget {
	out := make([]TrackedTarget, 0, len(t.targets))
	for _, target := range t.targets {
		out = append(out, target.clone())
	}
	return out
}

// TrackedPoses returns the averaged pose of every live target.
func (t *Tracker) TrackedPoses() []geometry.Pose2d {
	out := make([]geometry.Pose2d, 0, len(t.targets))
	for _, target := range t.targets {
		out = append(out, target.AveragePose)
	}
	return out
}

// Len returns the number of live targets.
func (t *Tracker) Len() int {
	return len(t.targets)
}

// Stats returns the event counters.
func (t *Tracker) Stats() Stats {
	return t.stats
}

// Reset drops every target and clears the counters.
func (t *Tracker) Reset() {
	t.targets = nil
	t.best = nil
	t.stats = Stats{}
}
