// Package robot runs the periodic vision control loop: it drains the newest
// frame from each camera, places its detections on the field, feeds the
// tracker and publishes a read-only snapshot for other goroutines.
package robot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ghrobotics/visiontrack/internal/db"
	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/latest"
	"github.com/ghrobotics/visiontrack/internal/monitoring"
	"github.com/ghrobotics/visiontrack/internal/posehistory"
	"github.com/ghrobotics/visiontrack/internal/timeutil"
	"github.com/ghrobotics/visiontrack/internal/tracker"
	"github.com/ghrobotics/visiontrack/internal/vision"
)

// DefaultPeriod matches the 50 Hz robot control loop.
const DefaultPeriod = 20 * time.Millisecond

// Camera pairs a mount with the slot its reader goroutine fills.
type Camera struct {
	Mount vision.Mount
	Slot  *latest.Slot[vision.Frame]
}

// IngestStats counts ingest outcomes across all cameras.
type IngestStats struct {
	Frames        uint64 `json:"frames"`
	Candidates    uint64 `json:"candidates"`
	Dropped       uint64 `json:"dropped"`
	HistoryMisses uint64 `json:"history_misses"`
	// RecordsDropped counts match-log rows lost to a full RecordQueue.
	RecordsDropped uint64 `json:"records_dropped"`
}

// Snapshot is the loop state after one Step. It is never mutated once
// published.
type Snapshot struct {
	At      time.Time
	Robot   geometry.Pose2d
	Best    *tracker.TrackedTarget
	Targets []tracker.TrackedTarget
	Tracker tracker.Stats
	Ingest  IngestStats
}

// Loop owns the tracker. Only the goroutine running Run (or calling Step)
// may touch it. Match-log rows go to Records, whose writer runs elsewhere.
type Loop struct {
	Period  time.Duration
	Clock   timeutil.Clock
	Tracker *tracker.Tracker
	History *posehistory.Buffer
	Cameras []Camera
	Records *RecordQueue

	ingest   IngestStats
	snapshot atomic.Pointer[Snapshot]
}

// NewLoop builds a loop whose tracker ranks targets against history's
// current pose.
func NewLoop(cfg tracker.Config, history *posehistory.Buffer, cameras []Camera) *Loop {
	return &Loop{
		Period:  DefaultPeriod,
		Clock:   timeutil.RealClock{},
		Tracker: tracker.NewTracker(cfg, history),
		History: history,
		Cameras: cameras,
	}
}

// Step runs one cycle at now and returns the published snapshot.
func (l *Loop) Step(now time.Time) *Snapshot {
	gotFrame := false
	for _, cam := range l.Cameras {
		frame, ok := cam.Slot.Poll()
		if !ok {
			continue
		}
		gotFrame = true

		res := vision.Ingest(frame, cam.Mount, l.History)
		l.ingest.Frames++
		l.ingest.Candidates += uint64(len(res.Candidates))
		l.ingest.Dropped += uint64(res.Dropped)
		if res.Err != nil {
			l.ingest.HistoryMisses++
			monitoring.Debugf("dropping frame: %v", res.Err)
		}

		l.Tracker.AddSamples(now, res.Timestamp, res.Candidates)

		if l.Records != nil {
			l.countRecord(l.Records.OfferFrame(db.FrameRecord{
				Camera:        frame.Camera,
				CaptureTime:   frame.CaptureTime,
				ProcessedTime: now,
				Detections:    len(frame.Detections),
				Candidates:    len(res.Candidates),
				Dropped:       res.Dropped + frame.Rejected,
			}))
		}
	}
	if !gotFrame {
		// Ages out stale targets and refreshes the best pick.
		l.Tracker.AddSamples(now, now, nil)
	}

	snap := &Snapshot{
		At:      now,
		Robot:   l.History.CurrentPose(),
		Targets: l.Tracker.TrackedTargets(),
		Tracker: l.Tracker.Stats(),
		Ingest:  l.ingest,
	}
	if best, ok := l.Tracker.BestTarget(); ok {
		snap.Best = &best
		if l.Records != nil {
			l.countRecord(l.Records.OfferBestTarget(db.BestTargetRecord{
				ProcessedTime: now,
				TargetID:      best.ID,
				XInches:       best.AveragePose.X(),
				YInches:       best.AveragePose.Y(),
				RotationDeg:   best.AveragePose.Degrees(),
				TrackedCount:  len(snap.Targets),
			}))
			snap.Ingest = l.ingest
		}
	}
	l.snapshot.Store(snap)
	return snap
}

func (l *Loop) countRecord(queued bool) {
	if !queued {
		l.ingest.RecordsDropped++
		monitoring.Debugf("match log queue full, dropping record")
	}
}

// Snapshot returns the most recently published state, or nil before the
// first Step.
func (l *Loop) Snapshot() *Snapshot {
	return l.snapshot.Load()
}

// Run steps the loop every Period until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	period := l.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	clock := l.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	ticker := clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			l.Step(clock.Now())
		}
	}
}
