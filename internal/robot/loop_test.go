package robot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghrobotics/visiontrack/internal/db"
	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/latest"
	"github.com/ghrobotics/visiontrack/internal/posehistory"
	"github.com/ghrobotics/visiontrack/internal/timeutil"
	"github.com/ghrobotics/visiontrack/internal/tracker"
	"github.com/ghrobotics/visiontrack/internal/vision"
)

var t0 = time.Unix(1_700_000_000, 0)

type fakeRecorder struct {
	mu      sync.Mutex
	frames  []db.FrameRecord
	targets []db.BestTargetRecord
	err     error
}

func (r *fakeRecorder) RecordFrame(f db.FrameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return r.err
}

func (r *fakeRecorder) RecordBestTarget(b db.BestTargetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, b)
	return r.err
}

func newTestLoop(t *testing.T) (*Loop, *latest.Slot[vision.Frame], *posehistory.Buffer) {
	t.Helper()
	history := posehistory.NewBuffer(10, 0)
	slot := latest.NewSlot[vision.Frame]()
	loop := NewLoop(tracker.DefaultConfig(), history, []Camera{
		{Mount: vision.Mount{Name: "front"}, Slot: slot},
	})
	return loop, slot, history
}

func TestStep_TracksDetection(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})
	rec := &fakeRecorder{}
	loop.Records = NewRecordQueue(rec, 16)

	slot.Offer(vision.Frame{
		Camera:      "front",
		CaptureTime: t0,
		Detections:  []vision.Detection{{Distance: 24}},
		Rejected:    1,
	})

	snap := loop.Step(t0.Add(20 * time.Millisecond))
	require.Same(t, snap, loop.Snapshot())
	require.Len(t, snap.Targets, 1)
	require.NotNil(t, snap.Best)
	assert.InDelta(t, 24, snap.Best.AveragePose.X(), 1e-9)
	assert.InDelta(t, 0, snap.Best.AveragePose.Y(), 1e-9)
	assert.Equal(t, IngestStats{Frames: 1, Candidates: 1}, snap.Ingest)
	assert.Equal(t, uint64(1), snap.Tracker.Created)

	// Nothing is written until the queue is drained off the loop.
	assert.Empty(t, rec.frames)
	assert.Equal(t, 2, loop.Records.Drain())

	require.Len(t, rec.frames, 1)
	assert.Equal(t, db.FrameRecord{
		Camera:        "front",
		CaptureTime:   t0,
		ProcessedTime: t0.Add(20 * time.Millisecond),
		Detections:    1,
		Candidates:    1,
		Dropped:       1,
	}, rec.frames[0])
	require.Len(t, rec.targets, 1)
	assert.Equal(t, snap.Best.ID, rec.targets[0].TargetID)
	assert.Equal(t, 1, rec.targets[0].TrackedCount)
}

func TestStep_IdleCycleExpiresTargets(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})

	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0, Detections: []vision.Detection{{Distance: 24}}})
	loop.Step(t0)
	require.Equal(t, 1, loop.Tracker.Len())

	snap := loop.Step(t0.Add(500 * time.Millisecond))
	assert.Len(t, snap.Targets, 1)

	snap = loop.Step(t0.Add(1100 * time.Millisecond))
	assert.Empty(t, snap.Targets)
	assert.Nil(t, snap.Best)
	assert.Equal(t, uint64(1), snap.Tracker.Expired)
}

func TestStep_HistoryMissDropsFrame(t *testing.T) {
	loop, slot, _ := newTestLoop(t)

	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0, Detections: []vision.Detection{{Distance: 24}, {Distance: 30}}})
	snap := loop.Step(t0)

	assert.Empty(t, snap.Targets)
	assert.Equal(t, IngestStats{Frames: 1, Dropped: 2, HistoryMisses: 1}, snap.Ingest)
}

func TestStep_NoOdometryDropsFrame(t *testing.T) {
	loop, slot, _ := newTestLoop(t)

	// Odometry has not posted anything yet.
	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0.Add(30 * time.Second), Detections: []vision.Detection{{Distance: 24}}})
	snap := loop.Step(t0.Add(30 * time.Second))

	assert.Equal(t, uint64(1), snap.Ingest.HistoryMisses)
	assert.Empty(t, snap.Targets)
	assert.Nil(t, snap.Best)
}

func TestStep_StaleOdometryDropsFrame(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})

	// Odometry stopped at t0; the frame arrives long after.
	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0.Add(30 * time.Second), Detections: []vision.Detection{{Distance: 24}}})
	snap := loop.Step(t0.Add(30 * time.Second))

	assert.Equal(t, IngestStats{Frames: 1, Dropped: 1, HistoryMisses: 1}, snap.Ingest)
	assert.Empty(t, snap.Targets)
	assert.Nil(t, snap.Best)
}

func TestStep_UsesPoseAtCaptureTime(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.NewPose(0, 0, 0))
	require.NoError(t, history.Add(t0.Add(100*time.Millisecond), geometry.NewPose(100, 0, 0)))

	// Captured halfway between the two odometry samples.
	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0.Add(50 * time.Millisecond), Detections: []vision.Detection{{Distance: 10}}})
	snap := loop.Step(t0.Add(120 * time.Millisecond))

	require.Len(t, snap.Targets, 1)
	assert.InDelta(t, 60, snap.Targets[0].AveragePose.X(), 1e-9)
	assert.InDelta(t, 100, snap.Robot.X(), 1e-9)
}

func TestStep_RecorderErrorsAreNotFatal(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})
	rec := &fakeRecorder{err: errors.New("disk full")}
	loop.Records = NewRecordQueue(rec, 16)

	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0, Detections: []vision.Detection{{Distance: 24}}})
	snap := loop.Step(t0)
	assert.NotNil(t, snap.Best)
	assert.Equal(t, 2, loop.Records.Drain())
	assert.Len(t, rec.frames, 1)
	assert.Len(t, rec.targets, 1)
}

type slowRecorder struct {
	fakeRecorder
	delay time.Duration
}

func (r *slowRecorder) RecordFrame(f db.FrameRecord) error {
	time.Sleep(r.delay)
	return r.fakeRecorder.RecordFrame(f)
}

func (r *slowRecorder) RecordBestTarget(b db.BestTargetRecord) error {
	time.Sleep(r.delay)
	return r.fakeRecorder.RecordBestTarget(b)
}

func TestStep_SlowRecorderDoesNotStallLoop(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})
	rec := &slowRecorder{delay: 50 * time.Millisecond}
	loop.Records = NewRecordQueue(rec, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Records.Run(ctx) }()

	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0, Detections: []vision.Detection{{Distance: 24}}})
	start := time.Now()
	snap := loop.Step(t0)
	assert.Less(t, time.Since(start), loop.Period)
	require.NotNil(t, snap.Best)

	// The writer catches up on its own goroutine.
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.frames) == 1 && len(rec.targets) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStep_FullRecordQueueDropsRows(t *testing.T) {
	loop, slot, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})
	rec := &fakeRecorder{}
	loop.Records = NewRecordQueue(rec, 1)

	slot.Offer(vision.Frame{Camera: "front", CaptureTime: t0, Detections: []vision.Detection{{Distance: 24}}})
	snap := loop.Step(t0)

	// The frame row fits; the best-target row does not.
	assert.Equal(t, uint64(1), snap.Ingest.RecordsDropped)
	assert.Equal(t, uint64(1), loop.Records.Dropped())
	assert.Equal(t, 1, loop.Records.Drain())
	assert.Len(t, rec.frames, 1)
	assert.Empty(t, rec.targets)
}

func TestRun(t *testing.T) {
	loop, _, history := newTestLoop(t)
	history.Reset(t0, geometry.Pose2d{})
	clock := timeutil.NewMockClock(t0)
	loop.Clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(loop.Period)
		return loop.Snapshot() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, loop.Snapshot().At.After(t0))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
