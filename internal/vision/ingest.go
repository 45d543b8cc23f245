package vision

import (
	"fmt"
	"time"

	"github.com/ghrobotics/visiontrack/internal/geometry"
)

// HistoryProvider answers where the robot was at a past instant.
type HistoryProvider interface {
	PoseAt(t time.Time) (geometry.Pose2d, error)
}

// IngestResult is the outcome of converting one frame.
type IngestResult struct {
	Timestamp  time.Time
	Candidates []geometry.Pose2d
	// Dropped counts detections that produced no candidate.
	Dropped int
	// Err is set when the whole frame was dropped.
	Err error
}

// Ingest converts every detection in frame to a field pose. The robot pose is
// looked up once for the frame's capture time; when that lookup fails the
// whole frame is dropped rather than guessed at. Individual bad detections are
// skipped.
func Ingest(frame Frame, mount Mount, history HistoryProvider) IngestResult {
	res := IngestResult{Timestamp: frame.CaptureTime}
	if len(frame.Detections) == 0 {
		return res
	}

	robotAt, err := history.PoseAt(frame.CaptureTime)
	if err != nil {
		res.Dropped = len(frame.Detections)
		res.Err = fmt.Errorf("camera %s: robot pose at %s: %w",
			frame.Camera, frame.CaptureTime.Format(time.RFC3339Nano), err)
		return res
	}

	res.Candidates = make([]geometry.Pose2d, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		pose, err := ToFieldPose(d, mount.Transform, robotAt)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Candidates = append(res.Candidates, pose)
	}
	return res
}
