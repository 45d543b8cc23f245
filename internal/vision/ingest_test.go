package vision

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghrobotics/visiontrack/internal/geometry"
)

type fakeHistory struct {
	pose  geometry.Pose2d
	err   error
	calls []time.Time
}

func (f *fakeHistory) PoseAt(t time.Time) (geometry.Pose2d, error) {
	f.calls = append(f.calls, t)
	return f.pose, f.err
}

var captured = time.Unix(1_700_000_000, 0)

func TestIngest(t *testing.T) {
	h := &fakeHistory{pose: geometry.NewPose(10, 0, 0)}
	mount := Mount{Name: "test", Transform: geometry.Pose2d{}}
	frame := Frame{
		Camera:      "test",
		CaptureTime: captured,
		Detections: []Detection{
			{Distance: 20},
			{Distance: -5},
			{Distance: 30, Angle: deg(90)},
		},
	}

	res := Ingest(frame, mount, h)
	require.NoError(t, res.Err)
	assert.Equal(t, captured, res.Timestamp)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Candidates, 2)
	assertPose(t, geometry.NewPose(30, 0, 180), res.Candidates[0])
	assertPose(t, geometry.NewPose(10, 30, -90), res.Candidates[1])

	// One history lookup per frame, at capture time.
	assert.Equal(t, []time.Time{captured}, h.calls)
}

func TestIngest_HistoryMissDropsFrame(t *testing.T) {
	miss := errors.New("no history")
	h := &fakeHistory{err: miss}
	frame := Frame{
		Camera:      "front",
		CaptureTime: captured,
		Detections:  []Detection{{Distance: 20}, {Distance: 40}},
	}

	res := Ingest(frame, Mount{Name: "front"}, h)
	assert.ErrorIs(t, res.Err, miss)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 2, res.Dropped)
}

func TestIngest_EmptyFrameSkipsLookup(t *testing.T) {
	h := &fakeHistory{}
	res := Ingest(Frame{CaptureTime: captured}, Mount{}, h)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Candidates)
	assert.Empty(t, h.calls)
}
