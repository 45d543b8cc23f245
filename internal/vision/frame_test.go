package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	received := time.Unix(1_700_000_000, 0)
	line := []byte(`{"capture_ago_ms": 42.5, "targets": [
		{"angle": -8.5, "rotation": 3.0, "distance": 78.5},
		{"angle": 12, "distance": 40},
		{"angle": 1, "rotation": 2, "distance": -3},
		{"angle": 0, "rotation": 0, "distance": 0}
	]}`)

	f, err := ParseFrame("front", line, received)
	require.NoError(t, err)
	assert.Equal(t, "front", f.Camera)
	assert.Equal(t, received.Add(-42500*time.Microsecond), f.CaptureTime)
	assert.Equal(t, 2, f.Rejected)
	require.Len(t, f.Detections, 2)

	d := f.Detections[0]
	assert.InDelta(t, -8.5, d.Angle.Degrees(), 1e-9)
	assert.InDelta(t, 3.0, d.Rotation.Degrees(), 1e-9)
	assert.InDelta(t, 78.5, d.Distance, 1e-9)
	assert.Zero(t, f.Detections[1].Distance)
}

func TestParseFrame_NoTargets(t *testing.T) {
	received := time.Unix(1_700_000_000, 0)
	f, err := ParseFrame("back", []byte(`{"capture_ago_ms":0,"targets":[]}`+"\r\n"), received)
	require.NoError(t, err)
	assert.Equal(t, received, f.CaptureTime)
	assert.Empty(t, f.Detections)
	assert.Zero(t, f.Rejected)
}

func TestParseFrame_Errors(t *testing.T) {
	received := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name     string
		line     string
		notFrame bool
	}{
		{"ack", "OK", true},
		{"log line", "INF Engine: streaming on", true},
		{"blank", "   ", true},
		{"truncated json", `{"capture_ago_ms": 4`, false},
		{"wrong types", `{"capture_ago_ms": "soon"}`, false},
		{"negative latency", `{"capture_ago_ms": -1, "targets": []}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame("front", []byte(tt.line), received)
			require.Error(t, err)
			if tt.notFrame {
				assert.ErrorIs(t, err, ErrNotFrame)
			} else {
				assert.NotErrorIs(t, err, ErrNotFrame)
			}
		})
	}
}
