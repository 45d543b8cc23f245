package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s1"
)

// ErrNotFrame is returned for serial lines that are camera chatter (command
// acknowledgements, log lines) rather than detection frames.
var ErrNotFrame = errors.New("not a detection frame")

type wireTarget struct {
	Angle    *float64 `json:"angle"`    // degrees
	Rotation *float64 `json:"rotation"` // degrees
	Distance *float64 `json:"distance"` // inches
}

type wireFrame struct {
	CaptureAgoMs float64      `json:"capture_ago_ms"`
	Targets      []wireTarget `json:"targets"`
}

// ParseFrame decodes one line of camera output. The camera reports how long
// ago the image was captured; received is when the line arrived.
func ParseFrame(camera string, line []byte, received time.Time) (Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Frame{}, ErrNotFrame
	}

	var wf wireFrame
	if err := json.Unmarshal(line, &wf); err != nil {
		return Frame{}, fmt.Errorf("camera %s: malformed frame: %w", camera, err)
	}
	if !finite(wf.CaptureAgoMs) || wf.CaptureAgoMs < 0 {
		return Frame{}, fmt.Errorf("camera %s: invalid capture_ago_ms %v", camera, wf.CaptureAgoMs)
	}

	ago := time.Duration(math.Round(wf.CaptureAgoMs * float64(time.Millisecond)))
	f := Frame{
		Camera:      camera,
		CaptureTime: received.Add(-ago),
		Detections:  make([]Detection, 0, len(wf.Targets)),
	}
	for _, t := range wf.Targets {
		if t.Angle == nil || t.Rotation == nil || t.Distance == nil {
			f.Rejected++
			continue
		}
		d := Detection{
			Angle:    s1.Angle(*t.Angle) * s1.Degree,
			Rotation: s1.Angle(*t.Rotation) * s1.Degree,
			Distance: *t.Distance,
		}
		if d.Validate() != nil {
			f.Rejected++
			continue
		}
		f.Detections = append(f.Detections, d)
	}
	return f, nil
}
