package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/ghrobotics/visiontrack/internal/geometry"
	"github.com/ghrobotics/visiontrack/internal/httputil"
	"github.com/ghrobotics/visiontrack/internal/monitoring"
	"github.com/ghrobotics/visiontrack/internal/posehistory"
	"github.com/ghrobotics/visiontrack/internal/timeutil"
)

// OdometrySample is the body accepted by OdometryHandler. AgeMs backdates the
// sample to when the drive controller computed it.
type OdometrySample struct {
	XInches     float64 `json:"x_in"`
	YInches     float64 `json:"y_in"`
	RotationDeg float64 `json:"rotation_deg"`
	AgeMs       float64 `json:"age_ms"`
	// Reset discards history and restarts from this pose.
	Reset bool `json:"reset,omitempty"`
}

func (s OdometrySample) validate() error {
	for _, v := range []float64{s.XInches, s.YInches, s.RotationDeg, s.AgeMs} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("odometry values must be finite")
		}
	}
	if s.AgeMs < 0 {
		return fmt.Errorf("age_ms must not be negative, got %v", s.AgeMs)
	}
	return nil
}

const maxOdometryBody = 4 << 10

// OdometryHandler records robot poses posted by the drive controller.
func OdometryHandler(history *posehistory.Buffer, clock timeutil.Clock) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}

		var s OdometrySample
		if err := json.NewDecoder(io.LimitReader(r.Body, maxOdometryBody)).Decode(&s); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid odometry sample: %v", err)
			return
		}
		if err := s.validate(); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "%v", err)
			return
		}

		at := clock.Now().Add(-time.Duration(s.AgeMs * float64(time.Millisecond)))
		pose := geometry.NewPose(s.XInches, s.YInches, s.RotationDeg)
		if s.Reset {
			history.Reset(at, pose)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := history.Add(at, pose); err != nil {
			httputil.WriteError(w, http.StatusConflict, "%v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// HoldPose stands in for odometry when no drive controller is attached: it
// records pose every period until ctx is done, so pose lookups stay fresh.
func HoldPose(ctx context.Context, history *posehistory.Buffer, clock timeutil.Clock, pose geometry.Pose2d, period time.Duration) error {
	history.Reset(clock.Now(), pose)

	ticker := clock.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			if err := history.Add(now, pose); err != nil {
				monitoring.Debugf("held pose: %v", err)
			}
		}
	}
}
