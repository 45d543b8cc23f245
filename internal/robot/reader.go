package robot

import (
	"context"
	"errors"

	"github.com/ghrobotics/visiontrack/internal/latest"
	"github.com/ghrobotics/visiontrack/internal/monitoring"
	"github.com/ghrobotics/visiontrack/internal/timeutil"
	"github.com/ghrobotics/visiontrack/internal/vision"
)

// ReadFrames parses lines from a camera subscription and offers each frame to
// slot, replacing any frame the loop has not picked up yet. It returns when
// ctx is done or the subscription closes.
func ReadFrames(ctx context.Context, camera string, sub <-chan string, slot *latest.Slot[vision.Frame], clock timeutil.Clock) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-sub:
			if !ok {
				return nil
			}
			frame, err := vision.ParseFrame(camera, []byte(line), clock.Now())
			switch {
			case errors.Is(err, vision.ErrNotFrame):
				monitoring.Debugf("camera %s: %s", camera, line)
				continue
			case err != nil:
				monitoring.Logf("%v", err)
				continue
			}
			if slot.Offer(frame) {
				monitoring.Debugf("camera %s: loop behind, replaced unread frame", camera)
			}
		}
	}
}
