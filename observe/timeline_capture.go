package observe

import (
	"context"
	"sync/atomic"
)

// TimelineCapture holds the timeline of a finished race.
//
// Timeline() returns nil until the race completes (or if capture is not used).
type TimelineCapture struct {
	tl atomic.Pointer[Timeline]
}

// Timeline returns the captured timeline, or nil if not yet populated.
func (c *TimelineCapture) Timeline() *Timeline {
	if c == nil {
		return nil
	}
	return c.tl.Load()
}

type timelineCaptureKey struct{}

// RecordTimeline returns a derived context that requests timeline capture for
// the next race, plus a holder for retrieving the completed timeline.
func RecordTimeline(ctx context.Context) (context.Context, *TimelineCapture) {
	if ctx == nil {
		ctx = context.Background()
	}
	capture := &TimelineCapture{}
	return context.WithValue(ctx, timelineCaptureKey{}, capture), capture
}

// TimelineCaptureFromContext returns the capture, if one was requested.
func TimelineCaptureFromContext(ctx context.Context) (*TimelineCapture, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(timelineCaptureKey{}).(*TimelineCapture)
	return v, ok && v != nil
}

type disabledTimelineCapture struct{}

// WithoutTimelineCapture disables capture in derived contexts so that a race
// nested inside a source does not publish into the outer race's capture.
func WithoutTimelineCapture(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, timelineCaptureKey{}, disabledTimelineCapture{})
}

// StoreTimelineCapture publishes the finished timeline into the capture.
func StoreTimelineCapture(capture *TimelineCapture, tl *Timeline) {
	if capture == nil || tl == nil {
		return
	}
	capture.tl.Store(tl)
}
