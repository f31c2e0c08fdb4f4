package session

import (
	"context"

	"github.com/e7canasta/scanview/modules/transport"
)

// eventSink adapts a Controller to transport.Sink by posting events.
type eventSink struct {
	ctx   context.Context
	ctrl  Controller
	jobID string
}

// NewSink returns a transport.Sink that posts every producer frame to ctrl,
// tagged with jobID. Once another job starts, frames still arriving from
// this connection are ignored. Posting stops once ctx is done.
func NewSink(ctx context.Context, ctrl Controller, jobID string) transport.Sink {
	return &eventSink{ctx: ctx, ctrl: ctrl, jobID: jobID}
}

func (s *eventSink) Data(payload []byte, binary bool) {
	_ = s.ctrl.Post(s.ctx, Data(payload, binary).ForJob(s.jobID))
}

func (s *eventSink) End() {
	_ = s.ctrl.Post(s.ctx, End().ForJob(s.jobID))
}

func (s *eventSink) Closed(err error) {
	_ = s.ctrl.Post(s.ctx, Closed(err).ForJob(s.jobID))
}
