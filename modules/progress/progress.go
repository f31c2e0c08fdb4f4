// Package progress distributes render-job progress to observers.
//
// Core Philosophy: "Observers never slow the painter."
//
// The session publishes a Progress snapshot after every paint tick and on
// every state transition. Delivery is non-blocking with two drop policies:
//   - DropNew: channel subscriber, incoming update dropped when the buffer is full
//   - DropOld: latest-only receiver, held update replaced by the incoming one
//
// Usage:
//
//	bus := progress.New()
//	defer bus.Close()
//
//	ch := make(chan progress.Progress, 16)
//	bus.Subscribe("stats", ch)
//
//	receiver, _ := bus.SubscribeLatest("mqtt")
//	go emitter.Run(ctx, receiver)
//
//	bus.Publish(progress.Progress{JobID: id, RowsPainted: 12})
package progress

import "github.com/e7canasta/scanview/modules/progress/internal/bus"

// New creates a progress bus. This is the only public constructor.
func New() Bus {
	return bus.New()
}
