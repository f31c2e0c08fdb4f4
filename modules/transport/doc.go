// Package transport connects the viewer to a scanline producer over a websocket.
//
// The client sends one job command as a JSON text frame and then reads the
// producer's stream: text frames carry JSON scanlines, binary frames carry
// msgpack scanlines, and the text frame "end" marks completion. Every inbound
// frame is handed to a Sink; the transport never decodes scanlines itself.
//
// # Basic Usage
//
//	client, err := transport.Dial(ctx, transport.Options{URL: "ws://localhost:3000/ws"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.StartJob(ctx, transport.JobSettings{Width: 30, Samples: 100}); err != nil {
//	    return err
//	}
//	client.Run(ctx, sink) // blocks until the stream closes
//
// # Reconnection
//
// Dial retries with exponential backoff (ReconnectConfig). Once a stream is
// running, a dropped connection is reported through Sink.Closed and is not
// retried: a half-painted job cannot be resumed.
package transport
