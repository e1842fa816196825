package client

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"reins/internal/protocol"
)

const streamReadChunkSize = 4 * 1024

// StreamTransport owns one in-flight streaming exchange: the response body,
// the read loop, and a cancel handle scoped to this exchange only. Callers
// drain Events until it closes; exactly one stream-ending event (terminal or
// confirmation-required) is dispatched last.
type StreamTransport struct {
	events chan protocol.Event
	cancel context.CancelFunc
}

// Events returns the typed event channel. It is closed when the read loop
// stops, whether by terminal event, suspension, cancellation, or failure.
func (t *StreamTransport) Events() <-chan protocol.Event {
	return t.events
}

// Cancel aborts this exchange. Cancellation is a deliberate action, not a
// failure: the read loop shuts down without emitting an error event.
func (t *StreamTransport) Cancel() {
	t.cancel()
}

// newStreamTransport starts the read loop over an open response body.
func newStreamTransport(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, logger *zap.Logger) *StreamTransport {
	t := &StreamTransport{
		events: make(chan protocol.Event, 1),
		cancel: cancel,
	}
	go t.readLoop(ctx, body, logger)
	return t
}

func (t *StreamTransport) readLoop(ctx context.Context, body io.ReadCloser, logger *zap.Logger) {
	defer close(t.events)
	defer t.cancel()
	defer func() { _ = body.Close() }()

	decoder := protocol.NewFrameDecoder()
	buf := make([]byte, streamReadChunkSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, record := range decoder.Feed(buf[:n]) {
				event, err := protocol.DecodeRecord(record)
				if err != nil {
					// Malformed records are dropped; the stream goes on.
					logger.Debug("dropping malformed record",
						zap.String("record", record),
						zap.Error(err),
					)
					continue
				}
				if err := protocol.SendEvent(ctx, t.events, event); err != nil {
					return
				}
				if event.EndsStream() {
					return
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil || errors.Is(readErr, context.Canceled) {
				// Deliberate cancellation: shut down silently.
				return
			}
			cause := readErr
			if errors.Is(readErr, io.EOF) {
				cause = errors.New("stream ended without terminal event")
			}
			// The send must block: a non-blocking send would drop the
			// error whenever an earlier event is still undrained.
			_ = protocol.SendEvent(ctx, t.events, protocol.Event{
				Kind: protocol.KindError,
				Err:  cause,
			})
			return
		}
	}
}

// checkStreamResponse validates the handshake before the read loop starts.
func checkStreamResponse(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(snippet)}
}
