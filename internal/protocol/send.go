package protocol

import "context"

// SendEvent delivers an event to a stream channel, blocking until the
// consumer accepts it or ctx is canceled. Stream-ending events use the
// same path; consumers drain the channel until it closes.
func SendEvent(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- event:
		return nil
	}
}
