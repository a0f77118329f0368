package orchestrator

import "context"

// streamBuffer is the number of events the producer may run ahead of the
// consumer.
const streamBuffer = 16

// Stream is the ordered event sequence of one turn. It has a single
// producer, the turn itself, and is closed exactly once when the turn ends.
// Consumers read with Next or range over Events, not both at once.
type Stream struct {
	ch chan Event
}

func newStream() *Stream {
	return &Stream{ch: make(chan Event, streamBuffer)}
}

// Events returns the channel of events. It is closed when the turn ends.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Next returns the next event. ok is false when the stream is closed or ctx
// is done.
func (s *Stream) Next(ctx context.Context) (ev Event, ok bool) {
	select {
	case ev, ok = <-s.ch:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// send delivers ev unless ctx ends first.
func (s *Stream) send(ctx context.Context, ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) close() {
	close(s.ch)
}
