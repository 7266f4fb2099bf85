package pipeline

import (
	"bufio"
	"context"
	"io"

	"github.com/pretext-labs/vish/internal/bus"
)

// EndedSubscriber is the part of the event bus the end signal needs.
type EndedSubscriber interface {
	SubscribeCallEnded(room string, fn func(bus.CallEndedEvent)) error
}

type chanEndSignal struct {
	ch chan struct{}
}

func (s *chanEndSignal) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ch:
		return nil
	}
}

// BusEndSignal resolves when the voice worker publishes the room's
// ended event.
func BusEndSignal(sub EndedSubscriber) func(room string) (EndSignal, error) {
	return func(room string) (EndSignal, error) {
		s := &chanEndSignal{ch: make(chan struct{}, 1)}
		err := sub.SubscribeCallEnded(room, func(bus.CallEndedEvent) {
			select {
			case s.ch <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type readerEndSignal struct {
	r io.Reader
}

func (s *readerEndSignal) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		// Blocks until the operator presses Enter.
		bufio.NewReader(s.r).ReadString('\n')
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// ManualEndSignal resolves when a newline arrives on r, for runs where
// the operator declares the call over by hand.
func ManualEndSignal(r io.Reader) func(room string) (EndSignal, error) {
	return func(string) (EndSignal, error) {
		return &readerEndSignal{r: r}, nil
	}
}
