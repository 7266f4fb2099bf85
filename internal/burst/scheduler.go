// Package burst sends a timed sequence of bait codes to one destination.
//
// The inter-send delays are deliberately irregular so the burst reads as
// organic traffic rather than a mechanical drip: random weights are
// normalized over 80% of the target window, jittered, and floored so no
// two messages ever land in rapid succession.
package burst

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pretext-labs/vish/internal/otp"
)

const (
	// minDelay is the floor applied to every inter-send delay.
	minDelay = 3 * time.Second
	// jitterRange is the half-width of the uniform perturbation applied
	// to each scaled delay.
	jitterRange = 2 * time.Second
	// windowFill is the fraction of the target window the delays are
	// scaled to, leaving slack for the jitter.
	windowFill = 0.8
)

// Sender dispatches one message and returns the provider delivery id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ProgressFunc is invoked after each successful dispatch with the
// 1-based step index, the total count, and the code just sent.
type ProgressFunc func(step, total int, code string)

type Scheduler struct {
	sender Sender
	window time.Duration
	rand   *rand.Rand
	logger *slog.Logger

	// sleep is swapped out in tests; the default is a ctx-aware timer.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(sender Sender, window time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender: sender,
		window: window,
		rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// SendBurst generates count codes and dispatches them separated by the
// computed irregular delays. A dispatch failure aborts the remaining
// steps; messages already sent are returned alongside the error since
// their codes stay valid for the rest of the run.
func (s *Scheduler) SendBurst(ctx context.Context, to string, count int, onSend ProgressFunc) ([]otp.Message, error) {
	delays := s.delays(count)
	sent := make([]otp.Message, 0, count)

	for i := 0; i < count; i++ {
		code := otp.Generate(s.rand)
		body := otp.FormatBody(code)

		sid, err := s.sender.Send(ctx, to, body)
		if err != nil {
			return sent, fmt.Errorf("send step %d/%d: %w", i+1, count, err)
		}

		sent = append(sent, otp.Message{
			Code:       code,
			SentAt:     time.Now().UTC(),
			DeliveryID: sid,
		})
		s.logger.Info("otp sent", "step", i+1, "total", count, "delivery_id", sid)

		if onSend != nil {
			onSend(i+1, count, code)
		}

		// No delay after the last message.
		if i < count-1 {
			if err := s.sleep(ctx, delays[i]); err != nil {
				return sent, fmt.Errorf("burst interrupted: %w", err)
			}
		}
	}

	return sent, nil
}

// delays computes the count-1 inter-send delays. Each delay is a
// normalized random share of windowFill×window, perturbed by a uniform
// jitter in [-jitterRange, +jitterRange] and floored at minDelay.
func (s *Scheduler) delays(count int) []time.Duration {
	if count < 2 {
		return nil
	}

	weights := make([]float64, count-1)
	var total float64
	for i := range weights {
		weights[i] = s.rand.Float64()
		total += weights[i]
	}
	if total == 0 {
		total = 1
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
	}

	budget := s.window.Seconds() * windowFill
	out := make([]time.Duration, count-1)
	for i, w := range weights {
		sec := (w / total) * budget
		sec += (s.rand.Float64()*2 - 1) * jitterRange.Seconds()
		d := time.Duration(sec * float64(time.Second))
		if d < minDelay {
			d = minDelay
		}
		out[i] = d
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
