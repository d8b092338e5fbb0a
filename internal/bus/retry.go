package bus

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/fujinet-go/fujibus/internal/wire"
)

// RetryConfig tunes the capped-exponential backoff applied to
// NotReady/DeviceBusy responses. The zero value is not usable; use
// DefaultRetryConfig.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxAttempts     int // attempts on a nil (no-response) packet; 0 disables the cap

	// PerAttemptTimeout bounds how long a single SendCommandExpect call
	// waits before counting as a "no response" attempt, the same role
	// net_tcp.py's per_attempt_timeout plays against its overall
	// deadline. Zero means each attempt runs to the overall ctx deadline
	// (so MaxAttempts then only ever triggers once).
	PerAttemptTimeout time.Duration
}

// DefaultRetryConfig matches the original orchestration's _send_retry
// tuning: a 1 ms initial backoff growing by 1.5x up to a 50 ms cap, with
// each attempt itself bounded to 50 ms.
var DefaultRetryConfig = RetryConfig{
	InitialInterval:   time.Millisecond,
	MaxInterval:       50 * time.Millisecond,
	Multiplier:        1.5,
	MaxAttempts:       0,
	PerAttemptTimeout: 50 * time.Millisecond,
}

func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.Multiplier = c.Multiplier
	b.MaxElapsedTime = 0 // the caller's ctx deadline governs elapsed time, not backoff itself
	b.Reset()
	return b
}

// SendCommandExpectRetry is SendCommandExpect wrapped in capped exponential
// backoff: a response carrying StatusNotReady or StatusDeviceBusy in
// params[0] is retried with backoff.ExponentialBackOff until ctx is done; a
// nil (no-response) packet is retried up to cfg.MaxAttempts times, or
// indefinitely against ctx if MaxAttempts is 0.
func (s *Session) SendCommandExpectRetry(ctx context.Context, device, command uint8, payload []byte, expectDevice, expectCommand uint8, cfg RetryConfig) (*wire.Packet, error) {
	b := cfg.newBackOff()
	attempts := 0

	for {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.PerAttemptTimeout)
		}
		pkt, err := s.SendCommandExpect(attemptCtx, device, command, payload, expectDevice, expectCommand)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return nil, err
		}

		attempts++

		if pkt == nil {
			if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
				return nil, nil
			}
			if !sleepBackOff(ctx, b) {
				return nil, nil
			}
			continue
		}

		status := Status(0)
		if len(pkt.Params) > 0 {
			status = Status(pkt.Params[0])
		}
		if !status.Retryable() {
			return pkt, nil
		}

		if !sleepBackOff(ctx, b) {
			return pkt, nil
		}
	}
}

// sleepBackOff waits for the backoff's next interval, or returns false if
// ctx expires first or the backoff reports it is exhausted.
func sleepBackOff(ctx context.Context, b *backoff.ExponentialBackOff) bool {
	d := b.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
