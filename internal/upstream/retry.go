package upstream

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

// Policy bounds retries and per-call time for one provider call.
type Policy struct {
	Attempts    uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Do runs fn with a per-attempt timeout and retries transient failures with
// exponential backoff. The returned error is classified for provider. Do calls
// must not nest: each layer multiplies the attempts of the one below.
func Do(ctx context.Context, p Policy, provider string, fn func(ctx context.Context) error) error {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	err := retry.Do(
		func() error {
			callCtx := ctx
			if p.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
				defer cancel()
			}
			raw := fn(callCtx)
			if raw == nil {
				return nil
			}
			// Decide on the raw error: Classify tags unknown failures as
			// ErrUnavailable, which would otherwise read as transient.
			if !IsTransient(raw) {
				return retry.Unrecoverable(Classify(provider, raw))
			}
			return Classify(provider, raw)
		},
		retry.Attempts(p.Attempts),
		retry.Delay(p.BaseDelay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return retry.IsRecoverable(err) && IsTransient(err) }),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("provider", provider).Uint("attempt", n+1).Msg("Retrying provider call")
		}),
	)
	if err != nil && ctx.Err() != nil {
		return Classify(provider, ctx.Err())
	}
	return err
}
