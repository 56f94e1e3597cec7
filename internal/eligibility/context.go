package eligibility

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"slidebounty.ai/internal/ledger"
)

// ReadContext fetches the claim-time ledger fields concurrently. Any failed
// read fails the whole context.
func ReadContext(ctx context.Context, r ledger.Reader, identity string, timeout time.Duration) (ClaimContext, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := ClaimContext{Identity: identity}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := r.LastSubmitter(gctx)
		c.LastUser = v
		return ledger.WrapRead(ledger.QueryLastUser, err)
	})
	g.Go(func() error {
		v, err := r.LastPayoutTime(gctx)
		c.LastPayoutTime = v
		return ledger.WrapRead(ledger.QueryLastPayoutTime, err)
	})
	g.Go(func() error {
		v, err := r.PayoutCooldown(gctx)
		c.PayoutCooldown = v
		return ledger.WrapRead(ledger.QueryPayoutCooldown, err)
	})
	if err := g.Wait(); err != nil {
		return ClaimContext{}, err
	}
	return c, nil
}
