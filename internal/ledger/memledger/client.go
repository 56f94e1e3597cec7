package memledger

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/level"
)

// Client is a per-identity view of a Ledger that satisfies ledger.Client.
type Client struct {
	l        *Ledger
	identity string
}

var _ ledger.Client = (*Client)(nil)

func (c *Client) Identity() string { return c.identity }

// read serialises a view call, honouring ctx and injected failures.
func (c *Client) read(ctx context.Context, query string, fn func(l *Ledger)) error {
	if err := ctx.Err(); err != nil {
		return ledger.WrapRead(query, err)
	}
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if err := c.l.readFail[query]; err != nil {
		return ledger.WrapRead(query, err)
	}
	fn(c.l)
	return nil
}

func (c *Client) CompletedCount(ctx context.Context, identity string) (uint8, error) {
	var out uint8
	err := c.read(ctx, ledger.QueryCompleted, func(l *Ledger) {
		if p := l.players[key(identity)]; p != nil {
			out = p.completed
		}
	})
	return out, err
}

func (c *Client) ClaimedCount(ctx context.Context, identity string) (uint8, error) {
	var out uint8
	err := c.read(ctx, ledger.QueryClaimed, func(l *Ledger) {
		if p := l.players[key(identity)]; p != nil {
			out = p.claimed
		}
	})
	return out, err
}

func (c *Client) BountyAmount(ctx context.Context) (uint256.Int, error) {
	var out uint256.Int
	err := c.read(ctx, ledger.QueryBounty, func(l *Ledger) { out = l.bounty })
	return out, err
}

func (c *Client) Balance(ctx context.Context) (uint256.Int, error) {
	var out uint256.Int
	err := c.read(ctx, ledger.QueryBalance, func(l *Ledger) { out = l.balance })
	return out, err
}

func (c *Client) NextMilestone(ctx context.Context, identity string) (uint8, bool, error) {
	var (
		m  uint8
		ok bool
	)
	err := c.read(ctx, ledger.QueryNextMilestone, func(l *Ledger) {
		var completed, claimed uint8
		if p := l.players[key(identity)]; p != nil {
			completed, claimed = p.completed, p.claimed
		}
		m, ok = level.NextMilestone(completed, claimed)
	})
	return m, ok, err
}

func (c *Client) Finished(ctx context.Context, identity string) (bool, error) {
	var out bool
	err := c.read(ctx, ledger.QueryFinished, func(l *Ledger) {
		if p := l.players[key(identity)]; p != nil {
			out = int(p.completed) >= level.Last
		}
	})
	return out, err
}

func (c *Client) LastSubmitter(ctx context.Context) (string, error) {
	var out string
	err := c.read(ctx, ledger.QueryLastUser, func(l *Ledger) { out = l.lastUser })
	return out, err
}

func (c *Client) LastPayoutTime(ctx context.Context) (time.Time, error) {
	var out time.Time
	err := c.read(ctx, ledger.QueryLastPayoutTime, func(l *Ledger) { out = time.Unix(l.lastPayoutUnix, 0) })
	return out, err
}

func (c *Client) PayoutCooldown(ctx context.Context) (time.Duration, error) {
	var out time.Duration
	err := c.read(ctx, ledger.QueryPayoutCooldown, func(l *Ledger) { out = l.cooldown })
	return out, err
}

func (c *Client) SubmitCompletion(ctx context.Context) (ledger.Pending, error) {
	return c.l.submit(ctx, ledger.OpPerformSlide, c.identity, uint256.Int{})
}

func (c *Client) SubmitClaim(ctx context.Context) (ledger.Pending, error) {
	return c.l.submit(ctx, ledger.OpPayoutLast, c.identity, uint256.Int{})
}

func (c *Client) Fund(ctx context.Context, amount uint256.Int) (ledger.Pending, error) {
	return c.l.submit(ctx, ledger.OpFund, c.identity, amount)
}
