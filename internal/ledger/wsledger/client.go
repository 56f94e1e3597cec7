// Package wsledger talks to a ledger gateway over websocket.
package wsledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/protocol"
)

// RemoteError is a failure reported by the gateway.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Code + ": " + e.Message }

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case protocol.ErrWrongNetwork:
		return ledger.ErrWrongNetwork
	case protocol.ErrBusy:
		return ledger.ErrBusy
	}
	return nil
}

// Client is a ledger.Client bound to the identity sent in HELLO.
type Client struct {
	conn     *websocket.Conn
	identity string
	log      *log.Logger
	welcome  protocol.WelcomeMsg

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	calls   map[string]waiter
	pending map[string]*pendingTx
	closed  bool
	err     error

	done chan struct{}
}

var _ ledger.Client = (*Client)(nil)

type reply struct {
	res  protocol.ResultMsg
	pend *pendingTx
}

type waiter struct {
	op string
	ch chan reply
}

// Dial connects, performs the HELLO/WELCOME handshake and starts the reader.
func Dial(ctx context.Context, url, identity string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "slidebounty",
		Identity:        identity,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", string(msg))
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:     conn,
		identity: identity,
		log:      logger,
		welcome:  welcome,
		calls:    map[string]waiter{},
		pending:  map[string]*pendingTx{},
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			c.mu.Lock()
			w, ok := c.calls[res.ID]
			delete(c.calls, res.ID)
			// Register before handing the RESULT over so a RECEIPT right
			// behind it always finds its waiter.
			var p *pendingTx
			if ok && res.OK && res.TxHash != "" {
				p = newPendingTx(res.TxHash, w.op)
				c.pending[res.TxHash] = p
			}
			c.mu.Unlock()
			if ok {
				w.ch <- reply{res: res, pend: p}
			}

		case protocol.TypeReceipt:
			var rc protocol.ReceiptMsg
			if err := json.Unmarshal(msg, &rc); err != nil {
				continue
			}
			c.mu.Lock()
			p := c.pending[rc.TxHash]
			delete(c.pending, rc.TxHash)
			c.mu.Unlock()
			if p == nil {
				c.log.Printf("receipt for unknown tx %s", rc.TxHash)
				continue
			}
			p.settle(rc)
		}
	}
}

// fail releases every waiter once the connection is gone.
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.closed = true
	c.err = err
	calls := c.calls
	pend := c.pending
	c.calls = map[string]waiter{}
	c.pending = map[string]*pendingTx{}
	c.mu.Unlock()

	for _, w := range calls {
		close(w.ch)
	}
	for _, p := range pend {
		p.abort(err)
	}
}

func (c *Client) call(ctx context.Context, method string, params protocol.CallParams) (reply, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return reply{}, fmt.Errorf("%w: %v", ledger.ErrClosed, err)
	}
	c.calls[id] = waiter{op: method, ch: ch}
	c.mu.Unlock()

	msg := protocol.CallMsg{
		Type:            protocol.TypeCall,
		ProtocolVersion: protocol.Version,
		ID:              id,
		Method:          method,
		Params:          params,
	}
	c.writeMu.Lock()
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(d)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return reply{}, err
	}

	select {
	case r, ok := <-ch:
		if !ok {
			return reply{}, ledger.ErrClosed
		}
		if !r.res.OK {
			return r, &RemoteError{Code: r.res.Code, Message: r.res.Message}
		}
		return r, nil
	case <-ctx.Done():
		c.forget(id)
		return reply{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.calls, id)
	c.mu.Unlock()
}

func (c *Client) query(ctx context.Context, method, identity string, v any) error {
	r, err := c.call(ctx, method, protocol.CallParams{Identity: identity})
	if err != nil {
		return ledger.WrapRead(method, err)
	}
	if err := json.Unmarshal(r.res.Result, v); err != nil {
		return ledger.WrapRead(method, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (c *Client) CompletedCount(ctx context.Context, identity string) (uint8, error) {
	var v protocol.UintValue
	err := c.query(ctx, ledger.QueryCompleted, identity, &v)
	return uint8(v.Value), err
}

func (c *Client) ClaimedCount(ctx context.Context, identity string) (uint8, error) {
	var v protocol.UintValue
	err := c.query(ctx, ledger.QueryClaimed, identity, &v)
	return uint8(v.Value), err
}

func (c *Client) BountyAmount(ctx context.Context) (uint256.Int, error) {
	return c.amount(ctx, ledger.QueryBounty)
}

func (c *Client) Balance(ctx context.Context) (uint256.Int, error) {
	return c.amount(ctx, ledger.QueryBalance)
}

func (c *Client) amount(ctx context.Context, method string) (uint256.Int, error) {
	var v protocol.StringValue
	if err := c.query(ctx, method, "", &v); err != nil {
		return uint256.Int{}, err
	}
	out, err := ledger.ParseAmount(v.Value)
	if err != nil {
		return uint256.Int{}, ledger.WrapRead(method, err)
	}
	return out, nil
}

func (c *Client) NextMilestone(ctx context.Context, identity string) (uint8, bool, error) {
	var v protocol.MilestoneValue
	err := c.query(ctx, ledger.QueryNextMilestone, identity, &v)
	return v.Milestone, v.Available, err
}

func (c *Client) Finished(ctx context.Context, identity string) (bool, error) {
	var v protocol.BoolValue
	err := c.query(ctx, ledger.QueryFinished, identity, &v)
	return v.Value, err
}

func (c *Client) LastSubmitter(ctx context.Context) (string, error) {
	var v protocol.StringValue
	err := c.query(ctx, ledger.QueryLastUser, "", &v)
	return v.Value, err
}

func (c *Client) LastPayoutTime(ctx context.Context) (time.Time, error) {
	var v protocol.UintValue
	err := c.query(ctx, ledger.QueryLastPayoutTime, "", &v)
	return time.Unix(int64(v.Value), 0), err
}

func (c *Client) PayoutCooldown(ctx context.Context) (time.Duration, error) {
	var v protocol.UintValue
	err := c.query(ctx, ledger.QueryPayoutCooldown, "", &v)
	return time.Duration(v.Value) * time.Second, err
}

func (c *Client) SubmitCompletion(ctx context.Context) (ledger.Pending, error) {
	return c.mutate(ctx, ledger.OpPerformSlide, protocol.CallParams{})
}

func (c *Client) SubmitClaim(ctx context.Context) (ledger.Pending, error) {
	return c.mutate(ctx, ledger.OpPayoutLast, protocol.CallParams{})
}

func (c *Client) Fund(ctx context.Context, amount uint256.Int) (ledger.Pending, error) {
	return c.mutate(ctx, ledger.OpFund, protocol.CallParams{Amount: amount.Dec()})
}

func (c *Client) mutate(ctx context.Context, op string, params protocol.CallParams) (ledger.Pending, error) {
	r, err := c.call(ctx, op, params)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return nil, &ledger.WriteError{Op: op, Reason: ledger.ReasonForCode(re.Code), Err: re}
		}
		return nil, ledger.WrapWrite(op, err)
	}
	if r.pend == nil {
		return nil, &ledger.WriteError{Op: op, Err: errors.New("gateway returned no tx hash")}
	}
	return r.pend, nil
}

type pendingTx struct {
	hash string
	op   string

	once sync.Once
	done chan struct{}
	rc   ledger.Receipt
	err  error
}

func newPendingTx(hash, op string) *pendingTx {
	return &pendingTx{hash: hash, op: op, done: make(chan struct{})}
}

func (p *pendingTx) TxHash() string { return p.hash }

func (p *pendingTx) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-p.done:
		return p.rc, p.err
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
}

func (p *pendingTx) settle(m protocol.ReceiptMsg) {
	p.once.Do(func() {
		if m.OK {
			p.rc = ledger.Receipt{TxHash: m.TxHash, Block: m.Block}
			for _, e := range m.Events {
				p.rc.Events = append(p.rc.Events, ledger.Event{
					Name:      e.Name,
					User:      e.User,
					Total:     e.Total,
					Milestone: e.Milestone,
					Claimed:   e.Claimed,
					Amount:    e.Amount,
				})
			}
		} else {
			we := &ledger.WriteError{Op: p.op, TxHash: m.TxHash, Reason: m.Reason}
			if we.Reason == "" {
				we.Err = &RemoteError{Code: m.Code, Message: m.Message}
			}
			p.err = we
		}
		close(p.done)
	})
}

func (p *pendingTx) abort(err error) {
	p.once.Do(func() {
		p.err = &ledger.WriteError{Op: p.op, TxHash: p.hash, Err: fmt.Errorf("%w: %v", ledger.ErrClosed, err)}
		close(p.done)
	})
}
