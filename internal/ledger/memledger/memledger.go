// Package memledger is an in-memory rendition of the bounty contract. It backs
// tests, the local gateway and the CLI's memory backend.
package memledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/level"
)

type Config struct {
	Owner          string
	Bounty         uint256.Int
	InitialBalance uint256.Int
	PayoutCooldown time.Duration

	// ConfirmDelay postpones confirmation of every mutation. Zero confirms on
	// submission unless the ledger is held.
	ConfirmDelay time.Duration

	Now func() time.Time
}

type player struct {
	completed uint8
	claimed   uint8
}

type Ledger struct {
	mu sync.Mutex

	now          func() time.Time
	confirmDelay time.Duration

	owner          string
	bounty         uint256.Int
	balance        uint256.Int
	cooldown       time.Duration
	lastUser       string
	lastPayoutUnix int64
	block          uint64

	players map[string]*player
	events  []ledger.Event

	hold   bool
	queue  []*pendingTx
	closed bool

	readFail   map[string]error
	submitFail map[string]error
}

func New(cfg Config) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		now:          now,
		confirmDelay: cfg.ConfirmDelay,
		owner:        cfg.Owner,
		bounty:       cfg.Bounty,
		balance:      cfg.InitialBalance,
		cooldown:     cfg.PayoutCooldown,
		players:      map[string]*player{},
		readFail:     map[string]error{},
		submitFail:   map[string]error{},
	}
}

func key(identity string) string { return strings.ToLower(strings.TrimSpace(identity)) }

func (l *Ledger) playerLocked(identity string) *player {
	k := key(identity)
	p := l.players[k]
	if p == nil {
		p = &player{}
		l.players[k] = p
	}
	return p
}

// Client returns a handle whose mutations are signed by identity.
func (l *Ledger) Client(identity string) *Client {
	return &Client{l: l, identity: identity}
}

// Bind is Client behind the ledger.Client interface.
func (l *Ledger) Bind(identity string) ledger.Client { return l.Client(identity) }

// Hold queues mutations until Mine is called. Releasing the hold does not
// mine what is already queued.
func (l *Ledger) Hold(on bool) {
	l.mu.Lock()
	l.hold = on
	l.mu.Unlock()
}

// Mine confirms queued mutations in submission order and returns how many
// were processed.
func (l *Ledger) Mine() int {
	l.mu.Lock()
	q := l.queue
	l.queue = nil
	for _, tx := range q {
		l.applyLocked(tx)
	}
	l.mu.Unlock()
	for _, tx := range q {
		close(tx.done)
	}
	return len(q)
}

// Queued reports how many mutations wait for Mine.
func (l *Ledger) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// FailRead makes every call of query return err until cleared with nil.
func (l *Ledger) FailRead(query string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.readFail, query)
		return
	}
	l.readFail[query] = err
}

// FailSubmit makes submission of op fail before a transaction exists.
func (l *Ledger) FailSubmit(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.submitFail, op)
		return
	}
	l.submitFail[op] = err
}

// SetBounty is the owner-only admin call.
func (l *Ledger) SetBounty(caller string, amount uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !ledger.SameIdentity(caller, l.owner) {
		return ledger.Reverted("setBounty", "", ledger.ReasonNotOwner)
	}
	l.bounty = amount
	return nil
}

// Events returns a copy of the contract log.
func (l *Ledger) Events() []ledger.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Event(nil), l.events...)
}

func (l *Ledger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// Close fails every queued mutation and rejects new ones.
func (l *Ledger) Close() {
	l.mu.Lock()
	l.closed = true
	q := l.queue
	l.queue = nil
	for _, tx := range q {
		tx.err = &ledger.WriteError{Op: tx.op, TxHash: tx.hash, Err: ledger.ErrClosed}
	}
	l.mu.Unlock()
	for _, tx := range q {
		close(tx.done)
	}
}

type pendingTx struct {
	hash   string
	op     string
	from   string
	amount uint256.Int

	done chan struct{}
	rc   ledger.Receipt
	err  error
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

func newTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (l *Ledger) submit(ctx context.Context, op, from string, amount uint256.Int) (ledger.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.WrapWrite(op, err)
	}
	tx := &pendingTx{
		hash:   newTxHash(),
		op:     op,
		from:   from,
		amount: amount,
		done:   make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, &ledger.WriteError{Op: op, Err: ledger.ErrClosed}
	}
	if err := l.submitFail[op]; err != nil {
		l.mu.Unlock()
		return nil, ledger.WrapWrite(op, err)
	}
	switch {
	case l.hold:
		l.queue = append(l.queue, tx)
		l.mu.Unlock()
	case l.confirmDelay > 0:
		l.queue = append(l.queue, tx)
		delay := l.confirmDelay
		l.mu.Unlock()
		time.AfterFunc(delay, func() { l.confirm(tx) })
	default:
		l.applyLocked(tx)
		l.mu.Unlock()
		close(tx.done)
	}
	return tx, nil
}

// confirm mines a single delayed transaction if it is still queued.
func (l *Ledger) confirm(tx *pendingTx) {
	l.mu.Lock()
	idx := -1
	for i, q := range l.queue {
		if q == tx {
			idx = i
			break
		}
	}
	if idx < 0 || l.hold {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue[:idx], l.queue[idx+1:]...)
	l.applyLocked(tx)
	l.mu.Unlock()
	close(tx.done)
}

// applyLocked runs the contract transition for tx at confirmation time.
func (l *Ledger) applyLocked(tx *pendingTx) {
	var evs []ledger.Event
	var reason string
	switch tx.op {
	case ledger.OpPerformSlide:
		evs, reason = l.performSlideLocked(tx.from)
	case ledger.OpPayoutLast:
		evs, reason = l.payoutLastLocked(tx.from)
	case ledger.OpFund:
		if tx.amount.IsZero() {
			reason = ledger.ReasonZeroValue
			break
		}
		l.balance.Add(&l.balance, &tx.amount)
	}
	if reason != "" {
		tx.err = ledger.Reverted(tx.op, tx.hash, reason)
		return
	}
	l.block++
	l.events = append(l.events, evs...)
	tx.rc = ledger.Receipt{TxHash: tx.hash, Block: l.block, Events: evs}
}

func (l *Ledger) performSlideLocked(from string) ([]ledger.Event, string) {
	p := l.playerLocked(from)
	if int(p.completed) >= level.Last {
		return nil, ledger.ReasonGameFinished
	}
	p.completed++
	l.lastUser = from

	evs := []ledger.Event{
		{Name: ledger.EventSlidePerformed, User: from},
		{Name: ledger.EventPuzzleCompleted, User: from, Total: p.completed},
	}
	if level.MilestoneIndex(p.completed) >= 0 {
		evs = append(evs, ledger.Event{Name: ledger.EventMilestoneReached, User: from, Milestone: p.completed, Claimed: p.claimed})
	}
	if int(p.completed) == level.Last {
		evs = append(evs, ledger.Event{Name: ledger.EventGameCompleted, User: from})
	}
	return evs, ""
}

func (l *Ledger) payoutLastLocked(from string) ([]ledger.Event, string) {
	if l.balance.Lt(&l.bounty) {
		return nil, ledger.ReasonInsufficientBalance
	}
	if !ledger.SameIdentity(from, l.lastUser) {
		return nil, ledger.ReasonNotLastUser
	}
	if l.now().Unix() < l.lastPayoutUnix+int64(l.cooldown/time.Second) {
		return nil, ledger.ReasonCooldown
	}
	p := l.playerLocked(from)
	if _, ok := level.NextMilestone(p.completed, p.claimed); !ok {
		return nil, ledger.ReasonNoReward
	}
	l.balance.Sub(&l.balance, &l.bounty)
	p.claimed++
	l.lastPayoutUnix = l.now().Unix()
	return []ledger.Event{{Name: ledger.EventBountyPaid, User: from, Amount: l.bounty.Dec()}}, ""
}
