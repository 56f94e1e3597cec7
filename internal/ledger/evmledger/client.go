// Package evmledger binds the bounty contract on an EVM chain.
package evmledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"slidebounty.ai/internal/ledger"
)

// Backend is the slice of ethclient.Client the binding needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type Config struct {
	RPCURL   string
	Contract string
	ChainID  uint64
	// PrivateKey is a hex secp256k1 key. Empty means read-only.
	PrivateKey string
	Logger     *log.Logger
}

// Client is a ledger.Client over a deployed bounty contract. Mutations are
// signed by the configured key.
type Client struct {
	eth      Backend
	abi      abi.ABI
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
	log      *log.Logger

	key  *ecdsa.PrivateKey
	from common.Address
}

var _ ledger.Client = (*Client)(nil)

// Dial connects to cfg.RPCURL and verifies the chain before returning.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("evmledger: rpc url is required")
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evmledger: dial %s: %w", cfg.RPCURL, err)
	}
	c, err := New(eth, cfg)
	if err != nil {
		eth.Close()
		return nil, err
	}
	if err := c.CheckNetwork(ctx); err != nil {
		eth.Close()
		return nil, err
	}
	return c, nil
}

func New(eth Backend, cfg Config) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, fmt.Errorf("evmledger: parse abi: %w", err)
	}
	addr := cfg.Contract
	if addr == "" {
		addr = DefaultContract
	}
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("evmledger: bad contract address %q", addr)
	}
	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = AmoyChainID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	c := &Client{
		eth:     eth,
		abi:     parsed,
		address: common.HexToAddress(addr),
		chainID: new(big.Int).SetUint64(chainID),
		log:     logger,
	}
	c.contract = bind.NewBoundContract(c.address, parsed, eth, eth, eth)

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evmledger: private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Identity is the signer address, or "" for a read-only client.
func (c *Client) Identity() string {
	if c.key == nil {
		return ""
	}
	return c.from.Hex()
}

// CheckNetwork fails with ledger.ErrWrongNetwork unless the node serves the
// configured chain.
func (c *Client) CheckNetwork(ctx context.Context) error {
	return checkChain(ctx, c.eth, c.chainID)
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

func checkChain(ctx context.Context, r chainIDReader, want *big.Int) error {
	got, err := r.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("evmledger: chain id: %w", err)
	}
	if got.Cmp(want) != 0 {
		return fmt.Errorf("%w: connected to chain %s, want %s", ledger.ErrWrongNetwork, got, want)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		return nil, ledger.WrapRead(method, err)
	}
	return out, nil
}

func addressArg(method, identity string) (common.Address, error) {
	if !common.IsHexAddress(identity) {
		return common.Address{}, &ledger.ReadError{Query: method, Err: fmt.Errorf("bad address %q", identity)}
	}
	return common.HexToAddress(identity), nil
}

func (c *Client) uint8Of(ctx context.Context, method, identity string) (uint8, error) {
	addr, err := addressArg(method, identity)
	if err != nil {
		return 0, err
	}
	out, err := c.call(ctx, method, addr)
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (c *Client) bigOf(ctx context.Context, method string) (*big.Int, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Client) amountOf(ctx context.Context, method string) (uint256.Int, error) {
	b, err := c.bigOf(ctx, method)
	if err != nil {
		return uint256.Int{}, err
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return uint256.Int{}, &ledger.ReadError{Query: method, Err: errors.New("value overflows 256 bits")}
	}
	return *v, nil
}

func (c *Client) CompletedCount(ctx context.Context, identity string) (uint8, error) {
	return c.uint8Of(ctx, ledger.QueryCompleted, identity)
}

func (c *Client) ClaimedCount(ctx context.Context, identity string) (uint8, error) {
	return c.uint8Of(ctx, ledger.QueryClaimed, identity)
}

func (c *Client) BountyAmount(ctx context.Context) (uint256.Int, error) {
	return c.amountOf(ctx, ledger.QueryBounty)
}

func (c *Client) Balance(ctx context.Context) (uint256.Int, error) {
	return c.amountOf(ctx, ledger.QueryBalance)
}

func (c *Client) NextMilestone(ctx context.Context, identity string) (uint8, bool, error) {
	addr, err := addressArg(ledger.QueryNextMilestone, identity)
	if err != nil {
		return 0, false, err
	}
	out, err := c.call(ctx, ledger.QueryNextMilestone, addr)
	if err != nil {
		return 0, false, err
	}
	m := *abi.ConvertType(out[0], new(uint8)).(*uint8)
	ok := *abi.ConvertType(out[1], new(bool)).(*bool)
	return m, ok, nil
}

func (c *Client) Finished(ctx context.Context, identity string) (bool, error) {
	addr, err := addressArg(ledger.QueryFinished, identity)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, ledger.QueryFinished, addr)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Client) LastSubmitter(ctx context.Context) (string, error) {
	out, err := c.call(ctx, ledger.QueryLastUser)
	if err != nil {
		return "", err
	}
	addr := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if addr == (common.Address{}) {
		return "", nil
	}
	return addr.Hex(), nil
}

func (c *Client) LastPayoutTime(ctx context.Context) (time.Time, error) {
	b, err := c.bigOf(ctx, ledger.QueryLastPayoutTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(b.Int64(), 0), nil
}

func (c *Client) PayoutCooldown(ctx context.Context) (time.Duration, error) {
	b, err := c.bigOf(ctx, ledger.QueryPayoutCooldown)
	if err != nil {
		return 0, err
	}
	return time.Duration(b.Int64()) * time.Second, nil
}

func (c *Client) transactOpts(ctx context.Context, op string) (*bind.TransactOpts, error) {
	if c.key == nil {
		return nil, &ledger.WriteError{Op: op, Err: ledger.ErrNoSigner}
	}
	if err := c.CheckNetwork(ctx); err != nil {
		return nil, &ledger.WriteError{Op: op, Err: err}
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, &ledger.WriteError{Op: op, Err: err}
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Client) SubmitCompletion(ctx context.Context) (ledger.Pending, error) {
	return c.transact(ctx, ledger.OpPerformSlide, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.contract.Transact(opts, ledger.OpPerformSlide)
	})
}

func (c *Client) SubmitClaim(ctx context.Context) (ledger.Pending, error) {
	return c.transact(ctx, ledger.OpPayoutLast, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.contract.Transact(opts, ledger.OpPayoutLast)
	})
}

// Fund sends value straight to the contract's receive hook.
func (c *Client) Fund(ctx context.Context, amount uint256.Int) (ledger.Pending, error) {
	if amount.IsZero() {
		return nil, ledger.Reverted(ledger.OpFund, "", ledger.ReasonZeroValue)
	}
	return c.transact(ctx, ledger.OpFund, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = amount.ToBig()
		return c.contract.Transfer(opts)
	})
}

func (c *Client) transact(ctx context.Context, op string, send func(*bind.TransactOpts) (*types.Transaction, error)) (ledger.Pending, error) {
	opts, err := c.transactOpts(ctx, op)
	if err != nil {
		return nil, err
	}
	tx, err := send(opts)
	if err != nil {
		// Gas estimation runs the call, so most reverts surface here.
		if reason, ok := RevertReason(err); ok {
			return nil, ledger.Reverted(op, "", reason)
		}
		return nil, ledger.WrapWrite(op, err)
	}
	c.log.Printf("evmledger op=%s tx=%s submitted", op, tx.Hash().Hex())
	return &pendingTx{c: c, op: op, tx: tx}, nil
}

type pendingTx struct {
	c  *Client
	op string
	tx *types.Transaction
}

func (p *pendingTx) TxHash() string { return p.tx.Hash().Hex() }

func (p *pendingTx) Wait(ctx context.Context) (ledger.Receipt, error) {
	hash := p.TxHash()
	rc, err := bind.WaitMined(ctx, p.c.eth, p.tx)
	if err != nil {
		return ledger.Receipt{}, &ledger.WriteError{Op: p.op, TxHash: hash, Err: err}
	}
	if rc.Status != types.ReceiptStatusSuccessful {
		reason := p.c.replayReason(ctx, p.tx, rc.BlockNumber)
		return ledger.Receipt{}, ledger.Reverted(p.op, hash, reason)
	}
	out := ledger.Receipt{TxHash: hash, Block: rc.BlockNumber.Uint64()}
	out.Events = p.c.DecodeLogs(rc.Logs)
	return out, nil
}

// replayReason re-runs a failed transaction at its block to recover the
// revert string. It returns "" when the node does not say.
func (c *Client) replayReason(ctx context.Context, tx *types.Transaction, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  c.from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := c.eth.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}
	reason, _ := RevertReason(err)
	return reason
}

// RevertReason extracts the Error(string) payload a node attaches to a
// reverted call.
func RevertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
	}
	if _, after, ok := strings.Cut(err.Error(), "execution reverted: "); ok && after != "" {
		return after, true
	}
	return "", false
}

// DecodeLogs turns contract logs into ledger events, skipping anything that
// is not one of ours.
func (c *Client) DecodeLogs(logs []*types.Log) []ledger.Event {
	var out []ledger.Event
	for _, lg := range logs {
		if lg == nil || lg.Address != c.address || len(lg.Topics) < 2 {
			continue
		}
		ev, err := c.abi.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		e := ledger.Event{
			Name: ev.Name,
			User: common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		}
		vals, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil {
			c.log.Printf("evmledger decode %s: %v", ev.Name, err)
			continue
		}
		switch ev.Name {
		case ledger.EventPuzzleCompleted:
			e.Total = vals[0].(uint8)
		case ledger.EventMilestoneReached:
			e.Milestone = vals[0].(uint8)
			e.Claimed = vals[1].(uint8)
		case ledger.EventBountyPaid:
			e.Amount = vals[0].(*big.Int).String()
		}
		out = append(out, e)
	}
	return out
}
