package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"slidebounty.ai/internal/config"
	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/ledger/evmledger"
	"slidebounty.ai/internal/ledger/memledger"
	"slidebounty.ai/internal/ledger/wsledger"
	"slidebounty.ai/internal/persistence/indexdb"
	plog "slidebounty.ai/internal/persistence/log"
	"slidebounty.ai/internal/session"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/slidebounty.yaml", "config path (empty for built-in defaults)")
		identity   = flag.String("identity", "", "player address (overrides identity)")
		backend    = flag.String("backend", "", "memory | ws | evm (overrides ledger.backend)")
		url        = flag.String("url", "", "gateway ws url (overrides ledger.url)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides data_dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
		seed       = flag.Int64("seed", 0, "puzzle seed (0 seeds from the clock)")
		verbose    = flag.Bool("v", false, "log flow outcomes to stderr")
	)
	flag.Parse()

	logger := log.New(io.Discard, "[slidebounty] ", log.LstdFlags|log.Lmicroseconds)
	if *verbose {
		logger.SetOutput(os.Stderr)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *identity != "" {
		cfg.Identity = *identity
	}
	if *backend != "" {
		cfg.Ledger.Backend = *backend
	}
	if *url != "" {
		cfg.Ledger.URL = *url
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.Index.Path = ""
	}
	if *seed != 0 {
		cfg.Game.Seed = *seed
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	binder, closeLedger, err := openBinder(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer closeLedger()

	id := cfg.Identity
	if b, ok := binder.(signerBinder); ok {
		id = b.signer
	}
	if id == "" {
		fatal(errors.New("no identity: set identity in the config or pass -identity"))
	}
	client, err := binder.Bind(ctx, id)
	if err != nil {
		fatal(err)
	}

	journal := plog.NewJournal(cfg.DataDir)
	defer journal.Close()
	sinks := []session.EventSink{journal}
	if !*disableDB && cfg.Index.Enabled {
		idx, err := indexdb.OpenSQLite(cfg.Index.Path)
		if err != nil {
			fatal(fmt.Errorf("open index: %w", err))
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}

	s, err := session.New(session.Config{
		Identity:          id,
		Client:            client,
		Logger:            logger,
		Sinks:             sinks,
		Seed:              cfg.Game.Seed,
		ShuffleIterations: cfg.Game.ShuffleIterations,
		ReadTimeout:       cfg.Game.ReadTimeout,
	})
	if err != nil {
		fatal(err)
	}

	a := &app{
		s:        s,
		client:   client,
		binder:   binder,
		out:      os.Stdout,
		decimals: cfg.Ledger.Decimals,
		symbol:   symbolFor(cfg.Ledger.Backend),
		timeout:  cfg.Game.ReadTimeout,
	}
	if err := a.load(ctx); err != nil {
		fmt.Fprintln(os.Stdout, "!", session.Message(err))
	}
	a.repl(ctx, os.Stdin)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "slidebounty:", err)
	os.Exit(1)
}

func symbolFor(backend string) string {
	if backend == config.BackendEVM {
		return "POL"
	}
	return "units"
}

// Binder hands out a ledger client acting as identity. Release drops a
// client the caller no longer uses.
type Binder interface {
	Bind(ctx context.Context, identity string) (ledger.Client, error)
	Release(c ledger.Client)
}

type memBinder struct{ l *memledger.Ledger }

func (b memBinder) Bind(_ context.Context, identity string) (ledger.Client, error) {
	return b.l.Client(identity), nil
}

func (memBinder) Release(ledger.Client) {}

type wsBinder struct {
	url    string
	logger *log.Logger
	conns  []*wsledger.Client
}

func (b *wsBinder) Bind(ctx context.Context, identity string) (ledger.Client, error) {
	c, err := wsledger.Dial(ctx, b.url, identity, b.logger)
	if err != nil {
		return nil, err
	}
	b.conns = append(b.conns, c)
	return c, nil
}

// Release closes a connection dialed by Bind.
func (b *wsBinder) Release(c ledger.Client) {
	for i, conn := range b.conns {
		if ledger.Client(conn) == c {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			if err := conn.Close(); err != nil {
				b.logger.Printf("close ledger connection: %v", err)
			}
			return
		}
	}
}

// signerBinder serves the one identity its key signs for.
type signerBinder struct {
	c      *evmledger.Client
	signer string
}

func (b signerBinder) Bind(_ context.Context, identity string) (ledger.Client, error) {
	if b.signer == "" || !ledger.SameIdentity(identity, b.signer) {
		return nil, fmt.Errorf("%w for %s", ledger.ErrNoSigner, identity)
	}
	return b.c, nil
}

// Release is a no-op: the one client lives until exit.
func (signerBinder) Release(ledger.Client) {}

func openBinder(ctx context.Context, cfg config.Config, logger *log.Logger) (Binder, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendWS:
		b := &wsBinder{url: cfg.Ledger.URL, logger: logger}
		return b, func() {
			for _, c := range b.conns {
				_ = c.Close()
			}
		}, nil

	case config.BackendEVM:
		c, err := evmledger.Dial(ctx, evmledger.Config{
			RPCURL:     cfg.Ledger.RPCURL,
			Contract:   cfg.Ledger.Contract,
			ChainID:    cfg.Ledger.ChainID,
			PrivateKey: cfg.Ledger.PrivateKey(),
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return signerBinder{c: c, signer: c.Identity()}, func() {}, nil
	}

	bounty, err := cfg.Sim.BountyAmount()
	if err != nil {
		return nil, nil, err
	}
	balance, err := cfg.Sim.InitialBalanceAmount()
	if err != nil {
		return nil, nil, err
	}
	l := memledger.New(memledger.Config{
		Owner:          cfg.Sim.Owner,
		Bounty:         bounty,
		InitialBalance: balance,
		PayoutCooldown: cfg.Sim.PayoutCooldown,
		ConfirmDelay:   cfg.Sim.ConfirmDelay,
	})
	return memBinder{l: l}, l.Close, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func (a *app) repl(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	a.prompt()
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if a.exec(ctx, sc.Text()) {
			return
		}
		a.prompt()
	}
}

func (a *app) prompt() { fmt.Fprint(a.out, "slidebounty> ") }

func trimFields(line string) []string { return strings.Fields(strings.TrimSpace(line)) }
