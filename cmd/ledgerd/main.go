package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"slidebounty.ai/internal/config"
	"slidebounty.ai/internal/ledger/memledger"
	"slidebounty.ai/internal/persistence/indexdb"
	plog "slidebounty.ai/internal/persistence/log"
	"slidebounty.ai/internal/persistence/snapshot"
	"slidebounty.ai/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/slidebounty.yaml", "config path (empty for built-in defaults)")
		addr       = flag.String("addr", "", "http listen address (overrides gateway.addr)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides data_dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite snapshot index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[ledgerd] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Gateway.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		cfg.Index.Path = ""
		cfg.Normalize()
	}

	ledgerDir := filepath.Join(cfg.DataDir, "ledgers", cfg.Gateway.LedgerID)
	snapDir := filepath.Join(ledgerDir, "snapshots")
	_ = os.MkdirAll(snapDir, 0o755)

	l, err := newLedger(cfg)
	if err != nil {
		logger.Fatalf("ledger: %v", err)
	}
	defer l.Close()

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.LedgerID != "" && snap.Header.LedgerID != cfg.Gateway.LedgerID {
			logger.Fatalf("snapshot ledger id mismatch: config=%s snap=%s", cfg.Gateway.LedgerID, snap.Header.LedgerID)
		}
		if err := l.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s block=%d", filepath.Base(snapshotToLoad), l.BlockNumber())
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB && cfg.Index.Enabled {
		idx, err = indexdb.OpenSQLite(filepath.Join(ledgerDir, "index", "ledger.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
	}

	receipts := plog.NewReceiptLogger(ledgerDir)
	defer receipts.Close()

	gw, err := ws.NewServer(l, cfg.Gateway.LedgerID, logger)
	if err != nil {
		logger.Fatalf("gateway: %v", err)
	}
	gw.SetReceiptWriter(receipts)

	snaps := &snapshotter{
		ledger:   l,
		ledgerID: cfg.Gateway.LedgerID,
		dir:      snapDir,
		idx:      idx,
		logger:   logger,
		lastBlk:  l.BlockNumber(),
	}

	ctx, cancel := signalContext()
	defer cancel()

	if every := cfg.Gateway.SnapshotEvery; every > 0 {
		go func() {
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if _, _, err := snaps.take(false); err != nil {
						logger.Printf("snapshot: %v", err)
					}
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		snap := l.ExportSnapshot(cfg.Gateway.LedgerID)

		fmt.Fprintf(rw, "# HELP slidebounty_ledger_block Current simulated block height.\n")
		fmt.Fprintf(rw, "# TYPE slidebounty_ledger_block gauge\n")
		fmt.Fprintf(rw, "slidebounty_ledger_block{ledger=%q} %d\n", cfg.Gateway.LedgerID, snap.Header.Block)

		fmt.Fprintf(rw, "# HELP slidebounty_ledger_players Players with on-ledger progress.\n")
		fmt.Fprintf(rw, "# TYPE slidebounty_ledger_players gauge\n")
		fmt.Fprintf(rw, "slidebounty_ledger_players{ledger=%q} %d\n", cfg.Gateway.LedgerID, len(snap.Players))

		fmt.Fprintf(rw, "# HELP slidebounty_ledger_queued Mutations awaiting confirmation.\n")
		fmt.Fprintf(rw, "# TYPE slidebounty_ledger_queued gauge\n")
		fmt.Fprintf(rw, "slidebounty_ledger_queued{ledger=%q} %d\n", cfg.Gateway.LedgerID, l.Queued())

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP slidebounty_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE slidebounty_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "slidebounty_index_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP slidebounty_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE slidebounty_index_dropped_total counter\n")
			fmt.Fprintf(rw, "slidebounty_index_dropped_total{kind=%q} %d\n", "event", s.DropEventTotal)
			fmt.Fprintf(rw, "slidebounty_index_dropped_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
		}
	})

	if envBool("SB_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			snap := l.ExportSnapshot(cfg.Gateway.LedgerID)
			snap.Events = nil
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				LedgerID string            `json:"ledger_id"`
				Block    uint64            `json:"block"`
				Queued   int               `json:"queued"`
				State    snapshot.LedgerV1 `json:"state"`
			}{
				LedgerID: cfg.Gateway.LedgerID,
				Block:    snap.Header.Block,
				Queued:   l.Queued(),
				State:    snap,
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path, block, err := snaps.take(true)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "block": block, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "block": block, "path": path})
		})
	} else {
		logger.Printf("admin endpoints disabled (SB_ENABLE_ADMIN_HTTP=false)")
	}
	mux.HandleFunc("/v1/ledger", gw.Handler())

	srv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("ledger=%s listening on %s", cfg.Gateway.LedgerID, cfg.Gateway.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if _, _, err := snaps.take(false); err != nil {
		logger.Printf("final snapshot: %v", err)
	}
}

func newLedger(cfg config.Config) (*memledger.Ledger, error) {
	bounty, err := cfg.Sim.BountyAmount()
	if err != nil {
		return nil, err
	}
	balance, err := cfg.Sim.InitialBalanceAmount()
	if err != nil {
		return nil, err
	}
	return memledger.New(memledger.Config{
		Owner:          cfg.Sim.Owner,
		Bounty:         bounty,
		InitialBalance: balance,
		PayoutCooldown: cfg.Sim.PayoutCooldown,
		ConfirmDelay:   cfg.Sim.ConfirmDelay,
	}), nil
}

type snapshotter struct {
	ledger   *memledger.Ledger
	ledgerID string
	dir      string
	idx      *indexdb.SQLiteIndex
	logger   *log.Logger

	mu      sync.Mutex
	lastBlk uint64
}

// take writes a snapshot unless nothing was confirmed since the last one and
// force is false.
func (s *snapshotter) take(force bool) (string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.ledger.ExportSnapshot(s.ledgerID)
	block := snap.Header.Block
	if !force && block == s.lastBlk {
		return "", block, nil
	}
	path := filepath.Join(s.dir, snapshot.FileName(block))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", block, err
	}
	s.lastBlk = block
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	s.logger.Printf("snapshot block=%d players=%d path=%s", block, len(snap.Players), path)
	return path, block, nil
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

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
