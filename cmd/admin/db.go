package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"slidebounty.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	ledgerID := fs.String("ledger", "", "read ledgerd's index for this ledger id instead of the player index")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	identity := fs.String("identity", "", "identity filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "events"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if *ledgerID != "" {
			path = filepath.Join(ledgerDir(*dataDir, *ledgerID), "index", "ledger.sqlite")
		} else {
			path = filepath.Join(*dataDir, "index", "slidebounty.sqlite")
		}
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch q {
	case "events":
		evs, err := indexdb.RecentEvents(ctx, db, *identity, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, e := range evs {
			printJSON(e)
		}

	case "summary":
		rows, err := indexdb.FlowSummary(ctx, db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "snapshots":
		rows, err := indexdb.Snapshots(ctx, db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (events, summary, snapshots)\n", q)
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
