package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	plog "slidebounty.ai/internal/persistence/log"
	"slidebounty.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "journal":
			journalCmd(os.Args[2:])
			return
		case "receipts":
			receiptsCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the journal and, when a ledger is named, its receipt logs
// and snapshots.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	ledgerID := fs.String("ledger", "", "ledger id served by ledgerd (optional)")
	_ = fs.Parse(args)

	dirs := []struct{ dir, prefix string }{{filepath.Join(*dataDir, "journal"), "events"}}
	if *ledgerID != "" {
		base := ledgerDir(*dataDir, *ledgerID)
		dirs = append(dirs, struct{ dir, prefix string }{filepath.Join(base, "receipts"), "receipts"})
	}
	for _, d := range dirs {
		files, err := plog.Files(d.dir, d.prefix)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			continue
		}
		for _, f := range files {
			fmt.Printf("%s\t%s\n", f, fileSize(f))
		}
	}
	if *ledgerID != "" {
		dir := filepath.Join(ledgerDir(*dataDir, *ledgerID), "snapshots")
		ents, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range ents {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
				p := filepath.Join(dir, e.Name())
				fmt.Printf("%s\t%s\n", p, fileSize(p))
			}
		}
	}
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	identity := fs.String("identity", "", "identity filter (case-insensitive)")
	flow := fs.String("flow", "", "flow filter (load, identity, solve, claim, fund, shuffle)")
	_ = fs.Parse(args)

	events, err := plog.ReadEvents(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read journal:", err)
		os.Exit(1)
	}
	for _, e := range events {
		if *identity != "" && !strings.EqualFold(e.Identity, *identity) {
			continue
		}
		if *flow != "" && e.Flow != *flow {
			continue
		}
		printJSON(e)
	}
}

func receiptsCmd(args []string) {
	fs := flag.NewFlagSet("receipts", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	ledgerID := fs.String("ledger", "sim-1", "ledger id")
	failedOnly := fs.Bool("failed", false, "only failed mutations")
	_ = fs.Parse(args)

	files, err := plog.Files(filepath.Join(ledgerDir(*dataDir, *ledgerID), "receipts"), "receipts")
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, f := range files {
		err := plog.ScanFile(f, func(line []byte) error {
			if *failedOnly && !strings.Contains(string(line), `"ok":false`) {
				return nil
			}
			fmt.Println(string(line))
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
	}
}

// inspectCmd prints a ledger snapshot without loading it into a ledger.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	ledgerID := fs.String("ledger", "sim-1", "ledger id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	withEvents := fs.Bool("events", false, "include the contract event log")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = snapshot.Latest(filepath.Join(ledgerDir(*dataDir, *ledgerID), "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run ledgerd until it writes one")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if !*withEvents {
		snap.Events = nil
	}
	printJSON(snap)
}

func ledgerDir(dataDir, ledgerID string) string {
	return filepath.Join(dataDir, "ledgers", ledgerID)
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
