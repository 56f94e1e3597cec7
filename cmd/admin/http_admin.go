package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"slidebounty.ai/internal/persistence/snapshot"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8090", "ledgerd base url")
	raw := fs.Bool("raw", false, "print the response body as-is")
	_ = fs.Parse(args)

	b := adminRequest(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
	if *raw {
		fmt.Println(string(b))
		return
	}
	var resp struct {
		LedgerID string            `json:"ledger_id"`
		Block    uint64            `json:"block"`
		Queued   int               `json:"queued"`
		State    snapshot.LedgerV1 `json:"state"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("ledger=%s block=%d queued=%d\n", resp.LedgerID, resp.Block, resp.Queued)
	fmt.Printf("balance=%s bounty=%s cooldown=%ds last_user=%s\n",
		resp.State.Balance, resp.State.Bounty, resp.State.PayoutCooldownSec, resp.State.LastUser)
	for _, p := range resp.State.Players {
		fmt.Printf("  %s completed=%d claimed=%d\n", p.Identity, p.Completed, p.Claimed)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8090", "ledgerd base url")
	_ = fs.Parse(args)

	fmt.Println(string(adminRequest(http.MethodPost, *baseURL, "/admin/v1/snapshot", 10*time.Second)))
}

// adminRequest exits the process on transport errors and non-2xx replies.
func adminRequest(method, baseURL, path string, timeout time.Duration) []byte {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	return b
}
