package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"slidebounty.ai/internal/eligibility"
	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/level"
	"slidebounty.ai/internal/progress"
	"slidebounty.ai/internal/puzzle"
	"slidebounty.ai/internal/session"
)

type app struct {
	s        *session.Session
	client   ledger.Client
	binder   Binder
	out      io.Writer
	decimals int
	symbol   string
	timeout  time.Duration
}

const help = `commands:
  move <tile>   slide a numbered tile into the empty slot
  shuffle       start the current level over with a new puzzle
  status        show progress, milestones and claim eligibility
  claim         claim the next milestone bounty
  fund <amount> send funds to the bounty contract
  id <address>  switch player
  quit`

func (a *app) load(ctx context.Context) error {
	_, err := a.s.Load(ctx)
	a.render()
	return err
}

// exec runs one command line and reports whether the REPL should stop.
func (a *app) exec(ctx context.Context, line string) bool {
	f := trimFields(line)
	if len(f) == 0 {
		return false
	}
	switch strings.ToLower(f[0]) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(a.out, help)
	case "move", "m":
		if len(f) != 2 {
			fmt.Fprintln(a.out, "usage: move <tile>")
			return false
		}
		a.move(ctx, f[1])
	case "shuffle":
		if err := a.s.Reshuffle(); err != nil {
			a.fail(err)
			return false
		}
		a.render()
	case "status":
		a.status(ctx)
	case "claim":
		a.claim(ctx)
	case "fund":
		if len(f) != 2 {
			fmt.Fprintf(a.out, "usage: fund <amount in %s>\n", a.symbol)
			return false
		}
		a.fund(ctx, f[1])
	case "id":
		if len(f) != 2 {
			fmt.Fprintln(a.out, "usage: id <address>")
			return false
		}
		a.switchIdentity(ctx, f[1])
	default:
		// A bare number is a move.
		if _, err := strconv.Atoi(f[0]); err == nil && len(f) == 1 {
			a.move(ctx, f[0])
			return false
		}
		fmt.Fprintf(a.out, "unknown command %q (try help)\n", f[0])
	}
	return false
}

func (a *app) move(ctx context.Context, arg string) {
	label, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(a.out, "bad tile %q\n", arg)
		return
	}
	v := a.s.View()
	if v.Finished {
		a.fail(session.ErrGameFinished)
		return
	}
	pos := tilePosition(v.Grid, label)
	if pos < 0 {
		fmt.Fprintf(a.out, "no tile %d on this board\n", label)
		return
	}
	moved, solved := a.s.Move(pos)
	if !moved {
		fmt.Fprintf(a.out, "tile %d is not next to the empty slot\n", label)
		return
	}
	a.render()
	if !solved {
		return
	}

	v = a.s.View()
	fmt.Fprintf(a.out, "solved level %d in %s moves; recording on the ledger...\n", v.Level, humanize.Comma(int64(v.Moves)))
	res, err := a.s.OnPuzzleSolved(ctx)
	if err != nil && !stale(err) {
		a.fail(err)
		return
	}
	if res.Finished {
		fmt.Fprintf(a.out, "all %d puzzles complete (tx %s)\n", level.Last, short(res.Receipt.TxHash))
	} else {
		fmt.Fprintf(a.out, "recorded (tx %s); on to the %s puzzle\n", short(res.Receipt.TxHash), humanize.Ordinal(res.Level))
	}
	for _, e := range res.Receipt.Events {
		if e.Name == ledger.EventMilestoneReached {
			fmt.Fprintf(a.out, "milestone %d reached; a bounty may be claimable\n", e.Milestone)
		}
	}
	a.warnStale(err)
	a.render()
}

func (a *app) claim(ctx context.Context) {
	res, err := a.s.OnClaimRequested(ctx)
	if err != nil && !stale(err) {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "bounty paid (tx %s): %s %s\n", short(res.Receipt.TxHash),
		ledger.FormatUnits(res.Paid, a.decimals, 4), a.symbol)
	if a.warnStale(err) {
		return
	}
	fmt.Fprintf(a.out, "rewards claimed %d/%d\n", res.Snapshot.RewardsClaimed, level.MilestoneCount())
}

func (a *app) fund(ctx context.Context, arg string) {
	amount, err := ledger.ParseUnits(arg, a.decimals)
	if err != nil {
		fmt.Fprintln(a.out, "!", err)
		return
	}
	rc, err := a.s.Fund(ctx, amount)
	if err != nil && !stale(err) {
		a.fail(err)
		return
	}
	fmt.Fprintf(a.out, "funded %s %s (tx %s)\n", ledger.FormatUnits(amount, a.decimals, 4), a.symbol, short(rc.TxHash))
	a.warnStale(err)
}

func (a *app) switchIdentity(ctx context.Context, id string) {
	if !ledger.IsAddress(id) {
		fmt.Fprintf(a.out, "%q is not an address\n", id)
		return
	}
	c, err := a.binder.Bind(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "!", err)
		return
	}
	_, err = a.s.SetIdentity(ctx, id, c)
	if errors.Is(err, session.ErrAlreadyInProgress) {
		a.binder.Release(c)
		a.fail(err)
		return
	}
	if a.client != c {
		a.binder.Release(a.client)
	}
	a.client = c
	if err != nil {
		a.fail(err)
	}
	a.render()
}

func (a *app) status(ctx context.Context) {
	snap, ok := a.s.Snapshot()
	if !ok {
		if _, err := a.s.Load(ctx); err != nil {
			a.fail(err)
			return
		}
		snap, _ = a.s.Snapshot()
	}
	v := a.s.View()
	fmt.Fprintf(a.out, "player   %s\n", v.Identity)
	fmt.Fprintf(a.out, "level    %d/%d (%s)\n", v.Level, level.Last, level.Difficulty(v.Level))
	fmt.Fprintf(a.out, "solved   %d  reached %d/%d  claimed %d/%d\n", snap.PuzzlesCompleted,
		level.ReachedMilestones(snap.PuzzlesCompleted), level.MilestoneCount(), snap.RewardsClaimed, level.MilestoneCount())
	fmt.Fprintf(a.out, "bounty   %s %s  balance %s %s\n",
		ledger.FormatUnits(snap.BountyAmount, a.decimals, 4), a.symbol,
		ledger.FormatUnits(snap.ContractBalance, a.decimals, 4), a.symbol)
	fmt.Fprintf(a.out, "track    %s\n", milestoneTrack(snap))

	cc, err := eligibility.ReadContext(ctx, a.client, v.Identity, a.timeout)
	if err != nil {
		fmt.Fprintln(a.out, "claim    unknown:", err)
		return
	}
	if !cc.LastPayoutTime.IsZero() && cc.LastPayoutTime.Unix() > 0 {
		fmt.Fprintf(a.out, "payout   last %s\n", humanize.Time(cc.LastPayoutTime))
	}
	if snap.FullyClaimed() {
		fmt.Fprintln(a.out, "claim    every milestone has been claimed")
		return
	}
	now := time.Now()
	d := eligibility.Evaluate(cc, snap, now)
	switch {
	case d.Eligible():
		fmt.Fprintf(a.out, "claim    milestone %d is claimable\n", snap.NextMilestone.Number)
	case d.Reason == eligibility.CooldownActive:
		fmt.Fprintf(a.out, "claim    %s (opens %s)\n", d.Message(), humanize.Time(now.Add(d.Remaining)))
	default:
		fmt.Fprintf(a.out, "claim    %s\n", d.Message())
	}
}

// stale reports a flow whose mutation confirmed but whose refresh failed.
func stale(err error) bool {
	var sr *session.StaleRefresh
	return errors.As(err, &sr)
}

func (a *app) warnStale(err error) bool {
	if !stale(err) {
		return false
	}
	fmt.Fprintln(a.out, "!", session.Message(err))
	return true
}

func (a *app) fail(err error) {
	fmt.Fprintln(a.out, "!", session.Message(err))
}

func (a *app) render() {
	v := a.s.View()
	if v.Finished {
		fmt.Fprintf(a.out, "game complete: all %d levels solved\n", level.Last)
		return
	}
	fmt.Fprintf(a.out, "level %d (%s)  moves %d\n", v.Level, level.Difficulty(v.Level), v.Moves)
	fmt.Fprint(a.out, renderGrid(v.Grid))
}

// renderGrid prints tiles as 1-based labels with a blank for the empty slot.
func renderGrid(g puzzle.Grid) string {
	var b strings.Builder
	for r := 0; r < g.Size; r++ {
		for c := 0; c < g.Size; c++ {
			t := g.Tiles[r*g.Size+c]
			if t == g.EmptyTile() {
				b.WriteString("   .")
			} else {
				fmt.Fprintf(&b, "%4d", t+1)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func tilePosition(g puzzle.Grid, label int) int {
	if label < 1 || label >= g.Size*g.Size {
		return -1
	}
	for i, t := range g.Tiles {
		if t == label-1 {
			return i
		}
	}
	return -1
}

func milestoneTrack(s progress.Snapshot) string {
	parts := make([]string, 0, level.MilestoneCount())
	for _, m := range s.Milestones() {
		parts = append(parts, fmt.Sprintf("%d:%s", m.Number, strings.ToLower(string(m.Status))))
	}
	return strings.Join(parts, " ")
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-4:]
}
