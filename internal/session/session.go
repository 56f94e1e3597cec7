// Package session orchestrates one player's puzzle and reward flows against
// the ledger.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/level"
	"slidebounty.ai/internal/progress"
	"slidebounty.ai/internal/puzzle"
)

type Config struct {
	Identity string
	Client   ledger.Client

	Logger *log.Logger
	Sinks  []EventSink

	// Rand drives shuffles. Nil seeds a source from Seed, or from the clock
	// when Seed is zero.
	Rand              *rand.Rand
	Seed              int64
	ShuffleIterations int

	// ReadTimeout bounds each batch of ledger reads. Zero means no bound.
	ReadTimeout time.Duration
	Now         func() time.Time
}

// Session is the state of one identity's game. All exported methods are safe
// for concurrent use; each flow rejects re-entry while it is in flight.
type Session struct {
	id     string
	logger *log.Logger
	sinks  []EventSink
	now    func() time.Time

	iterations  int
	readTimeout time.Duration

	mu       sync.Mutex
	rng      *rand.Rand
	identity string
	client   ledger.Client
	level    int
	puzzle   *puzzle.Instance
	finished bool

	state *progress.State

	submitting atomic.Bool
	claiming   atomic.Bool
	funding    atomic.Bool
}

func New(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, errors.New("session: nil ledger client")
	}
	if cfg.Identity == "" {
		return nil, errors.New("session: empty identity")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	iterations := cfg.ShuffleIterations
	if iterations <= 0 {
		iterations = puzzle.DefaultShuffleIterations
	}

	s := &Session{
		id:          uuid.NewString(),
		logger:      logger,
		sinks:       cfg.Sinks,
		now:         now,
		iterations:  iterations,
		readTimeout: cfg.ReadTimeout,
		rng:         rng,
		identity:    cfg.Identity,
		client:      cfg.Client,
		level:       level.First,
		state:       progress.NewState(cfg.ReadTimeout),
	}
	s.puzzle = s.newPuzzleLocked(level.First)
	return s, nil
}

func (s *Session) ID() string { return s.id }

// newPuzzleLocked shuffles a fresh instance for lvl. A shuffle that fails the
// parity check is a local bug, not a player-facing error.
func (s *Session) newPuzzleLocked(lvl int) *puzzle.Instance {
	in, err := puzzle.NewInstance(s.rng, level.GridSize(lvl), s.iterations)
	if err != nil {
		panic(fmt.Sprintf("session: generate level %d: %v", lvl, err))
	}
	return in
}

// View is a copy of the session state for rendering.
type View struct {
	SessionID string
	Identity  string
	Level     int
	Finished  bool

	Grid   puzzle.Grid
	Moves  int
	Solved bool

	Snapshot    progress.Snapshot
	Loaded      bool
	RefreshedAt time.Time

	Submitting bool
	Claiming   bool
	Funding    bool
}

func (s *Session) View() View {
	snap, loaded := s.state.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:   s.id,
		Identity:    s.identity,
		Level:       s.level,
		Finished:    s.finished,
		Snapshot:    snap,
		Loaded:      loaded,
		RefreshedAt: s.state.RefreshedAt(),
		Submitting:  s.submitting.Load(),
		Claiming:    s.claiming.Load(),
		Funding:     s.funding.Load(),
	}
	if s.puzzle != nil {
		v.Grid = s.puzzle.Grid()
		v.Moves = s.puzzle.Moves()
		v.Solved = s.puzzle.Solved()
	}
	return v
}

func (s *Session) Level() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Move clicks the tile at position target. Illegal clicks are ignored.
func (s *Session) Move(target int) (moved, solved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.puzzle == nil {
		return false, false
	}
	if err := s.puzzle.Move(target); err != nil {
		return false, s.puzzle.Solved()
	}
	return true, s.puzzle.Solved()
}

// Reshuffle replaces the current puzzle with a new one for the same level.
func (s *Session) Reshuffle() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrGameFinished
	}
	s.puzzle = s.newPuzzleLocked(s.level)
	lvl := s.level
	s.mu.Unlock()
	s.emit(Event{Flow: FlowShuffle, Level: lvl, Result: ResultOK})
	return nil
}

// Load reads progress and places the player on the level it implies.
func (s *Session) Load(ctx context.Context) (progress.Snapshot, error) {
	snap, err := s.refresh(ctx)
	if err != nil {
		s.finish(Event{Flow: FlowLoad, Level: s.Level()}, err)
		return snap, err
	}
	s.mu.Lock()
	s.applySnapshotLocked(snap)
	lvl := s.level
	s.mu.Unlock()
	s.finish(Event{Flow: FlowLoad, Level: lvl}, nil)
	return snap, nil
}

// applySnapshotLocked moves to the level the ledger reports. The current
// puzzle survives when the level does not change.
func (s *Session) applySnapshotLocked(snap progress.Snapshot) {
	if snap.HasFinishedGame {
		s.finished = true
		s.level = level.Last
		s.puzzle = nil
		return
	}
	s.finished = false
	lvl := snap.CurrentLevel()
	if lvl != s.level || s.puzzle == nil {
		s.level = lvl
		s.puzzle = s.newPuzzleLocked(lvl)
	}
}

// SetIdentity switches the session to another account. Cached progress is
// dropped and reloaded for the new identity. It holds every flow guard for
// the whole switch, so it fails with ErrAlreadyInProgress while a flow runs
// and no flow can start until it returns.
func (s *Session) SetIdentity(ctx context.Context, identity string, client ledger.Client) (progress.Snapshot, error) {
	if identity == "" || client == nil {
		return progress.Snapshot{}, errors.New("session: identity and client are required")
	}
	if !s.acquireAll() {
		return progress.Snapshot{}, ErrAlreadyInProgress
	}
	defer s.releaseAll()

	s.mu.Lock()
	s.identity = identity
	s.client = client
	s.finished = false
	s.level = level.First
	s.puzzle = s.newPuzzleLocked(level.First)
	s.mu.Unlock()
	s.state.Reset()
	s.logger.Printf("session=%s identity=%s", s.id, identity)

	snap, err := s.refresh(ctx)
	if err == nil {
		s.mu.Lock()
		s.applySnapshotLocked(snap)
		s.mu.Unlock()
	}
	s.finish(Event{Flow: FlowIdentity, Level: s.Level()}, err)
	return snap, err
}

// acquireAll takes every flow guard or none of them.
func (s *Session) acquireAll() bool {
	guards := s.guards()
	for i, g := range guards {
		if !g.CompareAndSwap(false, true) {
			for _, h := range guards[:i] {
				h.Store(false)
			}
			return false
		}
	}
	return true
}

func (s *Session) releaseAll() {
	for _, g := range s.guards() {
		g.Store(false)
	}
}

func (s *Session) guards() []*atomic.Bool {
	return []*atomic.Bool{&s.submitting, &s.claiming, &s.funding}
}

func (s *Session) binding() (string, ledger.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.client
}

// refresh re-reads progress. On failure the cached snapshot stays in place
// and is returned.
func (s *Session) refresh(ctx context.Context) (progress.Snapshot, error) {
	id, c := s.binding()
	snap, err := s.state.Refresh(ctx, c, id)
	if err != nil {
		return snap, &ReadFailure{Err: err}
	}
	return snap, nil
}

// confirmed runs the refresh that follows a confirmed mutation. A failed
// read does not undo the mutation, so it is reported as *StaleRefresh.
func (s *Session) confirmed(ctx context.Context, op, txHash string) (progress.Snapshot, error) {
	snap, err := s.refresh(ctx)
	var rf *ReadFailure
	if errors.As(err, &rf) {
		return snap, &StaleRefresh{Op: op, TxHash: txHash, Err: rf}
	}
	return snap, err
}

// Snapshot returns the cached progress, if any has been read.
func (s *Session) Snapshot() (progress.Snapshot, bool) { return s.state.Snapshot() }

func resultOf(err error) string {
	var (
		cr *ClaimRejected
		rf *ReadFailure
		wf *WriteFailure
		sr *StaleRefresh
	)
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &sr):
		return ResultOKStale
	case errors.Is(err, ErrAlreadyInProgress):
		return ResultBusy
	case errors.As(err, &cr), errors.Is(err, ErrAllClaimed), errors.Is(err, ErrGameFinished),
		errors.Is(err, ErrPuzzleNotSolved), errors.Is(err, ErrZeroAmount):
		return ResultRejected
	case errors.As(err, &wf):
		return ResultWriteFailure
	case errors.As(err, &rf):
		return ResultReadFailure
	}
	return ResultError
}

// finish logs and emits the outcome of a flow.
func (s *Session) finish(ev Event, err error) {
	ev.Result = resultOf(err)
	ev.Code = Code(err)
	ev.Message = Message(err)
	if err != nil {
		s.logger.Printf("session=%s flow=%s level=%d result=%s err=%v", s.id, ev.Flow, ev.Level, ev.Result, err)
	} else {
		s.logger.Printf("session=%s flow=%s level=%d result=ok tx=%s", s.id, ev.Flow, ev.Level, ev.TxHash)
	}
	s.emit(ev)
}

func (s *Session) emit(ev Event) {
	if len(s.sinks) == 0 {
		return
	}
	ev.ID = uuid.NewString()
	ev.At = s.now().UTC()
	ev.SessionID = s.id
	ev.Identity = s.Identity()
	if snap, ok := s.state.Snapshot(); ok {
		ev.Completed = snap.PuzzlesCompleted
		ev.Claimed = snap.RewardsClaimed
	}
	for _, sink := range s.sinks {
		if err := sink.WriteEvent(ev); err != nil {
			s.logger.Printf("session=%s event sink: %v", s.id, err)
		}
	}
}
