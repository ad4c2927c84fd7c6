package seeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote"
	"github.com/Lumos-Labs-HQ/orgseed/internal/rules"
	"github.com/Lumos-Labs-HQ/orgseed/internal/runlog"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/google/uuid"
)

var ErrSessionActive = errors.New("session is already running")

// Sessions starts and tracks load runs. Runs are independent: each gets
// its own identifier pool, record contexts and rule snapshot.
type Sessions struct {
	remote    remote.Store
	snapshots rules.SnapshotStore
	defaults  Options
	tables    *picklist.Cache

	mu   sync.Mutex
	runs map[string]*Run
}

func NewSessions(store remote.Store, snapshots rules.SnapshotStore, defaults Options) *Sessions {
	tables := defaults.Tables
	if tables == nil {
		tables = picklist.NewCache()
	}
	return &Sessions{
		remote:    store,
		snapshots: snapshots,
		defaults:  defaults,
		tables:    tables,
		runs:      make(map[string]*Run),
	}
}

// Run is one asynchronous load session.
type Run struct {
	ID        string
	StartedAt time.Time

	seeder *Seeder
	cancel context.CancelFunc
	done   chan struct{}

	summary *runlog.Summary
	err     error
}

type RunInfo struct {
	ID        string    `json:"id"`
	Phase     Phase     `json:"phase"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Done      bool      `json:"done"`
}

// Start launches a run in the background and returns immediately. An
// empty sessionID gets a generated one. The run outlives ctx's
// cancellation; use Run.Cancel to stop it.
func (s *Sessions) Start(ctx context.Context, sessionID string, configs []types.GenerationConfig, schemas map[string]*types.SchemaDescriptor) (*Run, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := types.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.runs[sessionID]; ok && !existing.finished() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, sessionID)
	}

	opts := s.defaults
	opts.Session = sessionID
	opts.Tables = s.tables

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{
		ID:        sessionID,
		StartedAt: time.Now().UTC(),
		seeder:    New(opts, s.remote, s.snapshots),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.runs[sessionID] = run
	s.mu.Unlock()

	go func() {
		defer close(run.done)
		defer cancel()
		run.summary, run.err = run.seeder.Run(runCtx, configs, schemas)
	}()
	return run, nil
}

func (s *Sessions) Get(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

// List returns every run started by this process, oldest first.
func (s *Sessions) List() []RunInfo {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, run.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].StartedAt.Before(infos[j].StartedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// CancelAll asks every unfinished run to stop and waits for them.
func (s *Sessions) CancelAll() {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.Unlock()

	for _, run := range runs {
		run.Cancel()
	}
	for _, run := range runs {
		<-run.done
	}
}

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Run) Info() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Phase:     r.seeder.Phase(),
		Status:    r.seeder.Summary().Status,
		StartedAt: r.StartedAt,
		Done:      r.finished(),
	}
}

// Cancel stops the run before its next entity type. The batch in flight
// completes and rule restoration still runs.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is finalized.
func (r *Run) Wait() (*runlog.Summary, error) {
	<-r.done
	return r.summary, r.err
}

// Summary is the live summary while running and the final one afterwards.
func (r *Run) Summary() runlog.Summary {
	return r.seeder.Summary()
}

func (r *Run) Subscribe(ctx context.Context) <-chan types.ProgressEvent {
	return r.seeder.Events().Subscribe(ctx)
}

func (r *Run) Events() []types.ProgressEvent {
	return r.seeder.Events().History()
}

func (r *Run) Pool() map[string]int {
	return r.seeder.Pool().Counts()
}
