package seeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/graph"
	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/refs"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote"
	"github.com/Lumos-Labs-HQ/orgseed/internal/rules"
	"github.com/Lumos-Labs-HQ/orgseed/internal/runlog"
	"github.com/Lumos-Labs-HQ/orgseed/internal/state"
	"github.com/Lumos-Labs-HQ/orgseed/internal/synth"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"golang.org/x/sync/errgroup"
)

type diagKey struct {
	kind   types.DiagnosticKind
	entity string
	field  string
}

// Seeder runs one load session: sequence, generate, create, record.
type Seeder struct {
	opts      Options
	remote    remote.Store
	snapshots rules.SnapshotStore
	log       logger.Logger
	tables    *picklist.Cache
	pool      *refs.Pool
	synth     *synth.Synthesizer
	events    *Broadcaster

	mu          sync.Mutex
	phase       Phase
	summary     runlog.Summary
	diagnostics map[diagKey]*runlog.DiagnosticCount
}

func New(opts Options, store remote.Store, snapshots rules.SnapshotStore) *Seeder {
	tables := opts.Tables
	if tables == nil {
		tables = picklist.NewCache()
	}
	pool := refs.NewPool()

	return &Seeder{
		opts:      opts,
		remote:    store,
		snapshots: snapshots,
		log:       logger.OrDefault(opts.Log),
		tables:    tables,
		pool:      pool,
		synth: synth.New(synth.Options{
			Session:       opts.Session,
			Seed:          opts.Seed,
			ExcludeFields: opts.Exclude,
			Overrides:     opts.Overrides,
		}, pool, tables),
		events:      NewBroadcaster(),
		phase:       PhaseInitializing,
		diagnostics: make(map[diagKey]*runlog.DiagnosticCount),
	}
}

func (s *Seeder) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Seeder) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *Seeder) Events() *Broadcaster {
	return s.events
}

// Pool exposes the identifiers created so far.
func (s *Seeder) Pool() *refs.Pool {
	return s.pool
}

// Summary returns a copy of the session summary as it stands.
func (s *Seeder) Summary() runlog.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.summary
	out.Results = append([]types.LoadResult(nil), s.summary.Results...)
	return out
}

// Run loads every enabled entity type in configs. schemas may be nil or
// partial; missing descriptors are fetched from the remote store. Only a
// setup failure or a durable-log failure is returned as an error; every
// other failure is recorded in the summary.
func (s *Seeder) Run(ctx context.Context, configs []types.GenerationConfig, schemas map[string]*types.SchemaDescriptor) (*runlog.Summary, error) {
	started := time.Now()
	writer := runlog.NewWriter(s.opts.LogDir, runlog.SessionInfo{
		SessionID: s.opts.Session,
		StartedAt: started.UTC(),
		Remote:    s.opts.RemoteName,
	})
	defer s.events.Close()
	defer s.tables.Forget(s.opts.Session)

	s.mu.Lock()
	s.summary = runlog.Summary{Status: StatusRunning, StartedAt: started.UTC()}
	s.mu.Unlock()

	s.log.Infof("🌱 Starting load session %s...", s.opts.Session)

	selected, byName := enabled(configs)
	if len(selected) == 0 {
		s.log.Warnf("⚠️  No entity types enabled")
	}

	schemas, err := s.resolveSchemas(ctx, selected, schemas)
	if err != nil {
		return s.finalize(writer, started, err)
	}

	seq := graph.BuildSequence(present(selected, schemas), schemas, byName)
	s.mu.Lock()
	s.summary.LoadSequence = seq.Order
	s.summary.Cyclic = seq.Cyclic
	s.mu.Unlock()

	s.log.Infof("📋 Load sequence: %s", strings.Join(seq.Order, " → "))
	if len(seq.Cyclic) > 0 {
		s.log.Warnf("⚠️  Reference cycle between %s; those references stay unset where no ids exist yet", strings.Join(seq.Cyclic, ", "))
	}

	body := func(ctx context.Context) error {
		err := s.load(ctx, writer, seq, byName, schemas)
		s.setPhase(PhaseRuleRestoration)
		return err
	}

	if s.opts.SuspendRules && len(seq.Order) > 0 {
		s.setPhase(PhaseRuleSuspension)
		snapshots := s.snapshots
		if snapshots == nil {
			s.log.Warnf("⚠️  No state store configured; the rule snapshot is kept in memory only")
			snapshots = state.NewMemoryStore()
		}
		manager := rules.NewManager(s.opts.Session, s.remote, snapshots, s.log)
		outcome, loadErr := manager.Guard(ctx, seq.Order, body)
		if outcome.SuspendErr != nil {
			s.log.Warnf("⚠️  Some validation rules stay active: %v", outcome.SuspendErr)
		}
		if outcome.RestoreErr != nil {
			s.log.Warnf("⚠️  Some validation rules were not restored; retry with 'orgseed rules restore --session %s'", s.opts.Session)
		}
		s.mu.Lock()
		s.summary.Rules = &outcome
		s.mu.Unlock()
		err = loadErr
	} else {
		err = body(ctx)
	}

	return s.finalize(writer, started, err)
}

func (s *Seeder) load(ctx context.Context, writer *runlog.Writer, seq graph.Sequence, configs map[string]types.GenerationConfig, schemas map[string]*types.SchemaDescriptor) error {
	for i, name := range seq.Order {
		if i > 0 && s.opts.Pause > 0 {
			select {
			case <-time.After(s.opts.Pause):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			s.log.Warnf("⚠️  Cancelled before %s", name)
			return types.NewRunError(types.ErrCancelled, name, ctx.Err())
		}

		result := s.loadEntity(ctx, name, configs[name].TargetRecordCount, schemas[name])

		s.mu.Lock()
		s.summary.Results = append(s.summary.Results, result)
		s.mu.Unlock()

		ev := s.event(name, types.StatusCompleted, result.Attempted, result.Created, result.Attempted)
		if result.ErrorMessage != "" {
			ev.Status = types.StatusError
			ev.ErrorMessage = result.ErrorMessage
			s.log.Errorf("❌ %s: %s", name, result.ErrorMessage)
		} else {
			s.log.Successf("✅ %s: %d/%d created (%.2f%%)", name, result.Created, result.Attempted, result.SuccessRatePct)
		}
		s.events.Publish(ev)

		if _, err := writer.WriteEntity(i, result); err != nil {
			return err
		}
		progress := s.Summary()
		progress.Diagnostics = s.diagnosticCounts()
		if err := writer.WriteSummary(&progress); err != nil {
			return err
		}
	}
	s.setPhase(PhaseCompleted)
	return nil
}

// loadEntity never panics: anything unexpected becomes a fully failed result.
func (s *Seeder) loadEntity(ctx context.Context, name string, count int, schema *types.SchemaDescriptor) (result types.LoadResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = failedResult(name, count, start, "UNEXPECTED_EXCEPTION", fmt.Errorf("unexpected error: %v", r), nil)
		}
	}()

	s.events.Publish(s.event(name, types.StatusPending, 0, 0, count))

	s.setPhase(PhaseGenerating)
	s.events.Publish(s.event(name, types.StatusGenerating, 0, 0, count))
	s.log.Infof("📝 Generating %d %s records...", count, name)
	records := s.generate(schema, count)

	s.setPhase(PhaseLoading)
	s.events.Publish(s.event(name, types.StatusLoading, len(records), 0, count))

	if len(records) == 0 {
		s.setPhase(PhaseRecording)
		return types.LoadResult{EntityType: name, ElapsedMs: time.Since(start).Milliseconds()}
	}

	// In-flight batches finish even when the run is cancelled.
	results, err := s.remote.Create(context.WithoutCancel(ctx), name, records)
	if err == nil && len(results) != len(records) {
		err = fmt.Errorf("expected %d results, got %d", len(records), len(results))
	}
	s.setPhase(PhaseRecording)
	partial := errors.Is(err, types.ErrPartialCreate) && len(results) == len(records)
	if err != nil && !partial {
		return failedResult(name, len(records), start, StatusRemoteCreateFailure, types.NewRunError(types.ErrRemoteCreate, name, err), records)
	}

	result = types.LoadResult{EntityType: name, Attempted: len(records)}
	if partial {
		// Records created before the failure are real and stay usable as parents.
		result.ErrorMessage = types.NewRunError(types.ErrRemoteCreate, name, err).Error()
	}
	ids := make([]string, 0, len(results))
	for i, res := range results {
		outcome := types.RecordOutcome{Index: i, Data: records[i]}
		if res.Success {
			outcome.ID = res.ID
			ids = append(ids, res.ID)
			result.Created++
		} else {
			outcome.Errors = res.Errors
			if len(outcome.Errors) == 0 {
				outcome.Errors = []types.RecordError{{StatusCode: "UNKNOWN_EXCEPTION", Message: "create failed without an error"}}
			}
			result.Failed++
		}
		result.PerRecordOutcomes = append(result.PerRecordOutcomes, outcome)
	}
	s.pool.Append(name, ids...)

	result.SuccessRatePct = types.SuccessRate(result.Created, result.Attempted)
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

func failedResult(name string, count int, start time.Time, code string, err error, records []types.Record) types.LoadResult {
	result := types.LoadResult{
		EntityType:   name,
		Attempted:    count,
		Failed:       count,
		ErrorMessage: err.Error(),
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
	for i := 0; i < count; i++ {
		outcome := types.RecordOutcome{
			Index:  i,
			Errors: []types.RecordError{{StatusCode: code, Message: err.Error()}},
		}
		if i < len(records) {
			outcome.Data = records[i]
		}
		result.PerRecordOutcomes = append(result.PerRecordOutcomes, outcome)
	}
	return result
}

func (s *Seeder) generate(schema *types.SchemaDescriptor, count int) []types.Record {
	if count <= 0 {
		return nil
	}
	records := make([]types.Record, count)
	diags := make([][]types.Diagnostic, count)

	if s.opts.Parallelism <= 1 {
		for i := range records {
			records[i], diags[i] = s.synth.Record(schema, i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.opts.Parallelism)
		for i := range records {
			g.Go(func() error {
				records[i], diags[i] = s.synth.Record(schema, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, d := range diags {
		s.noteDiagnostics(d)
	}
	return records
}

// noteDiagnostics counts diagnostics and logs each (kind, entity, field) once.
func (s *Seeder) noteDiagnostics(diags []types.Diagnostic) {
	for _, d := range diags {
		key := diagKey{kind: d.Kind, entity: d.Entity, field: d.Field}
		s.mu.Lock()
		entry, seen := s.diagnostics[key]
		if !seen {
			entry = &runlog.DiagnosticCount{Kind: d.Kind, Entity: d.Entity, Field: d.Field, Message: d.Message}
			s.diagnostics[key] = entry
		}
		entry.Count++
		s.mu.Unlock()
		if !seen {
			s.log.Warnf("⚠️  %s on %s.%s: %s", d.Kind, d.Entity, d.Field, d.Message)
		}
	}
}

func (s *Seeder) diagnosticCounts() []runlog.DiagnosticCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]runlog.DiagnosticCount, 0, len(s.diagnostics))
	for _, d := range s.diagnostics {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (s *Seeder) event(entity string, status types.ProgressStatus, generated, loaded, total int) types.ProgressEvent {
	return types.ProgressEvent{
		SessionID:      s.opts.Session,
		EntityType:     entity,
		Status:         status,
		GeneratedCount: generated,
		LoadedCount:    loaded,
		TotalCount:     total,
		Timestamp:      time.Now().UTC(),
	}
}

// finalize writes the summary on every exit path, fatal ones included.
func (s *Seeder) finalize(writer *runlog.Writer, started time.Time, runErr error) (*runlog.Summary, error) {
	finished := time.Now().UTC()

	s.mu.Lock()
	switch {
	case runErr == nil:
		s.summary.Status = StatusCompleted
	case errors.Is(runErr, types.ErrCancelled):
		s.summary.Status = StatusCancelled
	default:
		s.summary.Status = StatusErrored
		s.summary.FatalError = runErr.Error()
		s.phase = PhaseErrored
	}
	s.summary.FinishedAt = &finished
	s.summary.ElapsedMs = time.Since(started).Milliseconds()
	s.mu.Unlock()

	summary := s.Summary()
	summary.Diagnostics = s.diagnosticCounts()
	if err := writer.WriteSummary(&summary); err != nil {
		s.log.Errorf("❌ Could not write session summary: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	s.mu.Lock()
	s.summary = summary
	s.phase = PhaseFinalized
	s.mu.Unlock()

	switch summary.Status {
	case StatusCompleted:
		s.log.Successf("\n✅ Session %s completed: %d/%d records created", s.opts.Session, summary.Totals.Created, summary.Totals.Attempted)
	case StatusCancelled:
		s.log.Warnf("⚠️  Session %s cancelled after %d entity types", s.opts.Session, len(summary.Results))
	default:
		s.log.Errorf("❌ Session %s stopped: %s", s.opts.Session, summary.FatalError)
	}

	if runErr != nil && !errors.Is(runErr, types.ErrCancelled) {
		return &summary, runErr
	}
	return &summary, nil
}

func (s *Seeder) resolveSchemas(ctx context.Context, selected []string, given map[string]*types.SchemaDescriptor) (map[string]*types.SchemaDescriptor, error) {
	schemas := make(map[string]*types.SchemaDescriptor, len(selected))
	var missing []string
	for _, name := range selected {
		if schema, ok := given[name]; ok && schema != nil {
			schemas[name] = schema
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return schemas, nil
	}

	described, err := DescribeAll(ctx, s.remote, missing, s.log)
	if err != nil {
		return nil, err
	}
	for name, schema := range described {
		schemas[name] = schema
	}
	return schemas, nil
}

// DescribeAll fetches descriptors concurrently. Entity types that fail to
// describe are dropped with a warning; when none can be described the
// remote store is unusable and the error is ErrSetup.
func DescribeAll(ctx context.Context, store remote.Store, names []string, log logger.Logger) (map[string]*types.SchemaDescriptor, error) {
	log = logger.OrDefault(log)
	schemas := make([]*types.SchemaDescriptor, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			schemas[i], errs[i] = store.Describe(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*types.SchemaDescriptor, len(names))
	for i, name := range names {
		if errs[i] != nil {
			log.Warnf("⚠️  Skipping %s: %v", name, errs[i])
			continue
		}
		out[name] = schemas[i]
	}
	if len(names) > 0 && len(out) == 0 {
		return nil, types.NewRunError(types.ErrSetup, "", fmt.Errorf("no entity type could be described: %w", errors.Join(errs...)))
	}
	return out, nil
}

func enabled(configs []types.GenerationConfig) ([]string, map[string]types.GenerationConfig) {
	var names []string
	byName := make(map[string]types.GenerationConfig, len(configs))
	for _, c := range configs {
		if !c.Enabled || c.EntityType == "" {
			continue
		}
		if _, dup := byName[c.EntityType]; dup {
			continue
		}
		names = append(names, c.EntityType)
		byName[c.EntityType] = c
	}
	return names, byName
}

func present(names []string, schemas map[string]*types.SchemaDescriptor) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := schemas[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
