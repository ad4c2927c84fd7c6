package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Client is the part of the remote store that manages validation rules.
type Client interface {
	ListValidationRules(ctx context.Context, entityTypes []string) ([]types.RuleRef, error)
	ReadRule(ctx context.Context, ref types.RuleRef) (*types.ValidationRule, error)
	UpdateRule(ctx context.Context, rule *types.ValidationRule) error
}

// SnapshotStore persists snapshot entries. state.Store satisfies it.
type SnapshotStore interface {
	PutRuleSnapshot(ctx context.Context, session string, snap types.ValidationRuleSnapshot) error
	DeleteRuleSnapshot(ctx context.Context, session, fullName string) error
	ListRuleSnapshots(ctx context.Context, session string) ([]types.ValidationRuleSnapshot, error)
}

type State string

const (
	Active                 State = "Active"
	Suspended              State = "Suspended"
	Restored               State = "Restored"
	SuspendedFailedRestore State = "SuspendedFailedRestore"
)

type RuleFailure struct {
	FullName string `json:"fullName"`
	Error    string `json:"error"`
}

type SuspendReport struct {
	Discovered int                            `json:"discovered"`
	Suspended  []types.ValidationRuleSnapshot `json:"suspended"`
	Failed     []RuleFailure                  `json:"failed,omitempty"`
}

type RestoreReport struct {
	Restored      []string      `json:"restored"`
	AlreadyActive []string      `json:"alreadyActive,omitempty"`
	Failed        []RuleFailure `json:"failed,omitempty"`
}

// Outcome is what Guard did around the guarded function.
type Outcome struct {
	Suspend    SuspendReport `json:"suspend"`
	Restore    RestoreReport `json:"restore"`
	SuspendErr error         `json:"-"`
	RestoreErr error         `json:"-"`
}

// Manager suspends the active validation rules of one session and puts
// them back. Snapshot entries are persisted before each rule is touched.
type Manager struct {
	session string
	client  Client
	store   SnapshotStore
	log     logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	state    State
	snapshot []types.ValidationRuleSnapshot
}

func NewManager(session string, client Client, store SnapshotStore, log logger.Logger) *Manager {
	return &Manager{
		session: session,
		client:  client,
		store:   store,
		log:     logger.OrDefault(log),
		now:     time.Now,
		state:   Active,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the entries that are still suspended.
func (m *Manager) Snapshot() []types.ValidationRuleSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ValidationRuleSnapshot(nil), m.snapshot...)
}

// Suspend deactivates every active rule scoped to entityTypes. Rules that
// cannot be deactivated are reported and left alone; the returned error is
// a non-fatal ErrRulesSuspend.
func (m *Manager) Suspend(ctx context.Context, entityTypes []string) (SuspendReport, error) {
	var report SuspendReport

	refs, err := m.client.ListValidationRules(ctx, entityTypes)
	if err != nil {
		m.log.Warnf("⚠️  Could not list validation rules, continuing without suspension: %v", err)
		return report, types.NewRunError(types.ErrRulesSuspend, "", fmt.Errorf("list validation rules: %w", err))
	}

	var errs []error
	for _, ref := range refs {
		if !ref.Active {
			continue
		}
		report.Discovered++

		snap, err := m.suspendOne(ctx, ref)
		if err != nil {
			report.Failed = append(report.Failed, RuleFailure{FullName: ref.FullName, Error: err.Error()})
			errs = append(errs, err)
			m.log.Warnf("⚠️  Could not suspend %s: %v", ref.FullName, err)
			continue
		}
		if snap == nil {
			continue
		}

		report.Suspended = append(report.Suspended, *snap)
		m.mu.Lock()
		m.snapshot = append(m.snapshot, *snap)
		m.state = Suspended
		m.mu.Unlock()
		m.log.Infof("🔒 Suspended %s", ref.FullName)
	}

	if len(errs) > 0 {
		return report, types.NewRunError(types.ErrRulesSuspend, "", errors.Join(errs...))
	}
	return report, nil
}

func (m *Manager) suspendOne(ctx context.Context, ref types.RuleRef) (*types.ValidationRuleSnapshot, error) {
	rule, err := m.client.ReadRule(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.FullName, err)
	}
	if !rule.Active {
		return nil, nil
	}

	snap := types.ValidationRuleSnapshot{
		FullName:         rule.FullName,
		ID:               rule.ID,
		EntityType:       rule.EntityType,
		OriginallyActive: true,
		SuspendedAt:      m.now().UTC(),
	}
	if err := m.store.PutRuleSnapshot(ctx, m.session, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot for %s: %w", rule.FullName, err)
	}

	rule.Active = false
	if err := m.client.UpdateRule(ctx, rule); err != nil {
		if derr := m.store.DeleteRuleSnapshot(context.WithoutCancel(ctx), m.session, snap.FullName); derr != nil {
			m.log.Warnf("⚠️  Could not drop snapshot entry for %s: %v", snap.FullName, derr)
		}
		return nil, fmt.Errorf("deactivate %s: %w", rule.FullName, err)
	}
	return &snap, nil
}

// Restore reactivates the rules in snap. Rules found already active are
// neither toggled nor counted as restored. Entries are removed from the
// snapshot store once their rule is active again; failed ones stay.
func (m *Manager) Restore(ctx context.Context, snap []types.ValidationRuleSnapshot) (RestoreReport, error) {
	var report RestoreReport
	var errs []error
	settled := make(map[string]bool, len(snap))

	for _, entry := range snap {
		if !entry.OriginallyActive {
			m.forget(ctx, entry)
			settled[entry.FullName] = true
			continue
		}

		rule, err := m.client.ReadRule(ctx, entry.Ref())
		if err != nil {
			report.Failed = append(report.Failed, RuleFailure{FullName: entry.FullName, Error: err.Error()})
			errs = append(errs, fmt.Errorf("read %s: %w", entry.FullName, err))
			m.log.Warnf("⚠️  Could not read %s for restore: %v", entry.FullName, err)
			continue
		}

		if rule.Active {
			report.AlreadyActive = append(report.AlreadyActive, entry.FullName)
		} else {
			rule.Active = true
			if err := m.client.UpdateRule(ctx, rule); err != nil {
				report.Failed = append(report.Failed, RuleFailure{FullName: entry.FullName, Error: err.Error()})
				errs = append(errs, fmt.Errorf("reactivate %s: %w", entry.FullName, err))
				m.log.Warnf("⚠️  Could not restore %s, snapshot kept for retry: %v", entry.FullName, err)
				continue
			}
			report.Restored = append(report.Restored, entry.FullName)
			m.log.Successf("🔓 Restored %s", entry.FullName)
		}
		m.forget(ctx, entry)
		settled[entry.FullName] = true
	}

	m.mu.Lock()
	remaining := m.snapshot[:0]
	for _, entry := range m.snapshot {
		if !settled[entry.FullName] {
			remaining = append(remaining, entry)
		}
	}
	m.snapshot = remaining
	switch {
	case len(report.Failed) > 0:
		m.state = SuspendedFailedRestore
	case m.state != Active || len(snap) > 0:
		m.state = Restored
	}
	m.mu.Unlock()

	if len(errs) > 0 {
		return report, types.NewRunError(types.ErrRulesRestore, "", errors.Join(errs...))
	}
	return report, nil
}

func (m *Manager) forget(ctx context.Context, entry types.ValidationRuleSnapshot) {
	if err := m.store.DeleteRuleSnapshot(ctx, m.session, entry.FullName); err != nil {
		m.log.Warnf("⚠️  Could not clear snapshot entry for %s: %v", entry.FullName, err)
	}
}

// RestoreSession restores whatever the snapshot store still holds for the
// session. It backs the manual re-attempt.
func (m *Manager) RestoreSession(ctx context.Context) (RestoreReport, error) {
	snap, err := m.store.ListRuleSnapshots(ctx, m.session)
	if err != nil {
		return RestoreReport{}, types.NewRunError(types.ErrRulesRestore, "", fmt.Errorf("load snapshot for %s: %w", m.session, err))
	}
	if len(snap) == 0 {
		m.log.Infof("📋 No suspended rules recorded for session %s", m.session)
	}
	return m.Restore(ctx, snap)
}

// Guard runs fn with the rules of entityTypes suspended. Restoration runs
// on every exit path, including cancellation and panics, on a context that
// is no longer cancellable.
func (m *Manager) Guard(ctx context.Context, entityTypes []string, fn func(context.Context) error) (outcome Outcome, err error) {
	outcome.Suspend, outcome.SuspendErr = m.Suspend(ctx, entityTypes)
	defer func() {
		snap := m.Snapshot()
		if len(snap) == 0 {
			return
		}
		outcome.Restore, outcome.RestoreErr = m.Restore(context.WithoutCancel(ctx), snap)
	}()
	return outcome, fn(ctx)
}
