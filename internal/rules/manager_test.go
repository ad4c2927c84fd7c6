package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote/sandbox"
	"github.com/Lumos-Labs-HQ/orgseed/internal/state"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEntities = []string{"Account", "Contact", "Opportunity"}

// fourActiveRules is the default fixture with every rule switched on.
func fourActiveRules(t *testing.T) *sandbox.Store {
	t.Helper()
	fixture := sandbox.DefaultFixture()
	for i := range fixture.ValidationRules {
		fixture.ValidationRules[i].Active = true
	}
	s, err := sandbox.New(fixture)
	require.NoError(t, err)
	return s
}

func newManager(client Client, store SnapshotStore, log logger.Logger) *Manager {
	m := NewManager("session-1", client, store, log)
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return m
}

func activeRules(t *testing.T, s *sandbox.Store, names ...string) []bool {
	t.Helper()
	out := make([]bool, len(names))
	for i, name := range names {
		rule, ok := s.Rule(name)
		require.True(t, ok, name)
		out[i] = rule.Active
	}
	return out
}

func TestSuspendWithOneFailureThenRestore(t *testing.T) {
	remote := fourActiveRules(t)
	remote.SetHooks(sandbox.Hooks{
		Update: func(rule *types.ValidationRule) error {
			if rule.FullName == "Contact.No_Executive_Titles" && !rule.Active {
				return errors.New("INSUFFICIENT_ACCESS")
			}
			return nil
		},
	})
	store := state.NewMemoryStore()
	log := &logger.Recorder{}
	m := newManager(remote, store, log)
	ctx := context.Background()

	report, err := m.Suspend(ctx, allEntities)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRulesSuspend)
	assert.False(t, types.IsFatal(err))
	assert.Equal(t, 4, report.Discovered)
	require.Len(t, report.Suspended, 3)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "Contact.No_Executive_Titles", report.Failed[0].FullName)
	assert.Equal(t, Suspended, m.State())

	persisted, err := store.ListRuleSnapshots(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, persisted, 3)
	assert.Equal(t, "Account.Minimum_Revenue", persisted[0].FullName)
	for _, snap := range persisted {
		assert.True(t, snap.OriginallyActive)
		assert.NotEqual(t, "Contact.No_Executive_Titles", snap.FullName)
	}

	assert.Equal(t, []bool{false, false, true, false}, activeRules(t, remote,
		"Account.Minimum_Revenue", "Account.Phone_Required_For_Customers",
		"Contact.No_Executive_Titles", "Opportunity.Close_Date_In_Future"))

	restore, err := m.Restore(ctx, m.Snapshot())
	require.NoError(t, err)
	assert.Len(t, restore.Restored, 3)
	assert.Empty(t, restore.Failed)
	assert.Equal(t, Restored, m.State())
	assert.Empty(t, m.Snapshot())

	persisted, err = store.ListRuleSnapshots(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, persisted)
	pending, err := store.PendingSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []bool{true, true, true, true}, activeRules(t, remote,
		"Account.Minimum_Revenue", "Account.Phone_Required_For_Customers",
		"Contact.No_Executive_Titles", "Opportunity.Close_Date_In_Future"))
}

func TestRestoreIsIdempotent(t *testing.T) {
	remote := fourActiveRules(t)
	m := newManager(remote, state.NewMemoryStore(), logger.Discard{})
	ctx := context.Background()

	report, err := m.Suspend(ctx, allEntities)
	require.NoError(t, err)
	snap := report.Suspended
	require.Len(t, snap, 4)

	first, err := m.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Len(t, first.Restored, 4)

	updates := remote.Calls.Update.Load()
	second, err := m.Restore(ctx, snap)
	require.NoError(t, err)
	assert.Empty(t, second.Restored)
	assert.Empty(t, second.Failed)
	assert.Len(t, second.AlreadyActive, 4)
	assert.Equal(t, updates, remote.Calls.Update.Load())
}

func TestInactiveRulesAreNotSuspended(t *testing.T) {
	remote, err := sandbox.New(sandbox.DefaultFixture())
	require.NoError(t, err)
	m := newManager(remote, state.NewMemoryStore(), logger.Discard{})

	report, err := m.Suspend(context.Background(), []string{"Account", "Opportunity"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered)
	require.Len(t, report.Suspended, 2)
	assert.Equal(t, "Account.Minimum_Revenue", report.Suspended[0].FullName)
	assert.Equal(t, "Account.Phone_Required_For_Customers", report.Suspended[1].FullName)

	rule, _ := remote.Rule("Opportunity.Close_Date_In_Future")
	assert.False(t, rule.Active)
}

func TestFailedRestoreKeepsSnapshotForRetry(t *testing.T) {
	remote := fourActiveRules(t)
	store := state.NewMemoryStore()
	m := newManager(remote, store, logger.Discard{})
	ctx := context.Background()

	_, err := m.Suspend(ctx, allEntities)
	require.NoError(t, err)

	remote.SetHooks(sandbox.Hooks{
		Update: func(rule *types.ValidationRule) error {
			if rule.FullName == "Account.Minimum_Revenue" && rule.Active {
				return errors.New("UNABLE_TO_LOCK_ROW")
			}
			return nil
		},
	})

	report, err := m.Restore(ctx, m.Snapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRulesRestore)
	assert.Len(t, report.Restored, 3)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, SuspendedFailedRestore, m.State())

	kept, err := store.ListRuleSnapshots(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "Account.Minimum_Revenue", kept[0].FullName)

	// A later process retries from the durable entries alone.
	remote.SetHooks(sandbox.Hooks{})
	retry := NewManager("session-1", remote, store, logger.Discard{})
	again, err := retry.RestoreSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account.Minimum_Revenue"}, again.Restored)
	assert.Equal(t, Restored, retry.State())

	kept, err = store.ListRuleSnapshots(ctx, "session-1")
	require.NoError(t, err)
	assert.Empty(t, kept)
}

type failingPuts struct {
	*state.MemoryStore
}

func (failingPuts) PutRuleSnapshot(context.Context, string, types.ValidationRuleSnapshot) error {
	return errors.New("disk full")
}

func TestRuleStaysActiveWhenSnapshotCannotBePersisted(t *testing.T) {
	remote := fourActiveRules(t)
	m := newManager(remote, failingPuts{state.NewMemoryStore()}, logger.Discard{})

	report, err := m.Suspend(context.Background(), []string{"Account"})
	require.Error(t, err)
	assert.Empty(t, report.Suspended)
	assert.Len(t, report.Failed, 2)
	assert.Equal(t, Active, m.State())
	assert.Equal(t, int64(0), remote.Calls.Update.Load())

	rule, _ := remote.Rule("Account.Minimum_Revenue")
	assert.True(t, rule.Active)
}

type listFailure struct {
	Client
}

func (listFailure) ListValidationRules(context.Context, []string) ([]types.RuleRef, error) {
	return nil, errors.New("tooling API unavailable")
}

func TestSuspendListFailureIsNotFatal(t *testing.T) {
	log := &logger.Recorder{}
	m := newManager(listFailure{}, state.NewMemoryStore(), log)

	report, err := m.Suspend(context.Background(), allEntities)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRulesSuspend)
	assert.False(t, types.IsFatal(err))
	assert.Zero(t, report.Discovered)
	assert.Equal(t, Active, m.State())
	assert.Equal(t, 1, log.Count("warn"))
}

func TestGuardRestoresOnEveryExitPath(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		remote := fourActiveRules(t)
		m := newManager(remote, state.NewMemoryStore(), logger.Discard{})
		boom := errors.New("boom")

		outcome, err := m.Guard(context.Background(), allEntities, func(ctx context.Context) error {
			rule, _ := remote.Rule("Account.Minimum_Revenue")
			assert.False(t, rule.Active)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Len(t, outcome.Suspend.Suspended, 4)
		assert.Len(t, outcome.Restore.Restored, 4)
		assert.NoError(t, outcome.RestoreErr)
		assert.Equal(t, Restored, m.State())
	})

	t.Run("cancelled", func(t *testing.T) {
		remote := fourActiveRules(t)
		store := state.NewMemoryStore()
		m := newManager(remote, store, logger.Discard{})
		ctx, cancel := context.WithCancel(context.Background())

		outcome, err := m.Guard(ctx, allEntities, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, outcome.Restore.Restored, 4)

		pending, err := store.PendingSessions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("panic", func(t *testing.T) {
		remote := fourActiveRules(t)
		m := newManager(remote, state.NewMemoryStore(), logger.Discard{})

		assert.Panics(t, func() {
			_, _ = m.Guard(context.Background(), allEntities, func(context.Context) error {
				panic("unexpected")
			})
		})
		rule, _ := remote.Rule("Contact.No_Executive_Titles")
		assert.True(t, rule.Active)
	})

	t.Run("nothing suspended", func(t *testing.T) {
		remote := fourActiveRules(t)
		m := newManager(remote, state.NewMemoryStore(), logger.Discard{})

		outcome, err := m.Guard(context.Background(), []string{"Lead"}, func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.Zero(t, outcome.Suspend.Discovered)
		assert.Empty(t, outcome.Restore.Restored)
		assert.Equal(t, Active, m.State())
	})
}
