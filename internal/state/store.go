package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Store persists the validation-rule snapshots of each session. Every write
// must be durable when the call returns: the snapshot is the only record of
// which remote rules a crashed run left disabled.
type Store interface {
	PutRuleSnapshot(ctx context.Context, session string, snap types.ValidationRuleSnapshot) error
	DeleteRuleSnapshot(ctx context.Context, session, fullName string) error
	ListRuleSnapshots(ctx context.Context, session string) ([]types.ValidationRuleSnapshot, error)
	// PendingSessions lists sessions that still hold at least one snapshot.
	PendingSessions(ctx context.Context) ([]string, error)
	Close() error
}

func New(ctx context.Context, provider, url string) (Store, error) {
	switch provider {
	case "", "file":
		return NewFileStore(url)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, url)
	case "mysql":
		return OpenMySQL(ctx, url)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, url)
	case "redis":
		return OpenRedis(ctx, url)
	case "mongodb", "mongo":
		return OpenMongo(ctx, url)
	default:
		return nil, fmt.Errorf("unsupported state provider: %s", provider)
	}
}

func sortSnapshots(snaps []types.ValidationRuleSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].SuspendedAt.Equal(snaps[j].SuspendedAt) {
			return snaps[i].SuspendedAt.Before(snaps[j].SuspendedAt)
		}
		return snaps[i].FullName < snaps[j].FullName
	})
}

// MemoryStore keeps snapshots in process. It backs tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]types.ValidationRuleSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]types.ValidationRuleSnapshot)}
}

func (m *MemoryStore) PutRuleSnapshot(_ context.Context, session string, snap types.ValidationRuleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[session] == nil {
		m.sessions[session] = make(map[string]types.ValidationRuleSnapshot)
	}
	m.sessions[session][snap.FullName] = snap
	return nil
}

func (m *MemoryStore) DeleteRuleSnapshot(_ context.Context, session, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions[session], fullName)
	if len(m.sessions[session]) == 0 {
		delete(m.sessions, session)
	}
	return nil
}

func (m *MemoryStore) ListRuleSnapshots(_ context.Context, session string) ([]types.ValidationRuleSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := make([]types.ValidationRuleSnapshot, 0, len(m.sessions[session]))
	for _, snap := range m.sessions[session] {
		snaps = append(snaps, snap)
	}
	sortSnapshots(snaps)
	return snaps, nil
}

func (m *MemoryStore) PendingSessions(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]string, 0, len(m.sessions))
	for session := range m.sessions {
		sessions = append(sessions, session)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (m *MemoryStore) Close() error { return nil }
