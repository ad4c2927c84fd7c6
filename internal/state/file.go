package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// FileStore writes one JSON document per session under dir. Each write
// replaces the document through a temp file and rename.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

type sessionDocument struct {
	Session   string                         `json:"session"`
	Snapshots []types.ValidationRuleSnapshot `json:"snapshots"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(".orgseed", "state")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(session string) string {
	return filepath.Join(f.dir, session+".rules.json")
}

func (f *FileStore) load(session string) (map[string]types.ValidationRuleSnapshot, error) {
	if err := types.ValidateSessionID(session); err != nil {
		return nil, err
	}
	out := make(map[string]types.ValidationRuleSnapshot)
	data, err := os.ReadFile(f.path(session))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", f.path(session), err)
	}
	for _, snap := range doc.Snapshots {
		out[snap.FullName] = snap
	}
	return out, nil
}

func (f *FileStore) save(session string, snaps map[string]types.ValidationRuleSnapshot) error {
	if len(snaps) == 0 {
		if err := os.Remove(f.path(session)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove state file: %w", err)
		}
		return nil
	}

	doc := sessionDocument{Session: session}
	for _, snap := range snaps {
		doc.Snapshots = append(doc.Snapshots, snap)
	}
	sortSnapshots(doc.Snapshots)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return WriteFileAtomic(f.path(session), data)
}

func (f *FileStore) PutRuleSnapshot(_ context.Context, session string, snap types.ValidationRuleSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snaps, err := f.load(session)
	if err != nil {
		return err
	}
	snaps[snap.FullName] = snap
	return f.save(session, snaps)
}

func (f *FileStore) DeleteRuleSnapshot(_ context.Context, session, fullName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snaps, err := f.load(session)
	if err != nil {
		return err
	}
	if _, ok := snaps[fullName]; !ok {
		return nil
	}
	delete(snaps, fullName)
	return f.save(session, snaps)
}

func (f *FileStore) ListRuleSnapshots(_ context.Context, session string) ([]types.ValidationRuleSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snaps, err := f.load(session)
	if err != nil {
		return nil, err
	}
	out := make([]types.ValidationRuleSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap)
	}
	sortSnapshots(out)
	return out, nil
}

func (f *FileStore) PendingSessions(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}
	var sessions []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".rules.json") {
			sessions = append(sessions, strings.TrimSuffix(name, ".rules.json"))
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (f *FileStore) Close() error { return nil }

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
