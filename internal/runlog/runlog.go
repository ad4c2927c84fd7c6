package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/rules"
	"github.com/Lumos-Labs-HQ/orgseed/internal/state"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

const (
	SummaryFile  = "summary.json"
	topErrorsCap = 10
)

type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
	Remote    string    `json:"remote,omitempty"`
}

type EntitySummary struct {
	ObjectName       string  `json:"objectName"`
	RecordsAttempted int     `json:"recordsAttempted"`
	RecordsCreated   int     `json:"recordsCreated"`
	RecordsFailed    int     `json:"recordsFailed"`
	SuccessRatePct   float64 `json:"successRatePct"`
	ElapsedMs        int64   `json:"elapsedMs"`
}

// EntityLog is the durable record of one entity type's batch.
type EntityLog struct {
	SessionInfo       SessionInfo           `json:"sessionInfo"`
	Summary           EntitySummary         `json:"summary"`
	ErrorMessage      string                `json:"errorMessage,omitempty"`
	PerRecordOutcomes []types.RecordOutcome `json:"perRecordOutcomes"`
}

type Totals struct {
	Attempted      int     `json:"attempted"`
	Created        int     `json:"created"`
	Failed         int     `json:"failed"`
	SuccessRatePct float64 `json:"successRatePct"`
}

type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type DiagnosticCount struct {
	Kind    types.DiagnosticKind `json:"kind"`
	Entity  string               `json:"entity"`
	Field   string               `json:"field"`
	Message string               `json:"message"`
	Count   int                  `json:"count"`
}

// Summary is the session-scoped log. It is rewritten after every entity
// type and once more when the run finalizes.
type Summary struct {
	SessionInfo  SessionInfo        `json:"sessionInfo"`
	Status       string             `json:"status"`
	LoadSequence []string           `json:"loadSequence"`
	Cyclic       []string           `json:"cyclic,omitempty"`
	Results      []types.LoadResult `json:"results"`
	Totals       Totals             `json:"totals"`
	TopErrors    []ErrorCount       `json:"topErrors"`
	Rules        *rules.Outcome     `json:"rules,omitempty"`
	Diagnostics  []DiagnosticCount  `json:"diagnostics,omitempty"`
	FatalError   string             `json:"fatalError,omitempty"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   *time.Time         `json:"finishedAt,omitempty"`
	ElapsedMs    int64              `json:"elapsedMs"`
}

// Writer owns the log directory of one session.
type Writer struct {
	mu   sync.Mutex
	dir  string
	info SessionInfo
}

func NewWriter(logDir string, info SessionInfo) *Writer {
	if logDir == "" {
		logDir = "orgseed-logs"
	}
	return &Writer{dir: filepath.Join(logDir, info.SessionID), info: info}
}

func (w *Writer) Dir() string {
	return w.dir
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// EntityFile returns the log path of the entity at the given 0-based
// position of the load sequence.
func (w *Writer) EntityFile(position int, entityType string) string {
	name := fmt.Sprintf("%02d_%s.json", position+1, unsafeName.ReplaceAllString(entityType, "_"))
	return filepath.Join(w.dir, name)
}

func (w *Writer) WriteEntity(position int, result types.LoadResult) (string, error) {
	doc := EntityLog{
		SessionInfo: w.info,
		Summary: EntitySummary{
			ObjectName:       result.EntityType,
			RecordsAttempted: result.Attempted,
			RecordsCreated:   result.Created,
			RecordsFailed:    result.Failed,
			SuccessRatePct:   result.SuccessRatePct,
			ElapsedMs:        result.ElapsedMs,
		},
		ErrorMessage:      result.ErrorMessage,
		PerRecordOutcomes: result.PerRecordOutcomes,
	}
	if doc.PerRecordOutcomes == nil {
		doc.PerRecordOutcomes = []types.RecordOutcome{}
	}

	path := w.EntityFile(position, result.EntityType)
	if err := w.write(path, doc); err != nil {
		return "", types.NewRunError(types.ErrDurableLog, result.EntityType, err)
	}
	return path, nil
}

// WriteSummary fills in totals and top errors from s.Results and writes
// summary.json.
func (w *Writer) WriteSummary(s *Summary) error {
	s.SessionInfo = w.info
	s.Totals = Total(s.Results)
	s.TopErrors = TopErrors(s.Results, topErrorsCap)
	if s.Results == nil {
		s.Results = []types.LoadResult{}
	}
	if err := w.write(filepath.Join(w.dir, SummaryFile), s); err != nil {
		return types.NewRunError(types.ErrDurableLog, "", err)
	}
	return nil
}

func (w *Writer) write(path string, v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return state.WriteFileAtomic(path, data)
}

func Total(results []types.LoadResult) Totals {
	var t Totals
	for _, r := range results {
		t.Attempted += r.Attempted
		t.Created += r.Created
		t.Failed += r.Failed
	}
	t.SuccessRatePct = types.SuccessRate(t.Created, t.Attempted)
	return t
}

// TopErrors counts error messages over every record outcome and every
// batch-level message, most frequent first.
func TopErrors(results []types.LoadResult, n int) []ErrorCount {
	counts := make(map[string]int)
	for _, r := range results {
		for _, outcome := range r.PerRecordOutcomes {
			for _, e := range outcome.Errors {
				counts[e.Message]++
			}
		}
		if r.ErrorMessage != "" && len(r.PerRecordOutcomes) == 0 {
			counts[r.ErrorMessage]++
		}
	}

	out := make([]ErrorCount, 0, len(counts))
	for msg, c := range counts {
		out = append(out, ErrorCount{Message: msg, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func ReadSummary(logDir, session string) (*Summary, error) {
	if err := types.ValidateSessionID(session); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(logDir, session, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read summary for %s: %w", session, err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary for %s: %w", session, err)
	}
	return &s, nil
}
