package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []types.LoadResult {
	return []types.LoadResult{
		{
			EntityType: "Account", Attempted: 3, Created: 2, Failed: 1,
			SuccessRatePct: types.SuccessRate(2, 3), ElapsedMs: 42,
			PerRecordOutcomes: []types.RecordOutcome{
				{Index: 0, ID: "001A", Data: types.Record{"Name": "Acme-1"}},
				{Index: 1, ID: "001B", Data: types.Record{"Name": "Acme-2"}},
				{Index: 2, Data: types.Record{"Name": "Acme-3"}, Errors: []types.RecordError{
					{StatusCode: "FIELD_CUSTOM_VALIDATION_EXCEPTION", Message: "Annual revenue must be at least 1,000,000."},
				}},
			},
		},
		{
			EntityType: "Contact", Attempted: 2, Failed: 2, ErrorMessage: "remote create failure (Contact): connection reset",
			PerRecordOutcomes: []types.RecordOutcome{
				{Index: 0, Data: types.Record{}, Errors: []types.RecordError{{StatusCode: "REMOTE_CREATE_FAILURE", Message: "connection reset"}}},
				{Index: 1, Data: types.Record{}, Errors: []types.RecordError{{StatusCode: "REMOTE_CREATE_FAILURE", Message: "connection reset"}}},
			},
		},
	}
}

func TestWriteEntityLog(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	w := NewWriter(t.TempDir(), SessionInfo{SessionID: "s-1", StartedAt: started, Remote: "sandbox"})

	path, err := w.WriteEntity(0, sampleResults()[0])
	require.NoError(t, err)
	assert.Equal(t, "01_Account.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "sessionInfo")
	assert.Contains(t, doc, "perRecordOutcomes")

	summary := doc["summary"].(map[string]interface{})
	assert.Equal(t, "Account", summary["objectName"])
	assert.Equal(t, 3.0, summary["recordsAttempted"])
	assert.Equal(t, 2.0, summary["recordsCreated"])
	assert.Equal(t, 1.0, summary["recordsFailed"])
	assert.Equal(t, 66.67, summary["successRatePct"])
	assert.Equal(t, 42.0, summary["elapsedMs"])

	outcomes := doc["perRecordOutcomes"].([]interface{})
	require.Len(t, outcomes, 3)
	failed := outcomes[2].(map[string]interface{})
	assert.NotContains(t, failed, "id")
	assert.Len(t, failed["errors"], 1)

	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestEntityFileNames(t *testing.T) {
	w := NewWriter("logs", SessionInfo{SessionID: "abc"})
	assert.Equal(t, filepath.Join("logs", "abc", "02_Contact.json"), w.EntityFile(1, "Contact"))
	assert.Equal(t, filepath.Join("logs", "abc", "12_My_Object__c.json"), w.EntityFile(11, "My Object__c"))
}

func TestWriteSummaryAggregates(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, SessionInfo{SessionID: "s-2"})

	s := &Summary{
		Status:       "Completed",
		LoadSequence: []string{"Account", "Contact"},
		Results:      sampleResults(),
	}
	require.NoError(t, w.WriteSummary(s))

	assert.Equal(t, Totals{Attempted: 5, Created: 2, Failed: 3, SuccessRatePct: 40}, s.Totals)
	require.Len(t, s.TopErrors, 2)
	assert.Equal(t, ErrorCount{Message: "connection reset", Count: 2}, s.TopErrors[0])

	read, err := ReadSummary(dir, "s-2")
	require.NoError(t, err)
	assert.Equal(t, "s-2", read.SessionInfo.SessionID)
	assert.Equal(t, []string{"Account", "Contact"}, read.LoadSequence)
	require.Len(t, read.Results, 2)
	assert.Nil(t, read.Results[0].PerRecordOutcomes)
	assert.Equal(t, s.Totals, read.Totals)
}

func TestTopErrorsCapsAndOrders(t *testing.T) {
	var outcomes []types.RecordOutcome
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			outcomes = append(outcomes, types.RecordOutcome{Errors: []types.RecordError{{Message: string(rune('a' + i))}}})
		}
	}
	top := TopErrors([]types.LoadResult{
		{PerRecordOutcomes: outcomes},
		{ErrorMessage: "describe failed"},
	}, 10)

	require.Len(t, top, 10)
	assert.Equal(t, "o", top[0].Message)
	assert.Equal(t, 15, top[0].Count)
	assert.Equal(t, "f", top[9].Message)
}

func TestWriteFailureIsDurableLogError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	w := NewWriter(blocker, SessionInfo{SessionID: "s-3"})
	_, err := w.WriteEntity(0, types.LoadResult{EntityType: "Account"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDurableLog)
	assert.True(t, types.IsFatal(err))

	err = w.WriteSummary(&Summary{Status: "Errored"})
	assert.ErrorIs(t, err, types.ErrDurableLog)
}

func TestReadSummaryRejectsUnsafeSession(t *testing.T) {
	_, err := ReadSummary(t.TempDir(), "../escaped")
	assert.ErrorIs(t, err, types.ErrInvalidSession)
}
