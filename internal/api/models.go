package api

import (
	"github.com/Lumos-Labs-HQ/orgseed/internal/graph"
	"github.com/Lumos-Labs-HQ/orgseed/internal/runlog"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SequenceRequest struct {
	Entities []types.GenerationConfig `json:"entities"`
}

type SequenceResponse struct {
	Sequence graph.Sequence `json:"sequence"`
	// Skipped lists selected entity types the remote store could not describe.
	Skipped []string `json:"skipped,omitempty"`
}

type StartRunRequest struct {
	SessionID string                   `json:"sessionId"`
	Entities  []types.GenerationConfig `json:"entities"`
}

type RunDetail struct {
	seeder.RunInfo
	Summary runlog.Summary `json:"summary"`
	Created map[string]int `json:"created"`
	Events  int            `json:"events"`
}

type PendingSession struct {
	SessionID string                         `json:"sessionId"`
	Rules     []types.ValidationRuleSnapshot `json:"rules"`
}
