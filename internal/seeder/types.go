package seeder

import (
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/synth"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

type Phase string

const (
	PhaseInitializing    Phase = "Initializing"
	PhaseRuleSuspension  Phase = "RuleSuspension"
	PhaseGenerating      Phase = "Generating"
	PhaseLoading         Phase = "Loading"
	PhaseRecording       Phase = "Recording"
	PhaseCompleted       Phase = "Completed"
	PhaseRuleRestoration Phase = "RuleRestoration"
	PhaseErrored         Phase = "Errored"
	PhaseFinalized       Phase = "Finalized"
)

// Run statuses written to the session summary.
const (
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
	StatusErrored   = "Errored"
)

// StatusRemoteCreateFailure marks records of a batch whose create call failed as a whole.
const StatusRemoteCreateFailure = types.CodeRemoteCreateFailure

type Options struct {
	Session      string
	LogDir       string
	RemoteName   string
	Pause        time.Duration // between entity types
	SuspendRules bool
	Parallelism  int // record synthesis workers per entity type; <= 1 is sequential
	Seed         int64
	Exclude      []string
	Overrides    []synth.Override
	Log          logger.Logger
	// Tables is shared across sessions; nil gets a private cache.
	Tables *picklist.Cache
}
