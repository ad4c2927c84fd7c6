package synth

import (
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// RecordContext is the scratch state of one record under synthesis. It
// lets a dependent picklist agree with its controller whichever of the two
// is synthesized first. A context must not be shared between records.
type RecordContext struct {
	choices     map[string]string
	pending     map[string][]pendingChoice
	diagnostics []types.Diagnostic
}

// pendingChoice is a dependent value picked before its controller.
type pendingChoice struct {
	dependent string
	value     string
}

func NewRecordContext() *RecordContext {
	return &RecordContext{
		choices: make(map[string]string),
		pending: make(map[string][]pendingChoice),
	}
}

// SelectionKey is the semantic key a field's chosen value is stored under,
// e.g. "account-billingcountrycode-selection".
func SelectionKey(entity, field string) string {
	return strings.ToLower(entity) + "-" + strings.ToLower(field) + "-selection"
}

func (rc *RecordContext) Choose(key, value string) {
	rc.choices[key] = value
}

func (rc *RecordContext) Chosen(key string) (string, bool) {
	v, ok := rc.choices[key]
	return v, ok
}

func (rc *RecordContext) deferTo(controllerKey, dependent, value string) {
	rc.pending[controllerKey] = append(rc.pending[controllerKey], pendingChoice{dependent: dependent, value: value})
}

func (rc *RecordContext) pendingFor(controllerKey string) []pendingChoice {
	return rc.pending[controllerKey]
}

func (rc *RecordContext) report(kind types.DiagnosticKind, entity, field, message string) {
	rc.diagnostics = append(rc.diagnostics, types.Diagnostic{
		Kind:    kind,
		Entity:  entity,
		Field:   field,
		Message: message,
	})
}

// Diagnostics returns what was reported while synthesizing the record.
func (rc *RecordContext) Diagnostics() []types.Diagnostic {
	return rc.diagnostics
}
