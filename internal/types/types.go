package types

import (
	"time"
)

type FieldType string

const (
	FieldString        FieldType = "string"
	FieldTextArea      FieldType = "textarea"
	FieldEmail         FieldType = "email"
	FieldPhone         FieldType = "phone"
	FieldURL           FieldType = "url"
	FieldInt           FieldType = "int"
	FieldDouble        FieldType = "double"
	FieldCurrency      FieldType = "currency"
	FieldPercent       FieldType = "percent"
	FieldBoolean       FieldType = "boolean"
	FieldDate          FieldType = "date"
	FieldDateTime      FieldType = "datetime"
	FieldTime          FieldType = "time"
	FieldPicklist      FieldType = "picklist"
	FieldMultiPicklist FieldType = "multipicklist"
	FieldCombobox      FieldType = "combobox"
	FieldReference     FieldType = "reference"
	FieldID            FieldType = "id"
	FieldAddress       FieldType = "address"
	FieldLocation      FieldType = "location"
	FieldBase64        FieldType = "base64"
	FieldEncrypted     FieldType = "encryptedstring"
)

// IsText reports whether values of this type are strings bounded by MaxLength.
func (t FieldType) IsText() bool {
	switch t {
	case FieldString, FieldTextArea, FieldEmail, FieldPhone, FieldURL, FieldCombobox, FieldEncrypted:
		return true
	}
	return false
}

type PicklistValue struct {
	Value    string `json:"value" yaml:"value"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Active   bool   `json:"active" yaml:"active"`
	Default  bool   `json:"default,omitempty" yaml:"default,omitempty"`
	ValidFor string `json:"validFor,omitempty" yaml:"validFor,omitempty"` // base64 bitmap over the controller's active values
}

type FieldDescriptor struct {
	Name                 string          `json:"name" yaml:"name"`
	Label                string          `json:"label,omitempty" yaml:"label,omitempty"`
	Type                 FieldType       `json:"type" yaml:"type"`
	MaxLength            int             `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Precision            int             `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale                int             `json:"scale,omitempty" yaml:"scale,omitempty"`
	Required             bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Writable             bool            `json:"writable" yaml:"writable"`
	Calculated           bool            `json:"calculated,omitempty" yaml:"calculated,omitempty"`
	AutoNumber           bool            `json:"autoNumber,omitempty" yaml:"autoNumber,omitempty"`
	Unique               bool            `json:"unique,omitempty" yaml:"unique,omitempty"`
	Nillable             bool            `json:"nillable,omitempty" yaml:"nillable,omitempty"`
	DefaultedOnCreate    bool            `json:"defaultedOnCreate,omitempty" yaml:"defaultedOnCreate,omitempty"`
	ReferenceTargets     []string        `json:"referenceTargets,omitempty" yaml:"referenceTargets,omitempty"`
	PicklistValues       []PicklistValue `json:"picklistValues,omitempty" yaml:"picklistValues,omitempty"`
	ControllingFieldName string          `json:"controllingFieldName,omitempty" yaml:"controllingFieldName,omitempty"`
	IsDependentPicklist  bool            `json:"isDependentPicklist,omitempty" yaml:"isDependentPicklist,omitempty"`
}

// ActiveValues returns the active picklist values in declared order.
func (f *FieldDescriptor) ActiveValues() []string {
	values := make([]string, 0, len(f.PicklistValues))
	for _, pv := range f.PicklistValues {
		if pv.Active {
			values = append(values, pv.Value)
		}
	}
	return values
}

func (f *FieldDescriptor) IsPicklist() bool {
	return f.Type == FieldPicklist || f.Type == FieldMultiPicklist
}

// SchemaDescriptor is the describe result for one entity type. It is not
// modified after it has been fetched for a session.
type SchemaDescriptor struct {
	Name   string            `json:"name" yaml:"name"`
	Label  string            `json:"label,omitempty" yaml:"label,omitempty"`
	Fields []FieldDescriptor `json:"fields" yaml:"fields"`
}

func (s *SchemaDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Dependents returns the dependent picklist fields controlled by the named field.
func (s *SchemaDescriptor) Dependents(controller string) []*FieldDescriptor {
	var deps []*FieldDescriptor
	for i := range s.Fields {
		if s.Fields[i].IsDependentPicklist && s.Fields[i].ControllingFieldName == controller {
			deps = append(deps, &s.Fields[i])
		}
	}
	return deps
}

type GenerationConfig struct {
	EntityType        string `json:"entityType"`
	Enabled           bool   `json:"enabled"`
	TargetRecordCount int    `json:"targetRecordCount"`
	LoadPriority      int    `json:"loadPriority"`
}

type Record map[string]interface{}

type RecordError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

type CreateResult struct {
	Success bool          `json:"success"`
	ID      string        `json:"id,omitempty"`
	Errors  []RecordError `json:"errors,omitempty"`
}

type RuleRef struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	EntityType string `json:"entityType"`
	Active     bool   `json:"active"`
}

type ValidationRule struct {
	ID                    string `json:"id" yaml:"id"`
	FullName              string `json:"fullName" yaml:"fullName"`
	EntityType            string `json:"entityType" yaml:"entityType"`
	Active                bool   `json:"active" yaml:"active"`
	ErrorConditionFormula string `json:"errorConditionFormula" yaml:"errorConditionFormula"`
	ErrorMessage          string `json:"errorMessage" yaml:"errorMessage"`
	ErrorDisplayField     string `json:"errorDisplayField,omitempty" yaml:"errorDisplayField,omitempty"`
	Description           string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (r *ValidationRule) Ref() RuleRef {
	return RuleRef{ID: r.ID, FullName: r.FullName, EntityType: r.EntityType, Active: r.Active}
}

type ValidationRuleSnapshot struct {
	FullName         string    `json:"fullName" bson:"full_name"`
	ID               string    `json:"id" bson:"rule_id"`
	EntityType       string    `json:"entityType" bson:"entity_type"`
	OriginallyActive bool      `json:"originallyActive" bson:"originally_active"`
	SuspendedAt      time.Time `json:"suspendedAt" bson:"suspended_at"`
}

func (s ValidationRuleSnapshot) Ref() RuleRef {
	return RuleRef{ID: s.ID, FullName: s.FullName, EntityType: s.EntityType}
}

type RecordOutcome struct {
	Index  int           `json:"index"`
	ID     string        `json:"id,omitempty"`
	Data   Record        `json:"data"`
	Errors []RecordError `json:"errors,omitempty"`
}

type LoadResult struct {
	EntityType        string          `json:"entityType"`
	Attempted         int             `json:"attempted"`
	Created           int             `json:"created"`
	Failed            int             `json:"failed"`
	SuccessRatePct    float64         `json:"successRatePct"`
	ElapsedMs         int64           `json:"elapsedMs"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
	PerRecordOutcomes []RecordOutcome `json:"-"`
}

// SuccessRate returns created/attempted as a percentage rounded to two places.
func SuccessRate(created, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	pct := float64(created) * 100 / float64(attempted)
	return float64(int64(pct*100+0.5)) / 100
}

type ProgressStatus string

const (
	StatusPending    ProgressStatus = "pending"
	StatusGenerating ProgressStatus = "generating"
	StatusLoading    ProgressStatus = "loading"
	StatusCompleted  ProgressStatus = "completed"
	StatusError      ProgressStatus = "error"
)

type ProgressEvent struct {
	Seq            int            `json:"seq"`
	SessionID      string         `json:"sessionId"`
	EntityType     string         `json:"entityType"`
	Status         ProgressStatus `json:"status"`
	GeneratedCount int            `json:"generatedCount"`
	LoadedCount    int            `json:"loadedCount"`
	TotalCount     int            `json:"totalCount"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

type DiagnosticKind string

const (
	DiagSchema               DiagnosticKind = "SchemaError"
	DiagReferenceUnavailable DiagnosticKind = "ReferenceUnavailable"
)

type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Entity  string         `json:"entity"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
}
