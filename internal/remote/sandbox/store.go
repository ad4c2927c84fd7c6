package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/google/uuid"
)

var keyPrefixes = map[string]string{
	"Account":     "001",
	"Contact":     "003",
	"Opportunity": "006",
	"Lead":        "00Q",
	"Case":        "500",
	"User":        "005",
}

// Hooks inject failures. Each hook runs before the real operation; a
// non-nil error is returned as if the platform had failed.
type Hooks struct {
	Describe func(entityType string) error
	Create   func(entityType string, records []types.Record) error
	ReadRule func(ref types.RuleRef) error
	Update   func(rule *types.ValidationRule) error
}

// Calls counts the operations served.
type Calls struct {
	Describe atomic.Int64
	Create   atomic.Int64
	Update   atomic.Int64
}

// Store is an in-memory business-object platform. It enforces field
// metadata and active validation rules on create, so a bulk load behaves
// the way it would against a real org.
type Store struct {
	mu        sync.RWMutex
	schemas   map[string]*types.SchemaDescriptor
	rules     map[string]*types.ValidationRule
	ruleOrder []string
	records   map[string]map[string]types.Record
	owners    map[string]string
	engine    *ruleEngine
	hooks     Hooks

	Calls Calls
}

func New(fixture Fixture) (*Store, error) {
	s := &Store{
		schemas: make(map[string]*types.SchemaDescriptor),
		rules:   make(map[string]*types.ValidationRule),
		records: make(map[string]map[string]types.Record),
		owners:  make(map[string]string),
		engine:  newRuleEngine(),
	}

	for i := range fixture.Objects {
		obj := fixture.Objects[i]
		if obj.Name == "" {
			return nil, fmt.Errorf("fixture object %d has no name", i)
		}
		if _, exists := s.schemas[obj.Name]; exists {
			return nil, fmt.Errorf("object %s defined twice", obj.Name)
		}
		s.schemas[obj.Name] = &obj
	}

	for i := range fixture.ValidationRules {
		rule := fixture.ValidationRules[i]
		if rule.FullName == "" {
			rule.FullName = rule.EntityType + "." + fmt.Sprintf("Rule_%d", i+1)
		}
		if rule.ID == "" {
			rule.ID = "03d" + compactID()
		}
		if _, ok := s.schemas[rule.EntityType]; !ok {
			return nil, fmt.Errorf("validation rule %s targets unknown object %s", rule.FullName, rule.EntityType)
		}
		if err := s.engine.compile(rule.ErrorConditionFormula); err != nil {
			return nil, fmt.Errorf("validation rule %s: %w", rule.FullName, err)
		}
		s.rules[rule.ID] = &rule
		s.ruleOrder = append(s.ruleOrder, rule.ID)
	}

	return s, nil
}

// SetHooks replaces the failure hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// Objects lists the object names served, sorted.
func (s *Store) Objects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records returns a copy of the records created for entityType.
func (s *Store) Records(entityType string) map[string]types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.Record, len(s.records[entityType]))
	for id, rec := range s.records[entityType] {
		out[id] = rec
	}
	return out
}

// Rule returns the current state of a rule by full name.
func (s *Store) Rule(fullName string) (types.ValidationRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.ruleOrder {
		if s.rules[id].FullName == fullName {
			return *s.rules[id], true
		}
	}
	return types.ValidationRule{}, false
}

func (s *Store) Describe(ctx context.Context, entityType string) (*types.SchemaDescriptor, error) {
	s.Calls.Describe.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hooks.Describe != nil {
		if err := s.hooks.Describe(entityType); err != nil {
			return nil, err
		}
	}
	schema, ok := s.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("NOT_FOUND: the requested resource does not exist: %s", entityType)
	}

	out := *schema
	out.Fields = append([]types.FieldDescriptor(nil), schema.Fields...)
	return &out, nil
}

func (s *Store) Create(ctx context.Context, entityType string, records []types.Record) ([]types.CreateResult, error) {
	s.Calls.Create.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hooks.Create != nil {
		if err := s.hooks.Create(entityType, records); err != nil {
			return nil, err
		}
	}
	schema, ok := s.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("INVALID_TYPE: sObject type '%s' is not supported", entityType)
	}

	results := make([]types.CreateResult, len(records))
	for i, record := range records {
		errs := s.check(schema, record)
		if len(errs) == 0 {
			errs = s.applyRules(schema, record)
		}
		if len(errs) > 0 {
			results[i] = types.CreateResult{Success: false, Errors: errs}
			continue
		}

		id := newRecordID(entityType)
		stored := make(types.Record, len(record)+1)
		for k, v := range record {
			stored[k] = v
		}
		stored["Id"] = id
		if s.records[entityType] == nil {
			s.records[entityType] = make(map[string]types.Record)
		}
		s.records[entityType][id] = stored
		s.owners[id] = entityType
		results[i] = types.CreateResult{Success: true, ID: id}
	}
	return results, nil
}

// check enforces field metadata the way the platform does before any
// validation rule runs.
func (s *Store) check(schema *types.SchemaDescriptor, record types.Record) []types.RecordError {
	var errs []types.RecordError

	var unknown []string
	for name := range record {
		if _, ok := schema.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, types.RecordError{
			StatusCode: "INVALID_FIELD",
			Message:    fmt.Sprintf("No such column '%s' on sobject of type %s", name, schema.Name),
			Fields:     []string{name},
		})
	}

	var missing []string
	for i := range schema.Fields {
		f := &schema.Fields[i]
		value, present := record[f.Name]
		if present && value == nil {
			present = false
		}

		if !present {
			if f.Required && f.Writable && !f.DefaultedOnCreate && f.Type != types.FieldBoolean {
				missing = append(missing, f.Name)
			}
			continue
		}

		if !f.Writable || f.Calculated || f.AutoNumber {
			errs = append(errs, types.RecordError{
				StatusCode: "INVALID_FIELD_FOR_INSERT_UPDATE",
				Message:    fmt.Sprintf("Unable to create/update fields: %s", f.Name),
				Fields:     []string{f.Name},
			})
			continue
		}

		if err, bad := s.checkValue(schema, f, value, record); bad {
			errs = append(errs, err)
		}
	}

	if len(missing) > 0 {
		errs = append(errs, types.RecordError{
			StatusCode: "REQUIRED_FIELD_MISSING",
			Message:    fmt.Sprintf("Required fields are missing: [%s]", strings.Join(missing, ", ")),
			Fields:     missing,
		})
	}
	return errs
}

func (s *Store) checkValue(schema *types.SchemaDescriptor, f *types.FieldDescriptor, value interface{}, record types.Record) (types.RecordError, bool) {
	fieldErr := func(code, format string, args ...interface{}) (types.RecordError, bool) {
		return types.RecordError{StatusCode: code, Message: fmt.Sprintf(format, args...), Fields: []string{f.Name}}, true
	}

	if f.Type.IsText() {
		str, ok := value.(string)
		if !ok {
			return fieldErr("INVALID_TYPE_ON_FIELD_IN_RECORD", "%s: value not of required type: %v", f.Label, value)
		}
		limit := f.MaxLength
		if limit <= 0 {
			limit = 255
		}
		if n := len([]rune(str)); n > limit {
			return fieldErr("STRING_TOO_LONG", "%s: data value too large: %s (max length=%d)", f.Label, str, limit)
		}
		if f.Type == types.FieldEmail && (strings.Count(str, "@") != 1 || strings.HasPrefix(str, "@") || strings.HasSuffix(str, "@")) {
			return fieldErr("INVALID_EMAIL_ADDRESS", "%s: invalid email address: %s", f.Label, str)
		}
	}

	switch f.Type {
	case types.FieldPicklist, types.FieldMultiPicklist:
		str := fmt.Sprint(value)
		values := []string{str}
		if f.Type == types.FieldMultiPicklist {
			values = strings.Split(str, ";")
		}
		active := make(map[string]bool)
		for _, v := range f.ActiveValues() {
			active[v] = true
		}
		for _, v := range values {
			if !active[v] {
				return fieldErr("INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST", "%s: bad value for restricted picklist field: %s", f.Label, v)
			}
		}
		if f.IsDependentPicklist {
			return s.checkDependent(schema, f, values, record)
		}

	case types.FieldReference:
		id, _ := value.(string)
		owner, exists := s.owners[id]
		if !exists || !contains(f.ReferenceTargets, owner) {
			return fieldErr("INVALID_CROSS_REFERENCE_KEY", "invalid cross reference id")
		}
	}
	return types.RecordError{}, false
}

func (s *Store) checkDependent(schema *types.SchemaDescriptor, f *types.FieldDescriptor, values []string, record types.Record) (types.RecordError, bool) {
	controller, ok := schema.Field(f.ControllingFieldName)
	if !ok {
		return types.RecordError{}, false
	}
	controllerValue := "false"
	if v, present := record[controller.Name]; present && v != nil {
		controllerValue = fmt.Sprint(v)
	} else if controller.Type != types.FieldBoolean {
		controllerValue = ""
	}

	valid := picklist.Decode(controller, f).ValidFor(controllerValue)
	for _, v := range values {
		if !contains(valid, v) {
			return types.RecordError{
				StatusCode: "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST",
				Message:    fmt.Sprintf("%s: bad value for dependent picklist: %s (controller %s=%q)", f.Label, v, controller.Name, controllerValue),
				Fields:     []string{f.Name},
			}, true
		}
	}
	return types.RecordError{}, false
}

func (s *Store) applyRules(schema *types.SchemaDescriptor, record types.Record) []types.RecordError {
	var errs []types.RecordError
	for _, id := range s.ruleOrder {
		rule := s.rules[id]
		if !rule.Active || rule.EntityType != schema.Name {
			continue
		}
		fired, err := s.engine.fires(rule.ErrorConditionFormula, schema, record)
		if err != nil || !fired {
			continue
		}
		e := types.RecordError{StatusCode: "FIELD_CUSTOM_VALIDATION_EXCEPTION", Message: rule.ErrorMessage}
		if rule.ErrorDisplayField != "" {
			e.Fields = []string{rule.ErrorDisplayField}
		}
		errs = append(errs, e)
	}
	return errs
}

func (s *Store) ListValidationRules(ctx context.Context, entityTypes []string) ([]types.RuleRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []types.RuleRef
	for _, id := range s.ruleOrder {
		rule := s.rules[id]
		if contains(entityTypes, rule.EntityType) {
			refs = append(refs, rule.Ref())
		}
	}
	return refs, nil
}

func (s *Store) ReadRule(ctx context.Context, ref types.RuleRef) (*types.ValidationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hooks.ReadRule != nil {
		if err := s.hooks.ReadRule(ref); err != nil {
			return nil, err
		}
	}
	rule := s.findRule(ref.ID, ref.FullName)
	if rule == nil {
		return nil, fmt.Errorf("validation rule %s not found", ref.FullName)
	}
	out := *rule
	return &out, nil
}

func (s *Store) UpdateRule(ctx context.Context, rule *types.ValidationRule) error {
	s.Calls.Update.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hooks.Update != nil {
		if err := s.hooks.Update(rule); err != nil {
			return err
		}
	}
	current := s.findRule(rule.ID, rule.FullName)
	if current == nil {
		return fmt.Errorf("validation rule %s not found", rule.FullName)
	}
	if rule.ErrorConditionFormula != "" && rule.ErrorConditionFormula != current.ErrorConditionFormula {
		if err := s.engine.compile(rule.ErrorConditionFormula); err != nil {
			return fmt.Errorf("FIELD_INTEGRITY_EXCEPTION: %w", err)
		}
		current.ErrorConditionFormula = rule.ErrorConditionFormula
	}
	current.Active = rule.Active
	return nil
}

func (s *Store) findRule(id, fullName string) *types.ValidationRule {
	if id != "" {
		if rule, ok := s.rules[id]; ok {
			return rule
		}
	}
	for _, rid := range s.ruleOrder {
		if s.rules[rid].FullName == fullName {
			return s.rules[rid]
		}
	}
	return nil
}

func newRecordID(entityType string) string {
	prefix, ok := keyPrefixes[entityType]
	if !ok {
		prefix = "a0" + strings.ToUpper(entityType[:1])
	}
	return prefix + compactID()
}

// compactID returns 15 upper-case hex characters from a random UUID.
func compactID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:15]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
