package synth

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/refs"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// SystemFields are never written by the synthesizer.
var SystemFields = []string{
	"Id", "OwnerId", "CreatedById", "CreatedDate", "LastModifiedById",
	"LastModifiedDate", "SystemModstamp", "IsDeleted", "MasterRecordId",
	"LastActivityDate", "LastViewedDate", "LastReferencedDate",
}

type Options struct {
	Session       string
	Seed          int64
	ExcludeFields []string
	Overrides     []Override
	// Now anchors generated dates; zero means time.Now().
	Now time.Time
}

// Synthesizer produces field values for one session. It is safe for
// concurrent use as long as each record gets its own RecordContext.
type Synthesizer struct {
	session   string
	gen       *DataGenerator
	overrides *Overrides
	excluded  map[string]bool
	pools     refs.Reader
	tables    *picklist.Cache
	order     sync.Map // *types.SchemaDescriptor -> []*types.FieldDescriptor
}

func New(opts Options, pools refs.Reader, tables *picklist.Cache) *Synthesizer {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if tables == nil {
		tables = picklist.NewCache()
	}

	excluded := make(map[string]bool, len(SystemFields)+len(opts.ExcludeFields))
	for _, name := range SystemFields {
		excluded[name] = true
	}
	for _, name := range opts.ExcludeFields {
		excluded[name] = true
	}

	return &Synthesizer{
		session:   opts.Session,
		gen:       NewDataGenerator(opts.Seed, opts.Session, now),
		overrides: NewOverrides(opts.Overrides),
		excluded:  excluded,
		pools:     pools,
		tables:    tables,
	}
}

// Record synthesizes every field of one record in controller-first order.
func (s *Synthesizer) Record(schema *types.SchemaDescriptor, index int) (types.Record, []types.Diagnostic) {
	rc := NewRecordContext()
	record := make(types.Record)
	for _, field := range s.fieldsOf(schema) {
		if value, ok := s.Synthesize(schema, field, index, rc); ok {
			record[field.Name] = value
		}
	}
	return record, rc.Diagnostics()
}

func (s *Synthesizer) fieldsOf(schema *types.SchemaDescriptor) []*types.FieldDescriptor {
	if cached, ok := s.order.Load(schema); ok {
		return cached.([]*types.FieldDescriptor)
	}
	fields := OrderFields(schema)
	s.order.Store(schema, fields)
	return fields
}

// Synthesize returns the value for one field of the record at index, or
// false when the field is to be left unset. It never panics; anything it
// cannot handle resolves to unset with a diagnostic in rc.
func (s *Synthesizer) Synthesize(schema *types.SchemaDescriptor, field *types.FieldDescriptor, index int, rc *RecordContext) (value interface{}, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rc.report(types.DiagSchema, schema.Name, field.Name, fmt.Sprintf("synthesis failed: %v", r))
			value, ok = nil, false
		}
	}()

	if s.skipped(field) {
		return nil, false
	}

	if rule, found := s.overrides.Lookup(schema.Name, field.Name); found {
		v, set := rule.apply(index)
		if set {
			if str, isString := v.(string); isString {
				if isText(field) {
					str = truncate(str, maxLength(field))
					v = str
				}
				rc.Choose(SelectionKey(schema.Name, field.Name), str)
			}
		}
		return v, set
	}

	switch {
	case field.Type == types.FieldReference:
		return s.reference(schema, field, index, rc)
	case field.IsDependentPicklist || field.ControllingFieldName != "":
		return s.dependent(schema, field, index, rc)
	case len(schema.Dependents(field.Name)) > 0:
		return s.controller(schema, field, index, rc)
	case field.IsPicklist():
		return s.picklist(schema, field, index, rc)
	case field.Type == types.FieldCombobox && len(field.ActiveValues()) > 0:
		return s.picklist(schema, field, index, rc)
	}

	return s.gen.GenerateForField(schema.Name, field, index)
}

func (s *Synthesizer) skipped(field *types.FieldDescriptor) bool {
	if !field.Writable || field.Calculated || field.AutoNumber {
		return true
	}
	if field.Type == types.FieldID {
		return true
	}
	return s.excluded[field.Name]
}

func (s *Synthesizer) reference(schema *types.SchemaDescriptor, field *types.FieldDescriptor, index int, rc *RecordContext) (interface{}, bool) {
	if s.pools != nil {
		if id, found := refs.Pick(s.pools, field.ReferenceTargets, index); found {
			return id, true
		}
	}
	if field.Required {
		rc.report(types.DiagReferenceUnavailable, schema.Name, field.Name,
			fmt.Sprintf("no identifiers created yet for %s", strings.Join(field.ReferenceTargets, ", ")))
	}
	return nil, false
}

func (s *Synthesizer) dependent(schema *types.SchemaDescriptor, field *types.FieldDescriptor, index int, rc *RecordContext) (interface{}, bool) {
	controller, found := schema.Field(field.ControllingFieldName)
	if !found {
		rc.report(types.DiagSchema, schema.Name, field.Name,
			fmt.Sprintf("controlling field %q not found", field.ControllingFieldName))
		return nil, false
	}

	table := s.tables.Table(s.session, schema.Name, controller, field)
	if len(table.Skipped) > 0 {
		rc.report(types.DiagSchema, schema.Name, field.Name,
			fmt.Sprintf("%d dependent values skipped: unreadable validFor data", len(table.Skipped)))
	}

	controllerKey := SelectionKey(schema.Name, controller.Name)
	if cv, chosen := rc.Chosen(controllerKey); chosen {
		valid := table.ValidFor(cv)
		if len(valid) == 0 {
			if field.Required {
				rc.report(types.DiagSchema, schema.Name, field.Name,
					fmt.Sprintf("no valid value for %s=%s", controller.Name, cv))
			}
			return nil, false
		}
		return s.choose(schema, field, valid, index, rc), true
	}

	// Controller not chosen yet: prefer dependent values that some
	// controller value accepts, and make the controller follow.
	active := field.ActiveValues()
	if len(active) == 0 {
		return nil, false
	}
	controllerValues := picklist.ControllerValues(controller)
	candidates := make([]string, 0, len(active))
	for _, v := range active {
		if len(table.ControllersFor(v, controllerValues)) > 0 {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		rc.report(types.DiagSchema, schema.Name, field.Name,
			fmt.Sprintf("no %s value maps to any %s value", field.Name, controller.Name))
		return nil, false
	}

	// A single value, even for multi-select, so one controller value fits all of it.
	value := candidates[index%len(candidates)]
	rc.Choose(SelectionKey(schema.Name, field.Name), value)
	rc.deferTo(controllerKey, field.Name, value)
	return value, true
}

// choose picks values[index mod len] (several for multi-select) and
// records the choice for fields further down the controlling chain.
func (s *Synthesizer) choose(schema *types.SchemaDescriptor, field *types.FieldDescriptor, values []string, index int, rc *RecordContext) interface{} {
	first := values[index%len(values)]
	rc.Choose(SelectionKey(schema.Name, field.Name), first)
	if field.Type != types.FieldMultiPicklist {
		return first
	}

	count := 1 + index%min(3, len(values))
	picked := make([]string, 0, count)
	for i := 0; i < count; i++ {
		picked = append(picked, values[(index+i)%len(values)])
	}
	return strings.Join(picked, ";")
}

func (s *Synthesizer) controller(schema *types.SchemaDescriptor, field *types.FieldDescriptor, index int, rc *RecordContext) (interface{}, bool) {
	values := picklist.ControllerValues(field)
	if len(values) == 0 {
		return nil, false
	}
	key := SelectionKey(schema.Name, field.Name)
	candidates := values

	for _, p := range rc.pendingFor(key) {
		dep, found := schema.Field(p.dependent)
		if !found {
			continue
		}
		table := s.tables.Table(s.session, schema.Name, field, dep)
		if allowed := intersect(candidates, table.ControllersFor(p.value, values)); len(allowed) > 0 {
			candidates = allowed
		}
	}

	for _, dep := range schema.Dependents(field.Name) {
		if !dep.Required {
			continue
		}
		table := s.tables.Table(s.session, schema.Name, field, dep)
		var usable []string
		for _, cv := range candidates {
			if len(table.ValidFor(cv)) > 0 {
				usable = append(usable, cv)
			}
		}
		if len(usable) > 0 {
			candidates = usable
		}
	}

	chosen := candidates[index%len(candidates)]
	rc.Choose(key, chosen)
	if field.Type == types.FieldBoolean {
		b, _ := strconv.ParseBool(chosen)
		return b, true
	}
	return chosen, true
}

func (s *Synthesizer) picklist(schema *types.SchemaDescriptor, field *types.FieldDescriptor, index int, rc *RecordContext) (interface{}, bool) {
	active := field.ActiveValues()
	if len(active) == 0 {
		if field.Required {
			rc.report(types.DiagSchema, schema.Name, field.Name, "picklist has no active values")
		}
		return nil, false
	}
	return s.choose(schema, field, active, index, rc), true
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, v := range b {
		in[v] = true
	}
	var out []string
	for _, v := range a {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}
