package synth

import (
	"fmt"
)

type OverrideAction string

const (
	OverrideSkip   OverrideAction = "skip"
	OverrideFixed  OverrideAction = "fixed"
	OverrideValues OverrideAction = "values"
)

// Override pins a field to a static behaviour. An empty or "*" Entity
// matches every entity type.
type Override struct {
	Entity string         `json:"entity" mapstructure:"entity"`
	Field  string         `json:"field" mapstructure:"field"`
	Action OverrideAction `json:"action" mapstructure:"action"`
	Value  interface{}    `json:"value,omitempty" mapstructure:"value"`
	Values []string       `json:"values,omitempty" mapstructure:"values"`
}

func DefaultOverrides() []Override {
	return []Override{
		{Entity: "*", Field: "RecordTypeId", Action: OverrideSkip},
		{Entity: "*", Field: "CurrencyIsoCode", Action: OverrideFixed, Value: "USD"},
	}
}

func (o Override) Validate() error {
	if o.Field == "" {
		return fmt.Errorf("override for entity %q has no field", o.Entity)
	}
	switch o.Action {
	case OverrideSkip:
	case OverrideFixed:
		if o.Value == nil {
			return fmt.Errorf("override %s.%s: fixed action requires a value", o.Entity, o.Field)
		}
	case OverrideValues:
		if len(o.Values) == 0 {
			return fmt.Errorf("override %s.%s: values action requires at least one value", o.Entity, o.Field)
		}
	default:
		return fmt.Errorf("override %s.%s: unknown action %q", o.Entity, o.Field, o.Action)
	}
	return nil
}

func (o Override) wildcard() bool {
	return o.Entity == "" || o.Entity == "*"
}

// apply returns the override's value for the record at index, or false
// when the field is to be left unset.
func (o Override) apply(index int) (interface{}, bool) {
	switch o.Action {
	case OverrideFixed:
		return o.Value, true
	case OverrideValues:
		if len(o.Values) == 0 {
			return nil, false
		}
		return o.Values[index%len(o.Values)], true
	default:
		return nil, false
	}
}

// Overrides resolves the override for a field. Configured rules win over
// the defaults and an exact entity match wins over a wildcard.
type Overrides struct {
	exact    map[string]Override
	wildcard map[string]Override
}

func NewOverrides(configured []Override) *Overrides {
	o := &Overrides{
		exact:    make(map[string]Override),
		wildcard: make(map[string]Override),
	}
	for _, rule := range DefaultOverrides() {
		o.add(rule)
	}
	for _, rule := range configured {
		o.add(rule)
	}
	return o
}

func (o *Overrides) add(rule Override) {
	if rule.wildcard() {
		o.wildcard[rule.Field] = rule
		return
	}
	o.exact[rule.Entity+"."+rule.Field] = rule
}

func (o *Overrides) Lookup(entity, field string) (Override, bool) {
	if rule, ok := o.exact[entity+"."+field]; ok {
		return rule, true
	}
	rule, ok := o.wildcard[field]
	return rule, ok
}
