package synth

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/refs"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func regionPair() (types.FieldDescriptor, types.FieldDescriptor) {
	region := types.FieldDescriptor{
		Name: "Region__c", Type: types.FieldPicklist, Writable: true,
		PicklistValues: []types.PicklistValue{
			{Value: "EMEA", Active: true},
			{Value: "Retired", Active: false},
			{Value: "AMER", Active: true},
			{Value: "APAC", Active: true},
		},
	}
	sub := types.FieldDescriptor{
		Name: "SubRegion__c", Type: types.FieldPicklist, Writable: true,
		ControllingFieldName: "Region__c", IsDependentPicklist: true,
		PicklistValues: []types.PicklistValue{
			{Value: "UK", Active: true, ValidFor: picklist.EncodeBitmap(0)},
			{Value: "DACH", Active: true, ValidFor: picklist.EncodeBitmap(0)},
			{Value: "US-West", Active: true, ValidFor: picklist.EncodeBitmap(1)},
			{Value: "Canada", Active: true, ValidFor: picklist.EncodeBitmap(1)},
			{Value: "Global", Active: true, ValidFor: picklist.EncodeBitmap(0, 1, 2)},
			{Value: "Orphan", Active: true, ValidFor: picklist.EncodeBitmap()},
		},
	}
	return region, sub
}

func newSynth(pools refs.Reader, opts ...func(*Options)) *Synthesizer {
	o := Options{Session: "sess-1", Seed: 42, Now: fixedNow}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o, pools, picklist.NewCache())
}

func TestStringsRespectMaxLength(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Account",
		Fields: []types.FieldDescriptor{
			{Name: "Name", Type: types.FieldString, MaxLength: 8, Writable: true, Required: true},
			{Name: "Description", Type: types.FieldTextArea, MaxLength: 12, Writable: true},
			{Name: "Email__c", Type: types.FieldEmail, MaxLength: 20, Writable: true},
			{Name: "Phone", Type: types.FieldPhone, MaxLength: 10, Writable: true},
			{Name: "Website", Type: types.FieldURL, MaxLength: 15, Writable: true},
			{Name: "Code__c", Type: types.FieldString, MaxLength: 3, Writable: true, Unique: true},
			{Name: "Notes__c", Type: types.FieldString, Writable: true},
		},
	}
	s := newSynth(refs.NewPool())

	for i := 0; i < 200; i++ {
		record, diags := s.Record(schema, i)
		assert.Empty(t, diags)
		for _, f := range schema.Fields {
			value, ok := record[f.Name]
			require.True(t, ok, "field %s missing at index %d", f.Name, i)
			str, isString := value.(string)
			require.True(t, isString)
			assert.LessOrEqual(t, utf8.RuneCountInString(str), maxLength(&f), "%s=%q", f.Name, str)
		}
	}

	t.Run("overrides", func(t *testing.T) {
		s := newSynth(refs.NewPool(), func(o *Options) {
			o.Overrides = []Override{
				{Entity: "Account", Field: "Code__c", Action: OverrideFixed, Value: "TOOLONG"},
				{Entity: "Account", Field: "Name", Action: OverrideValues, Values: []string{"Short", "Much Too Long Name"}},
			}
		})
		first, _ := s.Record(schema, 0)
		second, _ := s.Record(schema, 1)
		assert.Equal(t, "TOO", first["Code__c"])
		assert.Equal(t, "Short", first["Name"])
		assert.Equal(t, "Much Too", second["Name"])
	})
}

func TestEmailsAreUniqueAndValid(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name:   "Contact",
		Fields: []types.FieldDescriptor{{Name: "Email", Type: types.FieldEmail, MaxLength: 80, Writable: true}},
	}
	s := newSynth(refs.NewPool())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		record, _ := s.Record(schema, i)
		email := record["Email"].(string)
		assert.Equal(t, 1, strings.Count(email, "@"))
		assert.True(t, strings.HasSuffix(email, "@example.com"))
		assert.False(t, seen[email], "duplicate email %s", email)
		seen[email] = true
	}
}

func TestDependentPicklistConsistency(t *testing.T) {
	region, sub := regionPair()
	table := picklist.Decode(&region, &sub)

	tests := []struct {
		name   string
		fields []types.FieldDescriptor
	}{
		{name: "controller declared first", fields: []types.FieldDescriptor{region, sub}},
		{name: "dependent declared first", fields: []types.FieldDescriptor{sub, region}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &types.SchemaDescriptor{Name: "Account", Fields: tt.fields}
			s := newSynth(refs.NewPool())
			for i := 0; i < 60; i++ {
				record, _ := s.Record(schema, i)
				dv, ok := record["SubRegion__c"]
				if !ok {
					continue
				}
				cv := record["Region__c"].(string)
				assert.Contains(t, table.ValidFor(cv), dv, "index %d", i)
			}
		})
	}
}

func TestDependentBeforeControllerStaysConsistent(t *testing.T) {
	region, sub := regionPair()
	schema := &types.SchemaDescriptor{Name: "Account", Fields: []types.FieldDescriptor{sub, region}}
	table := picklist.Decode(&region, &sub)
	s := newSynth(refs.NewPool())

	for i := 0; i < 30; i++ {
		rc := NewRecordContext()
		dv, ok := s.Synthesize(schema, &schema.Fields[0], i, rc)
		require.True(t, ok)
		assert.NotEqual(t, "Orphan", dv)

		cv, ok := s.Synthesize(schema, &schema.Fields[1], i, rc)
		require.True(t, ok)
		assert.Contains(t, table.ValidFor(cv.(string)), dv)
	}
}

func TestRequiredDependentWithNoValidValueIsUnset(t *testing.T) {
	region, sub := regionPair()
	sub.Required = true
	schema := &types.SchemaDescriptor{Name: "Account", Fields: []types.FieldDescriptor{region, sub}}
	s := newSynth(refs.NewPool())

	rc := NewRecordContext()
	rc.Choose(SelectionKey("Account", "Region__c"), "Retired")
	_, ok := s.Synthesize(schema, &schema.Fields[1], 0, rc)

	assert.False(t, ok)
	require.Len(t, rc.Diagnostics(), 1)
	assert.Equal(t, types.DiagSchema, rc.Diagnostics()[0].Kind)
}

func TestDependentWithoutMappableValuesIsUnset(t *testing.T) {
	region, sub := regionPair()
	for i := range sub.PicklistValues {
		sub.PicklistValues[i].ValidFor = "%%%not-base64"
	}
	schema := &types.SchemaDescriptor{Name: "Account", Fields: []types.FieldDescriptor{sub, region}}
	s := newSynth(refs.NewPool())

	rc := NewRecordContext()
	_, ok := s.Synthesize(schema, &schema.Fields[0], 0, rc)
	assert.False(t, ok)

	var unmapped bool
	for _, d := range rc.Diagnostics() {
		assert.Equal(t, types.DiagSchema, d.Kind)
		if strings.Contains(d.Message, "maps to any") {
			unmapped = true
		}
	}
	assert.True(t, unmapped)
}

func TestBooleanControllerReturnsBool(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Account",
		Fields: []types.FieldDescriptor{
			{Name: "IsPartner__c", Type: types.FieldBoolean, Writable: true},
			{
				Name: "Tier__c", Type: types.FieldPicklist, Writable: true, Required: true,
				ControllingFieldName: "IsPartner__c", IsDependentPicklist: true,
				PicklistValues: []types.PicklistValue{{Value: "Gold", Active: true, ValidFor: picklist.EncodeBitmap(1)}},
			},
		},
	}
	s := newSynth(refs.NewPool())

	for i := 0; i < 4; i++ {
		record, diags := s.Record(schema, i)
		assert.Empty(t, diags)
		assert.Equal(t, true, record["IsPartner__c"])
		assert.Equal(t, "Gold", record["Tier__c"])
	}
}

func TestReferenceFieldsReuseCreatedIdentifiers(t *testing.T) {
	pool := refs.NewPool()
	pool.Append("Account", "001A", "001B", "001C")
	schema := &types.SchemaDescriptor{
		Name: "Contact",
		Fields: []types.FieldDescriptor{
			{Name: "AccountId", Type: types.FieldReference, Writable: true, Required: true, ReferenceTargets: []string{"Account"}},
		},
	}
	s := newSynth(pool)

	want := []string{"001A", "001B", "001C", "001A", "001B"}
	for i := 0; i < 5; i++ {
		record, diags := s.Record(schema, i)
		assert.Empty(t, diags)
		assert.Equal(t, want[i], record["AccountId"])
	}
}

func TestRequiredReferenceWithEmptyPool(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Contact",
		Fields: []types.FieldDescriptor{
			{Name: "AccountId", Type: types.FieldReference, Writable: true, Required: true, ReferenceTargets: []string{"Account"}},
			{Name: "ReportsToId", Type: types.FieldReference, Writable: true, ReferenceTargets: []string{"Contact"}},
		},
	}
	s := newSynth(refs.NewPool())

	record, diags := s.Record(schema, 0)

	assert.Empty(t, record)
	require.Len(t, diags, 1)
	assert.Equal(t, types.DiagReferenceUnavailable, diags[0].Kind)
	assert.Equal(t, "AccountId", diags[0].Field)
}

func TestSkippedFieldsAndOverrides(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Opportunity",
		Fields: []types.FieldDescriptor{
			{Name: "Id", Type: types.FieldID, Writable: true},
			{Name: "OwnerId", Type: types.FieldReference, Writable: true, ReferenceTargets: []string{"User"}},
			{Name: "Amount__c", Type: types.FieldCurrency, Writable: true, Calculated: true},
			{Name: "Number__c", Type: types.FieldString, Writable: true, AutoNumber: true},
			{Name: "ReadOnly__c", Type: types.FieldString},
			{Name: "Secret__c", Type: types.FieldString, Writable: true},
			{Name: "RecordTypeId", Type: types.FieldReference, Writable: true, ReferenceTargets: []string{"RecordType"}},
			{Name: "CurrencyIsoCode", Type: types.FieldPicklist, Writable: true, PicklistValues: []types.PicklistValue{{Value: "EUR", Active: true}}},
			{Name: "StageName", Type: types.FieldPicklist, Writable: true, PicklistValues: []types.PicklistValue{{Value: "Closed Won", Active: true}}},
		},
	}
	pool := refs.NewPool()
	pool.Append("User", "005A")
	pool.Append("RecordType", "012A")
	s := newSynth(pool, func(o *Options) {
		o.ExcludeFields = []string{"Secret__c"}
		o.Overrides = []Override{
			{Entity: "Opportunity", Field: "StageName", Action: OverrideValues, Values: []string{"Prospecting", "Qualification"}},
		}
	})

	first, _ := s.Record(schema, 0)
	second, _ := s.Record(schema, 1)

	assert.Equal(t, types.Record{"CurrencyIsoCode": "USD", "StageName": "Prospecting"}, first)
	assert.Equal(t, "Qualification", second["StageName"])
}

func TestOverrideLookupPrecedence(t *testing.T) {
	o := NewOverrides([]Override{
		{Entity: "*", Field: "CurrencyIsoCode", Action: OverrideFixed, Value: "EUR"},
		{Entity: "Account", Field: "CurrencyIsoCode", Action: OverrideFixed, Value: "GBP"},
	})

	rule, ok := o.Lookup("Account", "CurrencyIsoCode")
	require.True(t, ok)
	assert.Equal(t, "GBP", rule.Value)

	rule, ok = o.Lookup("Contact", "CurrencyIsoCode")
	require.True(t, ok)
	assert.Equal(t, "EUR", rule.Value)

	_, ok = o.Lookup("Contact", "Name")
	assert.False(t, ok)
}

func TestOverrideValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Override
		wantErr bool
	}{
		{"skip", Override{Field: "Foo", Action: OverrideSkip}, false},
		{"fixed without value", Override{Field: "Foo", Action: OverrideFixed}, true},
		{"values without values", Override{Field: "Foo", Action: OverrideValues}, true},
		{"unknown action", Override{Field: "Foo", Action: "random"}, true},
		{"missing field", Override{Action: OverrideSkip}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPicklistRotation(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Lead",
		Fields: []types.FieldDescriptor{
			{Name: "Rating", Type: types.FieldPicklist, Writable: true, PicklistValues: []types.PicklistValue{
				{Value: "Hot", Active: true}, {Value: "Old", Active: false}, {Value: "Warm", Active: true}, {Value: "Cold", Active: true},
			}},
			{Name: "Interests__c", Type: types.FieldMultiPicklist, Writable: true, PicklistValues: []types.PicklistValue{
				{Value: "a", Active: true}, {Value: "b", Active: true}, {Value: "c", Active: true}, {Value: "d", Active: true},
			}},
		},
	}
	s := newSynth(refs.NewPool())

	wantRating := []string{"Hot", "Warm", "Cold", "Hot"}
	wantInterests := []string{"a", "b;c", "c;d;a", "d"}
	for i := 0; i < 4; i++ {
		record, _ := s.Record(schema, i)
		assert.Equal(t, wantRating[i], record["Rating"])
		assert.Equal(t, wantInterests[i], record["Interests__c"])
	}
}

func TestUnsupportedTypesAreAbsent(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Account",
		Fields: []types.FieldDescriptor{
			{Name: "BillingAddress", Type: types.FieldAddress, Writable: true},
			{Name: "Geo__c", Type: types.FieldLocation, Writable: true},
			{Name: "Blob__c", Type: types.FieldBase64, Writable: true},
			{Name: "Mystery__c", Type: "anyType", Writable: true},
		},
	}
	record, diags := newSynth(refs.NewPool()).Record(schema, 0)
	assert.Empty(t, record)
	assert.Empty(t, diags)
}

func TestMissingControllerIsSchemaError(t *testing.T) {
	_, sub := regionPair()
	schema := &types.SchemaDescriptor{Name: "Account", Fields: []types.FieldDescriptor{sub}}

	record, diags := newSynth(refs.NewPool()).Record(schema, 0)

	assert.Empty(t, record)
	require.Len(t, diags, 1)
	assert.Equal(t, types.DiagSchema, diags[0].Kind)
}

func TestSynthesisIsDeterministic(t *testing.T) {
	region, sub := regionPair()
	schema := &types.SchemaDescriptor{
		Name: "Account",
		Fields: []types.FieldDescriptor{
			{Name: "Name", Type: types.FieldString, MaxLength: 80, Writable: true},
			{Name: "AnnualRevenue", Type: types.FieldCurrency, Precision: 18, Scale: 2, Writable: true},
			{Name: "NumberOfEmployees", Type: types.FieldInt, Precision: 8, Writable: true},
			{Name: "Score__c", Type: types.FieldPercent, Writable: true},
			{Name: "Active__c", Type: types.FieldBoolean, Writable: true},
			{Name: "SignedOn__c", Type: types.FieldDate, Writable: true},
			{Name: "LastCall__c", Type: types.FieldDateTime, Writable: true},
			region, sub,
		},
	}

	a := newSynth(refs.NewPool())
	b := newSynth(refs.NewPool())
	for i := 0; i < 20; i++ {
		ra, _ := a.Record(schema, i)
		rb, _ := b.Record(schema, i)
		assert.Equal(t, ra, rb)
	}

	other := newSynth(refs.NewPool(), func(o *Options) { o.Seed = 7 })
	ra, _ := a.Record(schema, 3)
	ro, _ := other.Record(schema, 3)
	assert.NotEqual(t, ra, ro)
}

func TestNumbersRespectPrecision(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Product2",
		Fields: []types.FieldDescriptor{
			{Name: "Qty__c", Type: types.FieldDouble, Precision: 4, Scale: 1, Writable: true},
			{Name: "Rank__c", Type: types.FieldInt, Precision: 2, Writable: true},
		},
	}
	s := newSynth(refs.NewPool())
	for i := 0; i < 100; i++ {
		record, _ := s.Record(schema, i)
		assert.Less(t, record["Qty__c"].(float64), 1000.0)
		assert.LessOrEqual(t, record["Rank__c"].(int), 99)
		assert.GreaterOrEqual(t, record["Rank__c"].(int), 1)
	}
}

func TestOrderFieldsPutsControllersFirst(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Name: "Account",
		Fields: []types.FieldDescriptor{
			{Name: "City__c"},
			{Name: "BillingState"},
			{Name: "Tier__c", ControllingFieldName: "Segment__c"},
			{Name: "BillingCountry"},
			{Name: "Segment__c", ControllingFieldName: "Region__c"},
			{Name: "Region__c"},
		},
	}

	var names []string
	for _, f := range OrderFields(schema) {
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{"BillingCountry", "Region__c", "City__c", "BillingState", "Segment__c", "Tier__c"}, names)
}
