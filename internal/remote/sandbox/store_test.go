package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefault(t *testing.T) *Store {
	t.Helper()
	s, err := New(DefaultFixture())
	require.NoError(t, err)
	return s
}

func validAccount() types.Record {
	return types.Record{
		"Name":          "Acme Inc-1",
		"Type":          "Prospect",
		"Region__c":     "EMEA",
		"SubRegion__c":  "DACH",
		"AnnualRevenue": 2500000.0,
	}
}

func TestDescribeReturnsCopy(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()

	schema, err := s.Describe(ctx, "Account")
	require.NoError(t, err)
	schema.Fields[0].Name = "Mutated"

	again, err := s.Describe(ctx, "Account")
	require.NoError(t, err)
	assert.Equal(t, "Id", again.Fields[0].Name)

	_, err = s.Describe(ctx, "Nope")
	assert.Error(t, err)
}

func TestCreateEnforcesFieldMetadata(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()

	tooLong := validAccount()
	tooLong["AccountNumber"] = "12345678901234567890123456789012345678901"

	badPicklist := validAccount()
	badPicklist["Industry"] = "Mining"

	badDependent := validAccount()
	badDependent["SubRegion__c"] = "Japan"

	missing := validAccount()
	delete(missing, "Name")

	unknown := validAccount()
	unknown["Nickname__c"] = "x"

	readOnly := validAccount()
	readOnly["CreatedDate"] = "2026-01-01T00:00:00.000Z"

	tests := []struct {
		name   string
		record types.Record
		code   string
	}{
		{"string too long", tooLong, "STRING_TOO_LONG"},
		{"restricted picklist", badPicklist, "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST"},
		{"dependent picklist", badDependent, "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST"},
		{"required field", missing, "REQUIRED_FIELD_MISSING"},
		{"unknown field", unknown, "INVALID_FIELD"},
		{"read-only field", readOnly, "INVALID_FIELD_FOR_INSERT_UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Create(ctx, "Account", []types.Record{tt.record})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.False(t, results[0].Success)
			require.NotEmpty(t, results[0].Errors)
			assert.Equal(t, tt.code, results[0].Errors[0].StatusCode)
		})
	}

	assert.Empty(t, s.Records("Account"))
}

func TestCreateChecksReferences(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()

	accounts, err := s.Create(ctx, "Account", []types.Record{validAccount()})
	require.NoError(t, err)
	require.True(t, accounts[0].Success)
	assert.Len(t, accounts[0].ID, 18)
	assert.Equal(t, "001", accounts[0].ID[:3])

	results, err := s.Create(ctx, "Contact", []types.Record{
		{"LastName": "Smith", "AccountId": accounts[0].ID},
		{"LastName": "Jones", "AccountId": "001000000000000"},
		{"LastName": "Brown"},
	})
	require.NoError(t, err)

	assert.True(t, results[0].Success)
	assert.Equal(t, "INVALID_CROSS_REFERENCE_KEY", results[1].Errors[0].StatusCode)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", results[2].Errors[0].StatusCode)
	assert.Equal(t, []string{"AccountId"}, results[2].Errors[0].Fields)
	assert.Len(t, s.Records("Contact"), 1)
}

func TestValidationRulesRejectUntilSuspended(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()

	small := validAccount()
	small["AnnualRevenue"] = 1200.5

	results, err := s.Create(ctx, "Account", []types.Record{small})
	require.NoError(t, err)
	require.False(t, results[0].Success)
	assert.Equal(t, "FIELD_CUSTOM_VALIDATION_EXCEPTION", results[0].Errors[0].StatusCode)
	assert.Equal(t, []string{"AnnualRevenue"}, results[0].Errors[0].Fields)

	refs, err := s.ListValidationRules(ctx, []string{"Account"})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	rule, err := s.ReadRule(ctx, refs[0])
	require.NoError(t, err)
	require.Equal(t, "Account.Minimum_Revenue", rule.FullName)
	rule.Active = false
	require.NoError(t, s.UpdateRule(ctx, rule))

	results, err = s.Create(ctx, "Account", []types.Record{small})
	require.NoError(t, err)
	assert.True(t, results[0].Success)

	current, ok := s.Rule("Account.Minimum_Revenue")
	require.True(t, ok)
	assert.False(t, current.Active)
}

func TestBooleanControlledDependent(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()

	accounts, err := s.Create(ctx, "Account", []types.Record{validAccount()})
	require.NoError(t, err)
	accountID := accounts[0].ID

	results, err := s.Create(ctx, "Contact", []types.Record{
		{"LastName": "A", "AccountId": accountID, "IsPartnerContact__c": true, "PartnerTier__c": "Gold"},
		{"LastName": "B", "AccountId": accountID, "IsPartnerContact__c": false, "PartnerTier__c": "Gold"},
		{"LastName": "C", "AccountId": accountID, "PartnerTier__c": "None"},
	})
	require.NoError(t, err)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
}

func TestHooksInjectFailures(t *testing.T) {
	s := newDefault(t)
	ctx := context.Background()
	boom := errors.New("connection reset")

	s.SetHooks(Hooks{
		Create: func(string, []types.Record) error { return boom },
		Update: func(rule *types.ValidationRule) error {
			if rule.FullName == "Contact.No_Executive_Titles" {
				return boom
			}
			return nil
		},
	})

	_, err := s.Create(ctx, "Account", []types.Record{validAccount()})
	assert.ErrorIs(t, err, boom)

	rule, err := s.ReadRule(ctx, types.RuleRef{FullName: "Contact.No_Executive_Titles"})
	require.NoError(t, err)
	rule.Active = false
	assert.ErrorIs(t, s.UpdateRule(ctx, rule), boom)

	current, _ := s.Rule("Contact.No_Executive_Titles")
	assert.True(t, current.Active)
	assert.Equal(t, int64(1), s.Calls.Create.Load())
}

func TestNewRejectsBadFixtures(t *testing.T) {
	_, err := New(Fixture{
		Objects:         []types.SchemaDescriptor{{Name: "Account"}},
		ValidationRules: []types.ValidationRule{{FullName: "Account.Bad", EntityType: "Account", ErrorConditionFormula: "Name ==="}},
	})
	assert.Error(t, err)

	_, err = New(Fixture{
		ValidationRules: []types.ValidationRule{{FullName: "Ghost.Rule", EntityType: "Ghost", ErrorConditionFormula: "true"}},
	})
	assert.Error(t, err)
}

func TestLoadFixturesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	data, err := DefaultFixture().MarshalFile()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crm.yaml"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.json"), []byte(`{"objects":[{"name":"Case","fields":[{"name":"Subject","type":"string","maxLength":255,"writable":true}]}]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Case", "Contact", "Opportunity"}, s.Objects())

	schema, err := s.Describe(context.Background(), "Account")
	require.NoError(t, err)
	sub, ok := schema.Field("SubRegion__c")
	require.True(t, ok)
	assert.Equal(t, "Region__c", sub.ControllingFieldName)
	assert.NotEmpty(t, sub.PicklistValues[0].ValidFor)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}
