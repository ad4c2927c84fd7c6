package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/picklist"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"gopkg.in/yaml.v3"
)

// Fixture describes the objects and validation rules a sandbox serves.
type Fixture struct {
	Objects         []types.SchemaDescriptor `json:"objects" yaml:"objects"`
	ValidationRules []types.ValidationRule   `json:"validationRules" yaml:"validationRules"`
}

// Load reads every .yaml, .yml and .json fixture in dir. An empty dir
// serves the built-in fixture.
func Load(dir string) (*Store, error) {
	if dir == "" {
		return New(DefaultFixture())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	sort.Strings(names)

	var merged Fixture
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
		}
		fixture, err := ParseFixture(data, filepath.Ext(name))
		if err != nil {
			return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
		}
		merged.Objects = append(merged.Objects, fixture.Objects...)
		merged.ValidationRules = append(merged.ValidationRules, fixture.ValidationRules...)
	}
	return New(merged)
}

func ParseFixture(data []byte, ext string) (Fixture, error) {
	var fixture Fixture
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &fixture)
	} else {
		err = yaml.Unmarshal(data, &fixture)
	}
	return fixture, err
}

// MarshalFile renders f the way fixture files are written by `orgseed init`.
func (f Fixture) MarshalFile() ([]byte, error) {
	return yaml.Marshal(f)
}

func picklistOf(values ...string) []types.PicklistValue {
	out := make([]types.PicklistValue, len(values))
	for i, v := range values {
		out[i] = types.PicklistValue{Value: v, Label: v, Active: true}
	}
	return out
}

func dependentValue(value string, positions ...int) types.PicklistValue {
	return types.PicklistValue{Value: value, Label: value, Active: true, ValidFor: picklist.EncodeBitmap(positions...)}
}

func systemFields() []types.FieldDescriptor {
	return []types.FieldDescriptor{
		{Name: "Id", Label: "Record ID", Type: types.FieldID},
		{Name: "OwnerId", Label: "Owner ID", Type: types.FieldReference, Writable: true, DefaultedOnCreate: true, ReferenceTargets: []string{"User"}},
		{Name: "CreatedDate", Label: "Created Date", Type: types.FieldDateTime, DefaultedOnCreate: true},
	}
}

// DefaultFixture is a small CRM: accounts with a region/sub-region
// dependency, contacts that require an account, and opportunities.
func DefaultFixture() Fixture {
	account := types.SchemaDescriptor{
		Name:  "Account",
		Label: "Account",
		Fields: append(systemFields(),
			types.FieldDescriptor{Name: "Name", Label: "Account Name", Type: types.FieldString, MaxLength: 255, Required: true, Writable: true},
			types.FieldDescriptor{Name: "AccountNumber", Label: "Account Number", Type: types.FieldString, MaxLength: 40, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Type", Label: "Account Type", Type: types.FieldPicklist, Writable: true, Nillable: true,
				PicklistValues: picklistOf("Prospect", "Customer - Direct", "Customer - Channel", "Partner")},
			types.FieldDescriptor{Name: "Industry", Label: "Industry", Type: types.FieldPicklist, Writable: true, Nillable: true,
				PicklistValues: picklistOf("Technology", "Finance", "Healthcare", "Retail", "Energy")},
			types.FieldDescriptor{Name: "Region__c", Label: "Region", Type: types.FieldPicklist, Writable: true, Nillable: true,
				PicklistValues: picklistOf("EMEA", "AMER", "APAC")},
			types.FieldDescriptor{Name: "SubRegion__c", Label: "Sub-Region", Type: types.FieldPicklist, Writable: true, Nillable: true,
				ControllingFieldName: "Region__c", IsDependentPicklist: true,
				PicklistValues: []types.PicklistValue{
					dependentValue("UK", 0), dependentValue("DACH", 0), dependentValue("Nordics", 0),
					dependentValue("US-West", 1), dependentValue("US-East", 1), dependentValue("Canada", 1),
					dependentValue("ANZ", 2), dependentValue("Japan", 2),
				}},
			types.FieldDescriptor{Name: "AnnualRevenue", Label: "Annual Revenue", Type: types.FieldCurrency, Precision: 18, Scale: 2, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "NumberOfEmployees", Label: "Employees", Type: types.FieldInt, Precision: 8, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Phone", Label: "Account Phone", Type: types.FieldPhone, MaxLength: 40, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Website", Label: "Website", Type: types.FieldURL, MaxLength: 255, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Description", Label: "Description", Type: types.FieldTextArea, MaxLength: 32000, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "ParentId", Label: "Parent Account ID", Type: types.FieldReference, Writable: true, Nillable: true, ReferenceTargets: []string{"Account"}},
		),
	}

	contact := types.SchemaDescriptor{
		Name:  "Contact",
		Label: "Contact",
		Fields: append(systemFields(),
			types.FieldDescriptor{Name: "FirstName", Label: "First Name", Type: types.FieldString, MaxLength: 40, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "LastName", Label: "Last Name", Type: types.FieldString, MaxLength: 80, Required: true, Writable: true},
			types.FieldDescriptor{Name: "Email", Label: "Email", Type: types.FieldEmail, MaxLength: 80, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Phone", Label: "Business Phone", Type: types.FieldPhone, MaxLength: 40, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Title", Label: "Title", Type: types.FieldString, MaxLength: 128, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "AccountId", Label: "Account ID", Type: types.FieldReference, Required: true, Writable: true, ReferenceTargets: []string{"Account"}},
			types.FieldDescriptor{Name: "ReportsToId", Label: "Reports To ID", Type: types.FieldReference, Writable: true, Nillable: true, ReferenceTargets: []string{"Contact"}},
			types.FieldDescriptor{Name: "LeadSource", Label: "Lead Source", Type: types.FieldPicklist, Writable: true, Nillable: true,
				PicklistValues: picklistOf("Web", "Phone Inquiry", "Partner Referral", "Trade Show")},
			types.FieldDescriptor{Name: "Birthdate", Label: "Birthdate", Type: types.FieldDate, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "IsPartnerContact__c", Label: "Partner Contact", Type: types.FieldBoolean, Writable: true, DefaultedOnCreate: true},
			types.FieldDescriptor{Name: "PartnerTier__c", Label: "Partner Tier", Type: types.FieldPicklist, Writable: true, Nillable: true,
				ControllingFieldName: "IsPartnerContact__c", IsDependentPicklist: true,
				PicklistValues: []types.PicklistValue{
					dependentValue("None", 0), dependentValue("Silver", 1), dependentValue("Gold", 1),
				}},
		),
	}

	opportunity := types.SchemaDescriptor{
		Name:  "Opportunity",
		Label: "Opportunity",
		Fields: append(systemFields(),
			types.FieldDescriptor{Name: "Name", Label: "Opportunity Name", Type: types.FieldString, MaxLength: 120, Required: true, Writable: true},
			types.FieldDescriptor{Name: "AccountId", Label: "Account ID", Type: types.FieldReference, Writable: true, Nillable: true, ReferenceTargets: []string{"Account"}},
			types.FieldDescriptor{Name: "StageName", Label: "Stage", Type: types.FieldPicklist, Required: true, Writable: true,
				PicklistValues: picklistOf("Prospecting", "Qualification", "Proposal", "Closed Won", "Closed Lost")},
			types.FieldDescriptor{Name: "CloseDate", Label: "Close Date", Type: types.FieldDate, Required: true, Writable: true},
			types.FieldDescriptor{Name: "Amount", Label: "Amount", Type: types.FieldCurrency, Precision: 18, Scale: 2, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "Probability", Label: "Probability (%)", Type: types.FieldPercent, Precision: 3, Writable: true, Nillable: true},
			types.FieldDescriptor{Name: "ExpectedRevenue", Label: "Expected Revenue", Type: types.FieldCurrency, Calculated: true},
			types.FieldDescriptor{Name: "PrimaryContact__c", Label: "Primary Contact", Type: types.FieldReference, Writable: true, Nillable: true, ReferenceTargets: []string{"Contact"}},
		),
	}

	return Fixture{
		Objects: []types.SchemaDescriptor{account, contact, opportunity},
		ValidationRules: []types.ValidationRule{
			{
				ID: "03d000000000001AAA", FullName: "Account.Minimum_Revenue", EntityType: "Account", Active: true,
				ErrorConditionFormula: "AnnualRevenue != nil && AnnualRevenue < 1000000",
				ErrorMessage:          "Annual revenue must be at least 1,000,000.",
				ErrorDisplayField:     "AnnualRevenue",
			},
			{
				ID: "03d000000000002AAA", FullName: "Account.Phone_Required_For_Customers", EntityType: "Account", Active: true,
				ErrorConditionFormula: `ISPICKVAL(Type, "Customer - Direct") && ISBLANK(Phone)`,
				ErrorMessage:          "Direct customers need a phone number.",
				ErrorDisplayField:     "Phone",
			},
			{
				ID: "03d000000000003AAA", FullName: "Contact.No_Executive_Titles", EntityType: "Contact", Active: true,
				ErrorConditionFormula: `Title == "CTO" || Title == "VP of Sales"`,
				ErrorMessage:          "Executive contacts must be created by an administrator.",
				ErrorDisplayField:     "Title",
			},
			{
				ID: "03d000000000004AAA", FullName: "Opportunity.Close_Date_In_Future", EntityType: "Opportunity", Active: false,
				ErrorConditionFormula: "CloseDate < TODAY()",
				ErrorMessage:          "Close date must be in the future.",
				ErrorDisplayField:     "CloseDate",
			},
		},
	}
}
