package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

type describeResponse struct {
	Name   string          `json:"name"`
	Label  string          `json:"label"`
	Fields []describeField `json:"fields"`
}

type describeField struct {
	Name              string             `json:"name"`
	Label             string             `json:"label"`
	Type              string             `json:"type"`
	Length            int                `json:"length"`
	Precision         int                `json:"precision"`
	Scale             int                `json:"scale"`
	Digits            int                `json:"digits"`
	Nillable          bool               `json:"nillable"`
	Createable        bool               `json:"createable"`
	Calculated        bool               `json:"calculated"`
	AutoNumber        bool               `json:"autoNumber"`
	Unique            bool               `json:"unique"`
	DefaultedOnCreate bool               `json:"defaultedOnCreate"`
	ReferenceTo       []string           `json:"referenceTo"`
	PicklistValues    []describePicklist `json:"picklistValues"`
	ControllerName    string             `json:"controllerName"`
	DependentPicklist bool               `json:"dependentPicklist"`
}

type describePicklist struct {
	Value        string `json:"value"`
	Label        string `json:"label"`
	Active       bool   `json:"active"`
	DefaultValue bool   `json:"defaultValue"`
	ValidFor     string `json:"validFor"`
}

func (f describeField) descriptor() types.FieldDescriptor {
	fd := types.FieldDescriptor{
		Name:                 f.Name,
		Label:                f.Label,
		Type:                 types.FieldType(f.Type),
		MaxLength:            f.Length,
		Precision:            f.Precision,
		Scale:                f.Scale,
		Required:             f.Createable && !f.Nillable && !f.DefaultedOnCreate,
		Writable:             f.Createable,
		Calculated:           f.Calculated,
		AutoNumber:           f.AutoNumber,
		Unique:               f.Unique,
		Nillable:             f.Nillable,
		DefaultedOnCreate:    f.DefaultedOnCreate,
		ReferenceTargets:     f.ReferenceTo,
		ControllingFieldName: f.ControllerName,
		IsDependentPicklist:  f.DependentPicklist,
	}
	if fd.Type == types.FieldInt && fd.Precision == 0 {
		fd.Precision = f.Digits
	}
	for _, pv := range f.PicklistValues {
		fd.PicklistValues = append(fd.PicklistValues, types.PicklistValue{
			Value:    pv.Value,
			Label:    pv.Label,
			Active:   pv.Active,
			Default:  pv.DefaultValue,
			ValidFor: pv.ValidFor,
		})
	}
	return fd
}

func (c *Client) Describe(ctx context.Context, entityType string) (*types.SchemaDescriptor, error) {
	var resp describeResponse
	if err := c.get(ctx, "/sobjects/"+url.PathEscape(entityType)+"/describe", &resp); err != nil {
		return nil, fmt.Errorf("describe %s: %w", entityType, err)
	}

	schema := &types.SchemaDescriptor{Name: resp.Name, Label: resp.Label}
	if schema.Name == "" {
		schema.Name = entityType
	}
	for _, f := range resp.Fields {
		schema.Fields = append(schema.Fields, f.descriptor())
	}
	return schema, nil
}

type compositeRequest struct {
	AllOrNone bool                     `json:"allOrNone"`
	Records   []map[string]interface{} `json:"records"`
}

// Create posts records through the composite sobjects endpoint in chunks
// of 200 with allOrNone=false. When the first chunk fails nothing was
// created and the call fails. A later failing chunk returns every result
// gathered so far, REMOTE_CREATE_FAILURE results for the records not
// created, and an error wrapping types.ErrPartialCreate.
func (c *Client) Create(ctx context.Context, entityType string, records []types.Record) ([]types.CreateResult, error) {
	results := make([]types.CreateResult, 0, len(records))
	for start := 0; start < len(records); start += createChunkSize {
		end := min(start+createChunkSize, len(records))

		chunk, err := c.createChunk(ctx, entityType, records[start:end])
		if err == nil && len(chunk) != end-start {
			err = fmt.Errorf("expected %d results, got %d", end-start, len(chunk))
		}
		if err != nil {
			err = fmt.Errorf("create %s records %d-%d: %w", entityType, start, end-1, err)
			if start == 0 {
				return nil, err
			}
			for range records[start:] {
				results = append(results, types.CreateResult{Errors: []types.RecordError{{
					StatusCode: types.CodeRemoteCreateFailure,
					Message:    err.Error(),
				}}})
			}
			return results, fmt.Errorf("%w: %d of %d records sent: %w", types.ErrPartialCreate, start, len(records), err)
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (c *Client) createChunk(ctx context.Context, entityType string, records []types.Record) ([]types.CreateResult, error) {
	req := compositeRequest{Records: make([]map[string]interface{}, 0, len(records))}
	for _, record := range records {
		body := make(map[string]interface{}, len(record)+1)
		for k, v := range record {
			body[k] = v
		}
		body["attributes"] = map[string]string{"type": entityType}
		req.Records = append(req.Records, body)
	}

	var chunk []types.CreateResult
	if err := c.doRequest(ctx, http.MethodPost, "/composite/sobjects", req, &chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

type toolingQueryResponse struct {
	Records []struct {
		ID               string `json:"Id"`
		ValidationName   string `json:"ValidationName"`
		Active           bool   `json:"Active"`
		EntityDefinition struct {
			QualifiedAPIName string `json:"QualifiedApiName"`
		} `json:"EntityDefinition"`
	} `json:"records"`
	NextRecordsURL string `json:"nextRecordsUrl"`
}

func (c *Client) ListValidationRules(ctx context.Context, entityTypes []string) ([]types.RuleRef, error) {
	if len(entityTypes) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(entityTypes))
	for i, name := range entityTypes {
		quoted[i] = "'" + strings.ReplaceAll(name, "'", `\'`) + "'"
	}
	soql := "SELECT Id, ValidationName, Active, EntityDefinition.QualifiedApiName FROM ValidationRule " +
		"WHERE EntityDefinition.QualifiedApiName IN (" + strings.Join(quoted, ", ") + ")"

	var refs []types.RuleRef
	path := "/tooling/query?q=" + url.QueryEscape(soql)
	for path != "" {
		var resp toolingQueryResponse
		if err := c.get(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("list validation rules: %w", err)
		}
		for _, r := range resp.Records {
			entity := r.EntityDefinition.QualifiedAPIName
			refs = append(refs, types.RuleRef{
				ID:         r.ID,
				FullName:   entity + "." + r.ValidationName,
				EntityType: entity,
				Active:     r.Active,
			})
		}
		path = c.relative(resp.NextRecordsURL)
	}
	return refs, nil
}

// relative strips the versioned prefix the API puts on pagination links.
func (c *Client) relative(next string) string {
	if next == "" {
		return ""
	}
	if idx := strings.Index(next, "/tooling/"); idx >= 0 {
		return next[idx:]
	}
	return next
}

type ruleMetadata struct {
	Active                bool   `json:"active"`
	Description           string `json:"description,omitempty"`
	ErrorConditionFormula string `json:"errorConditionFormula"`
	ErrorDisplayField     string `json:"errorDisplayField,omitempty"`
	ErrorMessage          string `json:"errorMessage"`
}

type ruleResponse struct {
	ID       string       `json:"Id"`
	FullName string       `json:"FullName"`
	Metadata ruleMetadata `json:"Metadata"`
}

func (c *Client) ReadRule(ctx context.Context, ref types.RuleRef) (*types.ValidationRule, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("read rule %s: missing id", ref.FullName)
	}
	var resp ruleResponse
	if err := c.get(ctx, "/tooling/sobjects/ValidationRule/"+url.PathEscape(ref.ID), &resp); err != nil {
		return nil, fmt.Errorf("read rule %s: %w", ref.FullName, err)
	}

	id := resp.ID
	if id == "" {
		id = ref.ID
	}
	fullName := resp.FullName
	if fullName == "" {
		fullName = ref.FullName
	}
	entity := ref.EntityType
	if entity == "" {
		entity, _, _ = strings.Cut(fullName, ".")
	}
	return &types.ValidationRule{
		ID:                    id,
		FullName:              fullName,
		EntityType:            entity,
		Active:                resp.Metadata.Active,
		ErrorConditionFormula: resp.Metadata.ErrorConditionFormula,
		ErrorMessage:          resp.Metadata.ErrorMessage,
		ErrorDisplayField:     resp.Metadata.ErrorDisplayField,
		Description:           resp.Metadata.Description,
	}, nil
}

// UpdateRule sends the full metadata back; the tooling API replaces it as a whole.
func (c *Client) UpdateRule(ctx context.Context, rule *types.ValidationRule) error {
	body := map[string]interface{}{
		"Metadata": ruleMetadata{
			Active:                rule.Active,
			Description:           rule.Description,
			ErrorConditionFormula: rule.ErrorConditionFormula,
			ErrorDisplayField:     rule.ErrorDisplayField,
			ErrorMessage:          rule.ErrorMessage,
		},
	}
	if err := c.doRequest(ctx, http.MethodPatch, "/tooling/sobjects/ValidationRule/"+url.PathEscape(rule.ID), body, nil); err != nil {
		return fmt.Errorf("update rule %s: %w", rule.FullName, err)
	}
	return nil
}
