package synth

import (
	"sort"
	"strings"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

var (
	controllerHints = []string{"country", "region", "category", "type", "industry"}
	dependentHints  = []string{"state", "province", "subregion", "subcategory", "subtype", "sub_"}
)

// OrderFields returns the schema's fields with every controller ahead of
// its dependents. Fields sort by depth in the controlling chain, then by a
// name heuristic, and otherwise keep their declared order.
func OrderFields(schema *types.SchemaDescriptor) []*types.FieldDescriptor {
	fields := make([]*types.FieldDescriptor, len(schema.Fields))
	depth := make(map[string]int, len(schema.Fields))
	for i := range schema.Fields {
		fields[i] = &schema.Fields[i]
	}
	for _, f := range fields {
		depth[f.Name] = controllerDepth(schema, f)
	}

	sort.SliceStable(fields, func(i, j int) bool {
		di, dj := depth[fields[i].Name], depth[fields[j].Name]
		if di != dj {
			return di < dj
		}
		return nameRank(fields[i].Name) < nameRank(fields[j].Name)
	})
	return fields
}

// controllerDepth counts controlling links above f. Chains that loop are
// cut at the number of fields.
func controllerDepth(schema *types.SchemaDescriptor, f *types.FieldDescriptor) int {
	depth := 0
	current := f
	for current.ControllingFieldName != "" && depth < len(schema.Fields) {
		parent, ok := schema.Field(current.ControllingFieldName)
		if !ok {
			break
		}
		depth++
		current = parent
	}
	return depth
}

func nameRank(name string) int {
	lower := strings.ToLower(name)
	for _, hint := range dependentHints {
		if strings.Contains(lower, hint) {
			return 2
		}
	}
	for _, hint := range controllerHints {
		if strings.Contains(lower, hint) {
			return 0
		}
	}
	return 1
}
