package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityCounts(t *testing.T) {
	counts, err := parseEntityCounts([]string{"Account=5", " Contact = 20 ", "Opportunity"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Account": 5, "Contact": 20, "Opportunity": 0}, counts)

	for _, bad := range []string{"=3", "Account=many", "Account=-1"} {
		_, err := parseEntityCounts([]string{bad})
		assert.Error(t, err, bad)
	}
}
