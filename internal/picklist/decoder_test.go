package picklist

import (
	"encoding/base64"
	"testing"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regionField() *types.FieldDescriptor {
	return &types.FieldDescriptor{
		Name: "Region__c",
		Type: types.FieldPicklist,
		PicklistValues: []types.PicklistValue{
			{Value: "EMEA", Active: true},
			{Value: "Retired", Active: false},
			{Value: "AMER", Active: true},
			{Value: "APAC", Active: true},
		},
	}
}

func subRegionField() *types.FieldDescriptor {
	return &types.FieldDescriptor{
		Name:                 "SubRegion__c",
		Type:                 types.FieldPicklist,
		ControllingFieldName: "Region__c",
		IsDependentPicklist:  true,
		PicklistValues: []types.PicklistValue{
			{Value: "UK", Active: true, ValidFor: EncodeBitmap(0)},
			{Value: "DACH", Active: true, ValidFor: EncodeBitmap(0)},
			{Value: "US-West", Active: true, ValidFor: EncodeBitmap(1)},
			{Value: "Canada", Active: true, ValidFor: EncodeBitmap(1)},
			{Value: "Global", Active: true, ValidFor: EncodeBitmap(0, 1, 2)},
			{Value: "Old", Active: false, ValidFor: EncodeBitmap(2)},
		},
	}
}

func TestDecodeBitmapMSBFirst(t *testing.T) {
	// 0b10100000 0b00000001 -> positions 0, 2, 15
	positions, err := decodeBitmap(base64.StdEncoding.EncodeToString([]byte{0xA0, 0x01}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 15}, positions)
}

func TestEncodeBitmapRoundTrip(t *testing.T) {
	positions, err := decodeBitmap(EncodeBitmap(3, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 9}, positions)
}

func TestDecodeBuildsSortedTable(t *testing.T) {
	table := Decode(regionField(), subRegionField())

	assert.Equal(t, []string{"DACH", "Global", "UK"}, table.ValidFor("EMEA"))
	assert.Equal(t, []string{"Canada", "Global", "US-West"}, table.ValidFor("AMER"))
	assert.Equal(t, []string{"Global"}, table.ValidFor("APAC"))
	assert.Empty(t, table.ValidFor("Retired"))
	assert.Equal(t, 7, table.Pairs())
	assert.Empty(t, table.Skipped)
}

func TestDecodeSkipsMalformedEntries(t *testing.T) {
	dep := subRegionField()
	dep.PicklistValues = append(dep.PicklistValues,
		types.PicklistValue{Value: "Broken", Active: true, ValidFor: "%%%not-base64"},
		types.PicklistValue{Value: "Missing", Active: true},
	)

	table := Decode(regionField(), dep)

	require.Len(t, table.Skipped, 2)
	assert.Equal(t, "Broken", table.Skipped[0].Value)
	assert.Equal(t, "Missing", table.Skipped[1].Value)
	assert.Equal(t, []string{"DACH", "Global", "UK"}, table.ValidFor("EMEA"))
}

func TestDecodeIgnoresBitsBeyondControllerValues(t *testing.T) {
	dep := subRegionField()
	dep.PicklistValues = []types.PicklistValue{{Value: "Far", Active: true, ValidFor: EncodeBitmap(1, 40)}}

	table := Decode(regionField(), dep)

	assert.Equal(t, []string{"Far"}, table.ValidFor("AMER"))
	assert.Equal(t, 1, table.Pairs())
}

func TestDecodeBooleanController(t *testing.T) {
	ctrl := &types.FieldDescriptor{Name: "IsPartner__c", Type: types.FieldBoolean}
	dep := &types.FieldDescriptor{
		Name: "Tier__c", Type: types.FieldPicklist, IsDependentPicklist: true, ControllingFieldName: "IsPartner__c",
		PicklistValues: []types.PicklistValue{
			{Value: "None", Active: true, ValidFor: EncodeBitmap(0)},
			{Value: "Gold", Active: true, ValidFor: EncodeBitmap(1)},
		},
	}

	table := Decode(ctrl, dep)

	assert.Equal(t, []string{"None"}, table.ValidFor("false"))
	assert.Equal(t, []string{"Gold"}, table.ValidFor("true"))
}

func TestControllersFor(t *testing.T) {
	table := Decode(regionField(), subRegionField())
	controllers := ControllerValues(regionField())

	assert.Equal(t, []string{"EMEA", "AMER", "APAC"}, table.ControllersFor("Global", controllers))
	assert.Equal(t, []string{"AMER"}, table.ControllersFor("Canada", controllers))
	assert.Empty(t, table.ControllersFor("Nowhere", controllers))
}

func TestCacheReusesAndInvalidates(t *testing.T) {
	cache := NewCache()
	ctrl, dep := regionField(), subRegionField()

	first := cache.Table("s1", "Account", ctrl, dep)
	second := cache.Table("s1", "Account", ctrl, dep)
	assert.Same(t, first, second)

	other := cache.Table("s2", "Account", ctrl, dep)
	assert.NotSame(t, first, other)

	reordered := regionField()
	reordered.PicklistValues[0], reordered.PicklistValues[2] = reordered.PicklistValues[2], reordered.PicklistValues[0]
	third := cache.Table("s1", "Account", reordered, dep)
	assert.NotSame(t, first, third)
	assert.Equal(t, []string{"DACH", "Global", "UK"}, third.ValidFor("AMER"))

	hits, misses, size := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(3), misses)
	assert.Equal(t, 3, size)

	cache.Forget("s1")
	_, _, size = cache.Stats()
	assert.Equal(t, 1, size)
}
