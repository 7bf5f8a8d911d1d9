package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureSetValueOmitsUnsetKeys(t *testing.T) {
	enabled := true
	value, err := FeatureSet{Campaigns: &enabled}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"campaigns":true}`, value.(string))
}

func TestFeatureSetScan(t *testing.T) {
	var set FeatureSet
	require.NoError(t, set.Scan([]byte(`{"automations":false,"reports":"advanced"}`)))
	require.NotNil(t, set.Automations)
	assert.False(t, *set.Automations)
	require.NotNil(t, set.Reports)
	assert.Equal(t, "advanced", *set.Reports)
	assert.Nil(t, set.Campaigns)

	require.NoError(t, set.Scan(nil))
	assert.True(t, set.IsEmpty())

	assert.Error(t, set.Scan(42))
}
