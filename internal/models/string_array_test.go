package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayValue(t *testing.T) {
	v, err := StringArray{"analysis.completed", "backup.completed"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["analysis.completed","backup.completed"]`, v)

	v, err = StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringArray{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestStringArrayScanJSON(t *testing.T) {
	var a StringArray
	require.NoError(t, a.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringArray{"a", "b"}, a)

	require.NoError(t, a.Scan(`["c"]`))
	assert.Equal(t, StringArray{"c"}, a)
}

func TestStringArrayScanEmptyInputs(t *testing.T) {
	var a StringArray

	require.NoError(t, a.Scan(nil))
	assert.Equal(t, StringArray{}, a)

	require.NoError(t, a.Scan(""))
	assert.Equal(t, StringArray{}, a)

	require.NoError(t, a.Scan("null"))
	assert.Equal(t, StringArray{}, a)
}

// Rows written before the JSON encoding may hold a bare string.
func TestStringArrayScanLegacyPlainString(t *testing.T) {
	var a StringArray

	require.NoError(t, a.Scan(`"analysis.completed"`))
	assert.Equal(t, StringArray{"analysis.completed"}, a)

	require.NoError(t, a.Scan("analysis.completed"))
	assert.Equal(t, StringArray{"analysis.completed"}, a)

	require.NoError(t, a.Scan(`""`))
	assert.Equal(t, StringArray{}, a)
}

func TestStringArrayScanRejectsOddTypes(t *testing.T) {
	var a StringArray
	assert.Error(t, a.Scan(42))

	var nilPtr *StringArray
	assert.Error(t, nilPtr.Scan("x"))
}

func TestStringArrayRoundTrip(t *testing.T) {
	in := StringArray{"one", "two", "three"}
	v, err := in.Value()
	require.NoError(t, err)

	var out StringArray
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
}
