package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuiltinTypes(t *testing.T) {
	for _, typ := range []string{"duckdb", "postgres", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			require.True(t, IsRegistered(typ))

			ad, err := New(Config{Type: typ}, nil)
			require.NoError(t, err)
			assert.Equal(t, typ, ad.SourceType())
		})
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "oracle"}, nil)
	require.Error(t, err)

	var unknownErr *UnknownSourceTypeError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "oracle", unknownErr.Type)
	assert.NotEmpty(t, unknownErr.Available)
}

func TestRegistry_MissingType(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorContains(t, err, "source type not specified")
}

func TestRegistry_ListTypesSorted(t *testing.T) {
	types := ListTypes()
	assert.IsIncreasing(t, types)
	assert.Contains(t, types, "sqlite")
}
