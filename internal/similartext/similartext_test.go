package similartext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	require := require.New(t)

	var names []string
	res := Find(names, "")
	require.Empty(res)

	names = []string{"foo", "bar", "aka", "ake"}
	res = Find(names, "baz")
	require.Equal(", maybe you mean bar?", res)

	res = Find(names, "")
	require.Empty(res)

	res = Find(names, "foo")
	require.Equal(", maybe you mean foo?", res)

	res = Find(names, "willBeTooDifferent")
	require.Empty(res)

	res = Find(names, "aki")
	require.Equal(", maybe you mean aka or ake?", res)
}

func TestFindFromKeys(t *testing.T) {
	require := require.New(t)

	var schema map[string]int
	res := FindFromKeys(schema, "")
	require.Empty(res)

	schema = map[string]int{
		"transaction_id": 0,
		"product_id":     1,
	}
	res = FindFromKeys(schema, "produt_id")
	require.Equal(", maybe you mean product_id?", res)

	res = FindFromKeys(schema, "")
	require.Empty(res)

	res = FindFromKeys(schema, "product_id")
	require.Equal(", maybe you mean product_id?", res)
}
