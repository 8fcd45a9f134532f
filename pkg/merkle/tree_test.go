package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tree := Build([]string{"a", "b", "c"})
	assert.Equal(t, 4, tree.numLeaves)
	assert.Len(t, tree.nodes, 7)
	assert.Equal(t, hashPair(hashPair("a", "b"), hashPair("c", "")), tree.Root())

	assert.Equal(t, "", Build(nil).Root())
	assert.Equal(t, tree.Root(), RootOf([]string{"a", "b", "c"}))
	assert.NotEqual(t, tree.Root(), RootOf([]string{"a", "c", "b"}))
}

func TestDiff(t *testing.T) {
	a := Build([]string{"a", "b", "c", "d"})
	b := Build([]string{"a", "x", "c", "y"})

	diff, err := Diff(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, diff)

	same, err := Diff(a, Build([]string{"a", "b", "c", "d"}))
	require.NoError(t, err)
	assert.Empty(t, same)

	_, err = Diff(a, Build(make([]string, 8)))
	assert.Error(t, err)
}
