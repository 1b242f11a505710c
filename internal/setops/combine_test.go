package setops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

func TestCombine(t *testing.T) {
	a := model.NewRuptureIDSet(1, 2, 3, 4, 5)
	b := model.NewRuptureIDSet(4, 5, 6)
	c := model.NewRuptureIDSet(5, 7)

	tests := []struct {
		name string
		sets []model.RuptureIDSet
		op   model.SetOperation
		want []int
	}{
		{"union", []model.RuptureIDSet{a, b, c}, model.SetOpUnion, []int{1, 2, 3, 4, 5, 6, 7}},
		{"intersection", []model.RuptureIDSet{a, b, c}, model.SetOpIntersection, []int{5}},
		{"difference folds left", []model.RuptureIDSet{a, b, c}, model.SetOpDifference, []int{1, 2, 3}},
		{"difference reversed", []model.RuptureIDSet{c, b, a}, model.SetOpDifference, []int{7}},
		{"no sets", nil, model.SetOpUnion, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Combine(tt.sets, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Sorted())
		})
	}
}

func TestCombine_SingleSetUnchanged(t *testing.T) {
	a := model.NewRuptureIDSet(3, 1, 2)
	for _, op := range []model.SetOperation{model.SetOpUnion, model.SetOpIntersection, model.SetOpDifference} {
		got, err := Combine([]model.RuptureIDSet{a}, op)
		require.NoError(t, err)
		assert.True(t, got.Equal(a), op.String())
	}
}

func TestCombine_IntersectionWithinUnion(t *testing.T) {
	sets := []model.RuptureIDSet{
		model.NewRuptureIDSet(1, 2, 3, 9),
		model.NewRuptureIDSet(2, 3, 4),
		model.NewRuptureIDSet(3, 2, 10, 11),
	}
	union, err := Combine(sets, model.SetOpUnion)
	require.NoError(t, err)
	inter, err := Combine(sets, model.SetOpIntersection)
	require.NoError(t, err)
	diff, err := Combine(sets, model.SetOpDifference)
	require.NoError(t, err)

	assert.True(t, inter.IsSubsetOf(union))
	assert.True(t, diff.IsSubsetOf(sets[0]))
	for _, s := range sets[1:] {
		assert.Zero(t, diff.Intersect(s).Len())
	}
}

func TestCombine_UnsupportedOperation(t *testing.T) {
	_, err := Combine([]model.RuptureIDSet{model.NewRuptureIDSet(1)}, model.SetOperation(42))
	assert.Equal(t, errors.ErrCodeUnsupportedSetOperation, errors.GetCode(err))

	_, err = CombineGroups(nil, model.SetOpUnset)
	assert.Equal(t, errors.ErrCodeUnsupportedSetOperation, errors.GetCode(err))
}

func TestCombineGroups(t *testing.T) {
	locations := Constrained("locations", model.NewRuptureIDSet(1, 2, 3))
	faults := Constrained("faults", model.NewRuptureIDSet(2, 3, 4))

	t.Run("both groups", func(t *testing.T) {
		g, err := CombineGroups([]Group{locations, faults}, model.SetOpIntersection)
		require.NoError(t, err)
		assert.True(t, g.Constrained)
		assert.Equal(t, []int{2, 3}, g.Set.Sorted())
	})

	t.Run("empty group is no constraint", func(t *testing.T) {
		g, err := CombineGroups([]Group{locations, Unconstrained("faults")}, model.SetOpIntersection)
		require.NoError(t, err)
		assert.True(t, g.Constrained)
		assert.Equal(t, []int{1, 2, 3}, g.Set.Sorted())
	})

	t.Run("difference of only one constrained group", func(t *testing.T) {
		g, err := CombineGroups([]Group{Unconstrained("locations"), faults}, model.SetOpDifference)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 4}, g.Set.Sorted())
	})

	t.Run("nothing constrained", func(t *testing.T) {
		g, err := CombineGroups([]Group{Unconstrained("locations"), Unconstrained("faults")}, model.SetOpUnion)
		require.NoError(t, err)
		assert.False(t, g.Constrained)
	})

	t.Run("constrained but empty stays constrained", func(t *testing.T) {
		g, err := CombineGroups([]Group{Constrained("locations", model.NewRuptureIDSet())}, model.SetOpUnion)
		require.NoError(t, err)
		assert.True(t, g.Constrained)
		assert.Zero(t, g.Set.Len())
	})
}
