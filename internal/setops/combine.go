// Package setops merges rupture-id sets with UNION, INTERSECTION or
// DIFFERENCE semantics.
package setops

import (
	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/model"
)

// Group is the outcome of resolving one constraint group. A group that
// was not requested is unconstrained and must not restrict the result.
type Group struct {
	Name        string
	Set         model.RuptureIDSet
	Constrained bool
}

// Unconstrained returns a group that places no restriction on the result.
func Unconstrained(name string) Group {
	return Group{Name: name}
}

// Constrained wraps a resolved set.
func Constrained(name string, set model.RuptureIDSet) Group {
	return Group{Name: name, Set: set, Constrained: true}
}

// Combine folds sets left to right with op. UNION takes every member,
// INTERSECTION seeds from the first set and keeps common members,
// DIFFERENCE removes each later set from the running result. A single set
// is returned as is and no sets give an empty set.
func Combine(sets []model.RuptureIDSet, op model.SetOperation) (model.RuptureIDSet, error) {
	if !op.Valid() {
		return nil, errors.UnsupportedSetOperation(op.String())
	}
	if len(sets) == 0 {
		return model.NewRuptureIDSet(), nil
	}
	if len(sets) == 1 {
		return sets[0], nil
	}

	acc := sets[0]
	for _, s := range sets[1:] {
		switch op {
		case model.SetOpUnion:
			acc = acc.Union(s)
		case model.SetOpIntersection:
			acc = acc.Intersect(s)
		case model.SetOpDifference:
			acc = acc.Difference(s)
		}
	}
	return acc, nil
}

// CombineGroups merges the constrained groups with op, skipping any that
// are unconstrained. The result is unconstrained when no group constrains.
func CombineGroups(groups []Group, op model.SetOperation) (Group, error) {
	if !op.Valid() {
		return Group{}, errors.UnsupportedSetOperation(op.String())
	}
	var sets []model.RuptureIDSet
	for _, g := range groups {
		if g.Constrained {
			sets = append(sets, g.Set)
		}
	}
	if len(sets) == 0 {
		return Unconstrained("combined"), nil
	}
	combined, err := Combine(sets, op)
	if err != nil {
		return Group{}, err
	}
	return Constrained("combined", combined), nil
}
