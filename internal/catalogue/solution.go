// Package catalogue holds the rupture catalogues the query engine reads:
// per fault system, the ruptures-with-rates table, the fault sections and
// the rupture to section mapping.
package catalogue

import (
	"fmt"
	"sort"

	"github.com/GNS-Science/solvis-query/internal/errors"
	"github.com/GNS-Science/solvis-query/internal/geometry"
	"github.com/GNS-Science/solvis-query/internal/model"
)

// Branch is one logic-tree branch contributing rates to a fault system.
type Branch struct {
	ID           string  `json:"branch_id" db:"branch_id"`
	RuptureSetID string  `json:"rupture_set_id" db:"rupture_set_id"`
	Weight       float64 `json:"weight" db:"weight"`
}

// Solution is the rupture catalogue of one fault system. It is read-only
// after construction and safe for concurrent use.
type Solution struct {
	faultSystem string
	branches    []Branch

	ruptures   []model.RuptureRow
	rowByIndex map[int]int

	sections     map[int]model.FaultSection
	sectionOrder []int

	ruptureSections map[int][]int
	sectionRuptures map[int][]int
	parentRuptures  map[string]model.RuptureIDSet
}

// NewSolution indexes a fault system catalogue. ruptureSections maps each
// rupture index to the section indices it spans.
func NewSolution(faultSystem string, branches []Branch, ruptures []model.RuptureRow,
	sections []model.FaultSection, ruptureSections map[int][]int) (*Solution, error) {
	s := &Solution{
		faultSystem:     faultSystem,
		branches:        append([]Branch(nil), branches...),
		rowByIndex:      make(map[int]int, len(ruptures)),
		sections:        make(map[int]model.FaultSection, len(sections)),
		ruptureSections: make(map[int][]int, len(ruptureSections)),
		sectionRuptures: make(map[int][]int),
		parentRuptures:  make(map[string]model.RuptureIDSet),
	}

	s.ruptures = append([]model.RuptureRow(nil), ruptures...)
	sort.Slice(s.ruptures, func(i, j int) bool { return s.ruptures[i].Index < s.ruptures[j].Index })
	for i, row := range s.ruptures {
		if row.Index < 0 {
			return nil, fmt.Errorf("fault system %s: negative rupture index %d", faultSystem, row.Index)
		}
		if _, dup := s.rowByIndex[row.Index]; dup {
			return nil, fmt.Errorf("fault system %s: duplicate rupture index %d", faultSystem, row.Index)
		}
		s.rowByIndex[row.Index] = i
	}

	for _, sec := range sections {
		if _, dup := s.sections[sec.Index]; dup {
			return nil, fmt.Errorf("fault system %s: duplicate section index %d", faultSystem, sec.Index)
		}
		s.sections[sec.Index] = sec
		s.sectionOrder = append(s.sectionOrder, sec.Index)
	}
	sort.Ints(s.sectionOrder)

	for rupture, secs := range ruptureSections {
		for _, sec := range secs {
			section, ok := s.sections[sec]
			if !ok {
				return nil, fmt.Errorf("fault system %s: rupture %d references unknown section %d", faultSystem, rupture, sec)
			}
			s.ruptureSections[rupture] = append(s.ruptureSections[rupture], sec)
			s.sectionRuptures[sec] = append(s.sectionRuptures[sec], rupture)

			set, ok := s.parentRuptures[section.ParentName]
			if !ok {
				set = model.NewRuptureIDSet()
				s.parentRuptures[section.ParentName] = set
			}
			set.Add(rupture)
		}
	}
	for _, secs := range s.ruptureSections {
		sort.Ints(secs)
	}
	for _, rupts := range s.sectionRuptures {
		sort.Ints(rupts)
	}

	// parent faults with no rupturing section are still valid names
	for _, sec := range sections {
		if _, ok := s.parentRuptures[sec.ParentName]; !ok {
			s.parentRuptures[sec.ParentName] = model.NewRuptureIDSet()
		}
	}

	return s, nil
}

// FaultSystem returns the fault system code, e.g. "CRU".
func (s *Solution) FaultSystem() string {
	return s.faultSystem
}

// Branches returns the contributing logic-tree branches.
func (s *Solution) Branches() []Branch {
	return append([]Branch(nil), s.branches...)
}

// RuptureSetIDs returns the distinct rupture-set ids across branches.
func (s *Solution) RuptureSetIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range s.branches {
		if _, ok := seen[b.RuptureSetID]; ok {
			continue
		}
		seen[b.RuptureSetID] = struct{}{}
		out = append(out, b.RuptureSetID)
	}
	sort.Strings(out)
	return out
}

// RupturesWithRates returns the rupture table ordered by rupture index.
// Callers must not modify the returned slice.
func (s *Solution) RupturesWithRates() []model.RuptureRow {
	return s.ruptures
}

// Rupture returns one row of the rupture table.
func (s *Solution) Rupture(index int) (model.RuptureRow, bool) {
	i, ok := s.rowByIndex[index]
	if !ok {
		return model.RuptureRow{}, false
	}
	return s.ruptures[i], true
}

// Section returns one fault section.
func (s *Solution) Section(index int) (model.FaultSection, bool) {
	sec, ok := s.sections[index]
	return sec, ok
}

// Sections returns every fault section ordered by index.
func (s *Solution) Sections() []model.FaultSection {
	out := make([]model.FaultSection, 0, len(s.sectionOrder))
	for _, idx := range s.sectionOrder {
		out = append(out, s.sections[idx])
	}
	return out
}

// SectionsForRupture returns the section indices a rupture spans.
func (s *Solution) SectionsForRupture(index int) []int {
	return s.ruptureSections[index]
}

// ParentFaultNames returns the sorted parent fault names.
func (s *Solution) ParentFaultNames() []string {
	out := make([]string, 0, len(s.parentRuptures))
	for name := range s.parentRuptures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasParentFault reports whether name is a known parent fault.
func (s *Solution) HasParentFault(name string) bool {
	_, ok := s.parentRuptures[name]
	return ok
}

// RuptureIDsForParentFault returns the ruptures that include any section
// of the named parent fault.
func (s *Solution) RuptureIDsForParentFault(name string) (model.RuptureIDSet, error) {
	set, ok := s.parentRuptures[name]
	if !ok {
		return nil, errors.InvalidFaultName([]string{name})
	}
	return set.Clone(), nil
}

// RupturesIntersecting returns the ruptures with at least one section
// whose trace meets the polygon.
func (s *Solution) RupturesIntersecting(c *geometry.Circle) model.RuptureIDSet {
	out := model.NewRuptureIDSet()
	for _, idx := range s.sectionOrder {
		rupts := s.sectionRuptures[idx]
		if len(rupts) == 0 {
			continue
		}
		if !c.IntersectsTrace(s.sections[idx].Trace) {
			continue
		}
		for _, r := range rupts {
			out.Add(r)
		}
	}
	return out
}

// CompositeSolution groups the fault system solutions of one model.
type CompositeSolution struct {
	modelID string
	systems map[string]*Solution
}

// NewCompositeSolution creates a composite from fault system solutions.
func NewCompositeSolution(modelID string, solutions ...*Solution) *CompositeSolution {
	c := &CompositeSolution{modelID: modelID, systems: make(map[string]*Solution, len(solutions))}
	for _, s := range solutions {
		c.systems[s.FaultSystem()] = s
	}
	return c
}

// ModelID returns the model identifier.
func (c *CompositeSolution) ModelID() string {
	return c.modelID
}

// FaultSystems returns the sorted fault system codes.
func (c *CompositeSolution) FaultSystems() []string {
	out := make([]string, 0, len(c.systems))
	for fs := range c.systems {
		out = append(out, fs)
	}
	sort.Strings(out)
	return out
}

// Solution returns the catalogue of one fault system.
func (c *CompositeSolution) Solution(faultSystem string) (*Solution, error) {
	s, ok := c.systems[faultSystem]
	if !ok {
		return nil, errors.UnknownFaultSystem(c.modelID, faultSystem)
	}
	return s, nil
}
