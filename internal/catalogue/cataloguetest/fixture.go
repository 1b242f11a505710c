// Package cataloguetest provides a small hand-checkable catalogue for tests.
//
// CRU sections and the ruptures that include them:
//
//	0 Wellington Hutt Valley: 1  passes through WLG   ruptures 0 1 2 6
//	1 Wellington Hutt Valley: 2  away from WLG, MRO   ruptures 1 2 8
//	2 Masterton: 1               passes through MRO   ruptures 2 3 4 8
//	3 Masterton: 2               ~13 km from MRO      ruptures 4 8
//	4 Ohariu: 1                  ~13 km from WLG      ruptures 5 6
//	5 Alpine Jacks to Kaniere: 1 far south            rupture  7
//
// HIK has two branches with different rupture sets.
package cataloguetest

import (
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/catalogue"
	"github.com/GNS-Science/solvis-query/internal/model"
)

const (
	ModelID          = "TEST_MODEL"
	CrustalRuptureID = "RmlsZTozMDM1Mw=="
)

func rupture(index int, mag, rate float64) model.RuptureRow {
	return model.RuptureRow{
		Index:            index,
		Magnitude:        mag,
		Area:             mag * 1e8,
		Length:           mag * 1e4,
		RakeMean:         float64(index%3) * 90,
		RateWeightedMean: rate,
		RateMax:          rate * 2,
		RateMin:          rate / 2,
		RateCount:        3,
	}
}

func section(index, parentID int, name, parent string, trace ...model.LonLat) model.FaultSection {
	return model.FaultSection{
		Index:          index,
		Name:           name,
		ParentID:       parentID,
		ParentName:     parent,
		DipDeg:         60,
		RakeDeg:        180,
		UpperDepth:     0,
		LowerDepth:     20,
		SlipRate:       float64(index + 1),
		SlipRateStdDev: 0.5,
		Trace:          trace,
	}
}

// Data returns the fixture as archive data.
func Data() catalogue.CompositeData {
	cru := catalogue.FaultSystemData{
		FaultSystem: "CRU",
		Branches: []catalogue.Branch{
			{ID: "CRU_A", RuptureSetID: CrustalRuptureID, Weight: 0.6},
			{ID: "CRU_B", RuptureSetID: CrustalRuptureID, Weight: 0.4},
		},
		Ruptures: []model.RuptureRow{
			rupture(0, 7.0, 1e-4),
			rupture(1, 7.5, 5e-5),
			rupture(2, 7.8, 2e-5),
			rupture(3, 6.9, 3e-4),
			rupture(4, 7.2, 1e-4),
			rupture(5, 6.5, 1e-3),
			rupture(6, 7.1, 2e-4),
			rupture(7, 8.1, 1e-6),
			rupture(8, 8.0, 1e-7),
		},
		Sections: []model.FaultSection{
			section(0, 10, "Wellington Hutt Valley: 1", "Wellington Hutt Valley",
				model.LonLat{174.75, -41.32}, model.LonLat{174.85, -41.22}),
			section(1, 10, "Wellington Hutt Valley: 2", "Wellington Hutt Valley",
				model.LonLat{174.95, -41.10}, model.LonLat{175.10, -40.98}),
			section(2, 20, "Masterton: 1", "Masterton",
				model.LonLat{175.60, -40.98}, model.LonLat{175.70, -40.92}),
			section(3, 20, "Masterton: 2", "Masterton",
				model.LonLat{175.75, -40.85}, model.LonLat{175.85, -40.75}),
			section(4, 30, "Ohariu: 1", "Ohariu",
				model.LonLat{174.60, -41.25}, model.LonLat{174.70, -41.15}),
			section(5, 40, "Alpine Jacks to Kaniere: 1", "Alpine Jacks to Kaniere",
				model.LonLat{170.0, -43.5}, model.LonLat{170.5, -43.2}),
		},
		RuptureSections: map[int][]int{
			0: {0},
			1: {0, 1},
			2: {0, 1, 2},
			3: {2},
			4: {2, 3},
			5: {4},
			6: {0, 4},
			7: {5},
			8: {1, 2, 3},
		},
	}

	hik := catalogue.FaultSystemData{
		FaultSystem: "HIK",
		Branches: []catalogue.Branch{
			{ID: "HIK_A", RuptureSetID: "RS_HIK_A", Weight: 0.5},
			{ID: "HIK_B", RuptureSetID: "RS_HIK_B", Weight: 0.5},
		},
		Ruptures: []model.RuptureRow{
			rupture(0, 8.5, 1e-4),
			rupture(1, 9.0, 1e-5),
		},
		Sections: []model.FaultSection{
			section(0, 100, "Hikurangi: 1", "Hikurangi",
				model.LonLat{175.0, -41.5}, model.LonLat{176.0, -40.5}),
		},
		RuptureSections: map[int][]int{0: {0}, 1: {0}},
	}

	return catalogue.CompositeData{
		ModelID:      ModelID,
		FaultSystems: []catalogue.FaultSystemData{cru, hik},
	}
}

// Composite returns the fixture as an indexed composite solution.
func Composite() *catalogue.CompositeSolution {
	cs, err := Data().Build()
	if err != nil {
		panic(err)
	}
	return cs
}

// Registry returns a registry with the fixture registered.
func Registry() *catalogue.Registry {
	r := catalogue.NewRegistry(nil, zap.NewNop())
	r.Register(Composite())
	return r
}
