// Package datatest provides a small in-memory catalog for tests.
package datatest

import "github.com/civforge/server/internal/data"

// Catalog returns a fresh catalog mirroring the shipped data/yaml tables in
// miniature. Each call returns independent rows.
func Catalog() *data.Catalog {
	c, err := data.NewCatalog(
		[]data.UnitKind{
			{ID: "settler", Name: "Settler", Moves: 1, Category: data.CategoryCivilian, Domain: data.DomainLand, Sight: 1, Cost: 30, Capability: data.CapFoundCity},
			{ID: "worker", Name: "Worker", Moves: 2, Category: data.CategoryCivilian, Domain: data.DomainLand, Sight: 1, Cost: 20, Capability: data.CapBuildImprovement},
			{ID: "warrior", Name: "Warrior", Strength: 1, Moves: 1, Category: data.CategoryMelee, Domain: data.DomainLand, Sight: 1, Cost: 10},
			{ID: "spearman", Name: "Spearman", Strength: 4, Moves: 1, Category: data.CategoryMelee, Domain: data.DomainLand, Sight: 1, Cost: 35,
				Bonuses: []data.Bonus{{VsCategory: data.CategoryMounted, Percent: 100}}},
			{ID: "horseman", Name: "Horseman", Strength: 4, Moves: 2, Category: data.CategoryMounted, Domain: data.DomainLand, Sight: 1, Cost: 40,
				Bonuses: []data.Bonus{{VsCategory: data.CategorySiege, Percent: 50, OnlyAttack: true}}},
			{ID: "archer", Name: "Archer", Strength: 3, Moves: 1, Category: data.CategoryRanged, Domain: data.DomainLand, Sight: 1, Cost: 25,
				Bonuses: []data.Bonus{{VsCategory: data.CategoryMelee, Percent: 25, OnlyDefense: true}}},
			{ID: "catapult", Name: "Catapult", Strength: 5, Moves: 1, Category: data.CategorySiege, Domain: data.DomainLand, Sight: 1, Cost: 50, MaxCollateral: 4},
			{ID: "galley", Name: "Galley", Strength: 2, Moves: 3, Category: data.CategoryNaval, Domain: data.DomainSea, Sight: 2, Cost: 40, CargoCapacity: 2, Capability: data.CapCarryCargo},
		},
		[]data.Building{
			{ID: "monument", Name: "Monument", Cost: 30, Upkeep: 1, Culture: 2},
			{ID: "walls", Name: "Walls", Cost: 50, Upkeep: 1, DefensePercent: 50},
			{ID: "granary", Name: "Granary", Cost: 60, Upkeep: 1, Food: 2},
			{ID: "library", Name: "Library", Cost: 90, Upkeep: 1, Culture: 1, SciencePercent: 25},
		},
		[]data.Resource{
			{ID: "wheat", Name: "Wheat", Food: 2, Improvement: "farm", FoodBonus: true, Spacing: 5, Frequency: 40},
			{ID: "horses", Name: "Horses", Production: 1, Improvement: "pasture", Spacing: 7, Frequency: 70},
			{ID: "gold", Name: "Gold", Gold: 3, Improvement: "mine", AllowDesert: true, Happiness: 1, Spacing: 9, Frequency: 110},
		},
		[]data.Improvement{
			{ID: "road", Name: "Road", Turns: 2, Road: true},
			{ID: "farm", Name: "Farm", Turns: 5, Food: 1},
			{ID: "mine", Name: "Mine", Turns: 5, Production: 2},
			{ID: "pasture", Name: "Pasture", Turns: 4, Production: 1},
		},
		[]data.Tech{
			{ID: "pottery", Name: "Pottery", Cost: 40},
			{ID: "writing", Name: "Writing", Cost: 80, Prereqs: []string{"pottery"}},
		},
		[]data.Civilization{
			{ID: "rome", Name: "Rome", CityNames: []string{"Rome", "Antium", "Cumae"}},
			{ID: "egypt", Name: "Egypt", CityNames: []string{"Thebes", "Memphis"}},
			{ID: "china", Name: "China", CityNames: []string{"Beijing", "Xian"}},
			{ID: "persia", Name: "Persia", CityNames: []string{"Persepolis", "Susa"}},
		},
		[]data.TerrainYield{
			{ID: "ocean", Food: 1, Gold: 1},
			{ID: "grassland", Food: 2, Quality: 3},
			{ID: "plains", Food: 1, Production: 1, Quality: 2},
			{ID: "desert"},
			{ID: "hills", Production: 1, DefensePercent: 25, Quality: 2},
			{ID: "forest", Production: 1, DefensePercent: 25, Quality: 1},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}
