package world

import (
	"sort"

	"github.com/civforge/server/internal/core/ecs"
)

// BuildKind says what a city's build task produces.
type BuildKind uint8

const (
	BuildUnit BuildKind = iota
	BuildBuilding
)

func (k BuildKind) String() string {
	if k == BuildBuilding {
		return "building"
	}
	return "unit"
}

// BuildTask is the current production target of a city.
type BuildTask struct {
	Kind     BuildKind
	ID       string // catalog unit or building ID
	Cost     int
	Progress int
}

// Yield is a food/production/commerce triple.
type Yield struct {
	Food       int
	Production int
	Commerce   int
}

func (y Yield) Add(o Yield) Yield {
	return Yield{y.Food + o.Food, y.Production + o.Production, y.Commerce + o.Commerce}
}

// CultureThresholds are the accumulated culture amounts at which a city
// reaches levels 1, 2, 3 and so on.
var CultureThresholds = []int{10, 100, 500, 5000, 50000}

// City is a founded settlement.
type City struct {
	Name    string
	Pos     Pos
	Owner   ecs.Handle
	Founder ecs.Handle // original owner, kept through captures
	Founded int        // turn

	Population int
	Food       int // stored food toward the next growth
	Build      *BuildTask
	Buildings  []string
	Worked     []Pos // tiles worked besides the city center
	Manual     bool  // worked tiles set by the player

	Culture   Culture
	Resources []string // resources reaching the city this turn, sorted
	Yield     Yield    // last computed yield
	Happy     int
	Unhappy   int
	Health    float64 // defensive structure health, 0..1
}

// CultureLevel is a monotonic step function of accumulated culture.
func (c *City) CultureLevel() int {
	total := c.Culture.Total()
	lvl := 0
	for _, th := range CultureThresholds {
		if total < th {
			break
		}
		lvl++
	}
	return lvl
}

// CultureRadius is the reach of the city's culture: level + 1.
func (c *City) CultureRadius() int { return c.CultureLevel() + 1 }

func (c *City) HasBuilding(id string) bool {
	for _, b := range c.Buildings {
		if b == id {
			return true
		}
	}
	return false
}

func (c *City) HasResource(id string) bool {
	i := sort.SearchStrings(c.Resources, id)
	return i < len(c.Resources) && c.Resources[i] == id
}

// GrowthThreshold is the stored food needed for the next population point.
func (c *City) GrowthThreshold() int { return 15 + 6*c.Population }
