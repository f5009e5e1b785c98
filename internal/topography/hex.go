// Package topography provides the spatial layout of an island: a hex grid
// of terrain and the villages its people are spread over.
// Uses axial coordinates (q, r) for the hex grid.
package topography

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Terrain types for island hex tiles.
type Terrain uint8

const (
	TerrainOcean      Terrain = iota
	TerrainLagoon             // Sheltered shallows inside the reef
	TerrainCoast              // Beach flats, fishing villages
	TerrainLowland            // Taro and breadfruit gardens
	TerrainRainforest         // Wet slopes
	TerrainStream             // Freshwater courses
	TerrainUpland             // Cool interior ridges
	TerrainVolcanic           // Lava fields and peaks
)

var terrainNames = [...]string{"Ocean", "Lagoon", "Coast", "Lowland", "Rainforest", "Stream", "Upland", "Volcanic"}

func (t Terrain) String() string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "Unknown"
}

// Land reports whether people can live on the terrain.
func (t Terrain) Land() bool {
	return t != TerrainOcean && t != TerrainLagoon
}

// Hex represents a single tile on the island map.
type Hex struct {
	Coord     HexCoord `json:"coord"`
	Terrain   Terrain  `json:"terrain"`
	Elevation float64  `json:"elevation"` // 0.0 (sea level) to 1.0 (peak)
	Rainfall  float64  `json:"rainfall"`  // 0.0 (dry) to 1.0 (drenched)
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return max(abs(a.Q-b.Q), abs(a.R-b.R), abs(a.S()-b.S()))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
