package topography

import (
	"fmt"
	"sort"
)

// Map holds the hex grid of one island.
type Map struct {
	Hexes  map[HexCoord]*Hex `json:"-"`
	Radius int               `json:"radius"`
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Hexes:  make(map[HexCoord]*Hex),
		Radius: radius,
	}
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Hex {
	return m.Hexes[coord]
}

// Set places a hex at the given coordinate.
func (m *Map) Set(hex *Hex) {
	m.Hexes[hex.Coord] = hex
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return max(abs(coord.Q), abs(coord.R), abs(coord.S())) <= m.Radius
}

// Coords returns every coordinate in (q, r) order, so callers iterate the
// map deterministically.
func (m *Map) Coords() []HexCoord {
	coords := make([]HexCoord, 0, len(m.Hexes))
	for c := range m.Hexes {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Q != coords[j].Q {
			return coords[i].Q < coords[j].Q
		}
		return coords[i].R < coords[j].R
	})
	return coords
}

// TerrainCounts returns a summary of terrain type distribution.
func (m *Map) TerrainCounts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, hex := range m.Hexes {
		counts[hex.Terrain]++
	}
	return counts
}

// LandCount returns the number of habitable hexes.
func (m *Map) LandCount() int {
	n := 0
	for _, hex := range m.Hexes {
		if hex.Terrain.Land() {
			n++
		}
	}
	return n
}

func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d, land=%d)", m.Radius, len(m.Hexes), m.LandCount())
}
