// Island generation using layered simplex noise.
// Elevation falls off radially so the land forms one volcanic island
// ringed by lagoon and ocean.
package topography

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/tausaga/internal/entropy"
)

// GenConfig holds island generation parameters.
type GenConfig struct {
	Radius     int     // Hex grid radius
	Seed       int64   // Noise seed
	SeaLevel   float64 // Elevation threshold for lagoon/ocean (0.0–1.0)
	UplandLvl  float64 // Elevation threshold for upland
	VolcanoLvl float64 // Elevation threshold for volcanic peaks
}

// DefaultGenConfig returns a mid-sized high island.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:     14,
		SeaLevel:   0.22,
		UplandLvl:  0.58,
		VolcanoLvl: 0.78,
	}
}

// Generate creates an island map.
func Generate(cfg GenConfig) *Map {
	elevNoise := opensimplex.NewNormalized(cfg.Seed)
	rainNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	m := NewMap(cfg.Radius)
	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.07, 0.5)

			// Radial falloff: one central massif.
			d := math.Sqrt(x*x+y*y) / float64(cfg.Radius)
			falloff := math.Max(0, 1.0-math.Pow(d, 2.0))
			elev = elev*0.45 + falloff*0.55
			elev *= falloff

			// Trade winds: the windward (east) side is wetter.
			rain = math.Min(1, rain*0.7+(x/float64(cfg.Radius)+1)*0.15+elev*0.15)

			m.Set(&Hex{
				Coord:     coord,
				Terrain:   deriveTerrain(elev, rain, d, cfg),
				Elevation: elev,
				Rainfall:  rain,
			})
		}
	}

	markCoast(m)
	placeStreams(m, cfg.Seed)
	return m
}

func deriveTerrain(elev, rain, dist float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		if elev > cfg.SeaLevel*0.6 && dist < 0.95 {
			return TerrainLagoon
		}
		return TerrainOcean
	}
	if elev > cfg.VolcanoLvl {
		return TerrainVolcanic
	}
	if elev > cfg.UplandLvl {
		return TerrainUpland
	}
	if rain > 0.6 {
		return TerrainRainforest
	}
	return TerrainLowland
}

// markCoast converts low land hexes next to water into coast.
func markCoast(m *Map) {
	var toMark []HexCoord
	for _, coord := range m.Coords() {
		hex := m.Get(coord)
		if !hex.Terrain.Land() || hex.Elevation >= 0.45 {
			continue
		}
		for _, nc := range coord.Neighbors() {
			if nh := m.Get(nc); nh != nil && !nh.Terrain.Land() {
				toMark = append(toMark, coord)
				break
			}
		}
	}
	for _, coord := range toMark {
		m.Get(coord).Terrain = TerrainCoast
	}
}

// placeStreams traces a few streams from the uplands down to the sea.
func placeStreams(m *Map, seed int64) {
	src := entropy.New(uint64(seed) + 100)

	var sources []HexCoord
	for _, coord := range m.Coords() {
		if h := m.Get(coord); h.Terrain == TerrainUpland {
			sources = append(sources, coord)
		}
	}
	n := min(max(len(sources)/6, 1), 6)
	src.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > n {
		sources = sources[:n]
	}
	for _, start := range sources {
		traceStream(m, start)
	}
}

// traceStream follows the steepest descent from a source hex until it
// reaches water or a local minimum.
func traceStream(m *Map, start HexCoord) {
	current := start
	visited := make(map[HexCoord]bool)
	for range 40 {
		visited[current] = true
		hex := m.Get(current)
		if hex == nil || !hex.Terrain.Land() {
			break
		}
		if hex.Terrain == TerrainLowland || hex.Terrain == TerrainRainforest {
			hex.Terrain = TerrainStream
		}

		var next *HexCoord
		best := hex.Elevation
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			if nh := m.Get(nc); nh != nil && nh.Elevation < best {
				best = nh.Elevation
				c := nc
				next = &c
			}
		}
		if next == nil {
			break
		}
		current = *next
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for range octaves {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
