package topography

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/entropy"
)

var ErrNoVillages = errors.New("topography: island has no villages")

// Village is a settled hex.
type Village struct {
	Coord HexCoord
	Score float64 // habitability
	Name  string
}

// PlaceVillages scores every land hex and picks the best ones, keeping at
// least minDist hexes between villages. Returns villages best first.
func PlaceVillages(m *Map, minDist, limit int, src *entropy.Source) []Village {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for _, coord := range m.Coords() {
		hex := m.Get(coord)
		if !hex.Terrain.Land() {
			continue
		}
		if s := habitability(m, coord, hex); s > 0 {
			candidates = append(candidates, scored{coord, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var villages []Village
	for _, c := range candidates {
		if len(villages) >= limit {
			break
		}
		if tooClose(c.coord, villages, minDist) {
			continue
		}
		villages = append(villages, Village{Coord: c.coord, Score: c.score})
	}

	names := villageNames(src, len(villages))
	for i := range villages {
		villages[i].Name = names[i]
	}
	return villages
}

// habitability prefers coast and streams, gardens nearby, and lagoon access.
func habitability(m *Map, coord HexCoord, hex *Hex) float64 {
	score := 0.0
	switch hex.Terrain {
	case TerrainCoast:
		score += 4.0
	case TerrainStream:
		score += 3.5
	case TerrainLowland:
		score += 3.0
	case TerrainRainforest:
		score += 1.5
	case TerrainUpland:
		score += 0.5
	case TerrainVolcanic:
		score += 0.1
	default:
		return 0
	}

	kinds := make(map[Terrain]bool)
	lagoon := false
	for _, nc := range coord.Neighbors() {
		nh := m.Get(nc)
		if nh == nil {
			continue
		}
		if nh.Terrain.Land() {
			kinds[nh.Terrain] = true
		}
		if nh.Terrain == TerrainLagoon {
			lagoon = true
		}
	}
	score += float64(len(kinds)) * 0.3
	if lagoon {
		score += 0.8
	}
	score += math.Log1p(hex.Rainfall*10) * 0.2
	return score
}

func tooClose(coord HexCoord, existing []Village, minDist int) bool {
	for _, v := range existing {
		if Distance(coord, v.Coord) < minDist {
			return true
		}
	}
	return false
}

// villageNames builds names from open syllables.
func villageNames(src *entropy.Source, count int) []string {
	onsets := []string{"", "f", "s", "l", "m", "t", "v", "n", "p", "g"}
	vowels := []string{"a", "e", "i", "o", "u", "ai", "au", "ae"}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		var b strings.Builder
		for range 2 + src.IntN(2) {
			b.WriteString(onsets[src.IntN(len(onsets))])
			b.WriteString(vowels[src.IntN(len(vowels))])
		}
		name := b.String()
		name = strings.ToUpper(name[:1]) + name[1:]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Settle assigns every individual of pop to a village, weighted by village
// score. The result is a join table from identity to village index.
func Settle(pop *demography.Population, villages []Village, src *entropy.Source) (map[uuid.UUID]int, error) {
	if len(villages) == 0 {
		return nil, ErrNoVillages
	}
	cum := make([]float64, len(villages))
	total := 0.0
	for i, v := range villages {
		total += v.Score
		cum[i] = total
	}
	out := make(map[uuid.UUID]int, pop.Len())
	pop.Each(func(ind *demography.Individual) {
		x := src.Float64() * total
		out[ind.ID] = min(sort.SearchFloat64s(cum, x), len(villages)-1)
	})
	return out, nil
}

// Breakdown counts settled individuals per village name.
func Breakdown(assign map[uuid.UUID]int, villages []Village) map[string]int {
	out := make(map[string]int, len(villages))
	for _, idx := range assign {
		out[villages[idx].Name]++
	}
	return out
}
