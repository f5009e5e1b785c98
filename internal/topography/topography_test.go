package topography

import (
	"testing"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/entropy"
)

func TestHexDistance(t *testing.T) {
	tests := []struct {
		a, b HexCoord
		want int
	}{
		{HexCoord{0, 0}, HexCoord{0, 0}, 0},
		{HexCoord{0, 0}, HexCoord{1, 0}, 1},
		{HexCoord{0, 0}, HexCoord{2, -1}, 2},
		{HexCoord{-3, 1}, HexCoord{2, -1}, 5},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
	for _, n := range (HexCoord{2, 3}).Neighbors() {
		if d := Distance(HexCoord{2, 3}, n); d != 1 {
			t.Errorf("neighbor %v at distance %d", n, d)
		}
	}
}

func TestMapBounds(t *testing.T) {
	m := NewMap(2)
	if !m.InBounds(HexCoord{2, -2}) {
		t.Fatalf("corner should be in bounds")
	}
	if m.InBounds(HexCoord{2, 1}) {
		t.Fatalf("s = -3 should be out of bounds")
	}
}

func TestGenerateIsland(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 7
	m := Generate(cfg)

	// Hex count of a radius R grid is 3R(R+1)+1.
	if want := 3*cfg.Radius*(cfg.Radius+1) + 1; len(m.Hexes) != want {
		t.Fatalf("hexes = %d, want %d", len(m.Hexes), want)
	}
	if m.LandCount() == 0 {
		t.Fatalf("island has no land")
	}
	// The outer ring is always under water.
	for _, c := range m.Coords() {
		if Distance(c, HexCoord{}) == cfg.Radius && m.Get(c).Terrain.Land() {
			t.Fatalf("rim hex %v is %s", c, m.Get(c).Terrain)
		}
	}

	again := Generate(cfg)
	for _, c := range m.Coords() {
		if m.Get(c).Terrain != again.Get(c).Terrain {
			t.Fatalf("same seed produced different terrain at %v", c)
		}
	}
}

func TestPlaceVillagesSpacing(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 11
	m := Generate(cfg)
	villages := PlaceVillages(m, 3, 8, entropy.New(1))
	if len(villages) == 0 {
		t.Fatalf("no villages placed")
	}
	if len(villages) > 8 {
		t.Fatalf("placed %d villages, limit 8", len(villages))
	}
	names := make(map[string]bool)
	for i, a := range villages {
		if !m.Get(a.Coord).Terrain.Land() {
			t.Fatalf("village %s in the water", a.Name)
		}
		if names[a.Name] {
			t.Fatalf("duplicate name %s", a.Name)
		}
		names[a.Name] = true
		if i > 0 && villages[i-1].Score < a.Score {
			t.Fatalf("villages not ordered by score")
		}
		for _, b := range villages[i+1:] {
			if Distance(a.Coord, b.Coord) < 3 {
				t.Fatalf("%s and %s closer than 3", a.Name, b.Name)
			}
		}
	}
}

func TestSettleAssignsEveryone(t *testing.T) {
	src := entropy.New(3)
	pop, err := demography.New(500, src)
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	villages := []Village{
		{Name: "Apia", Score: 9},
		{Name: "Lalomanu", Score: 1},
	}
	assign, err := Settle(pop, villages, src)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(assign) != pop.Len() {
		t.Fatalf("assigned %d, population %d", len(assign), pop.Len())
	}
	counts := Breakdown(assign, villages)
	if counts["Apia"]+counts["Lalomanu"] != pop.Len() {
		t.Fatalf("breakdown %v does not sum to %d", counts, pop.Len())
	}
	if counts["Apia"] <= counts["Lalomanu"] {
		t.Fatalf("weighting ignored: %v", counts)
	}

	if _, err := Settle(pop, nil, src); err != ErrNoVillages {
		t.Fatalf("err = %v, want ErrNoVillages", err)
	}
}
