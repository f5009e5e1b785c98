package engine

import (
	"context"
	"sync"
)

// YearClock is a counted rendezvous over the shared playback year. The year
// advances only once every party has arrived for the current one.
type YearClock struct {
	mu      sync.Mutex
	year    int
	parties int
	arrived int
	gen     chan struct{} // closed when the year advances
}

// NewYearClock creates a clock at year for the given number of parties.
func NewYearClock(year, parties int) *YearClock {
	return &YearClock{
		year:    year,
		parties: parties,
		gen:     make(chan struct{}),
	}
}

// Year returns the current shared year.
func (c *YearClock) Year() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.year
}

// Arrive acknowledges the current year and blocks until every party has
// done the same. It returns the new year. A cancelled party withdraws its
// acknowledgement.
func (c *YearClock) Arrive(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.arrived++
	if c.arrived >= c.parties {
		c.year++
		c.arrived = 0
		close(c.gen)
		c.gen = make(chan struct{})
		y := c.year
		c.mu.Unlock()
		return y, nil
	}
	gen := c.gen
	c.mu.Unlock()

	select {
	case <-gen:
		return c.Year(), nil
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		select {
		case <-gen:
			// released while cancelling
			return c.year, nil
		default:
		}
		c.arrived--
		return c.year, ctx.Err()
	}
}
