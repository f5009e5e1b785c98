package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes playback progress per island. Each Simulation owns its
// registry so several runs can coexist in one process.
type Metrics struct {
	Registry   *prometheus.Registry
	Population *prometheus.GaugeVec
	Births     *prometheus.CounterVec
	Deaths     *prometheus.CounterVec
	Villages   *prometheus.GaugeVec
	Year       prometheus.Gauge
}

// NewMetrics creates and registers the playback collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tausaga",
			Name:      "population",
			Help:      "Recorded head count of an island at the playback year.",
		}, []string{"island"}),
		Births: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tausaga",
			Name:      "births_total",
			Help:      "Births played back so far.",
		}, []string{"island"}),
		Deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tausaga",
			Name:      "deaths_total",
			Help:      "Deaths played back so far.",
		}, []string{"island"}),
		Villages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tausaga",
			Name:      "village_population",
			Help:      "Residents per village at the last status dump.",
		}, []string{"island", "village"}),
		Year: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tausaga",
			Name:      "year",
			Help:      "Shared playback year.",
		}),
	}
	m.Registry.MustRegister(m.Population, m.Births, m.Deaths, m.Villages, m.Year)
	return m
}
