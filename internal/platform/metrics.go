package platform

import (
	"github.com/prometheus/client_golang/prometheus"

	"cubelife/internal/evo"
	"cubelife/internal/model"
)

// Metrics exposes run progress as prometheus collectors.
type Metrics struct {
	Generations        *prometheus.CounterVec
	Simulations        prometheus.Counter
	SimulationFailures prometheus.Counter
	Backtracks         prometheus.Counter
	Exhaustions        prometheus.Counter
	BestFitness        prometheus.Gauge
	Generation         prometheus.Gauge
	PopulationSize     prometheus.Gauge
	SpeciesCount       prometheus.Gauge
	SimulationSeconds  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubelife_generations_total",
			Help: "Evaluated generations by outcome.",
		}, []string{"outcome"}),
		Simulations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cubelife_simulations_total",
			Help: "Creatures simulated.",
		}),
		SimulationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cubelife_simulation_failures_total",
			Help: "Simulations that returned an error.",
		}),
		Backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cubelife_backtracks_total",
			Help: "Backtracks into an earlier generation.",
		}),
		Exhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cubelife_backtrack_exhaustions_total",
			Help: "Dead ends with no untried history left.",
		}),
		BestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cubelife_best_fitness",
			Help: "Best fitness of the last evaluated generation.",
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cubelife_generation",
			Help: "Generation the manager will evaluate next.",
		}),
		PopulationSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cubelife_population_size",
			Help: "Size of the population awaiting evaluation.",
		}),
		SpeciesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cubelife_species_count",
			Help: "Distinct body plans in the last evaluated generation.",
		}),
		SimulationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cubelife_simulation_seconds",
			Help:    "Wall time per creature simulation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	collectors := []prometheus.Collector{
		m.Generations, m.Simulations, m.SimulationFailures, m.Backtracks, m.Exhaustions,
		m.BestFitness, m.Generation, m.PopulationSize, m.SpeciesCount, m.SimulationSeconds,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeGeneration(out evo.Outcome, d model.GenerationDiagnostics) {
	m.Generations.WithLabelValues(string(out.Kind)).Inc()
	if out.Backtracked {
		m.Backtracks.Inc()
	}
	if out.Exhausted {
		m.Exhaustions.Inc()
	}
	m.BestFitness.Set(out.BestFitness)
	m.Generation.Set(float64(out.NextGeneration))
	m.PopulationSize.Set(float64(out.PopulationSize))
	m.SpeciesCount.Set(float64(d.SpeciesCount))
}
