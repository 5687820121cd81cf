package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records solve events in Prometheus metrics.
type PromSink struct {
	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective prometheus.Gauge
	prices    *prometheus.GaugeVec
}

// NewPromSink registers solve metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_solves_total",
		Help: "Total number of dispatch solves",
	}, []string{"infeasible"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_solve_duration_seconds",
		Help:    "Time spent solving the dispatch linear program",
		Buckets: prometheus.DefBuckets,
	}, []string{"infeasible"})
	objective := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_objective_dollars",
		Help: "Objective value of the last successful solve",
	})
	prices := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_region_price_dollars_per_mw",
		Help: "Cleared regional price of the last solve",
	}, []string{"region", "service"})

	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(objective); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			objective = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(prices); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			prices = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{solves: solves, duration: duration, objective: objective, prices: prices}, nil
}

// RecordSolve increments the solve counter and observes the duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	infeasible := strconv.FormatBool(ev.Infeasible)
	s.solves.WithLabelValues(infeasible).Inc()
	s.duration.WithLabelValues(infeasible).Observe(ev.Duration.Seconds())
	if !ev.Infeasible {
		s.objective.Set(ev.Objective)
	}
	return nil
}

// RecordRegionPrices sets the regional price gauges.
func (s *PromSink) RecordRegionPrices(events []coremetrics.RegionPriceEvent) error {
	for _, ev := range events {
		s.prices.WithLabelValues(ev.Region, ev.Service).Set(ev.Price)
	}
	return nil
}
