package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/spotmarket/config"
	"github.com/kilianp07/spotmarket/core/market"
	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	coremqtt "github.com/kilianp07/spotmarket/core/mqtt"
	"github.com/kilianp07/spotmarket/core/scenario"
	"github.com/kilianp07/spotmarket/core/solver"
	"github.com/kilianp07/spotmarket/infra/logger"
	"github.com/kilianp07/spotmarket/infra/metrics"
	"github.com/kilianp07/spotmarket/infra/mqtt"
)

// Service wires the market engine to the configured metrics sinks and the
// optional MQTT result publisher.
type Service struct {
	cfg       *config.Config
	sink      coremetrics.MetricsSink
	publisher coremqtt.Publisher
	paho      *mqtt.PahoClient
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.Logging.Apply(); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logg := logger.New("service")

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{cfg: cfg, sink: sink, log: logg}
	if cfg.Solver.PublishResults {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.publisher = client
		svc.paho = client
	}
	return svc, nil
}

// Run starts the Prometheus endpoint when configured and solves the scenario.
func (s *Service) Run(ctx context.Context, scenarioPath string) error {
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.Solve(ctx, scenarioPath)
}

// Solve loads a scenario, dispatches the market and forwards the outcome to
// the metrics sinks and the result publisher.
func (s *Service) Solve(ctx context.Context, scenarioPath string) error {
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	opts := append(sc.Options(), market.WithLogger(s.log))
	spot := market.NewSpot(opts...)
	if err := sc.Apply(spot); err != nil {
		return fmt.Errorf("apply scenario: %w", err)
	}

	backend := solver.NewSimplexWithOptions(s.cfg.Solver.Tolerance, s.cfg.Solver.DualStep)
	runID := uuid.NewString()
	start := time.Now()
	solveErr := spot.Dispatch(backend)
	elapsed := time.Since(start)

	variables, constraints := spot.ModelSize()
	ev := coremetrics.SolveEvent{
		RunID:       runID,
		Variables:   variables,
		Constraints: constraints,
		Duration:    elapsed,
		Time:        time.Now(),
	}
	if solveErr != nil {
		var infeasible *market.InfeasibleModelError
		if errors.As(solveErr, &infeasible) {
			ev.Infeasible = true
			if err := s.sink.RecordSolve(ev); err != nil {
				s.log.Errorf("record solve: %v", err)
			}
		}
		return solveErr
	}
	if obj, err := spot.ObjectiveValue(); err == nil {
		ev.Objective = obj
	}
	if err := s.sink.RecordSolve(ev); err != nil {
		s.log.Errorf("record solve: %v", err)
	}

	results, err := s.harvest(spot, runID, ev.Time)
	if err != nil {
		return err
	}
	s.record(results)

	if s.publisher != nil {
		if err := s.publish(ctx, results.set); err != nil {
			return err
		}
	}
	s.log.Infof("run %s solved: objective %.2f in %s", runID, ev.Objective, elapsed)
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.paho != nil {
		s.paho.Disconnect()
	}
	return nil
}

// solvedResults carries one run's outcome in both metric and wire form.
type solvedResults struct {
	prices   []coremetrics.RegionPriceEvent
	dispatch []coremetrics.UnitDispatchEvent
	flows    []coremetrics.InterconnectorFlowEvent
	set      coremqtt.ResultSet
}

func (s *Service) harvest(spot *market.Spot, runID string, at time.Time) (*solvedResults, error) {
	out := &solvedResults{}

	prices, err := spot.EnergyPrices()
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		out.prices = append(out.prices, coremetrics.RegionPriceEvent{
			RunID: runID, Region: p.Region, Service: market.ServiceEnergy, Price: p.Price, Time: at,
		})
		out.set.Prices = append(out.set.Prices, coremqtt.RegionPrice{
			Region: p.Region, Service: market.ServiceEnergy, Price: p.Price,
		})
	}
	fcasPrices, err := spot.FCASPrices()
	if err != nil {
		return nil, err
	}
	for _, p := range fcasPrices {
		out.prices = append(out.prices, coremetrics.RegionPriceEvent{
			RunID: runID, Region: p.Region, Service: p.Service, Price: p.Price, Time: at,
		})
		out.set.Prices = append(out.set.Prices, coremqtt.RegionPrice{
			Region: p.Region, Service: p.Service, Price: p.Price,
		})
	}

	dispatch, err := spot.UnitDispatch()
	if err != nil {
		return nil, err
	}
	for _, d := range dispatch {
		out.dispatch = append(out.dispatch, coremetrics.UnitDispatchEvent{
			RunID: runID, Unit: d.Unit, Service: d.Service, DispatchMW: d.Dispatch, Time: at,
		})
		out.set.Dispatch = append(out.set.Dispatch, coremqtt.UnitDispatch{
			Unit: d.Unit, Service: d.Service, MW: d.Dispatch,
		})
	}

	flows, err := spot.InterconnectorFlows()
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		out.flows = append(out.flows, coremetrics.InterconnectorFlowEvent{
			RunID: runID, Interconnector: f.Interconnector, FlowMW: f.Flow, LossesMW: f.Losses, Time: at,
		})
		out.set.Flows = append(out.set.Flows, coremqtt.InterconnectorFlow{
			Interconnector: f.Interconnector, FlowMW: f.Flow, LossesMW: f.Losses,
		})
	}

	if obj, err := spot.ObjectiveValue(); err == nil {
		out.set.Objective = obj
	}
	return out, nil
}

// record forwards results to the sinks that support each event kind.
func (s *Service) record(results *solvedResults) {
	if rec, ok := s.sink.(coremetrics.RegionPriceRecorder); ok {
		if err := rec.RecordRegionPrices(results.prices); err != nil {
			s.log.Errorf("record prices: %v", err)
		}
	}
	if rec, ok := s.sink.(coremetrics.UnitDispatchRecorder); ok {
		if err := rec.RecordUnitDispatch(results.dispatch); err != nil {
			s.log.Errorf("record dispatch: %v", err)
		}
	}
	if rec, ok := s.sink.(coremetrics.InterconnectorFlowRecorder); ok {
		if err := rec.RecordInterconnectorFlows(results.flows); err != nil {
			s.log.Errorf("record flows: %v", err)
		}
	}
}

func (s *Service) publish(ctx context.Context, set coremqtt.ResultSet) error {
	runID, err := s.publisher.PublishResults(set)
	if err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	timeout := time.Duration(s.cfg.Solver.AckTimeoutSeconds) * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	ok, err := s.publisher.WaitForAck(runID, timeout)
	if err != nil {
		s.log.Warnf("ack wait for %s: %v", runID, err)
		return nil
	}
	if !ok {
		s.log.Warnf("no ack for %s", runID)
	}
	return nil
}
