package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/spotmarket/core/metrics"
	"github.com/kilianp07/spotmarket/infra/logger"
)

// InfluxSink writes solve events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes the solve outcome as a line protocol event.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solve_event").
		AddTag("run_id", ev.RunID).
		AddTag("infeasible", strconv.FormatBool(ev.Infeasible)).
		AddTag("component", "dispatch").
		AddField("objective", round3(ev.Objective)).
		AddField("variables", ev.Variables).
		AddField("constraints", ev.Constraints).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRegionPrices writes the cleared regional prices.
func (s *InfluxSink) RecordRegionPrices(events []coremetrics.RegionPriceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("region_price").
			AddTag("run_id", ev.RunID).
			AddTag("region", ev.Region).
			AddTag("service", ev.Service).
			AddTag("component", "dispatch").
			AddField("price", round3(ev.Price)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnitDispatch writes the cleared volumes per unit and service.
func (s *InfluxSink) RecordUnitDispatch(events []coremetrics.UnitDispatchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("unit_dispatch").
			AddTag("run_id", ev.RunID).
			AddTag("unit", ev.Unit).
			AddTag("service", ev.Service).
			AddTag("component", "dispatch").
			AddField("dispatch_mw", round3(ev.DispatchMW)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordInterconnectorFlows writes the cleared flows and losses.
func (s *InfluxSink) RecordInterconnectorFlows(events []coremetrics.InterconnectorFlowEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("interconnector_flow").
			AddTag("run_id", ev.RunID).
			AddTag("interconnector", ev.Interconnector).
			AddTag("component", "dispatch").
			AddField("flow_mw", round3(ev.FlowMW)).
			AddField("losses_mw", round3(ev.LossesMW)).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
