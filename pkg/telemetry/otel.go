package telemetry

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// OTelSink reports reservation/conflict/summary events as OpenTelemetry
// counters plus a structured textual event stream through a logr.Logger —
// cmd/warpcore wires a github.com/go-logr/stdr logger by default so events
// are readable without a collector attached.
type OTelSink struct {
	log logr.Logger

	reserved  metric.Int64Counter
	conflicts metric.Int64Counter
	ticks     metric.Int64Counter
}

var _ Sink = (*OTelSink)(nil)

// NewOTelSink builds an OTelSink from the given meter/log names. meterName
// is typically "warp-core"; log is the sink's structured logger (pass
// stdr.New(nil) for a stdlib-backed default).
func NewOTelSink(meterName string, log logr.Logger) (*OTelSink, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	reserved, err := meter.Int64Counter(
		"warpcore.scheduler.reserved",
		metric.WithDescription("rewrites admitted by the reservation loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: reserved counter: %w", err)
	}

	conflicts, err := meter.Int64Counter(
		"warpcore.scheduler.conflicts",
		metric.WithDescription("rewrites rejected for a footprint conflict"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: conflicts counter: %w", err)
	}

	ticks, err := meter.Int64Counter(
		"warpcore.engine.ticks",
		metric.WithDescription("completed tick commits"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: ticks counter: %w", err)
	}

	return &OTelSink{log: log, reserved: reserved, conflicts: conflicts, ticks: ticks}, nil
}

func (s *OTelSink) OnReserve(key TxKey, scopeHash ident.Hash) {
	ctx := context.Background()
	s.reserved.Add(ctx, 1, metric.WithAttributes(attribute.Int64("tx", int64(key.TxID))))
	s.log.V(1).Info("rewrite reserved", "tx", key.TxID, "rule_id", key.RuleID.String(), "scope_hash", scopeHash.String())
}

func (s *OTelSink) OnConflict(key TxKey, scopeHash ident.Hash) {
	ctx := context.Background()
	s.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.Int64("tx", int64(key.TxID))))
	s.log.V(1).Info("rewrite rejected: footprint conflict", "tx", key.TxID, "rule_id", key.RuleID.String(), "scope_hash", scopeHash.String())
}

func (s *OTelSink) OnTickSummary(summary TickSummary) {
	ctx := context.Background()
	s.ticks.Add(ctx, 1, metric.WithAttributes(attribute.Int64("tx", int64(summary.TxID))))
	s.log.Info("tick committed",
		"tx", summary.TxID,
		"candidate", summary.Candidate,
		"applied", summary.Applied,
		"rejected", summary.Rejected,
	)
}

// StartTick opens a trace span around one tick's plan/reserve/execute/merge/
// apply/commit pipeline. Callers end it with span.End() once CommitWithReceipt
// returns. otel's global TracerProvider defaults to a no-op implementation
// until the embedding process configures one, so this is safe to call
// unconditionally.
func (s *OTelSink) StartTick(ctx context.Context, tracerName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "warpcore.tick")
}
