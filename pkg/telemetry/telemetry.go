// Package telemetry defines the pluggable sink rule registration and tick
// commit events flow through, plus a null implementation used by default
// and an OpenTelemetry-backed implementation for production deployments.
//
// The engine package depends only on Sink and NullSink; the OTel-backed
// implementation is wired from the outside (cmd/warpcore). otel's global
// meter and tracer providers default to no-ops, so an engine whose process
// never configures a provider records nothing and pays nothing.
package telemetry

import "github.com/flyingrobots/warp-core/pkg/ident"

// TxKey identifies one (transaction, rule) pair an event is keyed by.
type TxKey struct {
	TxID   uint64
	RuleID ident.Hash
}

// Sink receives reservation, conflict, and tick-summary events. All methods
// must return promptly and without blocking — they are called from inside
// the tick's single-threaded critical section.
type Sink interface {
	// OnReserve fires once per candidate rewrite admitted by the scheduler.
	OnReserve(key TxKey, scopeHash ident.Hash)
	// OnConflict fires once per candidate rewrite rejected for a footprint
	// conflict.
	OnConflict(key TxKey, scopeHash ident.Hash)
	// OnTickSummary fires once per commit with the final counts.
	OnTickSummary(summary TickSummary)
}

// TickSummary reports the outcome counts of one completed tick.
type TickSummary struct {
	TxID      uint64
	Candidate int
	Applied   int
	Rejected  int
}

// NullSink discards every event. It is the default Sink for an Engine
// constructed without an explicit telemetry option.
type NullSink struct{}

var _ Sink = NullSink{}

func (NullSink) OnReserve(TxKey, ident.Hash)  {}
func (NullSink) OnConflict(TxKey, ident.Hash) {}
func (NullSink) OnTickSummary(TickSummary)    {}
