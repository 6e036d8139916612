package boaw

import (
	"sync"
	"sync/atomic"

	"github.com/flyingrobots/warp-core/pkg/graph"
)

// ExecuteSerial runs every item against view in order, collecting all
// emitted ops into a single TickDelta. This is the serial baseline used to
// validate ExecuteParallel's merged output against in tests.
func ExecuteSerial(view graph.View, items []ExecItem) *graph.TickDelta {
	delta := graph.NewTickDelta()
	for _, item := range items {
		local := graph.NewTickDelta()
		item.Exec(view, item.Scope, local)
		scoped := delta.Scoped(item.Origin)
		for _, op := range local.IntoOpsUnsorted() {
			scoped.Emit(op)
		}
	}
	return delta
}

// ExecuteParallel partitions items into virtual shards by scope and runs
// workers goroutines against them, each claiming shards from a shared atomic
// counter until none remain (work-stealing). Each worker accumulates its own
// TickDelta — no shared mutable state crosses goroutines during execution,
// so the only synchronization needed is the shard counter itself.
//
// Execution order across workers is not deterministic; callers must run the
// returned deltas through MergeDeltas to recover canonical order. workers is
// capped at NumShards — spawning more workers than shards buys nothing.
//
// Panics: a panic in any worker propagates to the caller via panic/recover
// re-raise once every worker has finished, matching the teacher's
// fail-loud-on-worker-panic posture in its async storage engine.
func ExecuteParallel(view graph.View, items []ExecItem, workers int) []*graph.TickDelta {
	if workers < 1 {
		panic("boaw: workers must be >= 1")
	}
	if workers > NumShards {
		workers = NumShards
	}

	deltas := make([]*graph.TickDelta, workers)
	if len(items) == 0 {
		for i := range deltas {
			deltas[i] = graph.NewTickDelta()
		}
		return deltas
	}

	shards := partitionIntoShards(items)
	var nextShard atomic.Int64

	var wg sync.WaitGroup
	panics := make([]any, workers)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics[w] = r
				}
			}()

			delta := graph.NewTickDelta()
			for {
				id := nextShard.Add(1) - 1
				if id >= NumShards {
					break
				}
				for _, item := range shards[id].items {
					local := graph.NewTickDelta()
					item.Exec(view, item.Scope, local)
					scoped := delta.Scoped(item.Origin)
					for _, op := range local.IntoOpsUnsorted() {
						scoped.Emit(op)
					}
				}
			}
			deltas[w] = delta
		}()
	}
	wg.Wait()

	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	return deltas
}
