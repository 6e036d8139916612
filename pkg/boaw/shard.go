// Package boaw implements bag-of-ops-at-once parallel execution: items are
// partitioned into virtual shards by scope locality, workers claim shards
// via work-stealing, and per-worker deltas are merged back into a single
// canonical order. Execution order across workers is never deterministic;
// the merge step is what restores determinism.
package boaw

import (
	"encoding/binary"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/rule"
)

// NumShards is the number of virtual shards items are partitioned into.
// This value is recorded in the commit hash domain — changing it changes
// which shard a given scope routes to, and is therefore a protocol-breaking
// change requiring an explicit version bump.
const NumShards = 256

const shardMask = NumShards - 1

// ShardOf computes the virtual shard a scope routes to: the little-endian
// uint64 of the scope id's first 8 bytes, masked to the shard count. Same
// scope always routes to the same shard, on every platform, forever — this
// formula is frozen once shipped.
func ShardOf(scope ident.NodeID) int {
	return int(binary.LittleEndian.Uint64(scope[0:8]) & shardMask)
}

// ExecItem is a single rewrite ready for execution: the function to run,
// the scope it runs at, and the origin tag its emitted ops should carry.
type ExecItem struct {
	Exec   rule.ExecuteFunc
	Scope  ident.NodeID
	Origin graph.OpOrigin
}

// virtualShard holds every ExecItem routed to one shard.
type virtualShard struct {
	items []ExecItem
}

// partitionIntoShards groups items by ShardOf(item.Scope), returning
// exactly NumShards shards (empty ones included) so callers can index
// directly by shard id.
func partitionIntoShards(items []ExecItem) []virtualShard {
	shards := make([]virtualShard, NumShards)
	for _, item := range items {
		id := ShardOf(item.Scope)
		shards[id].items = append(shards[id].items, item)
	}
	return shards
}
