// Package engine orchestrates the tick pipeline: draining a transaction's
// pending rewrites, reserving the conflict-free subset, executing and
// merging their deltas, applying the result to the graph, finalizing
// materialization emissions, and folding every digest into a commit hash.
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"lukechampine.com/blake3"

	"github.com/flyingrobots/warp-core/pkg/boaw"
	"github.com/flyingrobots/warp-core/pkg/footprint"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/materialization"
	"github.com/flyingrobots/warp-core/pkg/patch"
	"github.com/flyingrobots/warp-core/pkg/receipt"
	"github.com/flyingrobots/warp-core/pkg/rule"
	"github.com/flyingrobots/warp-core/pkg/scheduler"
	"github.com/flyingrobots/warp-core/pkg/snapshot"
	"github.com/flyingrobots/warp-core/pkg/telemetry"
)

// ErrUnknownTx is returned when a caller references a TxID that was never
// opened by Begin, or has already been closed by a prior Commit.
var ErrUnknownTx = errors.New("engine: unknown transaction")

// ErrUnknownRule is returned by Apply when the rule name was never registered
// via RegisterRule.
var ErrUnknownRule = errors.New("engine: unknown rule")

// ErrDuplicateRule is returned by RegisterRule when a rule with the same id
// or name is already registered.
var ErrDuplicateRule = errors.New("engine: rule already registered")

// ApplyResult reports what Apply did with a proposed rewrite.
type ApplyResult uint8

const (
	// ResultNoMatch means the rule's matcher declined the scope; nothing was
	// enqueued. Not an error.
	ResultNoMatch ApplyResult = iota
	// ResultApplied means the rewrite was enqueued for the next Commit.
	ResultApplied
)

// MergeConflictError wraps a pkg/boaw merge conflict as a fatal commit
// error: the tick aborts with no state change.
type MergeConflictError struct {
	Err error
}

func (e *MergeConflictError) Error() string { return "engine: merge conflict: " + e.Err.Error() }
func (e *MergeConflictError) Unwrap() error { return e.Err }

// MaterializationError wraps a channel finalization failure (e.g. a
// StrictSingle conflict) as a fatal commit error: the tick aborts with no
// state change.
type MaterializationError struct {
	Err error
}

func (e *MaterializationError) Error() string {
	return "engine: materialization finalize: " + e.Err.Error()
}
func (e *MaterializationError) Unwrap() error { return e.Err }

// Engine is the top-level tick-pipeline orchestrator: a multi-instance graph
// state, a registry of rewrite rules, the scheduler that reserves conflict-
// free rewrites each tick, and the materialization bus rules emit to.
//
// Engine is not safe for concurrent use by multiple goroutines issuing
// Begin/Apply/Commit calls against the same Engine simultaneously — exactly
// one tick is ever in flight per Engine, matching the reference engine's
// single-threaded-critical-section model (see SPEC_FULL.md §5). Only the
// execution step within one tick is itself parallel.
type Engine struct {
	mu sync.Mutex

	state      *graph.WarpState
	rootWarpID ident.WarpID
	rootNode   ident.NodeID
	policyID   uint32

	rules       []rule.RewriteRule
	rulesByID   map[ident.Hash]ident.CompactRuleID
	rulesByName map[string]ident.CompactRuleID

	scheduler *scheduler.RadixScheduler
	bus       *materialization.Bus
	ports     []*materialization.Port
	sink      telemetry.Sink

	txCounter uint64
	liveTxs   map[scheduler.TxID]struct{}

	lastSnapshot *snapshot.Snapshot

	// workerCount bounds BOAW execution parallelism (SPEC_FULL.md §6's
	// worker_count option). Zero means "unset": CommitWithReceipt falls
	// back to one goroutine per accepted candidate this tick, still capped
	// internally by boaw.ExecuteParallel at boaw.NumShards.
	workerCount int
}

// New constructs an engine over an empty root instance. rootWarpID/rootNode
// identify the top-level namespace and node the state root is computed
// from; policyID is folded into every commit hash, letting callers version
// their rule set without perturbing unrelated commits' hashes.
func New(rootWarpID ident.WarpID, rootNode ident.NodeID, policyID uint32) *Engine {
	store := graph.NewStore(rootWarpID)
	state := graph.NewWarpState()
	state.UpsertInstance(graph.WarpInstance{WarpID: rootWarpID, RootNode: rootNode}, store)

	return &Engine{
		state:       state,
		rootWarpID:  rootWarpID,
		rootNode:    rootNode,
		policyID:    policyID,
		rulesByID:   make(map[ident.Hash]ident.CompactRuleID),
		rulesByName: make(map[string]ident.CompactRuleID),
		scheduler:   scheduler.NewRadixScheduler(),
		bus:         materialization.NewBus(),
		sink:        telemetry.NullSink{},
		liveTxs:     make(map[scheduler.TxID]struct{}),
	}
}

// SetWorkerCount bounds this engine's BOAW execution pool to n goroutines,
// clamped to [1, boaw.NumShards] per SPEC_FULL.md §6's worker_count
// contract. Callers wire pkg/config's validated Config.WorkerCount through
// here before ticking; an engine that never calls SetWorkerCount keeps the
// prior one-goroutine-per-candidate behavior.
func (e *Engine) SetWorkerCount(n int) {
	if n < 1 {
		n = 1
	}
	if n > boaw.NumShards {
		n = boaw.NumShards
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workerCount = n
}

// WorkerCount returns the currently configured BOAW worker pool bound, or 0
// if SetWorkerCount has never been called.
func (e *Engine) WorkerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workerCount
}

// SetTelemetry replaces the engine's telemetry sink. Passing nil restores
// the default NullSink. Reservation and conflict events fire per candidate
// during Commit's reserve loop; a summary fires once per committed tick.
func (e *Engine) SetTelemetry(sink telemetry.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sink == nil {
		sink = telemetry.NullSink{}
	}
	e.sink = sink
}

// Store returns the root instance's skeleton store, for callers that need
// read-only inspection outside of a rule invocation (e.g. a CLI dump
// command).
func (e *Engine) Store() *graph.Store {
	store, _ := e.state.Store(e.rootWarpID)
	return store
}

// State returns the full multi-instance world.
func (e *Engine) State() *graph.WarpState { return e.state }

// Node returns the record for id in the root instance, if present.
func (e *Engine) Node(id ident.NodeID) (graph.NodeRecord, bool) {
	return e.Store().Node(id)
}

// NodeAttachment returns the alpha-plane attachment of id in the root
// instance, if present.
func (e *Engine) NodeAttachment(id ident.NodeID) (graph.AttachmentValue, bool) {
	return e.Store().NodeAttachment(id)
}

// Bus returns the materialization bus, for rule closures that construct
// their own ScopedEmitter via ScopeHash.
func (e *Engine) Bus() *materialization.Bus { return e.bus }

// RegisterMaterializationPort attaches a port that will receive every tick's
// finalized channel data.
func (e *Engine) RegisterMaterializationPort(port *materialization.Port) {
	e.ports = append(e.ports, port)
}

// RegisterChannel sets the finalization policy for a materialization
// channel. Channels default to materialization.LogPolicy if never
// registered.
func (e *Engine) RegisterChannel(channel materialization.ChannelID, policy materialization.ChannelPolicy) {
	e.bus.RegisterChannel(channel, policy)
}

// RegisterRule validates and registers r, assigning it a CompactRuleID
// stable for the lifetime of this engine (its index in registration order).
// A rule whose id or name collides with an already-registered rule is
// rejected with ErrDuplicateRule.
func (e *Engine) RegisterRule(r rule.RewriteRule) (ident.CompactRuleID, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rulesByID[r.ID]; exists {
		return 0, fmt.Errorf("%w: id %s", ErrDuplicateRule, r.ID)
	}
	if _, exists := e.rulesByName[r.Name]; exists {
		return 0, fmt.Errorf("%w: name %q", ErrDuplicateRule, r.Name)
	}

	compactID := ident.CompactRuleID(len(e.rules))
	e.rules = append(e.rules, r)
	e.rulesByID[r.ID] = compactID
	e.rulesByName[r.Name] = compactID
	return compactID, nil
}

// Begin opens a new transaction and returns its id.
func (e *Engine) Begin() scheduler.TxID {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := scheduler.TxID(e.txCounter)
	e.txCounter++
	e.liveTxs[tx] = struct{}{}
	return tx
}

// ScopeHash computes the scheduling/materialization scope hash for a
// (rule, scope) pair: BLAKE3(ruleID ‖ scope). Exported so rule closures that
// need to construct their own materialization.ScopedEmitter can recompute
// the identical hash Apply used when enqueueing their invocation.
func ScopeHash(ruleID ident.Hash, scope ident.NodeID) ident.Hash {
	return ident.ScopeHash(ruleID, scope)
}

// Apply proposes that the rule named ruleName fire at scope within tx. The
// rule's matcher runs against the scope's instance first: a declining match
// returns ResultNoMatch without enqueueing anything. On a match, Apply
// computes the rule's footprint and enqueues a PendingRewrite for the next
// Commit's scheduling pass; re-applying the same (rule, scope) pair within
// one transaction replaces the earlier pending entry.
func (e *Engine) Apply(tx scheduler.TxID, ruleName string, scope ident.NodeKey) (ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.liveTxs[tx]; !ok {
		return ResultNoMatch, ErrUnknownTx
	}
	compactID, ok := e.rulesByName[ruleName]
	if !ok {
		return ResultNoMatch, ErrUnknownRule
	}
	r := e.rules[compactID]

	// A scope in a warp this engine has never seen matches against an empty
	// transient view — Apply itself never registers new instances; only
	// committed ops create state.
	view, exists := e.state.Store(scope.WarpID)
	if !exists {
		view = graph.NewStore(scope.WarpID)
	}
	if !r.Matcher(view, scope.LocalID) {
		return ResultNoMatch, nil
	}

	scopeHash := ScopeHash(r.ID, scope.LocalID)
	fp := r.ComputeFootprint(view, scope.LocalID)
	fp.FactorMask = r.FactorMask

	e.scheduler.Enqueue(tx, scheduler.PendingRewrite{
		RuleID:      r.ID,
		CompactRule: compactID,
		ScopeHash:   scopeHash,
		Scope:       scope,
		Footprint:   fp,
		Phase:       scheduler.PhaseMatched,
	})
	return ResultApplied, nil
}

func (e *Engine) storeFor(warpID ident.WarpID) *graph.Store {
	if s, ok := e.state.Store(warpID); ok {
		return s
	}
	s := graph.NewStore(warpID)
	e.state.UpsertInstance(graph.WarpInstance{WarpID: warpID}, s)
	return s
}

// Commit runs the full tick pipeline for tx and returns the resulting
// Snapshot. Equivalent to CommitWithReceipt, discarding the receipt and
// patch bytes.
func (e *Engine) Commit(tx scheduler.TxID) (*snapshot.Snapshot, error) {
	snap, _, _, err := e.CommitWithReceipt(tx)
	return snap, err
}

// CommitWithReceipt runs the twelve-step tick pipeline: drain, plan digest,
// reserve/receipt, parallel execute, merge, apply, materialization finalize,
// rewrites digest, decision digest, patch digest, state root, commit hash,
// close tx. It returns the Snapshot, the TickReceipt recording every
// candidate's disposition, and the canonical patch bytes for the applied
// op list.
//
// A footprint conflict during reservation is recorded in the receipt and
// does not fail the tick. A merge conflict, an op that would violate a
// store invariant, or a channel finalization failure is fatal: the tick
// aborts atomically — the graph state and the bus are exactly as they were
// before Commit, and no snapshot is produced.
func (e *Engine) CommitWithReceipt(tx scheduler.TxID) (*snapshot.Snapshot, receipt.TickReceipt, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.liveTxs[tx]; !ok {
		return nil, receipt.TickReceipt{}, nil, ErrUnknownTx
	}

	abort := func(err error) (*snapshot.Snapshot, receipt.TickReceipt, []byte, error) {
		e.bus.Reset()
		e.scheduler.FinalizeTx(tx)
		return nil, receipt.TickReceipt{}, nil, err
	}

	// 1. Drain.
	drained := e.scheduler.DrainForTx(tx)

	// 2. Plan digest.
	planDigest := computePlanDigest(drained)

	// 3. Reserve accepted set; build receipt. Rejected candidates record the
	// receipt indices of the earlier accepted rewrites whose footprints
	// overlap theirs.
	var tr receipt.TickReceipt
	accepted := make([]*scheduler.PendingRewrite, 0, len(drained))
	acceptedIx := make([]int, 0, len(drained))
	for i, pr := range drained {
		entry := receipt.Entry{RuleID: pr.RuleID, ScopeHash: pr.ScopeHash, Scope: pr.Scope}
		key := telemetry.TxKey{TxID: uint64(tx), RuleID: pr.RuleID}
		if e.scheduler.Reserve(tx, pr) {
			entry.Disposition = receipt.Applied
			accepted = append(accepted, pr)
			acceptedIx = append(acceptedIx, i)
			e.sink.OnReserve(key, pr.ScopeHash)
		} else {
			entry.Disposition = receipt.RejectedFootprintConflict
			for j, acc := range accepted {
				if !footprint.Independent(pr.Footprint, acc.Footprint) {
					entry.BlockedBy = append(entry.BlockedBy, acceptedIx[j])
				}
			}
			e.sink.OnConflict(key, pr.ScopeHash)
		}
		tr.Entries = append(tr.Entries, entry)
	}

	// 4. Execute accepted set in parallel; merge.
	items := make([]boaw.ExecItem, 0, len(accepted))
	for _, pr := range accepted {
		r := e.rules[pr.CompactRule]
		items = append(items, boaw.ExecItem{
			Exec:   r.Executor,
			Scope:  pr.Scope.LocalID,
			Origin: graph.OpOrigin{RuleID: uint32(pr.CompactRule)},
		})
	}

	view := e.storeFor(e.rootWarpID)
	workers := e.workerCount
	if workers == 0 {
		// No configured bound: match the candidate count, one goroutine per
		// accepted rewrite (ExecuteParallel still caps this at NumShards).
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}
	deltas := boaw.ExecuteParallel(view, items, workers)

	mergedOps, err := boaw.MergeDeltas(deltas)
	if err != nil {
		return abort(&MergeConflictError{Err: err})
	}

	// 5. Apply the merged op list, in order. A dry run against a clone
	// surfaces any invariant violation before the live state is touched, so
	// an abort here leaves the engine exactly as it was.
	if err := graph.Apply(e.state.Clone(), mergedOps); err != nil {
		return abort(err)
	}

	// 6. Materialization finalize. Resolved before the live mutation for the
	// same atomicity reason: a StrictSingle conflict must abort with no
	// state change.
	finalized, err := e.bus.Finalize()
	if err != nil {
		return abort(&MaterializationError{Err: err})
	}

	if err := graph.Apply(e.state, mergedOps); err != nil {
		// The dry run above already validated every op.
		return abort(err)
	}
	for _, port := range e.ports {
		port.ReceiveFinalized(finalized)
	}
	e.bus.Reset()

	// 7. Rewrites digest.
	rewritesDigest := computeRewritesDigest(mergedOps)

	// 8. Decision digest.
	decisionDigest := tr.Digest()

	// 9. Patch digest, over the same canonical encoding handed back to the
	// caller as the externalizable patch bytes.
	patchBytes := patch.Encode(mergedOps)
	patchDigest := patch.Digest(patchBytes)

	// 10. State root.
	rootStore := e.storeFor(e.rootWarpID)
	stateRoot := snapshot.ComputeStateRoot(rootStore, e.rootNode)

	var parents []ident.Hash
	if e.lastSnapshot != nil {
		parents = []ident.Hash{e.lastSnapshot.Hash}
	}

	// 11. Commit hash.
	commitHash := snapshot.ComputeCommitHash(stateRoot, parents, planDigest, decisionDigest, rewritesDigest, e.policyID)

	snap := &snapshot.Snapshot{
		Root:           e.rootNode,
		StateRoot:      stateRoot,
		Hash:           commitHash,
		Parents:        parents,
		PlanDigest:     planDigest,
		DecisionDigest: decisionDigest,
		RewritesDigest: rewritesDigest,
		PatchDigest:    patchDigest,
		PolicyID:       e.policyID,
		Tx:             uint64(tx),
	}
	e.lastSnapshot = snap

	applied, rejected := 0, 0
	for _, entry := range tr.Entries {
		if entry.Disposition == receipt.Applied {
			applied++
		} else {
			rejected++
		}
	}
	e.sink.OnTickSummary(telemetry.TickSummary{
		TxID:      uint64(tx),
		Candidate: len(tr.Entries),
		Applied:   applied,
		Rejected:  rejected,
	})

	// 12. Close the transaction.
	e.scheduler.FinalizeTx(tx)
	delete(e.liveTxs, tx)

	return snap, tr, patchBytes, nil
}

const tickDigestVersion uint16 = 1

// computePlanDigest implements spec step 2: H(version ‖ count ‖
// Σ(rule_id, scope_hash)) over the full candidate list, in its drained
// canonical order.
func computePlanDigest(drained []*scheduler.PendingRewrite) ident.Hash {
	h := blake3.New(32, nil)

	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], tickDigestVersion)
	h.Write(versionBuf[:])

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(drained)))
	h.Write(countBuf[:])

	for _, pr := range drained {
		h.Write(pr.RuleID[:])
		h.Write(pr.ScopeHash[:])
	}

	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// computeRewritesDigest implements spec step 7: H(version ‖ Σ ordered
// WarpOpKeys and their payload bytes) over the applied (already canonically
// ordered) op list. Each op's payload is length-prefixed so ops with
// variable payloads cannot alias across record boundaries.
func computeRewritesDigest(ops []graph.WarpOp) ident.Hash {
	h := blake3.New(32, nil)

	var versionBuf [2]byte
	binary.LittleEndian.PutUint16(versionBuf[:], tickDigestVersion)
	h.Write(versionBuf[:])

	var lenBuf [8]byte
	for _, op := range ops {
		key := op.SortKey()
		h.Write(key[:])
		payload := payloadBytes(op)
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
		h.Write(lenBuf[:])
		h.Write(payload)
	}

	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// payloadBytes encodes the part of an op not already captured by its
// WarpOpKey: the fields that distinguish two same-key ops during merge
// dedupe must all appear here, or the rewrites digest would conflate them.
func payloadBytes(op graph.WarpOp) []byte {
	switch op.Kind {
	case graph.OpUpsertNode:
		out := make([]byte, 0, 32+len(op.Record.Payload))
		out = append(out, op.Record.Type[:]...)
		return append(out, op.Record.Payload...)
	case graph.OpUpsertEdge:
		out := make([]byte, 0, 64+len(op.Edge.Payload))
		out = append(out, op.Edge.Type[:]...)
		out = append(out, op.Edge.To[:]...)
		return append(out, op.Edge.Payload...)
	case graph.OpSetAttachment:
		return attachmentValueBytes(op.Value)
	case graph.OpOpenPortal:
		out := make([]byte, 0, 66)
		out = append(out, byte(op.Portal.Kind), byte(op.Portal.Parent.Plane))
		out = append(out, op.Portal.Child.WarpID[:]...)
		return append(out, op.Portal.Child.RootNode[:]...)
	case graph.OpUpsertWarpInstance:
		out := make([]byte, 0, 33)
		out = append(out, op.Instance.RootNode[:]...)
		if op.Instance.HasParent {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		return out
	default:
		return nil
	}
}

func attachmentValueBytes(v graph.AttachmentValue) []byte {
	if v.Kind == graph.AttachmentDescend {
		out := make([]byte, 0, 33)
		out = append(out, byte(graph.AttachmentDescend))
		return append(out, v.Child[:]...)
	}
	out := make([]byte, 0, 33+len(v.Atom.Bytes))
	out = append(out, byte(graph.AttachmentAtom))
	out = append(out, v.Atom.TypeID[:]...)
	return append(out, v.Atom.Bytes...)
}
