// Package main provides the warp-core CLI entry point: run demo ticks,
// dump their receipts and snapshot digests, and inspect the blobstore.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/flyingrobots/warp-core/pkg/blobstore"
	"github.com/flyingrobots/warp-core/pkg/config"
	"github.com/flyingrobots/warp-core/pkg/demo"
	"github.com/flyingrobots/warp-core/pkg/engine"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
	"github.com/flyingrobots/warp-core/pkg/patch"
	"github.com/flyingrobots/warp-core/pkg/payload"
	"github.com/flyingrobots/warp-core/pkg/scalar"
	"github.com/flyingrobots/warp-core/pkg/seal"
	"github.com/flyingrobots/warp-core/pkg/telemetry"
	"github.com/flyingrobots/warp-core/pkg/wsc"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "warpcore",
		Short: "warp-core — a deterministic graph-rewriting engine",
		Long: `warp-core is the execution kernel for a speculative/collaborative
computing substrate: a typed, directed, attributed graph plus a scheduler
that plans, reserves, and commits a conflict-free subset of candidate
rewrites each tick, producing a content-addressed commit hash.`,
	}

	root.AddCommand(newVersionCmd(), newTickCmd(), newInspectCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("warpcore v%s (%s)\n", version, commit)
		},
	}
}

func newTickCmd() *cobra.Command {
	var blobDir string
	var persist bool
	var sealSecret string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one motion-demo tick and print its commit hash and receipt",
		Long: `tick builds the built-in motion demo engine (one entity with a
position/velocity attachment, the motion/update rule registered), applies
the rule once, and commits. It prints the plan/decision/rewrites digests,
the state root, and the final commit hash. With --persist, the resulting
WSC snapshot and canonical patch bytes are stored in a blobstore keyed by
commit hash. With --seal-secret, the persisted patch bytes are sealed in
a pkg/seal envelope (AEAD-bound to the commit hash) instead of stored
as plaintext, simulating transport to an external patch writer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTick(cmd, blobDir, persist, sealSecret)
		},
	}

	cmd.Flags().StringVar(&blobDir, "blob-dir", "./warpcore-data", "Blobstore data directory (ignored without --persist)")
	cmd.Flags().BoolVar(&persist, "persist", false, "Persist the tick's WSC snapshot and patch bytes to the blobstore")
	cmd.Flags().StringVar(&sealSecret, "seal-secret", "", "Seal the persisted patch bytes under this shared secret (ignored without --persist)")
	return cmd
}

// sealInfo scopes key derivation to this CLI's patch-sealing use, so the
// same --seal-secret value used for another purpose derives a different key.
const sealInfo = "warpcore/cli/patch"

func runTick(cmd *cobra.Command, blobDir string, persist bool, sealSecret string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := stdr.New(nil)
	sink, err := telemetry.NewOTelSink("warpcore-cli", log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	_, span := sink.StartTick(context.Background(), "warpcore-cli")
	defer span.End()

	e := demo.BuildMotionDemoEngineFromConfig(cfg)
	e.SetTelemetry(sink)

	entity := ident.MakeNodeID("entity")
	store := e.Store()
	if err := store.InsertNode(entity, graph.NodeRecord{Type: ident.MakeTypeID("entity")}); err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	key := graph.NodeAlpha(ident.NodeKey{WarpID: store.WarpID(), LocalID: entity})
	pos := [3]scalar.DFix64{scalar.DFix64FromF32(1), scalar.DFix64FromF32(2), scalar.DFix64FromF32(3)}
	vel := [3]scalar.DFix64{scalar.DFix64FromF32(0.5), scalar.DFix64FromF32(-1), scalar.DFix64FromF32(0.25)}
	store.SetAttachment(key, graph.AtomAttachment(payload.EncodeMotionAtomV2(pos, vel)))

	tx := e.Begin()
	scope := ident.NodeKey{WarpID: store.WarpID(), LocalID: entity}
	res, err := e.Apply(tx, demo.MotionRuleName, scope)
	if err != nil {
		return fmt.Errorf("apply motion rule: %w", err)
	}
	if res != engine.ResultApplied {
		return fmt.Errorf("apply motion rule: entity did not match")
	}

	snap, tr, patchBytes, err := e.CommitWithReceipt(tx)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workers:         %d\n", e.WorkerCount())
	fmt.Fprintf(out, "plan_digest:     %s\n", hex.EncodeToString(snap.PlanDigest[:]))
	fmt.Fprintf(out, "decision_digest: %s\n", hex.EncodeToString(snap.DecisionDigest[:]))
	fmt.Fprintf(out, "rewrites_digest: %s\n", hex.EncodeToString(snap.RewritesDigest[:]))
	fmt.Fprintf(out, "patch_digest:    %s\n", hex.EncodeToString(snap.PatchDigest[:]))
	fmt.Fprintf(out, "state_root:      %s\n", hex.EncodeToString(snap.StateRoot[:]))
	fmt.Fprintf(out, "commit_hash:     %s\n", hex.EncodeToString(snap.Hash[:]))
	for i, entry := range tr.Entries {
		fmt.Fprintf(out, "receipt[%d]: rule=%s scope=%s disposition=%d\n", i, entry.RuleID, entry.Scope.LocalID, entry.Disposition)
	}

	if !persist {
		return nil
	}

	blobs, err := blobstore.Open(blobstore.Options{DataDir: blobDir})
	if err != nil {
		return fmt.Errorf("open blobstore: %w", err)
	}
	defer blobs.Close()

	schemaHash := ident.Hash(ident.MakeTypeID("warpcore/motion-demo"))
	wscBytes := wsc.Write(e.State(), schemaHash, uint64(tx))
	if err := blobs.PutSnapshot(snap.Hash, wscBytes); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	toPersist := patchBytes
	if sealSecret != "" {
		sealed, err := sealPatchBytes(sealSecret, patchBytes, snap.Hash)
		if err != nil {
			return fmt.Errorf("seal patch: %w", err)
		}
		toPersist = sealed
		fmt.Fprintf(out, "patch sealed: %s plaintext -> %s envelope\n", humanize.Bytes(uint64(len(patchBytes))), humanize.Bytes(uint64(len(sealed))))
	}
	if err := blobs.PutPatch(snap.Hash, toPersist); err != nil {
		return fmt.Errorf("persist patch: %w", err)
	}
	fmt.Fprintf(out, "persisted snapshot+patch under commit_hash %s in %s\n", hex.EncodeToString(snap.Hash[:]), blobDir)
	return nil
}

// sealPatchBytes derives a key from secret and seals plaintext under it,
// binding the envelope to commitHash so a sealed patch cannot be replayed
// under a different commit's key.
func sealPatchBytes(secret string, plaintext []byte, commitHash ident.Hash) ([]byte, error) {
	key, err := seal.DeriveKey([]byte(secret), []byte(sealInfo))
	if err != nil {
		return nil, err
	}
	sealer, err := seal.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return sealer.Seal(plaintext, commitHash[:])
}

// openSealedPatchBytes is sealPatchBytes's inverse, used by inspect.
func openSealedPatchBytes(secret string, envelope []byte, commitHash ident.Hash) ([]byte, error) {
	key, err := seal.DeriveKey([]byte(secret), []byte(sealInfo))
	if err != nil {
		return nil, err
	}
	sealer, err := seal.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return sealer.Open(envelope, commitHash[:])
}

func newInspectCmd() *cobra.Command {
	var blobDir string
	var sealSecret string

	cmd := &cobra.Command{
		Use:   "inspect <commit-hash-hex>",
		Short: "Dump a persisted WSC snapshot and patch blob from the blobstore",
		Long: `inspect loads a snapshot and patch blob by commit hash. If the
patch was persisted with tick --seal-secret, pass the same --seal-secret
here to unseal it before decoding; the envelope's AEAD binding to the
commit hash is verified as part of opening it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, blobDir, args[0], sealSecret)
		},
	}
	cmd.Flags().StringVar(&blobDir, "blob-dir", "./warpcore-data", "Blobstore data directory")
	cmd.Flags().StringVar(&sealSecret, "seal-secret", "", "Unseal the patch blob with this shared secret before decoding")
	return cmd
}

func runInspect(cmd *cobra.Command, blobDir, commitHashHex, sealSecret string) error {
	raw, err := hex.DecodeString(commitHashHex)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("invalid commit hash %q: must be 64 hex characters", commitHashHex)
	}
	var commitHash ident.Hash
	copy(commitHash[:], raw)

	blobs, err := blobstore.Open(blobstore.Options{DataDir: blobDir})
	if err != nil {
		return fmt.Errorf("open blobstore: %w", err)
	}
	defer blobs.Close()

	ctx := context.Background()
	wscBytes, err := blobs.GetSnapshot(ctx, commitHash)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	patchBytes, err := blobs.GetPatch(ctx, commitHash)
	if err != nil {
		return fmt.Errorf("load patch: %w", err)
	}
	if sealSecret != "" {
		patchBytes, err = openSealedPatchBytes(sealSecret, patchBytes, commitHash)
		if err != nil {
			return fmt.Errorf("unseal patch: %w", err)
		}
	}

	hdr, state, err := wsc.Parse(wscBytes)
	if err != nil {
		return fmt.Errorf("parse wsc: %w", err)
	}
	ops, err := patch.Decode(patchBytes)
	if err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "schema_hash: %s\n", hex.EncodeToString(hdr.SchemaHash[:]))
	fmt.Fprintf(out, "tick:        %d\n", hdr.Tick)
	fmt.Fprintf(out, "warps:       %d\n", hdr.WarpCount)
	for _, warpID := range state.WarpIDs() {
		store, _ := state.Store(warpID)
		fmt.Fprintf(out, "  warp %s: %d nodes\n", warpID, len(store.Nodes()))
	}
	fmt.Fprintf(out, "patch ops:   %d\n", len(ops))
	fmt.Fprintf(out, "snapshot size: %s\n", humanize.Bytes(uint64(len(wscBytes))))
	fmt.Fprintf(out, "patch size:    %s\n", humanize.Bytes(uint64(len(patchBytes))))
	return nil
}
