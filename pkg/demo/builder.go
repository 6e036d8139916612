package demo

import (
	"github.com/flyingrobots/warp-core/pkg/config"
	"github.com/flyingrobots/warp-core/pkg/engine"
	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// WorldRootNodeID and WorldRootTypeID name the conventional root node every
// demo engine is built with.
var (
	WorldRootNodeID = ident.MakeNodeID("world-root")
	WorldRootTypeID = ident.MakeTypeID("world")
)

// BuildMotionDemoEngine constructs an engine with a world-root node and the
// fixed-point motion update rule pre-registered, ready for immediate use in
// tests and demos. Equivalent to BuildMotionDemoEngineFromConfig with the
// default configuration.
func BuildMotionDemoEngine() *engine.Engine {
	return BuildMotionDemoEngineFromConfig(config.DefaultConfig())
}

// BuildMotionDemoEngineFromConfig constructs the demo engine honoring cfg:
// the worker pool bound, the policy id folded into every commit hash, and
// the scalar backend (DetFixed selects the Q32.32 motion rule over the
// canonical-f32 one). cfg should already be validated.
func BuildMotionDemoEngineFromConfig(cfg config.Config) *engine.Engine {
	warpID := ident.MakeWarpID("demo")
	e := engine.New(warpID, WorldRootNodeID, cfg.PolicyID)
	e.SetWorkerCount(cfg.WorkerCount)

	store := e.Store()
	if err := store.InsertNode(WorldRootNodeID, graph.NodeRecord{Type: WorldRootTypeID}); err != nil {
		panic("demo: world-root node should insert into a fresh store: " + err.Error())
	}

	motion := MotionRule()
	if !cfg.DetFixed {
		motion = MotionRuleF32()
	}
	if _, err := e.RegisterRule(motion); err != nil {
		panic("demo: motion rule should register successfully in a fresh engine: " + err.Error())
	}
	return e
}
