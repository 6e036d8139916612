package graph

import (
	"sort"

	"github.com/flyingrobots/warp-core/pkg/ident"
)

// WarpInstance is the metadata record for one warp instance (a "layer"):
// its id, the root node within its own store, and (for descended instances)
// the attachment slot that descends into it.
type WarpInstance struct {
	WarpID   ident.WarpID
	RootNode ident.NodeID
	// Parent is the attachment slot that descends into this instance. The
	// root instance has no parent.
	Parent    AttachmentKey
	HasParent bool
}

// WarpState is the multi-instance world: a collection of instance-scoped
// stores plus their metadata. Both the store map and the instance map are
// kept alongside an explicitly sorted []WarpID index so that iteration is
// always in ascending WarpID order, matching the reference implementation's
// BTreeMap-backed determinism contract.
type WarpState struct {
	order     []ident.WarpID
	stores    map[ident.WarpID]*Store
	instances map[ident.WarpID]WarpInstance
}

// NewWarpState creates an empty multi-instance state.
func NewWarpState() *WarpState {
	return &WarpState{
		stores:    make(map[ident.WarpID]*Store),
		instances: make(map[ident.WarpID]WarpInstance),
	}
}

// Instance returns the metadata for warpID, if present.
func (w *WarpState) Instance(warpID ident.WarpID) (WarpInstance, bool) {
	inst, ok := w.instances[warpID]
	return inst, ok
}

// Store returns the skeleton store for warpID, if present.
func (w *WarpState) Store(warpID ident.WarpID) (*Store, bool) {
	s, ok := w.stores[warpID]
	return s, ok
}

// UpsertInstance inserts or replaces the store and metadata for a warp
// instance. The store's own WarpID is canonicalized to match instance's —
// instance metadata is the source of truth for namespace identity.
func (w *WarpState) UpsertInstance(instance WarpInstance, store *Store) {
	store.warpID = instance.WarpID
	if _, exists := w.stores[instance.WarpID]; !exists {
		w.order = append(w.order, instance.WarpID)
		sort.Slice(w.order, func(i, j int) bool { return w.order[i].Less(w.order[j]) })
	}
	w.stores[instance.WarpID] = store
	w.instances[instance.WarpID] = instance
}

// DeleteInstance removes a warp instance, its store, and its metadata.
// Returns true if the instance existed.
func (w *WarpState) DeleteInstance(warpID ident.WarpID) bool {
	_, existed := w.instances[warpID]
	if !existed {
		return false
	}
	delete(w.instances, warpID)
	delete(w.stores, warpID)
	for i, id := range w.order {
		if id == warpID {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// TakeOrCreateStore removes and returns the store for warpID if it exists;
// otherwise it returns a freshly constructed empty store for that namespace.
// Used by patch replay and construction utilities that need to mutate a
// store before deciding whether to upsert it back in.
func (w *WarpState) TakeOrCreateStore(warpID ident.WarpID) *Store {
	if s, ok := w.stores[warpID]; ok {
		delete(w.stores, warpID)
		for i, id := range w.order {
			if id == warpID {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
		return s
	}
	return NewStore(warpID)
}

// Clone returns a deep copy of the whole multi-instance state, cloning every
// store. Used by the commit pipeline to validate a merged op list without
// touching the live state.
func (w *WarpState) Clone() *WarpState {
	out := NewWarpState()
	out.order = append([]ident.WarpID(nil), w.order...)
	for id, inst := range w.instances {
		out.instances[id] = inst
	}
	for id, store := range w.stores {
		out.stores[id] = store.Clone()
	}
	return out
}

// WarpIDs returns every instance id in ascending order.
func (w *WarpState) WarpIDs() []ident.WarpID {
	out := make([]ident.WarpID, len(w.order))
	copy(out, w.order)
	return out
}
