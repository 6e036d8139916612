package graph

import "github.com/flyingrobots/warp-core/pkg/ident"

// View is the read-only surface of a Store that rule matchers, executors,
// and footprint functions are given: enough to inspect graph state, nothing
// that can mutate it. *Store satisfies View structurally; callers that need
// to enforce read-only access should accept a View rather than a *Store.
type View interface {
	WarpID() ident.WarpID
	Node(id ident.NodeID) (NodeRecord, bool)
	EdgesFrom(node ident.NodeID) []EdgeRecord
	Attachment(key AttachmentKey) (AttachmentValue, bool)
	NodeAttachment(node ident.NodeID) (AttachmentValue, bool)
	Nodes() []ident.NodeID
	Attachments() []AttachmentKey
}

var _ View = (*Store)(nil)
