// Package patch implements the canonical wire encoding for an applied tick's
// ordered WarpOp list: a FlatBuffers-framed byte vector built directly with
// flatbuffers.Builder's low-level table API (no compiled .fbs schema), so
// the digest and the wire bytes are defined by exactly the same encode path.
package patch

import (
	"encoding/binary"
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"lukechampine.com/blake3"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// opsFieldOffset is the vtable slot index for the patch table's single
// field: a byte vector holding the canonically serialized op stream.
const opsFieldOffset = 0

// Encode builds the FlatBuffers-framed patch bytes for ops, already in
// canonical (WarpOpKey, OpOrigin) order — callers pass the output of
// boaw.MergeDeltas or TickDelta.Finalize directly.
func Encode(ops []graph.WarpOp) []byte {
	raw := encodeOps(ops)

	b := flatbuffers.NewBuilder(len(raw) + 32)
	opsVec := b.CreateByteVector(raw)

	b.StartObject(1)
	b.PrependUOffsetTSlot(opsFieldOffset, opsVec, 0)
	root := b.EndObject()

	b.Finish(root)
	return b.FinishedBytes()
}

// ErrMalformedPatch is returned by Decode when buf is not a well-formed
// patch frame this package produced.
var ErrMalformedPatch = errors.New("patch: malformed frame")

// Decode parses a patch frame produced by Encode back into its ordered
// WarpOp list.
func Decode(buf []byte) ([]graph.WarpOp, error) {
	if len(buf) < flatbuffers.SizeUOffsetT {
		return nil, ErrMalformedPatch
	}
	n := flatbuffers.GetUOffsetT(buf)
	if int(n) >= len(buf) {
		return nil, ErrMalformedPatch
	}
	table := &flatbuffers.Table{Bytes: buf, Pos: n}

	vtableOffset := flatbuffers.VOffsetT(4 + 2*opsFieldOffset)
	fieldOffset := table.Offset(vtableOffset)
	if fieldOffset == 0 {
		return nil, nil
	}

	vecStart := table.Vector(flatbuffers.UOffsetT(fieldOffset))
	vecLen := table.VectorLen(flatbuffers.UOffsetT(fieldOffset))
	if int(vecStart)+vecLen > len(buf) {
		return nil, ErrMalformedPatch
	}
	raw := buf[vecStart : int(vecStart)+vecLen]
	return decodeOps(raw)
}

// Digest returns the patch digest: BLAKE3 of the encoded frame bytes. The
// frame, not just the inner op stream, is hashed — the digest and the wire
// format are defined by the same bytes, so any change to the framing is
// visible in the digest too.
func Digest(encoded []byte) ident.Hash {
	h := blake3.New(32, nil)
	h.Write(encoded)
	var out ident.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func putU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putLenPrefixed(buf []byte, data []byte) []byte {
	buf = putU32(buf, uint32(len(data)))
	return append(buf, data...)
}

func putAttachmentKey(buf []byte, key graph.AttachmentKey) []byte {
	buf = append(buf, byte(key.Owner.Kind))
	if key.Owner.Kind == graph.OwnerNode {
		buf = append(buf, key.Owner.Node.WarpID[:]...)
		buf = append(buf, key.Owner.Node.LocalID[:]...)
	} else {
		buf = append(buf, key.Owner.Edge.WarpID[:]...)
		buf = append(buf, key.Owner.Edge.LocalID[:]...)
	}
	buf = append(buf, byte(key.Plane))
	return buf
}

func putWarpInstance(buf []byte, inst graph.WarpInstance) []byte {
	buf = append(buf, inst.WarpID[:]...)
	buf = append(buf, inst.RootNode[:]...)
	buf = putAttachmentKey(buf, inst.Parent)
	hasParent := byte(0)
	if inst.HasParent {
		hasParent = 1
	}
	buf = append(buf, hasParent)
	return buf
}

func encodeOps(ops []graph.WarpOp) []byte {
	buf := putU32(nil, uint32(len(ops)))
	for _, op := range ops {
		buf = append(buf, byte(op.Kind))
		switch op.Kind {
		case graph.OpUpsertNode:
			buf = append(buf, op.Node.WarpID[:]...)
			buf = append(buf, op.Node.LocalID[:]...)
			buf = append(buf, op.Record.Type[:]...)
			buf = putLenPrefixed(buf, op.Record.Payload)
		case graph.OpDeleteNode:
			buf = append(buf, op.Node.WarpID[:]...)
			buf = append(buf, op.Node.LocalID[:]...)
		case graph.OpUpsertEdge:
			buf = append(buf, op.From.WarpID[:]...)
			buf = append(buf, op.From.LocalID[:]...)
			edgeIDHash := ident.Hash(op.Edge.ID)
			buf = append(buf, edgeIDHash[:]...)
			buf = append(buf, op.Edge.Type[:]...)
			buf = append(buf, op.Edge.To[:]...)
			buf = putLenPrefixed(buf, op.Edge.Payload)
		case graph.OpDeleteEdge:
			buf = append(buf, op.From.WarpID[:]...)
			buf = append(buf, op.From.LocalID[:]...)
			edgeIDHash := ident.Hash(op.EdgeID)
			buf = append(buf, edgeIDHash[:]...)
		case graph.OpSetAttachment:
			buf = putAttachmentKey(buf, op.Attachment)
			buf = append(buf, byte(op.Value.Kind))
			if op.Value.Kind == graph.AttachmentDescend {
				buf = append(buf, op.Value.Child[:]...)
			} else {
				buf = append(buf, op.Value.Atom.TypeID[:]...)
				buf = putLenPrefixed(buf, op.Value.Atom.Bytes)
			}
		case graph.OpOpenPortal:
			buf = append(buf, byte(op.Portal.Kind))
			buf = putAttachmentKey(buf, op.Portal.Parent)
			buf = putWarpInstance(buf, op.Portal.Child)
		case graph.OpUpsertWarpInstance:
			buf = putWarpInstance(buf, op.Instance)
		case graph.OpDeleteWarpInstance:
			buf = append(buf, op.InstanceID[:]...)
		}
	}
	return buf
}

type opReader struct {
	buf []byte
	pos int
}

func (r *opReader) hash() (ident.Hash, error) {
	var h ident.Hash
	if r.pos+32 > len(r.buf) {
		return h, ErrMalformedPatch
	}
	copy(h[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return h, nil
}

func (r *opReader) byteVal() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, ErrMalformedPatch
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *opReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, ErrMalformedPatch
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *opReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, ErrMalformedPatch
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *opReader) attachmentKey() (graph.AttachmentKey, error) {
	var key graph.AttachmentKey
	ownerKind, err := r.byteVal()
	if err != nil {
		return key, err
	}
	warpID, err := r.hash()
	if err != nil {
		return key, err
	}
	localID, err := r.hash()
	if err != nil {
		return key, err
	}
	if graph.AttachmentOwnerKind(ownerKind) == graph.OwnerNode {
		key.Owner = graph.NodeOwner(ident.NodeKey{WarpID: ident.WarpID(warpID), LocalID: ident.NodeID(localID)})
	} else {
		key.Owner = graph.EdgeOwner(ident.EdgeKey{WarpID: ident.WarpID(warpID), LocalID: ident.EdgeID(localID)})
	}
	plane, err := r.byteVal()
	if err != nil {
		return key, err
	}
	key.Plane = graph.AttachmentPlane(plane)
	return key, nil
}

func (r *opReader) warpInstance() (graph.WarpInstance, error) {
	var inst graph.WarpInstance
	warpID, err := r.hash()
	if err != nil {
		return inst, err
	}
	rootNode, err := r.hash()
	if err != nil {
		return inst, err
	}
	parent, err := r.attachmentKey()
	if err != nil {
		return inst, err
	}
	hasParent, err := r.byteVal()
	if err != nil {
		return inst, err
	}
	inst.WarpID = ident.WarpID(warpID)
	inst.RootNode = ident.NodeID(rootNode)
	inst.Parent = parent
	inst.HasParent = hasParent != 0
	return inst, nil
}

func decodeOps(raw []byte) ([]graph.WarpOp, error) {
	r := &opReader{buf: raw}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	ops := make([]graph.WarpOp, 0, count)
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.byteVal()
		if err != nil {
			return nil, err
		}
		op := graph.WarpOp{Kind: graph.WarpOpKind(kindByte)}
		switch op.Kind {
		case graph.OpUpsertNode:
			warpID, err := r.hash()
			if err != nil {
				return nil, err
			}
			localID, err := r.hash()
			if err != nil {
				return nil, err
			}
			nodeType, err := r.hash()
			if err != nil {
				return nil, err
			}
			payload, err := r.bytes()
			if err != nil {
				return nil, err
			}
			op.Node = ident.NodeKey{WarpID: ident.WarpID(warpID), LocalID: ident.NodeID(localID)}
			op.Record = graph.NodeRecord{Type: ident.TypeID(nodeType), Payload: payload}
		case graph.OpDeleteNode:
			warpID, err := r.hash()
			if err != nil {
				return nil, err
			}
			localID, err := r.hash()
			if err != nil {
				return nil, err
			}
			op.Node = ident.NodeKey{WarpID: ident.WarpID(warpID), LocalID: ident.NodeID(localID)}
		case graph.OpUpsertEdge:
			fromWarp, err := r.hash()
			if err != nil {
				return nil, err
			}
			fromLocal, err := r.hash()
			if err != nil {
				return nil, err
			}
			edgeID, err := r.hash()
			if err != nil {
				return nil, err
			}
			edgeType, err := r.hash()
			if err != nil {
				return nil, err
			}
			to, err := r.hash()
			if err != nil {
				return nil, err
			}
			payload, err := r.bytes()
			if err != nil {
				return nil, err
			}
			op.From = ident.NodeKey{WarpID: ident.WarpID(fromWarp), LocalID: ident.NodeID(fromLocal)}
			op.Edge = graph.EdgeRecord{ID: ident.EdgeID(edgeID), Type: ident.TypeID(edgeType), To: ident.NodeID(to), Payload: payload}
		case graph.OpDeleteEdge:
			fromWarp, err := r.hash()
			if err != nil {
				return nil, err
			}
			fromLocal, err := r.hash()
			if err != nil {
				return nil, err
			}
			edgeID, err := r.hash()
			if err != nil {
				return nil, err
			}
			op.From = ident.NodeKey{WarpID: ident.WarpID(fromWarp), LocalID: ident.NodeID(fromLocal)}
			op.EdgeID = ident.EdgeID(edgeID)
		case graph.OpSetAttachment:
			key, err := r.attachmentKey()
			if err != nil {
				return nil, err
			}
			valueKind, err := r.byteVal()
			if err != nil {
				return nil, err
			}
			var value graph.AttachmentValue
			if graph.AttachmentValueKind(valueKind) == graph.AttachmentDescend {
				child, err := r.hash()
				if err != nil {
					return nil, err
				}
				value = graph.DescendAttachment(ident.WarpID(child))
			} else {
				typeID, err := r.hash()
				if err != nil {
					return nil, err
				}
				payload, err := r.bytes()
				if err != nil {
					return nil, err
				}
				value = graph.AtomAttachment(graph.AtomPayload{TypeID: ident.TypeID(typeID), Bytes: payload})
			}
			op.Attachment = key
			op.Value = value
		case graph.OpOpenPortal:
			portalKind, err := r.byteVal()
			if err != nil {
				return nil, err
			}
			parent, err := r.attachmentKey()
			if err != nil {
				return nil, err
			}
			child, err := r.warpInstance()
			if err != nil {
				return nil, err
			}
			op.Portal = graph.PortalInit{Kind: graph.PortalInitKind(portalKind), Parent: parent, Child: child}
		case graph.OpUpsertWarpInstance:
			inst, err := r.warpInstance()
			if err != nil {
				return nil, err
			}
			op.Instance = inst
		case graph.OpDeleteWarpInstance:
			instanceID, err := r.hash()
			if err != nil {
				return nil, err
			}
			op.InstanceID = ident.WarpID(instanceID)
		default:
			return nil, fmt.Errorf("%w: unknown op kind %d", ErrMalformedPatch, kindByte)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
