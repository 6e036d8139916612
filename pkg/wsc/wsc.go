// Package wsc implements the WSC columnar snapshot file format: the
// external, mmap-friendly on-disk representation of a WarpState that
// spec.md names as a boundary contract but leaves unspecified beyond
// "loading a WSC and computing the state root on the reconstructed store
// yields the hash recorded in the header."
//
// Layout: an 8-byte magic, a fixed header (schema hash, tick, warp count),
// a directory of per-warp (WarpID, offset, length) triples in ascending
// WarpID order, then one FlatBuffers-framed section per warp holding its
// nodes/edges/attachments in the same canonical order pkg/snapshot hashes
// them in. As in pkg/patch, the FlatBuffers builder's low-level table API
// wraps a hand-encoded canonical byte stream directly — no .fbs schema
// compilation step — so the section bytes and their digest contribution
// are defined by one code path.
package wsc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/flyingrobots/warp-core/pkg/graph"
	"github.com/flyingrobots/warp-core/pkg/ident"
)

// Magic is the fixed 8-byte file signature: "WSC\0" followed by a
// little-endian u16 version (1) and two reserved bytes.
var Magic = [8]byte{'W', 'S', 'C', 0x00, 0x01, 0x00, 0x00, 0x00}

// ErrBadMagic is returned by Load when the file does not start with Magic.
var ErrBadMagic = errors.New("wsc: bad magic")

// ErrTruncated is returned by Load when the file is shorter than its
// header or directory declares.
var ErrTruncated = errors.New("wsc: truncated file")

const headerFixedSize = len(Magic) + 32 + 8 + 8 // magic + schema_hash + tick + warp_count
const directoryEntrySize = 32 + 8 + 8           // warp_id + offset + length

// Header is the fixed-size metadata block preceding the directory.
type Header struct {
	SchemaHash ident.Hash
	Tick       uint64
	WarpCount  uint64
}

// Write serializes state to the WSC format and returns the file bytes.
// Warps are written in ascending WarpID order, matching pkg/snapshot's
// iteration order, so the recorded state root is reproducible by any
// reader that walks the directory in file order.
func Write(state *graph.WarpState, schemaHash ident.Hash, tick uint64) []byte {
	warpIDs := state.WarpIDs()

	sections := make([][]byte, len(warpIDs))
	for i, id := range warpIDs {
		store, _ := state.Store(id)
		inst, _ := state.Instance(id)
		sections[i] = encodeSection(inst, store)
	}

	out := make([]byte, 0, headerFixedSize+len(warpIDs)*directoryEntrySize)
	out = append(out, Magic[:]...)
	out = append(out, schemaHash[:]...)
	out = appendU64(out, tick)
	out = appendU64(out, uint64(len(warpIDs)))

	dataOffset := uint64(headerFixedSize + len(warpIDs)*directoryEntrySize)
	offsets := make([]uint64, len(warpIDs))
	for i, sec := range sections {
		offsets[i] = dataOffset
		dataOffset += uint64(len(sec))
	}

	for i, id := range warpIDs {
		out = append(out, id[:]...)
		out = appendU64(out, offsets[i])
		out = appendU64(out, uint64(len(sections[i])))
	}
	for _, sec := range sections {
		out = append(out, sec...)
	}
	return out
}

// WriteFile writes state to path using Write, creating or truncating the
// file at 0o644.
func WriteFile(path string, state *graph.WarpState, schemaHash ident.Hash, tick uint64) error {
	return os.WriteFile(path, Write(state, schemaHash, tick), 0o644)
}

// Parse decodes raw WSC bytes (however obtained — mmap'd or read whole)
// into a Header plus a reconstructed WarpState.
func Parse(buf []byte) (Header, *graph.WarpState, error) {
	var hdr Header
	if len(buf) < headerFixedSize {
		return hdr, nil, ErrTruncated
	}
	for i := range Magic {
		if buf[i] != Magic[i] {
			return hdr, nil, ErrBadMagic
		}
	}
	off := len(Magic)
	copy(hdr.SchemaHash[:], buf[off:off+32])
	off += 32
	hdr.Tick = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	hdr.WarpCount = binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8

	dirEnd := off + int(hdr.WarpCount)*directoryEntrySize
	if dirEnd > len(buf) {
		return hdr, nil, ErrTruncated
	}

	type dirEntry struct {
		id     ident.WarpID
		offset uint64
		length uint64
	}
	entries := make([]dirEntry, hdr.WarpCount)
	for i := range entries {
		base := off + i*directoryEntrySize
		var id ident.WarpID
		copy(id[:], buf[base:base+32])
		entries[i] = dirEntry{
			id:     id,
			offset: binary.LittleEndian.Uint64(buf[base+32 : base+40]),
			length: binary.LittleEndian.Uint64(buf[base+40 : base+48]),
		}
	}

	state := graph.NewWarpState()
	for _, e := range entries {
		start, end := e.offset, e.offset+e.length
		if end > uint64(len(buf)) || start > end {
			return hdr, nil, ErrTruncated
		}
		inst, store, err := decodeSection(buf[start:end])
		if err != nil {
			return hdr, nil, fmt.Errorf("wsc: warp %s: %w", e.id, err)
		}
		state.UpsertInstance(inst, store)
	}
	return hdr, state, nil
}

// Load reads path via mmap where supported (see loadBytes in the platform-
// specific files) and parses it. On platforms without the mmap fast path it
// falls back to a whole-file os.ReadFile.
func Load(path string) (Header, *graph.WarpState, error) {
	buf, err := loadBytes(path)
	if err != nil {
		var hdr Header
		return hdr, nil, err
	}
	return Parse(buf)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// encodeSection canonically serializes one warp instance's metadata, nodes,
// edges, and attachments (ascending id order throughout, mirroring
// pkg/snapshot.ComputeStateRoot's traversal), then wraps the resulting byte
// stream in a single-field FlatBuffers table exactly as pkg/patch does for
// PatchBytes.
func encodeSection(inst graph.WarpInstance, store *graph.Store) []byte {
	raw := encodeInstance(inst)

	nodeIDs := store.Nodes()
	raw = appendU64(raw, uint64(len(nodeIDs)))
	for _, id := range nodeIDs {
		rec, _ := store.Node(id)
		raw = append(raw, id[:]...)
		raw = append(raw, rec.Type[:]...)
		raw = appendLenPrefixed(raw, rec.Payload)
	}

	raw = appendU64(raw, uint64(len(nodeIDs)))
	for _, id := range nodeIDs {
		edges := store.EdgesFrom(id)
		raw = append(raw, id[:]...)
		raw = appendU64(raw, uint64(len(edges)))
		for _, e := range edges {
			edgeIDHash := ident.Hash(e.ID)
			raw = append(raw, edgeIDHash[:]...)
			raw = append(raw, e.Type[:]...)
			raw = append(raw, e.To[:]...)
			raw = appendLenPrefixed(raw, e.Payload)
		}
	}

	attachmentKeys := store.Attachments()
	raw = appendU64(raw, uint64(len(attachmentKeys)))
	for _, key := range attachmentKeys {
		value, _ := store.Attachment(key)
		raw = appendAttachmentKey(raw, key)
		raw = append(raw, byte(value.Kind))
		if value.Kind == graph.AttachmentDescend {
			raw = append(raw, value.Child[:]...)
		} else {
			raw = append(raw, value.Atom.TypeID[:]...)
			raw = appendLenPrefixed(raw, value.Atom.Bytes)
		}
	}

	b := flatbuffers.NewBuilder(len(raw) + 32)
	vec := b.CreateByteVector(raw)
	b.StartObject(1)
	b.PrependUOffsetTSlot(0, vec, 0)
	root := b.EndObject()
	b.Finish(root)
	return b.FinishedBytes()
}

// ErrMalformedSection is returned by decodeSection when a section's
// FlatBuffers framing or inner canonical stream is malformed.
var ErrMalformedSection = errors.New("wsc: malformed section")

func decodeSection(buf []byte) (graph.WarpInstance, *graph.Store, error) {
	var inst graph.WarpInstance
	if len(buf) < flatbuffers.SizeUOffsetT {
		return inst, nil, ErrMalformedSection
	}
	n := flatbuffers.GetUOffsetT(buf)
	if int(n) >= len(buf) {
		return inst, nil, ErrMalformedSection
	}
	table := &flatbuffers.Table{Bytes: buf, Pos: n}
	fieldOffset := table.Offset(flatbuffers.VOffsetT(4))
	if fieldOffset == 0 {
		return inst, nil, ErrMalformedSection
	}
	vecStart := table.Vector(flatbuffers.UOffsetT(fieldOffset))
	vecLen := table.VectorLen(flatbuffers.UOffsetT(fieldOffset))
	if int(vecStart)+vecLen > len(buf) {
		return inst, nil, ErrMalformedSection
	}
	raw := buf[vecStart : int(vecStart)+vecLen]

	r := &sectionReader{buf: raw}
	inst, err := r.instance()
	if err != nil {
		return inst, nil, err
	}

	store := graph.NewStore(inst.WarpID)

	nodeCount, err := r.u64()
	if err != nil {
		return inst, nil, err
	}
	for i := uint64(0); i < nodeCount; i++ {
		id, err := r.nodeID()
		if err != nil {
			return inst, nil, err
		}
		typeID, err := r.typeID()
		if err != nil {
			return inst, nil, err
		}
		payload, err := r.bytes()
		if err != nil {
			return inst, nil, err
		}
		store.SetNode(id, graph.NodeRecord{Type: typeID, Payload: payload})
	}

	edgeBucketCount, err := r.u64()
	if err != nil {
		return inst, nil, err
	}
	for i := uint64(0); i < edgeBucketCount; i++ {
		from, err := r.nodeID()
		if err != nil {
			return inst, nil, err
		}
		edgeCount, err := r.u64()
		if err != nil {
			return inst, nil, err
		}
		for j := uint64(0); j < edgeCount; j++ {
			edgeID, err := r.edgeID()
			if err != nil {
				return inst, nil, err
			}
			typeID, err := r.typeID()
			if err != nil {
				return inst, nil, err
			}
			to, err := r.nodeID()
			if err != nil {
				return inst, nil, err
			}
			payload, err := r.bytes()
			if err != nil {
				return inst, nil, err
			}
			if err := store.InsertEdge(from, graph.EdgeRecord{ID: edgeID, Type: typeID, To: to, Payload: payload}); err != nil {
				return inst, nil, fmt.Errorf("wsc: replay edge: %w", err)
			}
		}
	}

	attachmentCount, err := r.u64()
	if err != nil {
		return inst, nil, err
	}
	for i := uint64(0); i < attachmentCount; i++ {
		key, err := r.attachmentKey()
		if err != nil {
			return inst, nil, err
		}
		kind, err := r.byteVal()
		if err != nil {
			return inst, nil, err
		}
		var value graph.AttachmentValue
		if graph.AttachmentValueKind(kind) == graph.AttachmentDescend {
			child, err := r.warpID()
			if err != nil {
				return inst, nil, err
			}
			value = graph.DescendAttachment(child)
		} else {
			typeID, err := r.typeID()
			if err != nil {
				return inst, nil, err
			}
			data, err := r.bytes()
			if err != nil {
				return inst, nil, err
			}
			value = graph.AtomAttachment(graph.AtomPayload{TypeID: typeID, Bytes: data})
		}
		store.SetAttachment(key, value)
	}

	return inst, store, nil
}

func appendLenPrefixed(buf []byte, data []byte) []byte {
	buf = appendU64(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendAttachmentKey(buf []byte, key graph.AttachmentKey) []byte {
	buf = append(buf, byte(key.Owner.Kind))
	if key.Owner.Kind == graph.OwnerNode {
		buf = append(buf, key.Owner.Node.WarpID[:]...)
		buf = append(buf, key.Owner.Node.LocalID[:]...)
	} else {
		buf = append(buf, key.Owner.Edge.WarpID[:]...)
		buf = append(buf, key.Owner.Edge.LocalID[:]...)
	}
	return append(buf, byte(key.Plane))
}

func encodeInstance(inst graph.WarpInstance) []byte {
	buf := append([]byte{}, inst.WarpID[:]...)
	buf = append(buf, inst.RootNode[:]...)
	buf = appendAttachmentKey(buf, inst.Parent)
	hasParent := byte(0)
	if inst.HasParent {
		hasParent = 1
	}
	return append(buf, hasParent)
}

// sectionReader walks a decoded section's canonical byte stream
// sequentially, mirroring pkg/patch's opReader.
type sectionReader struct {
	buf []byte
	pos int
}

func (r *sectionReader) hash() (ident.Hash, error) {
	var h ident.Hash
	if r.pos+32 > len(r.buf) {
		return h, ErrMalformedSection
	}
	copy(h[:], r.buf[r.pos:r.pos+32])
	r.pos += 32
	return h, nil
}

func (r *sectionReader) nodeID() (ident.NodeID, error) {
	h, err := r.hash()
	return ident.NodeID(h), err
}

func (r *sectionReader) edgeID() (ident.EdgeID, error) {
	h, err := r.hash()
	return ident.EdgeID(h), err
}

func (r *sectionReader) typeID() (ident.TypeID, error) {
	h, err := r.hash()
	return ident.TypeID(h), err
}

func (r *sectionReader) warpID() (ident.WarpID, error) {
	h, err := r.hash()
	return ident.WarpID(h), err
}

func (r *sectionReader) byteVal() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, ErrMalformedSection
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *sectionReader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, ErrMalformedSection
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *sectionReader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, ErrMalformedSection
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *sectionReader) attachmentKey() (graph.AttachmentKey, error) {
	var key graph.AttachmentKey
	ownerKind, err := r.byteVal()
	if err != nil {
		return key, err
	}
	warpID, err := r.warpID()
	if err != nil {
		return key, err
	}
	if graph.AttachmentOwnerKind(ownerKind) == graph.OwnerNode {
		localID, err := r.nodeID()
		if err != nil {
			return key, err
		}
		key.Owner = graph.NodeOwner(ident.NodeKey{WarpID: warpID, LocalID: localID})
	} else {
		localID, err := r.edgeID()
		if err != nil {
			return key, err
		}
		key.Owner = graph.EdgeOwner(ident.EdgeKey{WarpID: warpID, LocalID: localID})
	}
	plane, err := r.byteVal()
	if err != nil {
		return key, err
	}
	key.Plane = graph.AttachmentPlane(plane)
	return key, nil
}

func (r *sectionReader) instance() (graph.WarpInstance, error) {
	var inst graph.WarpInstance
	warpID, err := r.warpID()
	if err != nil {
		return inst, err
	}
	rootNode, err := r.nodeID()
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
	inst.WarpID = warpID
	inst.RootNode = rootNode
	inst.Parent = parent
	inst.HasParent = hasParent != 0
	return inst, nil
}
