package materialization

import (
	"encoding/binary"
	"errors"
)

// FrameMagic is the 4-byte magic prefix of every materialization frame,
// "MBUS" in ASCII.
var FrameMagic = [4]byte{0x4D, 0x42, 0x55, 0x53}

// FrameVersion is the current wire version.
const FrameVersion uint16 = 0x0001

// HeaderSize is magic(4) + version(2) + reserved(2) + length(4).
const HeaderSize = 12

// MinPayloadSize is the minimum payload: just a 32-byte channel id with no
// data.
const MinPayloadSize = 32

// ErrMalformedFrame is returned by Decode/DecodeFrames when the input is too
// short, carries a bad magic, or claims an unsupported version.
var ErrMalformedFrame = errors.New("materialization: malformed frame")

// MaterializationFrame is a single channel's finalized data, ready for
// transport.
//
// Wire format (all integers little-endian):
//
//	magic[4]     = "MBUS"
//	version[2]   = 0x0001
//	reserved[2]  = 0x0000
//	length[4]    = len(payload), where payload = channel_id(32) ‖ data
//	payload[len]
type MaterializationFrame struct {
	Channel ChannelID
	Data    []byte
}

// NewFrame constructs a frame.
func NewFrame(channel ChannelID, data []byte) MaterializationFrame {
	return MaterializationFrame{Channel: channel, Data: data}
}

// Encode serializes the frame to its wire representation.
func (f MaterializationFrame) Encode() []byte {
	payloadLen := 32 + len(f.Data)
	buf := make([]byte, HeaderSize+payloadLen)

	copy(buf[0:4], FrameMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], FrameVersion)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(payloadLen))

	copy(buf[HeaderSize:HeaderSize+32], f.Channel[:])
	copy(buf[HeaderSize+32:], f.Data)

	return buf
}

// DecodeFrame parses a single frame from buf, which must contain exactly one
// encoded frame (no trailing bytes). Use DecodeFrames for a concatenated
// stream.
func DecodeFrame(buf []byte) (MaterializationFrame, error) {
	f, n, err := decodeOneFrame(buf)
	if err != nil {
		return MaterializationFrame{}, err
	}
	if n != len(buf) {
		return MaterializationFrame{}, ErrMalformedFrame
	}
	return f, nil
}

func decodeOneFrame(buf []byte) (MaterializationFrame, int, error) {
	if len(buf) < HeaderSize {
		return MaterializationFrame{}, 0, ErrMalformedFrame
	}
	if [4]byte(buf[0:4]) != FrameMagic {
		return MaterializationFrame{}, 0, ErrMalformedFrame
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != FrameVersion {
		return MaterializationFrame{}, 0, ErrMalformedFrame
	}
	payloadLen := int(binary.LittleEndian.Uint32(buf[8:12]))
	if payloadLen < MinPayloadSize {
		return MaterializationFrame{}, 0, ErrMalformedFrame
	}
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return MaterializationFrame{}, 0, ErrMalformedFrame
	}

	var channel ChannelID
	copy(channel[:], buf[HeaderSize:HeaderSize+32])
	data := append([]byte(nil), buf[HeaderSize+32:total]...)

	return MaterializationFrame{Channel: channel, Data: data}, total, nil
}

// EncodeFrames concatenates the encoded form of every frame, in order.
func EncodeFrames(frames []MaterializationFrame) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f.Encode()...)
	}
	return out
}

// DecodeFrames parses a concatenated stream of frames produced by
// EncodeFrames.
func DecodeFrames(buf []byte) ([]MaterializationFrame, error) {
	var frames []MaterializationFrame
	for len(buf) > 0 {
		f, n, err := decodeOneFrame(buf)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
		buf = buf[n:]
	}
	return frames, nil
}
