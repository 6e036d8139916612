package materialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/materialization"
)

func testChannel() materialization.ChannelID {
	return materialization.MakeChannelID("test:channel")
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := materialization.NewFrame(testChannel(), []byte{1, 2, 3, 4, 5})
	encoded := f.Encode()
	decoded, err := materialization.DecodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestFrameEncodeDecodeEmptyData(t *testing.T) {
	f := materialization.NewFrame(testChannel(), nil)
	decoded, err := materialization.DecodeFrame(f.Encode())
	require.NoError(t, err)
	assert.Equal(t, testChannel(), decoded.Channel)
	assert.Empty(t, decoded.Data)
}

func TestFrameDecodeRejectsBadMagic(t *testing.T) {
	bad := materialization.NewFrame(testChannel(), []byte{1, 2, 3}).Encode()
	bad[0] = 0xFF
	_, err := materialization.DecodeFrame(bad)
	assert.ErrorIs(t, err, materialization.ErrMalformedFrame)
}

func TestFrameDecodeRejectsBadVersion(t *testing.T) {
	bad := materialization.NewFrame(testChannel(), []byte{1, 2, 3}).Encode()
	bad[4] = 0xFF
	_, err := materialization.DecodeFrame(bad)
	assert.ErrorIs(t, err, materialization.ErrMalformedFrame)
}

func TestFrameDecodeRejectsTruncated(t *testing.T) {
	encoded := materialization.NewFrame(testChannel(), []byte{1, 2, 3, 4, 5}).Encode()
	_, err := materialization.DecodeFrame(encoded[:len(encoded)-1])
	assert.ErrorIs(t, err, materialization.ErrMalformedFrame)
}

func TestMultiFrameRoundTrip(t *testing.T) {
	ch1 := materialization.MakeChannelID("channel:one")
	ch2 := materialization.MakeChannelID("channel:two")

	frames := []materialization.MaterializationFrame{
		materialization.NewFrame(ch1, []byte{1, 2, 3}),
		materialization.NewFrame(ch2, []byte{4, 5, 6, 7, 8}),
	}

	encoded := materialization.EncodeFrames(frames)
	decoded, err := materialization.DecodeFrames(encoded)
	require.NoError(t, err)
	assert.Equal(t, frames, decoded)
}

func TestHeaderSizeCorrect(t *testing.T) {
	encoded := materialization.NewFrame(testChannel(), nil).Encode()
	assert.Len(t, encoded, materialization.HeaderSize+32)
}
