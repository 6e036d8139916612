package materialization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/warp-core/pkg/materialization"
)

func finalizedFor(label string, data []byte) materialization.FinalizedChannel {
	return materialization.FinalizedChannel{Channel: materialization.MakeChannelID(label), Data: data}
}

func TestPortSubscribeReturnsNoneInitially(t *testing.T) {
	port := materialization.NewPort()
	_, ok := port.Subscribe(materialization.MakeChannelID("test:channel"))
	assert.False(t, ok)
}

func TestPortSubscribeReturnsCachedValue(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.ReceiveFinalized([]materialization.FinalizedChannel{{Channel: ch, Data: []byte{1, 2, 3}}})

	data, ok := port.Subscribe(ch)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestPortReceiveQueuesOnlyForSubscribed(t *testing.T) {
	port := materialization.NewPort()
	ch1 := materialization.MakeChannelID("channel:one")

	port.Subscribe(ch1)
	port.ReceiveFinalized([]materialization.FinalizedChannel{
		finalizedFor("channel:one", []byte{1}),
		finalizedFor("channel:two", []byte{2}),
	})

	assert.Equal(t, 1, port.PendingCount())
	frames := port.Drain()
	require.Len(t, frames, 1)
	assert.Equal(t, ch1, frames[0].Channel)
	assert.Equal(t, []byte{1}, frames[0].Data)
}

func TestPortReceiveUpdatesCacheForAllChannels(t *testing.T) {
	port := materialization.NewPort()
	ch1 := materialization.MakeChannelID("channel:one")
	ch2 := materialization.MakeChannelID("channel:two")

	port.ReceiveFinalized([]materialization.FinalizedChannel{
		finalizedFor("channel:one", []byte{1}),
		finalizedFor("channel:two", []byte{2}),
	})

	d1, ok1 := port.PeekCache(ch1)
	d2, ok2 := port.PeekCache(ch2)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, []byte{1}, d1)
	assert.Equal(t, []byte{2}, d2)
	assert.False(t, port.HasPending())
}

func TestPortUnsubscribeStopsQueueing(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.Subscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{1})})
	assert.Equal(t, 1, port.PendingCount())
	port.Drain()

	port.Unsubscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{2})})
	assert.Equal(t, 0, port.PendingCount())
}

func TestPortDrainClearsPending(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.Subscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{1})})
	assert.True(t, port.HasPending())
	port.Drain()
	assert.False(t, port.HasPending())
}

func TestPortDrainEncodedProducesValidFrames(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.Subscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{1, 2, 3})})

	encoded := port.DrainEncoded()
	frames, err := materialization.DecodeFrames(encoded)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{1, 2, 3}, frames[0].Data)
}

func TestPortDrainEncodedCompressedRoundTrips(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.Subscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{1, 2, 3, 4, 5})})

	compressed, err := port.DrainEncodedCompressed()
	require.NoError(t, err)

	raw, err := materialization.DecodeCompressed(compressed)
	require.NoError(t, err)

	frames, err := materialization.DecodeFrames(raw)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, frames[0].Data)
}

func TestPortClearRemovesEverything(t *testing.T) {
	port := materialization.NewPort()
	ch := materialization.MakeChannelID("test:channel")

	port.Subscribe(ch)
	port.ReceiveFinalized([]materialization.FinalizedChannel{finalizedFor("test:channel", []byte{1})})

	assert.True(t, port.IsSubscribed(ch))
	assert.True(t, port.HasPending())

	port.Clear()

	assert.False(t, port.IsSubscribed(ch))
	assert.False(t, port.HasPending())
	_, ok := port.PeekCache(ch)
	assert.False(t, ok)
}
