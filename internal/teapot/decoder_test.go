// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package teapot

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroPacket(tag byte) Packet {
	return Encode([4]uint16{}, tag)
}

func TestEncodeLayout(t *testing.T) {
	p := Encode([4]uint16{0x4000, 0x0102, 0xE000, 0xFFFF}, 7)
	want := Packet{'$', 0x02, 0x40, 0x00, 0x01, 0x02, 0xE0, 0x00, 0xFF, 0xFF, 0, 7, '\r', '\n'}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("packet mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, p.Framed())
	assert.Equal(t, byte(7), p.Tag())
	assert.Equal(t, uint16(0x4000), p.RawComponent(0))
	assert.Equal(t, uint16(0x0102), p.RawComponent(1))
	assert.Equal(t, uint16(0xE000), p.RawComponent(2))
	assert.Equal(t, uint16(0xFFFF), p.RawComponent(3))
}

func TestDecoderSinglePacket(t *testing.T) {
	d := NewDecoder()
	in := zeroPacket(1)

	for i, b := range in[:PacketSize-1] {
		_, ok := d.Feed(b)
		require.False(t, ok, "packet emitted early at byte %d", i)
	}
	got, ok := d.Feed(in[PacketSize-1])
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.False(t, d.Synced())
	assert.Equal(t, 0, d.Offset())
	assert.Equal(t, uint64(1), d.Stats().Packets)
}

func TestDecoderSkipsNoiseBeforeSync(t *testing.T) {
	d := NewDecoder()
	p := zeroPacket(3)
	stream := append([]byte("garbage\x02\r\n"), p[:]...)

	pkts := d.Write(stream)
	require.Len(t, pkts, 1)
	assert.Equal(t, byte(3), pkts[0].Tag())
	assert.Equal(t, uint64(10), d.Stats().Discarded)
}

func TestDecoderBadVersionResyncs(t *testing.T) {
	d := NewDecoder()
	pkts := d.Write([]byte{'$', 0x03})
	assert.Empty(t, pkts)
	assert.False(t, d.Synced())
	assert.Equal(t, uint64(1), d.Stats().Resyncs)
}

func TestDecoderDollarMidPacketIsPayload(t *testing.T) {
	d := NewDecoder()
	p := Encode([4]uint16{0x2424, 0x2424, 0x2424, 0x2424}, '$')

	pkts := d.Write(p[:])
	require.Len(t, pkts, 1)
	assert.Equal(t, p, pkts[0])
	assert.Equal(t, uint64(0), d.Stats().Resyncs)
}

func TestDecoderResyncAfterBrokenTerminator(t *testing.T) {
	d := NewDecoder()

	broken := Encode([4]uint16{0x1111, 0x2222, 0x3333, 0x4444}, 9)
	broken[12] = 'X'
	good := Encode([4]uint16{0x0001, 0x0002, 0x0003, 0x0004}, 10)

	stream := append(broken[:13], good[:]...)
	pkts := d.Write(stream)

	require.Len(t, pkts, 1)
	assert.Equal(t, good, pkts[0], "data from the dropped packet leaked into the next one")
	assert.Equal(t, uint64(1), d.Stats().Resyncs)
}

func TestDecoderBrokenLineFeed(t *testing.T) {
	d := NewDecoder()
	broken := zeroPacket(1)
	broken[13] = '\r'
	good := zeroPacket(2)

	pkts := d.Write(append(broken[:], good[:]...))
	require.Len(t, pkts, 1)
	assert.Equal(t, byte(2), pkts[0].Tag())
}

func TestDecoderNoBackToBackAssumption(t *testing.T) {
	d := NewDecoder()
	a := zeroPacket(1)
	b := zeroPacket(2)

	stream := append(a[:], 0x00, 0x7F)
	stream = append(stream, b[:]...)
	pkts := d.Write(stream)
	require.Len(t, pkts, 2)
	assert.Equal(t, byte(1), pkts[0].Tag())
	assert.Equal(t, byte(2), pkts[1].Tag())
}

func TestDecoderNeverEmitsUnframedPackets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDecoder()
	alphabet := []byte{'$', 0x02, '\r', '\n', 0x00, 0xFF, 0x41}

	emitted := 0
	for i := 0; i < 200000; i++ {
		var b byte
		if rng.Intn(4) == 0 {
			b = byte(rng.Intn(256))
		} else {
			b = alphabet[rng.Intn(len(alphabet))]
		}
		if pkt, ok := d.Feed(b); ok {
			emitted++
			require.True(t, pkt.Framed(), "unframed packet emitted: % x", pkt[:])
		}
	}

	// Interleave real packets with noise and make sure they all come through.
	for i := 0; i < 50; i++ {
		d.Write([]byte{byte(rng.Intn(256)), '\n'})
		d.Reset()
		p := zeroPacket(byte(i))
		got := d.Write(p[:])
		require.Len(t, got, 1)
		assert.Equal(t, p, got[0])
	}
	t.Logf("random stream produced %d framed packets", emitted)
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder()
	p := zeroPacket(1)
	d.Write(p[:5])
	require.True(t, d.Synced())

	d.Reset()
	assert.False(t, d.Synced())
	assert.Equal(t, 0, d.Offset())
	assert.Equal(t, Stats{}, d.Stats())

	pkts := d.Write(p[5:])
	assert.Empty(t, pkts)
}
