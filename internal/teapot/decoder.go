// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package teapot

// Stats counts what the decoder has seen since creation or the last Reset.
type Stats struct {
	Packets   uint64 `json:"packets"`
	Resyncs   uint64 `json:"resyncs"`   // partial packets dropped on a marker mismatch
	Discarded uint64 `json:"discarded"` // bytes skipped while hunting for '$'
}

// Decoder is a byte-at-a-time framing state machine. Malformed input never
// produces an error: the partial packet is dropped and the decoder goes back
// to hunting for the next '$'.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf    Packet
	synced bool
	offset int
	stats  Stats
}

// NewDecoder returns a decoder in the unsynced state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one byte and returns a packet once 14 framed bytes have been
// accumulated.
func (d *Decoder) Feed(b byte) (Packet, bool) {
	if !d.synced {
		// '$' only matters here; mid-packet it is ordinary payload.
		if b != SyncByte {
			d.stats.Discarded++
			return Packet{}, false
		}
		d.synced = true
		d.offset = 0
	}

	if (d.offset == 1 && b != VersionByte) ||
		(d.offset == 12 && b != CR) ||
		(d.offset == 13 && b != LF) {
		d.stats.Resyncs++
		d.synced = false
		d.offset = 0
		return Packet{}, false
	}

	d.buf[d.offset] = b
	d.offset++
	if d.offset < PacketSize {
		return Packet{}, false
	}

	pkt := d.buf
	d.buf = Packet{}
	d.synced = false
	d.offset = 0
	d.stats.Packets++
	return pkt, true
}

// Write feeds a whole chunk and returns every packet completed within it, in
// stream order.
func (d *Decoder) Write(chunk []byte) []Packet {
	var out []Packet
	for _, b := range chunk {
		if pkt, ok := d.Feed(b); ok {
			out = append(out, pkt)
		}
	}
	return out
}

// Synced reports whether a packet is currently being assembled.
func (d *Decoder) Synced() bool { return d.synced }

// Offset is the next write position inside the packet being assembled.
func (d *Decoder) Offset() int { return d.offset }

func (d *Decoder) Stats() Stats { return d.stats }

// Reset drops any partial packet and clears the counters. Used when the link
// is reattached.
func (d *Decoder) Reset() {
	*d = Decoder{}
}
