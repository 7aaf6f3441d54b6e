// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package teapot frames the InvenSense "teapot" orientation packets sent by
// the IMU firmware over a serial link.
//
// Wire layout (14 bytes):
//
//	0      '$'
//	1      0x02 (version)
//	2..9   q0..q3, big-endian 16-bit fixed point (1/16384)
//	10     unused
//	11     packet sequence tag
//	12..13 "\r\n"
package teapot

import "encoding/binary"

const (
	// PacketSize is the fixed length of a teapot packet.
	PacketSize = 14

	SyncByte    byte = '$'
	VersionByte byte = 0x02
	CR          byte = '\r'
	LF          byte = '\n'

	tagOffset  = 11
	quatOffset = 2
)

// Packet is one complete, framed teapot packet.
type Packet [PacketSize]byte

// Tag returns the sequence tag the firmware uses to mark repeated sends.
func (p Packet) Tag() byte {
	return p[tagOffset]
}

// RawComponent returns quaternion component i (0..3) as read from the wire,
// high byte first, before any scaling or sign folding.
func (p Packet) RawComponent(i int) uint16 {
	off := quatOffset + 2*i
	return binary.BigEndian.Uint16(p[off : off+2])
}

// Framed reports whether every fixed position carries its marker.
func (p Packet) Framed() bool {
	return p[0] == SyncByte && p[1] == VersionByte && p[12] == CR && p[13] == LF
}

// Encode builds a framed packet from four raw components and a tag.
// It is the inverse of RawComponent/Tag and is used by the simulator.
func Encode(raw [4]uint16, tag byte) Packet {
	var p Packet
	p[0] = SyncByte
	p[1] = VersionByte
	for i, v := range raw {
		binary.BigEndian.PutUint16(p[quatOffset+2*i:], v)
	}
	p[tagOffset] = tag
	p[12] = CR
	p[13] = LF
	return p
}
