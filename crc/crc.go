// Package crc implements a parameterized, table-driven CRC generator and
// verifier supporting 8-, 16-, and 32-bit non-reversed ("normal")
// polynomials. The table is computed once at construction time and is
// immutable for the lifetime of the Engine.
package crc

import "github.com/Sun-Lab-NBB/ataraxis-transport-layer-pc/status"

// Value constrains the supported CRC register widths. Only non-reversed
// polynomials of these widths are supported; CRC widths beyond 32 bits and
// reversed-bit variants are out of scope.
type Value interface {
	uint8 | uint16 | uint32
}

var (
	ErrComputeBufferTooSmall = status.New(status.CRCComputeBufferTooSmall, "crc: buffer too small for the requested compute range")
	ErrAppendBufferTooSmall  = status.New(status.CRCAppendBufferTooSmall, "crc: buffer too small to append the checksum")
	ErrExtractBufferTooSmall = status.New(status.CRCExtractBufferTooSmall, "crc: buffer too small to extract the checksum")
)

// Engine computes, appends, and extracts CRC checksums of width T using a
// table generated from the given polynomial, initial value, and final XOR
// value at construction time.
type Engine[T Value] struct {
	polynomial T
	initial    T
	finalXOR   T
	table      [256]T
	width      int // width of T, in bytes
}

// New builds a CRC Engine and precomputes its 256-entry lookup table.
// polynomial, initial, and finalXOR must all be of the same width; widths
// of 1, 2, and 4 bytes (CRC-8/16/32) are supported via the type parameter.
func New[T Value](polynomial, initial, finalXOR T) *Engine[T] {
	e := &Engine[T]{
		polynomial: polynomial,
		initial:    initial,
		finalXOR:   finalXOR,
		width:      widthOf(polynomial),
	}
	e.buildTable()
	return e
}

// Width returns the CRC register width in bytes (1, 2, or 4).
func (e *Engine[T]) Width() int {
	return e.width
}

func widthOf[T Value](v T) int {
	switch any(v).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	default:
		return 4
	}
}

func (e *Engine[T]) buildTable() {
	topBitShift := uint(e.width*8 - 8)
	msbMask := T(1) << uint(e.width*8-1)

	for b := 0; b < 256; b++ {
		c := T(b) << topBitShift
		for bit := 0; bit < 8; bit++ {
			if c&msbMask != 0 {
				c = (c << 1) ^ e.polynomial
			} else {
				c = c << 1
			}
		}
		e.table[b] = c
	}
}

// Compute calculates the CRC over buf[start:start+length]. For uncorrupted
// data, computing the CRC over a packet immediately followed by its own
// appended checksum yields 0 (the CRC self-check identity).
func (e *Engine[T]) Compute(buf []byte, start, length int) (T, error) {
	if start < 0 || length < 0 || start+length > len(buf) {
		return 0, ErrComputeBufferTooSmall
	}

	shift := uint((e.width - 1) * 8)
	c := e.initial
	for i := start; i < start+length; i++ {
		idx := (byte(c>>shift) ^ buf[i])
		c = (c << 8) ^ e.table[idx]
	}
	return c ^ e.finalXOR, nil
}

// Append writes the width bytes of crc into buf starting at start,
// most-significant byte first, and returns start+width.
func (e *Engine[T]) Append(buf []byte, start int, crc T) (int, error) {
	if start < 0 || e.width > len(buf)-start {
		return 0, ErrAppendBufferTooSmall
	}
	for i := 0; i < e.width; i++ {
		shift := uint((e.width - 1 - i) * 8)
		buf[start+i] = byte(crc >> shift)
	}
	return start + e.width, nil
}

// Extract reads the width bytes starting at start, most-significant byte
// first, reconstructing the CRC value.
func (e *Engine[T]) Extract(buf []byte, start int) (T, int, error) {
	if start < 0 || e.width > len(buf)-start {
		return 0, 0, ErrExtractBufferTooSmall
	}
	var c T
	for i := 0; i < e.width; i++ {
		c = (c << 8) | T(buf[start+i])
	}
	return c, start + e.width, nil
}
