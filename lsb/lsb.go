// Package lsb implements the CCP's Local Storage Buffer: a fixed 4 KiB
// on-chip scratch memory, addressable bytewise or as 128 32-byte slots.
package lsb

import (
	"errors"
	"fmt"
)

const (
	// Size is the total byte size of the buffer.
	Size = 4096

	// SlotSize is the byte size of a single slot.
	SlotSize = 32

	// NumSlots is the number of addressable slots.
	NumSlots = Size / SlotSize
)

// ErrOutOfRange is returned when an access falls outside the buffer.
var ErrOutOfRange = errors.New("lsb: out of range")

// Buffer is a Local Storage Buffer.
type Buffer struct {
	data [Size]byte
}

// Read copies Size-bounded bytes starting at addr into p.
func (b *Buffer) Read(addr int, p []byte) error {
	if !inRange(addr, len(p)) {
		return fmt.Errorf("%w: read addr=%#x len=%d", ErrOutOfRange, addr, len(p))
	}

	copy(p, b.data[addr:addr+len(p)])
	return nil
}

// Write copies p into the buffer starting at addr.
func (b *Buffer) Write(addr int, p []byte) error {
	if !inRange(addr, len(p)) {
		return fmt.Errorf("%w: write addr=%#x len=%d", ErrOutOfRange, addr, len(p))
	}

	copy(b.data[addr:addr+len(p)], p)
	return nil
}

// Slot returns the byte range of slot k as an alias into the buffer; writes
// through the returned slice mutate the buffer directly. It panics if k is
// not a valid slot index — that's an emulator bug, not firmware input.
func (b *Buffer) Slot(k int) []byte {
	if k < 0 || k >= NumSlots {
		panic(fmt.Sprintf("lsb: invalid slot index %d", k))
	}

	off := k * SlotSize
	return b.data[off : off+SlotSize]
}

func inRange(addr, n int) bool {
	return addr >= 0 && n >= 0 && addr < Size && addr+n <= Size
}
