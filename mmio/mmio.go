// Package mmio implements the CCP's memory-mapped register windows: the
// primary per-queue register file and the secondary global status window.
package mmio

import (
	"encoding/binary"
	"log/slog"
)

// Primary-region layout: global registers occupy [0, QueueOffset); each
// queue occupies QueueStride bytes starting at QueueOffset.
const (
	QueueOffset = 0x1000
	QueueStride = 0x100
)

// Per-queue register offsets within a queue's QueueStride window.
const (
	RegControl = 0x00
	RegHead    = 0x04
	RegTail    = 0x08
	RegStatus  = 0x0c
	RegIEN     = 0x10
	RegISTS    = 0x14
)

// Secondary-region offsets.
const (
	Reg2WrittenLast = 0x28
	Reg2Ready       = 0x38
)

var le = binary.LittleEndian

// Queues is the bus's view of the device's hardware queues.
type Queues interface {
	Count() int
	Control(i int) uint32
	SetControl(i int, v uint32)
	Head(i int) uint32
	SetHead(i int, v uint32)
	Tail(i int) uint32
	SetTail(i int, v uint32)
	Status(i int) uint32
	SetStatus(i int, v uint32)
	IEN(i int) uint32
	SetIEN(i int, v uint32)
	ISTS(i int) uint32
	AckISTS(i int, v uint32)
	DrainMaybe(i int)
}

// Bus implements the device's two MMIO register windows. The zero value is
// not usable; construct with New.
type Bus struct {
	queues Queues

	// WrittenLast backs the secondary region's 0x28 register, reporting
	// the running count of bytes written to LOCAL memory since the counter
	// was last reset (cbWrittenLast in the original device).
	WrittenLast *uint32

	log *slog.Logger
}

// New returns a Bus driving the given queues.
func New(queues Queues, writtenLast *uint32, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}

	return &Bus{queues: queues, WrittenLast: writtenLast, log: log}
}

// HandleMMIO dispatches a primary-window access by direction, mirroring the
// isWrite-dispatch shape used elsewhere in this codebase's MMIO handlers.
func (b *Bus) HandleMMIO(off uint32, data []byte, isWrite bool) error {
	if isWrite {
		return b.WritePrimary(off, data)
	}

	return b.ReadPrimary(off, data)
}

// HandleMMIO2 dispatches a secondary-window access. The secondary window is
// read-only from the guest's perspective; writes are ignored.
func (b *Bus) HandleMMIO2(off uint32, data []byte, isWrite bool) error {
	if isWrite {
		return nil
	}

	return b.ReadSecondary(off, data)
}

// ReadPrimary handles a read from the primary MMIO window.
func (b *Bus) ReadPrimary(off uint32, p []byte) error {
	if len(p) != 4 {
		b.log.Warn("ccp mmio: unsupported access width", "off", off, "len", len(p))
		return nil
	}

	if off < QueueOffset {
		le.PutUint32(p, 0)
		return nil
	}

	idx, reg, ok := b.resolveQueue(off)
	if !ok {
		b.log.Warn("ccp mmio: invalid queue", "off", off)
		le.PutUint32(p, 0)
		return nil
	}

	var v uint32
	switch reg {
	case RegControl:
		v = b.queues.Control(idx)
	case RegHead:
		v = b.queues.Head(idx)
	case RegTail:
		v = b.queues.Tail(idx)
	case RegStatus:
		v = b.queues.Status(idx)
	case RegIEN:
		v = b.queues.IEN(idx)
	case RegISTS:
		v = b.queues.ISTS(idx)
	default:
		v = 0
	}

	le.PutUint32(p, v)

	// Draining here, on the read path, rather than on the write that set
	// RUN, is deliberate: see WritePrimary.
	b.queues.DrainMaybe(idx)

	return nil
}

// WritePrimary handles a write to the primary MMIO window.
func (b *Bus) WritePrimary(off uint32, p []byte) error {
	if len(p) != 4 {
		b.log.Warn("ccp mmio: unsupported access width", "off", off, "len", len(p))
		return nil
	}

	if off < QueueOffset {
		return nil
	}

	idx, reg, ok := b.resolveQueue(off)
	if !ok {
		b.log.Warn("ccp mmio: invalid queue", "off", off)
		return nil
	}

	v := le.Uint32(p)

	switch reg {
	case RegControl:
		b.queues.SetControl(idx, v)
	case RegHead:
		b.queues.SetHead(idx, v)
	case RegTail:
		b.queues.SetTail(idx, v)
	case RegStatus:
		b.queues.SetStatus(idx, v)
	case RegIEN:
		b.queues.SetIEN(idx, v)
	case RegISTS:
		b.queues.AckISTS(idx, v)
	}

	// A write that sets RUN while no interrupt is enabled must not drain
	// synchronously: firmware on real hardware relies on the request
	// continuing to run asynchronously after the MMIO write returns. Any
	// write, the RUN write included, drains here only if it leaves at
	// least one interrupt enabled, mirroring the condition the real
	// device's write handler checks before running the queue inline.
	if b.queues.IEN(idx) != 0 {
		b.queues.DrainMaybe(idx)
	}

	return nil
}

// ReadSecondary handles a read from the secondary MMIO window.
func (b *Bus) ReadSecondary(off uint32, p []byte) error {
	if len(p) != 4 {
		b.log.Warn("ccp mmio2: unsupported access width", "off", off, "len", len(p))
		return nil
	}

	var v uint32
	switch off {
	case Reg2WrittenLast:
		if b.WrittenLast != nil {
			v = *b.WrittenLast
		}
	case Reg2Ready:
		v = 1
	default:
		v = 0
	}

	le.PutUint32(p, v)
	return nil
}

func (b *Bus) resolveQueue(off uint32) (idx int, reg uint32, ok bool) {
	rel := off - QueueOffset
	idx = int(rel / QueueStride)
	reg = rel % QueueStride

	if idx >= b.queues.Count() {
		return 0, 0, false
	}

	return idx, reg, true
}
