// Package queue implements a single CCP hardware queue: its control/status
// register file and the head-to-tail descriptor drain loop.
package queue

import (
	"github.com/hnj2/pspemu-ccp/descriptor"
)

// Control register bits.
const (
	CtrlRun  uint32 = 1 << 0
	CtrlHalt uint32 = 1 << 1

	// ctrlQSizeShift/Mask hold log2(ring entries)-1; this core never
	// validates the head/tail pointers against it (see Open Questions in
	// the design notes), but it's decoded and kept for trace fidelity.
	ctrlQSizeShift = 3
	ctrlQSizeMask  = 0xf
)

// Status register values.
const (
	StatusSuccess uint32 = 0
	StatusError   uint32 = 1
)

// Interrupt status bits, shared by IEN and ISTS.
const (
	IstsCompletion uint32 = 1 << 0
	IstsError      uint32 = 1 << 1
	IstsQStop      uint32 = 1 << 2
	IstsQEmpty     uint32 = 1 << 3
)

// Memory is the byte-addressable PSP memory a queue reads descriptors from.
type Memory interface {
	PSPRead(addr uint32, p []byte) error
}

// IRQLine is the shared interrupt line a queue asserts or deasserts.
type IRQLine interface {
	SetIRQ(prio, devID int, assert bool)
}

// Processor executes a single decoded descriptor.
type Processor interface {
	Process(d descriptor.Descriptor) error
}

// Queue is one of the device's two independent hardware queues.
type Queue struct {
	Control uint32
	Head    uint32
	Tail    uint32
	Status  uint32
	IEN     uint32
	ISTS    uint32

	enabled bool

	mem   Memory
	irq   IRQLine
	proc  Processor
	devID int
}

// New returns a queue with HALT set and SUCCESS status, matching the
// device's reset state.
func New(mem Memory, irq IRQLine, proc Processor, devID int) *Queue {
	return &Queue{
		Control: CtrlHalt,
		Status:  StatusSuccess,
		mem:     mem,
		irq:     irq,
		proc:    proc,
		devID:   devID,
	}
}

// SetControl applies a write to the control register, latching the RUN bit
// into the queue's enabled flag. RUN never reads back as 1: the stored
// Control value always has it cleared, per the device's edge-triggered
// semantics.
func (q *Queue) SetControl(v uint32) {
	run := v&CtrlRun != 0

	if run && !q.enabled {
		q.enabled = true
	} else if !run && q.enabled {
		q.enabled = false
	}

	q.Control = v &^ CtrlRun
}

// AckISTS clears the bits set in v from ISTS, and deasserts the interrupt
// line if nothing enabled remains pending.
func (q *Queue) AckISTS(v uint32) {
	q.ISTS &^= v

	if q.IEN&q.ISTS == 0 {
		q.irq.SetIRQ(0, q.devID, false)
	}
}

// DrainMaybe runs the head-to-tail descriptor loop if the queue is enabled.
// It implements the device's exact drain state machine: clear HALT, walk
// head towards tail processing one descriptor at a time, stop immediately
// (without advancing head past the failing descriptor) on the first error,
// then set HALT and Q_STOP, additionally setting Q_EMPTY if the loop ran to
// completion, and finally assert the IRQ line iff IEN&ISTS is now nonzero.
//
// Callers control when this runs; it must not run synchronously on a write
// that sets RUN while no interrupt is enabled (see the MMIO bus for why).
func (q *Queue) DrainMaybe() {
	if !q.enabled {
		return
	}

	q.Control &^= CtrlHalt

	tail := q.Tail
	head := q.Head

	for head != tail {
		var raw [descriptor.Size]byte
		if err := q.mem.PSPRead(head, raw[:]); err != nil {
			q.Status = StatusError
			q.ISTS |= IstsError
			break
		}

		d, err := descriptor.Decode(raw[:])
		if err != nil {
			q.Status = StatusError
			q.ISTS |= IstsError
			break
		}

		if err := q.proc.Process(d); err != nil {
			q.Status = StatusError
			q.ISTS |= IstsError
			break
		}

		q.Status = StatusSuccess
		q.ISTS |= IstsCompletion

		head += descriptor.Size
	}

	q.Head = head
	q.Control |= CtrlHalt
	q.ISTS |= IstsQStop

	if head == tail {
		q.ISTS |= IstsQEmpty
	}

	if q.IEN&q.ISTS != 0 {
		q.irq.SetIRQ(0, q.devID, true)
	}
}

// QSize decodes the ring-size field of Control. It is informational only;
// this core does not enforce it against Head/Tail.
func (q *Queue) QSize() uint32 {
	return (q.Control >> ctrlQSizeShift) & ctrlQSizeMask
}
