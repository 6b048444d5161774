package mmio

import (
	"encoding/binary"
	"testing"
)

// fakeQueues is an in-memory stand-in for a device's hardware queues,
// recording DrainMaybe calls so tests can assert the deferred-execution
// contract.
type fakeQueues struct {
	n            int
	control, ien []uint32
	head, tail   []uint32
	status, ists []uint32
	drains       []int
}

func newFakeQueues(n int) *fakeQueues {
	return &fakeQueues{
		n:       n,
		control: make([]uint32, n),
		ien:     make([]uint32, n),
		head:    make([]uint32, n),
		tail:    make([]uint32, n),
		status:  make([]uint32, n),
		ists:    make([]uint32, n),
	}
}

func (f *fakeQueues) Count() int                      { return f.n }
func (f *fakeQueues) Control(i int) uint32            { return f.control[i] }
func (f *fakeQueues) SetControl(i int, v uint32)      { f.control[i] = v }
func (f *fakeQueues) Head(i int) uint32               { return f.head[i] }
func (f *fakeQueues) SetHead(i int, v uint32)         { f.head[i] = v }
func (f *fakeQueues) Tail(i int) uint32               { return f.tail[i] }
func (f *fakeQueues) SetTail(i int, v uint32)         { f.tail[i] = v }
func (f *fakeQueues) Status(i int) uint32             { return f.status[i] }
func (f *fakeQueues) SetStatus(i int, v uint32)       { f.status[i] = v }
func (f *fakeQueues) IEN(i int) uint32                { return f.ien[i] }
func (f *fakeQueues) SetIEN(i int, v uint32)          { f.ien[i] = v }
func (f *fakeQueues) ISTS(i int) uint32               { return f.ists[i] }
func (f *fakeQueues) AckISTS(i int, v uint32)         { f.ists[i] &^= v }
func (f *fakeQueues) DrainMaybe(i int)                { f.drains = append(f.drains, i) }

func put32(v uint32) []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, v)
	return p
}

func get32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }

func TestWritePrimaryNeverDrainsSynchronouslyWhenIENZero(t *testing.T) {
	q := newFakeQueues(2)
	b := New(q, new(uint32), nil)

	off := uint32(QueueOffset + RegControl)
	if err := b.WritePrimary(off, put32(CtrlRunForTest)); err != nil {
		t.Fatalf("WritePrimary: %v", err)
	}

	if len(q.drains) != 0 {
		t.Fatalf("DrainMaybe called on RUN write with IEN=0, want no drain: %v", q.drains)
	}
}

func TestWritePrimaryDrainsWhenIENNonzero(t *testing.T) {
	q := newFakeQueues(2)
	q.ien[0] = 1

	b := New(q, new(uint32), nil)

	off := uint32(QueueOffset + RegControl)
	if err := b.WritePrimary(off, put32(CtrlRunForTest)); err != nil {
		t.Fatalf("WritePrimary: %v", err)
	}

	if len(q.drains) != 1 || q.drains[0] != 0 {
		t.Fatalf("drains = %v, want [0]", q.drains)
	}
}

func TestReadPrimaryAlwaysDrains(t *testing.T) {
	q := newFakeQueues(2)
	b := New(q, new(uint32), nil)

	off := uint32(QueueOffset + QueueStride + RegHead)
	p := make([]byte, 4)
	if err := b.ReadPrimary(off, p); err != nil {
		t.Fatalf("ReadPrimary: %v", err)
	}

	if len(q.drains) != 1 || q.drains[0] != 1 {
		t.Fatalf("drains = %v, want [1]", q.drains)
	}
}

func TestReadWritePrimaryRegisterRouting(t *testing.T) {
	q := newFakeQueues(1)
	b := New(q, new(uint32), nil)

	if err := b.WritePrimary(QueueOffset+RegHead, put32(0x40)); err != nil {
		t.Fatalf("WritePrimary head: %v", err)
	}
	if q.head[0] != 0x40 {
		t.Fatalf("head[0] = %#x, want 0x40", q.head[0])
	}

	if err := b.WritePrimary(QueueOffset+RegTail, put32(0x80)); err != nil {
		t.Fatalf("WritePrimary tail: %v", err)
	}
	if q.tail[0] != 0x80 {
		t.Fatalf("tail[0] = %#x, want 0x80", q.tail[0])
	}

	p := make([]byte, 4)
	if err := b.ReadPrimary(QueueOffset+RegTail, p); err != nil {
		t.Fatalf("ReadPrimary tail: %v", err)
	}
	if get32(p) != 0x80 {
		t.Fatalf("read tail = %#x, want 0x80", get32(p))
	}
}

func TestInvalidQueueIndexReturnsZero(t *testing.T) {
	q := newFakeQueues(1)
	b := New(q, new(uint32), nil)

	p := make([]byte, 4)
	if err := b.ReadPrimary(QueueOffset+QueueStride+RegHead, p); err != nil {
		t.Fatalf("ReadPrimary: %v", err)
	}

	if get32(p) != 0 {
		t.Fatalf("out-of-range queue read = %#x, want 0", get32(p))
	}
}

func TestReadSecondaryReportsWrittenLastAndReady(t *testing.T) {
	written := uint32(42)
	q := newFakeQueues(1)
	b := New(q, &written, nil)

	p := make([]byte, 4)
	if err := b.ReadSecondary(Reg2WrittenLast, p); err != nil {
		t.Fatalf("ReadSecondary: %v", err)
	}
	if get32(p) != 42 {
		t.Fatalf("written-last = %d, want 42", get32(p))
	}

	if err := b.ReadSecondary(Reg2Ready, p); err != nil {
		t.Fatalf("ReadSecondary: %v", err)
	}
	if get32(p) != 1 {
		t.Fatalf("ready = %d, want 1", get32(p))
	}
}

func TestHandleMMIODispatchesByDirection(t *testing.T) {
	q := newFakeQueues(1)
	b := New(q, new(uint32), nil)

	if err := b.HandleMMIO(QueueOffset+RegHead, put32(7), true); err != nil {
		t.Fatalf("HandleMMIO write: %v", err)
	}
	if q.head[0] != 7 {
		t.Fatalf("head[0] = %d, want 7", q.head[0])
	}

	p := make([]byte, 4)
	if err := b.HandleMMIO(QueueOffset+RegHead, p, false); err != nil {
		t.Fatalf("HandleMMIO read: %v", err)
	}
	if get32(p) != 7 {
		t.Fatalf("read head = %d, want 7", get32(p))
	}
}

// CtrlRunForTest mirrors queue.CtrlRun without importing the queue package,
// keeping mmio's tests decoupled from queue's internal layout.
const CtrlRunForTest = 1 << 0
