package engine

import (
	"bytes"
	"testing"

	"github.com/hnj2/pspemu-ccp/descriptor"
)

func TestDispatchPassthroughIdentity(t *testing.T) {
	h := &fakeHost{}
	io := &fakeIO{}

	payload := []byte("PASSTHROUGH identity payload, sixteen+ bytes")
	copy(io.mem[0x1000:], payload)

	gw := newTestGateways(io, &h.lsb)

	d := descriptor.Descriptor{
		Engine:     descriptor.EnginePassthrough,
		CBSrc:      uint32(len(payload)),
		SrcAddr:    0x1000,
		SrcMemType: descriptor.MemLocal,
		DstAddr:    0x2000,
		DstMemType: descriptor.MemLocal,
	}

	if err := Dispatch(h, d, gw); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := io.mem[0x2000 : 0x2000+len(payload)]
	if !bytes.Equal(got, payload) {
		t.Fatalf("copied = %q, want %q", got, payload)
	}
}

func TestDispatchPassthroughByteswap256(t *testing.T) {
	h := &fakeHost{}
	io := &fakeIO{}

	var payload [32]byte
	for i := range payload {
		payload[i] = byte(i)
	}
	copy(io.mem[0x1000:], payload[:])

	gw := newTestGateways(io, &h.lsb)

	d := descriptor.Descriptor{
		Engine:     descriptor.EnginePassthrough,
		Function:   uint16(descriptor.PassthroughByteswap256Bit) << descriptor.PassthroughByteswapShift,
		CBSrc:      32,
		SrcAddr:    0x1000,
		SrcMemType: descriptor.MemLocal,
		DstAddr:    0x2000,
		DstMemType: descriptor.MemLocal,
	}

	if err := Dispatch(h, d, gw); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := io.mem[0x2000 : 0x2000+32]
	for i := 0; i < 32; i++ {
		if got[i] != payload[31-i] {
			t.Fatalf("byte %d = %d, want %d (reversed)", i, got[i], payload[31-i])
		}
	}
}

func TestDispatchPassthroughRejectsUnsupportedFunction(t *testing.T) {
	h := &fakeHost{}
	io := &fakeIO{}
	gw := newTestGateways(io, &h.lsb)

	d := descriptor.Descriptor{
		Engine:   descriptor.EnginePassthrough,
		Function: uint16(descriptor.PassthroughBitwiseAnd),
		CBSrc:    16,
	}

	if err := Dispatch(h, d, gw); err == nil {
		t.Fatal("expected error for unsupported passthrough function")
	}
}
