package engine

import (
	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/lsb"
	"github.com/hnj2/pspemu-ccp/xfer"
)

// fakeIO is flat byte-slice-backed PSP-local memory.
type fakeIO struct {
	mem [1 << 16]byte
}

func (f *fakeIO) PSPRead(addr uint32, p []byte) error {
	copy(p, f.mem[addr:])
	return nil
}

func (f *fakeIO) PSPWrite(addr uint32, p []byte) error {
	copy(f.mem[addr:], p)
	return nil
}

// fakeHost is a minimal Host implementation backing the session slots with
// plain fields and the LSB with a real buffer.
type fakeHost struct {
	lsb lsb.Buffer

	sha  *ShaSession
	aes  *AesSession
	zlib *ZlibSession

	tracer ccperr.Tracer
	proxy  AESProxy
}

func (h *fakeHost) LSB() *lsb.Buffer { return &h.lsb }

func (h *fakeHost) SHASession() *ShaSession     { return h.sha }
func (h *fakeHost) SetSHASession(s *ShaSession) { h.sha = s }

func (h *fakeHost) AESSession() *AesSession     { return h.aes }
func (h *fakeHost) SetAESSession(s *AesSession) { h.aes = s }

func (h *fakeHost) ZlibSession() *ZlibSession     { return h.zlib }
func (h *fakeHost) SetZlibSession(s *ZlibSession) { h.zlib = s }

func (h *fakeHost) Tracer() ccperr.Tracer { return h.tracer }
func (h *fakeHost) AESProxy() AESProxy    { return h.proxy }

func newTestGateways(io *fakeIO, lsbuf *lsb.Buffer) xfer.GatewaySet {
	return xfer.NewGatewaySet(io, lsbuf, new(uint32))
}
