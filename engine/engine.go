// Package engine implements the CCP's six functional back-ends:
// PASSTHROUGH, SHA, AES, RSA, ECC and ZLIB decompression. Each back-end
// consumes a decoded descriptor and a transfer context; none of them touch
// the queue or MMIO layers directly.
package engine

import (
	"fmt"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/lsb"
	"github.com/hnj2/pspemu-ccp/xfer"
)

// AESProxy forwards a protected-key AES operation to real hardware.
type AESProxy interface {
	AESDo(dw0 uint32, cbSrc uint32, src []byte, keyAddr uint32, iv []byte, out []byte) (status uint32, err error)
}

// Host is the minimal surface of the device an engine needs: the LSB, the
// per-message session slots, and the two optional collaborators (tracer,
// AES proxy) an engine may call through.
type Host interface {
	LSB() *lsb.Buffer

	SHASession() *ShaSession
	SetSHASession(*ShaSession)

	AESSession() *AesSession
	SetAESSession(*AesSession)

	ZlibSession() *ZlibSession
	SetZlibSession(*ZlibSession)

	Tracer() ccperr.Tracer
	AESProxy() AESProxy
}

// Dispatch routes a decoded descriptor to its engine back-end.
func Dispatch(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	trace(h, ccperr.SeverityInfo, "%s: function=%#x cbSrc=%d src=%#x dst=%#x eom=%t",
		d.Engine, d.Function, d.CBSrc, d.SrcAddr, d.DstAddr, d.EOM)

	switch d.Engine {
	case descriptor.EnginePassthrough:
		return dispatchPassthrough(h, d, gw)
	case descriptor.EngineSHA:
		return dispatchSHA(h, d, gw)
	case descriptor.EngineAES:
		return dispatchAES(h, d, gw)
	case descriptor.EngineRSA:
		return dispatchRSA(h, d, gw)
	case descriptor.EngineECC:
		return dispatchECC(h, d, gw)
	case descriptor.EngineZlibDecompress:
		return dispatchZlib(h, d, gw)
	case descriptor.EngineXTSAES128, descriptor.EngineDES3:
		return fmt.Errorf("%w: engine %s", ccperr.ErrNotImplemented, d.Engine)
	default:
		return fmt.Errorf("%w: unknown engine %d", ccperr.ErrDecodeError, uint8(d.Engine))
	}
}

func trace(h Host, sev ccperr.Severity, format string, args ...any) {
	if t := h.Tracer(); t != nil {
		t.Tracef(sev, ccperr.Origin, format, args...)
	}
}

// chunked runs fn repeatedly with buffers of at most max bytes until n
// bytes have been processed.
func chunked(n, max int, fn func(chunk int) error) error {
	for n > 0 {
		c := n
		if c > max {
			c = max
		}

		if err := fn(c); err != nil {
			return err
		}

		n -= c
	}

	return nil
}
