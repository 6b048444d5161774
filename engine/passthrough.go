package engine

import (
	"fmt"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/xfer"
)

const passthroughChunk = 4096

func dispatchPassthrough(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	bitwise := d.Bitwise()
	byteswap := d.Byteswap()
	reflect := d.Reflect()

	switch {
	case bitwise == descriptor.PassthroughBitwiseNoop && byteswap == descriptor.PassthroughByteswapNoop && reflect == 0:
		return passthroughCopy(d, gw, false)

	case bitwise == descriptor.PassthroughBitwiseNoop && byteswap == descriptor.PassthroughByteswap256Bit && reflect == 0 && d.CBSrc == 32:
		return passthroughCopy(d, gw, true)

	default:
		return fmt.Errorf("%w: passthrough bitwise=%d byteswap=%d reflect=%d", ccperr.ErrNotImplemented, bitwise, byteswap, reflect)
	}
}

func passthroughCopy(d descriptor.Descriptor, gw xfer.GatewaySet, reverse bool) error {
	ctx, err := xfer.NewContext(gw, d, false, int(d.CBSrc), reverse)
	if err != nil {
		return err
	}

	buf := make([]byte, passthroughChunk)

	return chunked(int(d.CBSrc), passthroughChunk, func(n int) error {
		if err := ctx.Read(buf[:n], nil); err != nil {
			return fmt.Errorf("%w: passthrough read: %v", ccperr.ErrEngineError, err)
		}

		if err := ctx.Write(buf[:n], nil); err != nil {
			return fmt.Errorf("%w: passthrough write: %v", ccperr.ErrEngineError, err)
		}

		return nil
	})
}
