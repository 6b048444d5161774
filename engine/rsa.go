package engine

import (
	"fmt"
	"math/big"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/xfer"
)

func dispatchRSA(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	if d.RSAMode() != 0 {
		return fmt.Errorf("%w: rsa mode %d", ccperr.ErrNotImplemented, d.RSAMode())
	}

	size := int(d.RSASize())
	if size != 256 && size != 512 {
		return fmt.Errorf("%w: rsa size %d", ccperr.ErrNotImplemented, size)
	}

	keyGw, err := gw.Resolve(d.KeyMemType)
	if err != nil {
		return err
	}

	expBuf := make([]byte, size)
	if err := keyGw.Read(d.KeyAddr, expBuf); err != nil {
		return fmt.Errorf("%w: rsa exponent read: %v", ccperr.ErrEngineError, err)
	}

	srcGw, err := gw.Resolve(d.SrcMemType)
	if err != nil {
		return err
	}

	if int(d.CBSrc) != 2*size {
		return fmt.Errorf("%w: rsa source length %d, want %d", ccperr.ErrEngineError, d.CBSrc, 2*size)
	}

	modBuf := make([]byte, size)
	if err := srcGw.Read(d.SrcAddr, modBuf); err != nil {
		return fmt.Errorf("%w: rsa modulus read: %v", ccperr.ErrEngineError, err)
	}

	msgBuf := make([]byte, size)
	if err := srcGw.Read(d.SrcAddr+uint64(size), msgBuf); err != nil {
		return fmt.Errorf("%w: rsa message read: %v", ccperr.ErrEngineError, err)
	}

	n := leToBig(modBuf)
	e := leToBig(expBuf)
	m := leToBig(msgBuf)

	c := new(big.Int).Exp(m, e, n)

	out := bigToLE(c, size)

	ctx, err := xfer.NewContext(gw, d, false, size, false)
	if err != nil {
		return err
	}

	if err := ctx.Write(out, nil); err != nil {
		return fmt.Errorf("%w: rsa result write: %v", ccperr.ErrEngineError, err)
	}

	return nil
}

// leToBig interprets a little-endian byte slice as an unsigned integer.
func leToBig(p []byte) *big.Int {
	be := make([]byte, len(p))
	for i, b := range p {
		be[len(p)-1-i] = b
	}

	return new(big.Int).SetBytes(be)
}

// bigToLE renders x as a little-endian byte slice of exactly size bytes.
func bigToLE(x *big.Int, size int) []byte {
	be := x.Bytes()

	out := make([]byte, size)
	copy(out[size-len(be):], be)
	reverseBytes(out)

	return out
}
