package engine

import (
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/xfer"
)

// eccNum is the wire size of one ECC operand/result number.
const eccNum = 72

// Byte offsets of the fixed ECC request block (prime followed by a union
// of operation-specific operands), mirroring the original device's
// CCP5ECCREQ layout.
const (
	eccOffPrime = 0

	eccOffFieldMulFactor1 = eccOffPrime + eccNum
	eccOffFieldMulFactor2 = eccOffFieldMulFactor1 + eccNum

	eccOffFieldAddSummand1 = eccOffPrime + eccNum
	eccOffFieldAddSummand2 = eccOffFieldAddSummand1 + eccNum

	eccOffFieldInvNum = eccOffPrime + eccNum

	eccOffCurveMulPointX     = eccOffPrime + eccNum
	eccOffCurveMulPointY     = eccOffCurveMulPointX + eccNum
	eccOffCurveMulFactor     = eccOffCurveMulPointY + eccNum
	eccOffCurveMulCoeff      = eccOffCurveMulFactor + eccNum
	eccCurveMulBlockSize     = eccOffCurveMulCoeff + eccNum

	eccOffCurveMulAddPoint1X = eccOffPrime + eccNum
	eccOffCurveMulAddPoint1Y = eccOffCurveMulAddPoint1X + eccNum
	eccOffCurveMulAddFactor1 = eccOffCurveMulAddPoint1Y + eccNum
	eccOffCurveMulAddPoint2X = eccOffCurveMulAddFactor1 + eccNum
	eccOffCurveMulAddPoint2Y = eccOffCurveMulAddPoint2X + eccNum
	eccOffCurveMulAddFactor2 = eccOffCurveMulAddPoint2Y + eccNum
	eccOffCurveMulAddCoeff   = eccOffCurveMulAddFactor2 + eccNum
	eccCurveMulAddBlockSize  = eccOffCurveMulAddCoeff + eccNum
)

// p384Prime is the NIST P-384 field prime: 2^384 - 2^128 - 2^96 + 2^32 - 1.
var p384Prime = func() *big.Int {
	p, ok := new(big.Int).SetString(
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffeffffffff0000000000000000ffffffff", 16)
	if !ok {
		panic("ecc: bad P-384 prime literal")
	}

	return p
}()

func dispatchECC(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	op := d.ECCOp()
	bits := d.ECCBitCount()

	if bits > eccNum*8 {
		return fmt.Errorf("%w: ecc bit count %d exceeds %d", ccperr.ErrNotImplemented, bits, eccNum*8)
	}

	blockSize := eccCurveMulAddBlockSize
	resultSize := 2 * eccNum
	if op <= descriptor.ECCOpInvField {
		resultSize = eccNum
	}

	srcGw, err := gw.Resolve(d.SrcMemType)
	if err != nil {
		return err
	}

	block := make([]byte, blockSize)
	if err := srcGw.Read(d.SrcAddr, block); err != nil {
		return fmt.Errorf("%w: ecc request read: %v", ccperr.ErrEngineError, err)
	}

	prime := leToBig(block[eccOffPrime : eccOffPrime+eccNum])
	if prime.Cmp(p384Prime) != 0 {
		return fmt.Errorf("%w: ecc prime is not NIST P-384", ccperr.ErrNotImplemented)
	}

	ctx, err := xfer.NewContext(gw, d, false, resultSize, false)
	if err != nil {
		return err
	}

	var out []byte

	switch op {
	case descriptor.ECCOpMulField:
		a := leToBig(block[eccOffFieldMulFactor1 : eccOffFieldMulFactor1+eccNum])
		b := leToBig(block[eccOffFieldMulFactor2 : eccOffFieldMulFactor2+eccNum])
		r := new(big.Int).Mul(a, b)
		r.Mod(r, prime)
		out = bigToLE(r, eccNum)

	case descriptor.ECCOpAddField:
		a := leToBig(block[eccOffFieldAddSummand1 : eccOffFieldAddSummand1+eccNum])
		b := leToBig(block[eccOffFieldAddSummand2 : eccOffFieldAddSummand2+eccNum])
		r := new(big.Int).Add(a, b)
		r.Mod(r, prime)
		out = bigToLE(r, eccNum)

	case descriptor.ECCOpInvField:
		a := leToBig(block[eccOffFieldInvNum : eccOffFieldInvNum+eccNum])
		r := new(big.Int).ModInverse(a, prime)
		if r == nil {
			return fmt.Errorf("%w: ecc field inverse has no solution", ccperr.ErrEngineError)
		}
		out = bigToLE(r, eccNum)

	case descriptor.ECCOpMulCurve:
		px := leToBig(block[eccOffCurveMulPointX : eccOffCurveMulPointX+eccNum])
		py := leToBig(block[eccOffCurveMulPointY : eccOffCurveMulPointY+eccNum])
		k := leToBig(block[eccOffCurveMulFactor : eccOffCurveMulFactor+eccNum])

		curve := elliptic.P384()
		rx, ry := curve.ScalarMult(px, py, k.Bytes())
		out = append(bigToLE(rx, eccNum), bigToLE(ry, eccNum)...)

	case descriptor.ECCOpMulAddCurve:
		p1x := leToBig(block[eccOffCurveMulAddPoint1X : eccOffCurveMulAddPoint1X+eccNum])
		p1y := leToBig(block[eccOffCurveMulAddPoint1Y : eccOffCurveMulAddPoint1Y+eccNum])
		k1 := leToBig(block[eccOffCurveMulAddFactor1 : eccOffCurveMulAddFactor1+eccNum])
		p2x := leToBig(block[eccOffCurveMulAddPoint2X : eccOffCurveMulAddPoint2X+eccNum])
		p2y := leToBig(block[eccOffCurveMulAddPoint2Y : eccOffCurveMulAddPoint2Y+eccNum])
		k2 := leToBig(block[eccOffCurveMulAddFactor2 : eccOffCurveMulAddFactor2+eccNum])

		curve := elliptic.P384()
		r1x, r1y := curve.ScalarMult(p1x, p1y, k1.Bytes())
		r2x, r2y := curve.ScalarMult(p2x, p2y, k2.Bytes())
		rx, ry := curve.Add(r1x, r1y, r2x, r2y)
		out = append(bigToLE(rx, eccNum), bigToLE(ry, eccNum)...)

	default:
		return fmt.Errorf("%w: ecc op %d", ccperr.ErrNotImplemented, op)
	}

	if err := ctx.Write(out, nil); err != nil {
		return fmt.Errorf("%w: ecc result write: %v", ccperr.ErrEngineError, err)
	}

	return nil
}
