// Package descriptor decodes the 32-byte CCPv5 command descriptor firmware
// writes into a queue ring.
package descriptor

import (
	"encoding/binary"
	"fmt"
)

// Size is the length in bytes of a wire-format descriptor.
const Size = 32

// Engine identifies the functional unit a descriptor is routed to.
type Engine uint8

const (
	EngineAES            Engine = 0
	EngineXTSAES128      Engine = 1
	EngineDES3           Engine = 2
	EngineSHA            Engine = 3
	EngineRSA            Engine = 4
	EnginePassthrough    Engine = 5
	EngineZlibDecompress Engine = 6
	EngineECC            Engine = 7
)

func (e Engine) String() string {
	switch e {
	case EngineAES:
		return "AES"
	case EngineXTSAES128:
		return "XTS_AES_128"
	case EngineDES3:
		return "DES3"
	case EngineSHA:
		return "SHA"
	case EngineRSA:
		return "RSA"
	case EnginePassthrough:
		return "PASSTHROUGH"
	case EngineZlibDecompress:
		return "ZLIB_DECOMPRESS"
	case EngineECC:
		return "ECC"
	default:
		return fmt.Sprintf("Engine(%d)", uint8(e))
	}
}

// MemType identifies one of the three address spaces a descriptor's
// src/dst/key fields can reference.
type MemType uint8

const (
	MemSystem MemType = 0
	MemSB     MemType = 1
	MemLocal  MemType = 2
)

func (m MemType) String() string {
	switch m {
	case MemSystem:
		return "SYSTEM"
	case MemSB:
		return "SB"
	case MemLocal:
		return "LOCAL"
	default:
		return fmt.Sprintf("MemType(%d)", uint8(m))
	}
}

// dw0 bit layout (32 bits total):
//
//	bits [0:4)    engine (4 bits)
//	bits [4:19)   function (15 bits, engine-specific)
//	bit  19       init
//	bit  20       eom
//	bits [21:24)  share context id, source side
//	bits [24:27)  share context id, destination side
//	bits [27:32)  reserved
const (
	dw0EngineShift   = 0
	dw0EngineMask    = 0xf
	dw0FunctionShift = 4
	dw0FunctionMask  = 0x7fff
	dw0InitShift     = 19
	dw0EomShift      = 20
	dw0ShareSrcShift = 21
	dw0ShareSrcMask  = 0x7
	dw0ShareDstShift = 24
	dw0ShareDstMask  = 0x7
)

// memType field layout, shared by srcMemType/dstMemType/keyMemType (16 bits):
//
//	bits [0:2)   memory type code
//	bits [2:9)   LSB context id (7 bits)
//	bit  9       fixed
const (
	memTypeCodeMask  = 0x3
	memTypeLSBShift  = 2
	memTypeLSBMask   = 0x7f
	memTypeFixedBit  = 1 << 9
)

// Descriptor is the decoded form of a 32-byte CCPv5 command descriptor.
type Descriptor struct {
	// Raw is the original wire-format bytes, kept for collaborators (the
	// AES proxy) that need to forward the request verbatim.
	Raw [Size]byte

	Engine   Engine
	Function uint16
	Init     bool
	EOM      bool

	// ShareCtxSrc and ShareCtxDst are decoded for tracing parity with the
	// original firmware ABI; no engine in this core acts on them.
	ShareCtxSrc uint8
	ShareCtxDst uint8

	CBSrc      uint32
	SrcAddr    uint64
	SrcMemType MemType
	SrcLSBCtx  uint8
	SrcFixed   bool

	// DstAddr/DstMemType are populated for every engine except SHA, where
	// the descriptor instead carries the running bit count of the message.
	DstAddr    uint64
	DstMemType MemType
	DstLSBCtx  uint8
	DstFixed   bool

	ShaBits uint64

	KeyAddr    uint64
	KeyMemType MemType
	KeyLSBCtx  uint8
	KeyFixed   bool
}

// Decode parses a 32-byte little-endian descriptor.
func Decode(raw []byte) (Descriptor, error) {
	if len(raw) != Size {
		return Descriptor{}, fmt.Errorf("descriptor: decode: got %d bytes, want %d", len(raw), Size)
	}

	le := binary.LittleEndian
	dw0 := le.Uint32(raw[0:4])

	d := Descriptor{
		Engine:      Engine((dw0 >> dw0EngineShift) & dw0EngineMask),
		Function:    uint16((dw0 >> dw0FunctionShift) & dw0FunctionMask),
		Init:        dw0&(1<<dw0InitShift) != 0,
		EOM:         dw0&(1<<dw0EomShift) != 0,
		ShareCtxSrc: uint8((dw0 >> dw0ShareSrcShift) & dw0ShareSrcMask),
		ShareCtxDst: uint8((dw0 >> dw0ShareDstShift) & dw0ShareDstMask),

		CBSrc: le.Uint32(raw[4:8]),
	}

	d.SrcAddr = uint64(le.Uint32(raw[8:12])) | uint64(le.Uint16(raw[12:14]))<<32

	srcMemType := le.Uint16(raw[14:16])
	d.SrcMemType, d.SrcLSBCtx, d.SrcFixed = decodeMemType(srcMemType)

	if d.Engine == EngineSHA {
		lo := le.Uint32(raw[16:20])
		hi := le.Uint32(raw[20:24])
		d.ShaBits = uint64(hi)<<32 | uint64(lo)
	} else {
		d.DstAddr = uint64(le.Uint32(raw[16:20])) | uint64(le.Uint16(raw[20:22]))<<32
		dstMemType := le.Uint16(raw[22:24])
		d.DstMemType, d.DstLSBCtx, d.DstFixed = decodeMemType(dstMemType)
	}

	d.KeyAddr = uint64(le.Uint32(raw[24:28])) | uint64(le.Uint16(raw[28:30]))<<32
	keyMemType := le.Uint16(raw[30:32])
	d.KeyMemType, d.KeyLSBCtx, d.KeyFixed = decodeMemType(keyMemType)

	copy(d.Raw[:], raw)

	return d, nil
}

func decodeMemType(v uint16) (MemType, uint8, bool) {
	code := MemType(v & memTypeCodeMask)
	lsbCtx := uint8((v >> memTypeLSBShift) & memTypeLSBMask)
	fixed := v&memTypeFixedBit != 0
	return code, lsbCtx, fixed
}

// PASSTHROUGH function sub-fields.
const (
	PassthroughBitwiseShift = 0
	PassthroughBitwiseMask  = 0x7

	PassthroughByteswapShift = 3
	PassthroughByteswapMask  = 0x3

	PassthroughReflectShift = 5
	PassthroughReflectMask  = 0x3
)

const (
	PassthroughBitwiseNoop = 0
	PassthroughBitwiseAnd  = 1
	PassthroughBitwiseOr   = 2
	PassthroughBitwiseXor  = 3
	PassthroughBitwiseMask8 = 4

	PassthroughByteswapNoop   = 0
	PassthroughByteswap32Bit  = 1
	PassthroughByteswap256Bit = 2
)

// Bitwise, Byteswap and Reflect extract the PASSTHROUGH sub-fields from Function.
func (d Descriptor) Bitwise() uint8 {
	return uint8((d.Function >> PassthroughBitwiseShift) & PassthroughBitwiseMask)
}

func (d Descriptor) Byteswap() uint8 {
	return uint8((d.Function >> PassthroughByteswapShift) & PassthroughByteswapMask)
}

func (d Descriptor) Reflect() uint8 {
	return uint8((d.Function >> PassthroughReflectShift) & PassthroughReflectMask)
}

// SHA function sub-field.
const (
	shaTypeShift = 0
	shaTypeMask  = 0x7
)

const (
	SHATypeSHA1   = 0
	SHATypeSHA224 = 1
	SHATypeSHA256 = 2
	SHATypeSHA384 = 3
	SHATypeSHA512 = 4
)

func (d Descriptor) SHAType() uint8 {
	return uint8((d.Function >> shaTypeShift) & shaTypeMask)
}

// AES function sub-fields.
const (
	aesEncryptShift = 0
	aesModeShift    = 1
	aesModeMask     = 0xf
	aesTypeShift    = 5
	aesTypeMask     = 0x3
	aesSizeShift    = 7
	aesSizeMask     = 0x7f
)

const (
	AESModeECB   = 0
	AESModeCBC   = 1
	AESModeOFB   = 2
	AESModeCFB   = 3
	AESModeCTR   = 4
	AESModeCMAC  = 5
	AESModeGHASH = 6
	AESModeGCTR  = 7
	AESModeGCM   = 8
	AESModeGMAC  = 9
)

const (
	AESType128 = 0
	AESType192 = 1
	AESType256 = 2
)

func (d Descriptor) AESEncrypt() bool {
	return d.Function&(1<<aesEncryptShift) != 0
}

func (d Descriptor) AESMode() uint8 {
	return uint8((d.Function >> aesModeShift) & aesModeMask)
}

func (d Descriptor) AESType() uint8 {
	return uint8((d.Function >> aesTypeShift) & aesTypeMask)
}

func (d Descriptor) AESSize() uint8 {
	return uint8((d.Function >> aesSizeShift) & aesSizeMask)
}

// RSA function sub-fields.
const (
	rsaSizeShift = 0
	rsaSizeMask  = 0xfff
	rsaModeShift = 12
	rsaModeMask  = 0x7
)

func (d Descriptor) RSASize() uint16 {
	return uint16((d.Function >> rsaSizeShift) & rsaSizeMask)
}

func (d Descriptor) RSAMode() uint8 {
	return uint8((d.Function >> rsaModeShift) & rsaModeMask)
}

// ECC function sub-fields.
const (
	eccOpShift       = 0
	eccOpMask        = 0xf
	eccBitCountShift = 4
	eccBitCountMask  = 0x7ff
)

const (
	ECCOpMulField    = 0
	ECCOpAddField    = 1
	ECCOpInvField    = 2
	ECCOpMulCurve    = 3
	ECCOpMulAddCurve = 4
)

func (d Descriptor) ECCOp() uint8 {
	return uint8((d.Function >> eccOpShift) & eccOpMask)
}

func (d Descriptor) ECCBitCount() uint16 {
	return uint16((d.Function >> eccBitCountShift) & eccBitCountMask)
}
