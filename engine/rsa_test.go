package engine

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/hnj2/pspemu-ccp/descriptor"
)

func TestDispatchRSASelfConsistent(t *testing.T) {
	const size = 256 // 2048-bit modulus, in bytes

	p, err := rand.Prime(rand.Reader, size*8/2)
	if err != nil {
		t.Fatalf("rand.Prime: %v", err)
	}
	q, err := rand.Prime(rand.Reader, size*8/2)
	if err != nil {
		t.Fatalf("rand.Prime: %v", err)
	}

	n := new(big.Int).Mul(p, q)
	phi := new(big.Int).Mul(new(big.Int).Sub(p, big.NewInt(1)), new(big.Int).Sub(q, big.NewInt(1)))

	e := big.NewInt(65537)
	d := new(big.Int).ModInverse(e, phi)
	if d == nil {
		t.Fatal("no modular inverse; unlucky prime pair, adjust test")
	}

	msg := new(big.Int).SetInt64(424242)

	h := &fakeHost{}
	io := &fakeIO{}
	gw := newTestGateways(io, &h.lsb)

	// Encrypt: c = m^e mod n.
	copy(io.mem[0x100:], bigToLE(e, size))
	copy(io.mem[0x1000:], bigToLE(n, size))
	copy(io.mem[0x1000+size:], bigToLE(msg, size))

	enc := descriptor.Descriptor{
		Engine:     descriptor.EngineRSA,
		Function:   uint16(size),
		CBSrc:      2 * size,
		SrcAddr:    0x1000,
		SrcMemType: descriptor.MemLocal,
		DstAddr:    0x3000,
		DstMemType: descriptor.MemLocal,
		KeyAddr:    0x100,
		KeyMemType: descriptor.MemLocal,
	}

	if err := Dispatch(h, enc, gw); err != nil {
		t.Fatalf("Dispatch encrypt: %v", err)
	}

	cipherBytes := make([]byte, size)
	copy(cipherBytes, io.mem[0x3000:0x3000+size])

	wantCipher := bigToLE(new(big.Int).Exp(msg, e, n), size)
	if !bytes.Equal(cipherBytes, wantCipher) {
		t.Fatalf("ciphertext mismatch:\ngot  %x\nwant %x", cipherBytes, wantCipher)
	}

	// Decrypt: m = c^d mod n.
	h2 := &fakeHost{}
	io2 := &fakeIO{}
	gw2 := newTestGateways(io2, &h2.lsb)

	copy(io2.mem[0x100:], bigToLE(d, size))
	copy(io2.mem[0x1000:], bigToLE(n, size))
	copy(io2.mem[0x1000+size:], cipherBytes)

	dec := descriptor.Descriptor{
		Engine:     descriptor.EngineRSA,
		Function:   uint16(size),
		CBSrc:      2 * size,
		SrcAddr:    0x1000,
		SrcMemType: descriptor.MemLocal,
		DstAddr:    0x3000,
		DstMemType: descriptor.MemLocal,
		KeyAddr:    0x100,
		KeyMemType: descriptor.MemLocal,
	}

	if err := Dispatch(h2, dec, gw2); err != nil {
		t.Fatalf("Dispatch decrypt: %v", err)
	}

	gotMsg := leToBig(io2.mem[0x3000 : 0x3000+size])
	if gotMsg.Cmp(msg) != 0 {
		t.Fatalf("recovered message = %v, want %v", gotMsg, msg)
	}
}

func TestDispatchRSARejectsBadSourceLength(t *testing.T) {
	h := &fakeHost{}
	io := &fakeIO{}
	gw := newTestGateways(io, &h.lsb)

	d := descriptor.Descriptor{
		Engine:   descriptor.EngineRSA,
		Function: uint16(256),
		CBSrc:    100, // should be 512
	}

	if err := Dispatch(h, d, gw); err == nil {
		t.Fatal("expected error for mismatched rsa source length")
	}
}
