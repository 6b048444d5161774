// Package xfer implements the CCP's address-space gateway and the transfer
// context that engines drive to move request operands between the three
// memory spaces a descriptor can reference.
package xfer

import (
	"errors"
	"fmt"

	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/lsb"
)

// ErrUnsupported is returned by the SYSTEM gateway: host physical memory
// is not modeled by this core.
var ErrUnsupported = errors.New("xfer: unsupported memory type")

// Gateway reads and writes a single address space.
type Gateway interface {
	Read(addr uint64, p []byte) error
	Write(addr uint64, p []byte) error
}

// IOManager is the external PSP-local address space collaborator.
type IOManager interface {
	PSPRead(addr uint32, p []byte) error
	PSPWrite(addr uint32, p []byte) error
}

// SystemGateway models host physical memory, which this core never backs.
type SystemGateway struct{}

func (SystemGateway) Read(addr uint64, p []byte) error {
	return fmt.Errorf("%w: system read addr=%#x len=%d", ErrUnsupported, addr, len(p))
}

func (SystemGateway) Write(addr uint64, p []byte) error {
	return fmt.Errorf("%w: system write addr=%#x len=%d", ErrUnsupported, addr, len(p))
}

// SBGateway addresses the Local Storage Buffer.
type SBGateway struct {
	LSB *lsb.Buffer
}

func (g SBGateway) Read(addr uint64, p []byte) error {
	return g.LSB.Read(int(addr), p)
}

func (g SBGateway) Write(addr uint64, p []byte) error {
	return g.LSB.Write(int(addr), p)
}

// LocalGateway addresses PSP-local memory via the external I/O manager. A
// successful write increments WrittenCounter by the number of bytes
// written, modeling cbWrittenLast.
type LocalGateway struct {
	IO             IOManager
	WrittenCounter *uint32
}

func (g LocalGateway) Read(addr uint64, p []byte) error {
	return g.IO.PSPRead(uint32(addr), p)
}

func (g LocalGateway) Write(addr uint64, p []byte) error {
	if err := g.IO.PSPWrite(uint32(addr), p); err != nil {
		return err
	}

	if g.WrittenCounter != nil {
		*g.WrittenCounter += uint32(len(p))
	}

	return nil
}

// GatewaySet resolves a descriptor's memory-type code to a concrete Gateway.
type GatewaySet struct {
	System Gateway
	SB     Gateway
	Local  Gateway
}

// NewGatewaySet builds the standard gateway set for a device instance.
func NewGatewaySet(io IOManager, lsbuf *lsb.Buffer, writtenCounter *uint32) GatewaySet {
	return GatewaySet{
		System: SystemGateway{},
		SB:     SBGateway{LSB: lsbuf},
		Local:  LocalGateway{IO: io, WrittenCounter: writtenCounter},
	}
}

// ResetWrittenCounter zeroes the running cbWrittenLast counter. NewContext
// calls it for every transfer context it creates, so for context-driven
// engines the count covers the request currently in flight. Exported so
// engines that drive a gateway directly, without going through a Context,
// can choose their own reset point: the ZLIB decompressor resets it once
// when a message starts, so the count covers the whole message's output.
func (g GatewaySet) ResetWrittenCounter() {
	if lg, ok := g.Local.(LocalGateway); ok && lg.WrittenCounter != nil {
		*lg.WrittenCounter = 0
	}
}

// Resolve returns the Gateway for the given memory-type code.
func (g GatewaySet) Resolve(mt descriptor.MemType) (Gateway, error) {
	switch mt {
	case descriptor.MemSystem:
		return g.System, nil
	case descriptor.MemSB:
		return g.SB, nil
	case descriptor.MemLocal:
		return g.Local, nil
	default:
		return nil, fmt.Errorf("xfer: unknown memory type %d", mt)
	}
}
