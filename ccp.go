// Package ccp emulates the AMD PSP CCPv5 cryptographic co-processor: a
// memory-mapped command-queue engine with PASSTHROUGH, SHA, AES, RSA, ECC
// and ZLIB decompression back-ends.
package ccp

import (
	"fmt"
	"log/slog"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/engine"
)

// IOManager is the external collaborator that owns PSP-visible address
// space routing.
type IOManager interface {
	PSPRead(addr uint32, p []byte) error
	PSPWrite(addr uint32, p []byte) error
}

// IRQLine is the external collaborator that owns the shared interrupt
// line the device asserts and deasserts.
type IRQLine interface {
	SetIRQ(prio, devID int, assert bool)
}

// Tracer is the external best-effort logging collaborator. It is an alias
// of ccperr.Tracer so callers never need to import ccperr directly just to
// implement one.
type Tracer = ccperr.Tracer

// Severity is re-exported from ccperr for the same reason.
type Severity = ccperr.Severity

const (
	SeverityInfo  = ccperr.SeverityInfo
	SeverityWarn  = ccperr.SeverityWarn
	SeverityError = ccperr.SeverityError
	SeverityFatal = ccperr.SeverityFatal
)

// AESProxy forwards protected-key AES operations to real hardware.
type AESProxy = engine.AESProxy

// Config carries the device's external collaborators. IOManager is
// required; the rest are optional and degrade gracefully when absent.
type Config struct {
	IOManager IOManager
	IRQLine   IRQLine
	Tracer    Tracer
	AESProxy  AESProxy
}

// slogTracer adapts log/slog into a Tracer, the device's default when
// Config.Tracer is nil.
type slogTracer struct {
	log *slog.Logger
}

func (t slogTracer) Tracef(sev ccperr.Severity, origin, format string, args ...any) {
	msg := origin + ": " + fmt.Sprintf(format, args...)

	switch sev {
	case ccperr.SeverityInfo:
		t.log.Info(msg)
	case ccperr.SeverityWarn:
		t.log.Warn(msg)
	default:
		// FATAL is logged loudly, not fatal to the process: this core is
		// embedded in a larger emulator and must survive firmware bugs
		// in the guest it emulates.
		t.log.Error(msg)
	}
}

type noopIRQ struct{}

func (noopIRQ) SetIRQ(int, int, bool) {}
