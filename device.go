package ccp

import (
	"log/slog"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/engine"
	"github.com/hnj2/pspemu-ccp/lsb"
	"github.com/hnj2/pspemu-ccp/mmio"
	"github.com/hnj2/pspemu-ccp/queue"
	"github.com/hnj2/pspemu-ccp/xfer"
)

// NumQueues is the number of independent hardware queues the device
// exposes; the model requires exactly two.
const NumQueues = 2

// irqDevID is the device id the CCP identifies itself with on the shared
// interrupt line, matching the original device's idDev=0x15.
const irqDevID = 0x15

// Device is one instance of the CCPv5 core: two hardware queues, the LSB,
// and the per-message session state the SHA/AES/ZLIB engines share across
// descriptors. The device owns all of its mutable state; it is driven
// synchronously from MMIO accesses and holds no locks.
type Device struct {
	cfg Config

	lsb           lsb.Buffer
	cbWrittenLast uint32

	queues [NumQueues]*queue.Queue
	gw     xfer.GatewaySet
	bus    *mmio.Bus

	shaSession  *engine.ShaSession
	aesSession  *engine.AesSession
	zlibSession *engine.ZlibSession
}

// New constructs a device wired to the given collaborators. A nil
// Config.IRQLine is replaced by a no-op sink; a nil Config.Tracer is
// replaced by a slog-backed default.
func New(cfg Config) *Device {
	if cfg.IRQLine == nil {
		cfg.IRQLine = noopIRQ{}
	}

	if cfg.Tracer == nil {
		cfg.Tracer = slogTracer{log: slog.Default()}
	}

	d := &Device{cfg: cfg}

	d.gw = xfer.NewGatewaySet(cfg.IOManager, &d.lsb, &d.cbWrittenLast)

	for i := range d.queues {
		d.queues[i] = queue.New(d, d, d, irqDevID)
	}

	d.bus = mmio.New(d, &d.cbWrittenLast, slog.Default())

	return d
}

// Bus returns the device's MMIO register bus.
func (d *Device) Bus() *mmio.Bus { return d.bus }

// CBWrittenLast returns the running count of bytes written into PSP-local
// memory since the last transfer, mirroring the original's cbWrittenLast.
func (d *Device) CBWrittenLast() uint32 { return d.cbWrittenLast }

// LSB returns the device's Local Storage Buffer.
func (d *Device) LSB() *lsb.Buffer { return &d.lsb }

// queue.Memory
func (d *Device) PSPRead(addr uint32, p []byte) error {
	return d.cfg.IOManager.PSPRead(addr, p)
}

// queue.IRQLine
func (d *Device) SetIRQ(prio, devID int, assert bool) {
	d.cfg.IRQLine.SetIRQ(prio, devID, assert)
}

// queue.Processor
func (d *Device) Process(desc descriptor.Descriptor) error {
	err := engine.Dispatch(d, desc, d.gw)
	if err != nil {
		d.cfg.Tracer.Tracef(ccperr.ClassifySeverity(err), ccperr.Origin, "%s request failed: %v", desc.Engine, err)
	}

	return err
}

// engine.Host

func (d *Device) SHASession() *engine.ShaSession      { return d.shaSession }
func (d *Device) SetSHASession(s *engine.ShaSession)  { d.shaSession = s }
func (d *Device) AESSession() *engine.AesSession      { return d.aesSession }
func (d *Device) SetAESSession(s *engine.AesSession)  { d.aesSession = s }
func (d *Device) ZlibSession() *engine.ZlibSession    { return d.zlibSession }
func (d *Device) SetZlibSession(s *engine.ZlibSession) { d.zlibSession = s }
func (d *Device) Tracer() ccperr.Tracer               { return d.cfg.Tracer }
func (d *Device) AESProxy() engine.AESProxy           { return d.cfg.AESProxy }

// mmio.Queues

func (d *Device) Count() int { return len(d.queues) }

func (d *Device) Control(i int) uint32      { return d.queues[i].Control }
func (d *Device) SetControl(i int, v uint32) { d.queues[i].SetControl(v) }
func (d *Device) Head(i int) uint32         { return d.queues[i].Head }
func (d *Device) SetHead(i int, v uint32)   { d.queues[i].Head = v }
func (d *Device) Tail(i int) uint32         { return d.queues[i].Tail }
func (d *Device) SetTail(i int, v uint32)   { d.queues[i].Tail = v }
func (d *Device) Status(i int) uint32       { return d.queues[i].Status }
func (d *Device) SetStatus(i int, v uint32) { d.queues[i].Status = v }
func (d *Device) IEN(i int) uint32          { return d.queues[i].IEN }
func (d *Device) SetIEN(i int, v uint32)    { d.queues[i].IEN = v }
func (d *Device) ISTS(i int) uint32         { return d.queues[i].ISTS }
func (d *Device) AckISTS(i int, v uint32)   { d.queues[i].AckISTS(v) }
func (d *Device) DrainMaybe(i int)          { d.queues[i].DrainMaybe() }
