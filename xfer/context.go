package xfer

import (
	"fmt"

	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/lsb"
)

// Context is a stateful cursor pairing a source and destination gateway; it
// is transient, owned by a single engine dispatch call.
type Context struct {
	src     Gateway
	srcAddr uint64
	readLeft int

	dst      Gateway
	dstAddr  uint64
	writeLeft int

	// reverse causes Write to walk the destination address downward,
	// one byte at a time, producing a byte-reversed copy at the
	// destination.
	reverse bool
}

// NewContext initializes a transfer context from a decoded descriptor.
//
// For the SHA engine (sha=true) the destination is always the LSB slot
// identified by the descriptor's source-side LSB context id, regardless of
// the descriptor's (unused, in that case) dst fields. For every other
// engine the destination comes from the descriptor's dst fields.
//
// When reverse is true the destination address is pre-biased by writeLen,
// matching the original device's write-in-reverse semantics: Write
// pre-decrements the destination address before each single byte it
// writes.
func NewContext(gw GatewaySet, d descriptor.Descriptor, sha bool, writeLen int, reverse bool) (*Context, error) {
	src, err := gw.Resolve(d.SrcMemType)
	if err != nil {
		return nil, err
	}

	gw.ResetWrittenCounter()

	c := &Context{
		src:       src,
		srcAddr:   d.SrcAddr,
		readLeft:  int(d.CBSrc),
		writeLeft: writeLen,
		reverse:   reverse,
	}

	if sha {
		if int(d.SrcLSBCtx) >= lsb.NumSlots {
			return nil, fmt.Errorf("xfer: sha context slot %d out of range", d.SrcLSBCtx)
		}

		c.dst = gw.SB
		c.dstAddr = uint64(int(d.SrcLSBCtx) * lsb.SlotSize)
	} else {
		dst, err := gw.Resolve(d.DstMemType)
		if err != nil {
			return nil, err
		}

		c.dst = dst
		c.dstAddr = d.DstAddr
	}

	if c.reverse {
		c.dstAddr += uint64(c.writeLeft)
	}

	return c, nil
}

// Read reads up to len(p) bytes, or the remaining read count if smaller,
// advancing the source cursor. If actual is non-nil, a short read (less
// than len(p) available) is accepted and the amount actually read is
// stored there; otherwise a short read is an error.
func (c *Context) Read(p []byte, actual *int) error {
	n := len(p)
	if n > c.readLeft {
		n = c.readLeft
	}

	if n == 0 || (actual == nil && n != len(p)) {
		return fmt.Errorf("xfer: read request exceeds remaining bytes")
	}

	if err := c.src.Read(c.srcAddr, p[:n]); err != nil {
		return err
	}

	c.readLeft -= n
	c.srcAddr += uint64(n)

	if actual != nil {
		*actual = n
	}

	return nil
}

// Write writes up to len(p) bytes, or the remaining write count if
// smaller, advancing the destination cursor. In reverse mode the bytes are
// written one at a time at successively lower addresses, so that the byte
// order observed at the destination is reversed relative to p.
func (c *Context) Write(p []byte, actual *int) error {
	n := len(p)
	if n > c.writeLeft {
		n = c.writeLeft
	}

	if n == 0 || (actual == nil && n != len(p)) {
		return fmt.Errorf("xfer: write request exceeds remaining capacity")
	}

	if c.reverse {
		for i := 0; i < n; i++ {
			c.dstAddr--
			if err := c.dst.Write(c.dstAddr, p[i:i+1]); err != nil {
				return err
			}
		}
	} else {
		if err := c.dst.Write(c.dstAddr, p[:n]); err != nil {
			return err
		}

		c.dstAddr += uint64(n)
	}

	c.writeLeft -= n

	if actual != nil {
		*actual = n
	}

	return nil
}

// ReadLeft returns the number of bytes still available to read.
func (c *Context) ReadLeft() int { return c.readLeft }

// WriteLeft returns the number of bytes still available to write.
func (c *Context) WriteLeft() int { return c.writeLeft }
