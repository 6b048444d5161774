package engine

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/xfer"
)

const zlibChunk = 4096

// ZlibSession carries a multi-part inflate across descriptors belonging to
// one message. The standard library only exposes a pull-based Reader, not
// a step function that can be fed input incrementally like the original
// device's raw inflate() calls; instead every Process call re-decodes from
// a fresh Reader over all compressed bytes seen so far and skips the
// output already flushed. This is O(total²) in the message size, which is
// acceptable here since bit-exact timing is explicitly not a goal.
type ZlibSession struct {
	Compressed []byte
	Flushed    int
	DstAddr    uint64
	DstMemType descriptor.MemType
}

func dispatchZlib(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	sess := h.ZlibSession()
	if sess == nil {
		sess = &ZlibSession{DstAddr: d.DstAddr, DstMemType: d.DstMemType}
		gw.ResetWrittenCounter()
	}

	srcGw, err := gw.Resolve(d.SrcMemType)
	if err != nil {
		return err
	}

	dstGw, err := gw.Resolve(sess.DstMemType)
	if err != nil {
		return err
	}

	if err := readInto(srcGw, d.SrcAddr, int(d.CBSrc), func(chunk []byte) {
		sess.Compressed = append(sess.Compressed, chunk...)
	}); err != nil {
		h.SetZlibSession(nil)
		return fmt.Errorf("%w: zlib source read: %v", ccperr.ErrEngineError, err)
	}

	needMore, err := zlibDrain(sess, dstGw)
	if err != nil {
		h.SetZlibSession(nil)
		return fmt.Errorf("%w: zlib inflate: %v", ccperr.ErrEngineError, err)
	}

	if needMore && d.EOM {
		h.SetZlibSession(nil)
		return fmt.Errorf("%w: zlib stream incomplete at eom", ccperr.ErrEngineError)
	}

	if d.EOM {
		h.SetZlibSession(nil)
	} else {
		h.SetZlibSession(sess)
	}

	return nil
}

// zlibDrain re-decodes the session's accumulated input, skips output
// already flushed in prior calls, and flushes any newly available output
// to the destination. It reports needMore=true when the stream is well
// formed so far but doesn't yet contain enough data to make progress.
func zlibDrain(sess *ZlibSession, dst xfer.Gateway) (needMore bool, err error) {
	zr, err := zlib.NewReader(bytes.NewReader(sess.Compressed))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return true, nil
		}

		return false, err
	}
	defer zr.Close()

	if _, err := io.CopyN(io.Discard, zr, int64(sess.Flushed)); err != nil {
		return false, fmt.Errorf("replaying already-flushed output: %w", err)
	}

	out := make([]byte, zlibChunk)

	for {
		n, rerr := zr.Read(out)
		if n > 0 {
			if err := dst.Write(sess.DstAddr, out[:n]); err != nil {
				return false, err
			}

			sess.DstAddr += uint64(n)
			sess.Flushed += n
		}

		if rerr == io.EOF {
			return false, nil
		}

		if rerr != nil {
			if errors.Is(rerr, io.ErrUnexpectedEOF) {
				return true, nil
			}

			return false, rerr
		}

		if n == 0 {
			return true, nil
		}
	}
}

func readInto(gw xfer.Gateway, addr uint64, n int, fn func(chunk []byte)) error {
	buf := make([]byte, zlibChunk)

	return chunked(n, zlibChunk, func(c int) error {
		if err := gw.Read(addr, buf[:c]); err != nil {
			return err
		}

		fn(buf[:c])
		addr += uint64(c)

		return nil
	})
}
