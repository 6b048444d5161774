package engine

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/lsb"
	"github.com/hnj2/pspemu-ccp/xfer"
)

const (
	aesChunk        = 512
	protectedKeyCap = 0xA0

	// aesProxySizeCap bounds protected-key requests forwarded whole to the
	// proxy; the real hardware path exists for unwrapping small wrapped
	// keys (the IKEK), not for bulk encryption under a protected key.
	aesProxySizeCap = 4096
)

// AesSession carries cipher state across descriptors belonging to one
// message. Block is reused for every chunk; CBC additionally carries the
// running IV inside the cipher.BlockMode, which is nil for ECB since ECB
// has no state beyond the key.
type AesSession struct {
	Block   cipher.Block
	Mode    uint8
	Encrypt bool
	CBC     cipher.BlockMode
}

func aesKeySize(t uint8) (int, error) {
	switch t {
	case descriptor.AESType128:
		return 16, nil
	case descriptor.AESType256:
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: aes type %d", ccperr.ErrNotImplemented, t)
	}
}

func dispatchAES(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	mode := d.AESMode()
	if mode != descriptor.AESModeECB && mode != descriptor.AESModeCBC {
		return fmt.Errorf("%w: aes mode %d", ccperr.ErrNotImplemented, mode)
	}

	if d.AESSize() != 0 {
		return fmt.Errorf("%w: aes size field %d", ccperr.ErrNotImplemented, d.AESSize())
	}

	if int(d.CBSrc)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: aes request length %d not block-aligned", ccperr.ErrEngineError, d.CBSrc)
	}

	protected := d.KeyMemType == descriptor.MemSB && d.KeyAddr < protectedKeyCap
	if protected {
		if proxy := h.AESProxy(); proxy != nil {
			return dispatchAESProxy(h, d, gw, proxy)
		}

		trace(h, ccperr.SeverityFatal, "aes: protected key at LSB offset %#x requested with no proxy configured; output will be garbage", d.KeyAddr)
	}

	sess := h.AESSession()
	if sess == nil {
		var err error
		sess, err = newAESSession(h, d, gw, mode, protected)
		if err != nil {
			return err
		}
	}

	ctx, err := xfer.NewContext(gw, d, false, int(d.CBSrc), false)
	if err != nil {
		h.SetAESSession(nil)
		return err
	}

	in := make([]byte, aesChunk)
	out := make([]byte, aesChunk)

	if err := chunked(int(d.CBSrc), aesChunk, func(n int) error {
		if err := ctx.Read(in[:n], nil); err != nil {
			return fmt.Errorf("%w: aes read: %v", ccperr.ErrEngineError, err)
		}

		cryptAES(sess, out[:n], in[:n])

		if err := ctx.Write(out[:n], nil); err != nil {
			return fmt.Errorf("%w: aes write: %v", ccperr.ErrEngineError, err)
		}

		return nil
	}); err != nil {
		h.SetAESSession(nil)
		return err
	}

	if d.EOM {
		h.SetAESSession(nil)
	} else {
		h.SetAESSession(sess)
	}

	return nil
}

// dispatchAESProxy forwards a protected-key request to real hardware
// whole, rather than through the session/chunking machinery: the emulator
// never sees the key, so it cannot drive the cipher itself.
func dispatchAESProxy(h Host, d descriptor.Descriptor, gw xfer.GatewaySet, proxy AESProxy) error {
	if d.CBSrc > aesProxySizeCap {
		return fmt.Errorf("%w: aes proxy request of %d bytes exceeds %d byte cap", ccperr.ErrEngineError, d.CBSrc, aesProxySizeCap)
	}

	// The proxy IV is always one AES block regardless of key size, and
	// unlike the local-session IV it is passed on without byte reversal.
	var iv [aes.BlockSize]byte
	if d.AESMode() == descriptor.AESModeCBC {
		if err := h.LSB().Read(int(d.SrcLSBCtx)*lsb.SlotSize, iv[:]); err != nil {
			return fmt.Errorf("%w: aes proxy iv read: %v", ccperr.ErrEngineError, err)
		}
	}

	srcGw, err := gw.Resolve(d.SrcMemType)
	if err != nil {
		return err
	}

	src := make([]byte, d.CBSrc)
	if err := srcGw.Read(d.SrcAddr, src); err != nil {
		return fmt.Errorf("%w: aes proxy src read: %v", ccperr.ErrEngineError, err)
	}

	out := make([]byte, d.CBSrc)

	dw0 := binary.LittleEndian.Uint32(d.Raw[0:4])

	status, err := proxy.AESDo(dw0, d.CBSrc, src, uint32(d.KeyAddr), iv[:], out)
	if err != nil {
		return fmt.Errorf("%w: aes proxy: %v", ccperr.ErrProxyError, err)
	}

	if status != 0 {
		return fmt.Errorf("%w: aes proxy returned status %d", ccperr.ErrProxyError, status)
	}

	ctx, err := xfer.NewContext(gw, d, false, int(d.CBSrc), false)
	if err != nil {
		return err
	}

	if err := ctx.Write(out, nil); err != nil {
		return fmt.Errorf("%w: aes proxy write: %v", ccperr.ErrEngineError, err)
	}

	return nil
}

func cryptAES(sess *AesSession, dst, src []byte) {
	if sess.Mode == descriptor.AESModeCBC {
		sess.CBC.CryptBlocks(dst, src)
		return
	}

	for off := 0; off < len(src); off += aes.BlockSize {
		blk := dst[off : off+aes.BlockSize]
		if sess.Encrypt {
			sess.Block.Encrypt(blk, src[off:off+aes.BlockSize])
		} else {
			sess.Block.Decrypt(blk, src[off:off+aes.BlockSize])
		}
	}
}

func newAESSession(h Host, d descriptor.Descriptor, gw xfer.GatewaySet, mode uint8, protected bool) (*AesSession, error) {
	encrypt := d.AESEncrypt()

	keySize, err := aesKeySize(d.AESType())
	if err != nil {
		return nil, err
	}

	var key []byte
	var iv [aes.BlockSize]byte

	if mode == descriptor.AESModeCBC {
		if err := h.LSB().Read(int(d.SrcLSBCtx)*lsb.SlotSize, iv[:]); err != nil {
			return nil, fmt.Errorf("%w: aes iv read: %v", ccperr.ErrEngineError, err)
		}

		reverseBytes(iv[:])
	}

	if protected {
		// No proxy configured: the emulator has no access to the real
		// key. Proceed with zeroes so the session still runs to
		// completion; the caller has already logged this at FATAL.
		key = make([]byte, keySize)
	} else {
		keyGw, err := gw.Resolve(d.KeyMemType)
		if err != nil {
			return nil, err
		}

		key = make([]byte, keySize)
		if err := keyGw.Read(d.KeyAddr, key); err != nil {
			return nil, fmt.Errorf("%w: aes key read: %v", ccperr.ErrEngineError, err)
		}

		reverseBytes(key)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes key setup: %v", ccperr.ErrEngineError, err)
	}

	sess := &AesSession{Block: block, Mode: mode, Encrypt: encrypt}

	if mode == descriptor.AESModeCBC {
		if encrypt {
			sess.CBC = cipher.NewCBCEncrypter(block, iv[:])
		} else {
			sess.CBC = cipher.NewCBCDecrypter(block, iv[:])
		}
	}

	return sess, nil
}
