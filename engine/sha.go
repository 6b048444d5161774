package engine

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/hnj2/pspemu-ccp/ccperr"
	"github.com/hnj2/pspemu-ccp/descriptor"
	"github.com/hnj2/pspemu-ccp/xfer"
)

const shaChunk = 4096

// ShaSession carries a multi-part digest across descriptors belonging to
// one message. The init flag on the descriptor is advisory only: a session
// is started whenever none exists, regardless of init.
type ShaSession struct {
	Type uint8
	Hash hash.Hash
}

func shaDigestSize(t uint8) (int, error) {
	switch t {
	case descriptor.SHATypeSHA256:
		return sha256.Size, nil
	case descriptor.SHATypeSHA384:
		return sha512.Size384, nil
	default:
		return 0, fmt.Errorf("%w: sha type %d", ccperr.ErrNotImplemented, t)
	}
}

func newSHAHash(t uint8) hash.Hash {
	if t == descriptor.SHATypeSHA384 {
		return sha512.New384()
	}

	return sha256.New()
}

func dispatchSHA(h Host, d descriptor.Descriptor, gw xfer.GatewaySet) error {
	shaType := d.SHAType()

	digestSize, err := shaDigestSize(shaType)
	if err != nil {
		return err
	}

	sess := h.SHASession()
	if sess == nil {
		sess = &ShaSession{Type: shaType, Hash: newSHAHash(shaType)}
	}

	ctx, err := xfer.NewContext(gw, d, true, digestSize, false)
	if err != nil {
		h.SetSHASession(nil)
		return err
	}

	buf := make([]byte, shaChunk)

	if err := chunked(int(d.CBSrc), shaChunk, func(n int) error {
		if err := ctx.Read(buf[:n], nil); err != nil {
			return fmt.Errorf("%w: sha read: %v", ccperr.ErrEngineError, err)
		}

		sess.Hash.Write(buf[:n])
		return nil
	}); err != nil {
		h.SetSHASession(nil)
		return err
	}

	if !d.EOM {
		h.SetSHASession(sess)
		return nil
	}

	digest := sess.Hash.Sum(nil)
	reverseBytes(digest)

	if err := ctx.Write(digest, nil); err != nil {
		h.SetSHASession(nil)
		return fmt.Errorf("%w: sha digest write: %v", ccperr.ErrEngineError, err)
	}

	h.SetSHASession(nil)
	return nil
}

func reverseBytes(p []byte) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
