// Package wire encodes and decodes Romam's Hello and LSA frames: a
// length-prefixed, magic-versioned binary format carried over the
// multicast transport.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/puyanguvic/romam"
)

const (
	// magic identifies a Romam frame. ASCII "ROMA".
	magic uint32 = 0x524f4d41

	// version is the only wire version this package understands.
	version uint16 = 1

	headerLen = 12 // magic(4) + version(2) + type(2) + length(4)

	helloPayloadLen = 8  // originator(4) + source IPv4(4)
	lsaFixedLen     = 10 // originator(4) + seq(4) + count_links(2)
	linkLen         = 8  // neighbor(4) + cost(4)
	prefixLen       = 8  // network(4) + prefix_len(1) + reserved(3)
)

// A frameType identifies the payload that follows a Header.
type frameType uint16

// Possible frame types.
const (
	typeHello frameType = 1
	typeLSA   frameType = 2
)

// Sentinel errors distinguishing decode failure modes, per the failure
// contract in spec §4.1. Frames that fail to decode are discarded and
// logged by the caller; they never terminate the receiver.
var (
	ErrShortHeader = errors.New("wire: short header")
	ErrBadMagic    = errors.New("wire: bad magic")
	ErrBadVersion  = errors.New("wire: bad version")
	ErrBadLength   = errors.New("wire: bad length")
	ErrBadPayload  = errors.New("wire: bad payload")
	ErrUnknownType = errors.New("wire: unknown type")
)

// A Hello is a Romam Hello frame. Source is advisory only; the
// authoritative source address is the one reported by the transport.
type Hello struct {
	Originator romam.RouterID
	Source     [4]byte
}

// A Link is one LinkAdvertisement inside an LSA.
type Link struct {
	Neighbor romam.RouterID
	Cost     uint32
}

// An LSA is a Romam Link-State Advertisement.
type LSA struct {
	Originator romam.RouterID
	Seq        uint32
	Links      []Link
	Prefixes   []romam.Prefix
}

// EncodeHello serializes h into a complete frame (header + payload).
// Encode is total: it never fails for a well-formed Hello value.
func EncodeHello(h Hello) []byte {
	b := make([]byte, headerLen+helloPayloadLen)
	putHeader(b, typeHello, helloPayloadLen)

	p := b[headerLen:]
	copy(p[0:4], h.Originator[:])
	copy(p[4:8], h.Source[:])
	return b
}

// EncodeLSA serializes l into a complete frame (header + payload).
// Encode is total for any LSA whose links all carry cost ≥ 1 and whose
// prefix lengths are all ≤ 32; the caller is responsible for the
// invariant since both are established at LSA construction time. A
// zero-cost link is rejected with a panic rather than silently
// producing a frame Decode would itself refuse.
func EncodeLSA(l LSA) []byte {
	plen := lsaFixedLen + linkLen*len(l.Links) + 2 + prefixLen*len(l.Prefixes)
	b := make([]byte, headerLen+plen)
	putHeader(b, typeLSA, plen)

	p := b[headerLen:]
	copy(p[0:4], l.Originator[:])
	binary.BigEndian.PutUint32(p[4:8], l.Seq)
	binary.BigEndian.PutUint16(p[8:10], uint16(len(l.Links)))

	off := lsaFixedLen
	for _, link := range l.Links {
		if link.Cost == 0 {
			panic(fmt.Sprintf("wire: EncodeLSA: link to %s has cost 0", link.Neighbor))
		}
		copy(p[off:off+4], link.Neighbor[:])
		binary.BigEndian.PutUint32(p[off+4:off+8], link.Cost)
		off += linkLen
	}

	binary.BigEndian.PutUint16(p[off:off+2], uint16(len(l.Prefixes)))
	off += 2
	for _, pfx := range l.Prefixes {
		copy(p[off:off+4], pfx.Network[:])
		p[off+4] = pfx.PrefixLen
		// p[off+5 : off+8] is reserved, left zeroed.
		off += prefixLen
	}

	return b
}

func putHeader(b []byte, t frameType, payloadLen int) {
	binary.BigEndian.PutUint32(b[0:4], magic)
	binary.BigEndian.PutUint16(b[4:6], version)
	binary.BigEndian.PutUint16(b[6:8], uint16(t))
	binary.BigEndian.PutUint32(b[8:12], uint32(payloadLen))
}

// A Frame is either a *Hello or an *LSA, returned by Decode.
type Frame interface {
	isFrame()
}

func (*Hello) isFrame() {}
func (*LSA) isFrame()   {}

// Decode parses a complete Romam frame from b. Malformed frames are
// reported as one of the Err* sentinels above and never panic.
func Decode(b []byte) (Frame, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}

	if got := binary.BigEndian.Uint32(b[0:4]); got != magic {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, got)
	}
	if got := binary.BigEndian.Uint16(b[4:6]); got != version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, got)
	}

	t := frameType(binary.BigEndian.Uint16(b[6:8]))
	plen := binary.BigEndian.Uint32(b[8:12])
	if uint32(len(b)-headerLen) != plen {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrBadLength, plen, len(b)-headerLen)
	}

	p := b[headerLen:]
	switch t {
	case typeHello:
		return decodeHello(p)
	case typeLSA:
		return decodeLSA(p)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}

func decodeHello(p []byte) (*Hello, error) {
	if len(p) != helloPayloadLen {
		return nil, fmt.Errorf("%w: hello length %d", ErrBadPayload, len(p))
	}

	var h Hello
	copy(h.Originator[:], p[0:4])
	copy(h.Source[:], p[4:8])
	return &h, nil
}

func decodeLSA(p []byte) (*LSA, error) {
	if len(p) < lsaFixedLen {
		return nil, fmt.Errorf("%w: lsa too short for fixed fields", ErrBadPayload)
	}

	var l LSA
	copy(l.Originator[:], p[0:4])
	l.Seq = binary.BigEndian.Uint32(p[4:8])
	nlinks := int(binary.BigEndian.Uint16(p[8:10]))

	off := lsaFixedLen
	need := off + linkLen*nlinks + 2
	if len(p) < need {
		return nil, fmt.Errorf("%w: lsa too short for %d links", ErrBadPayload, nlinks)
	}

	if nlinks > 0 {
		l.Links = make([]Link, 0, nlinks)
	}
	for i := 0; i < nlinks; i++ {
		var link Link
		copy(link.Neighbor[:], p[off:off+4])
		link.Cost = binary.BigEndian.Uint32(p[off+4 : off+8])
		if link.Cost == 0 {
			return nil, fmt.Errorf("%w: link cost must be >= 1", ErrBadPayload)
		}
		l.Links = append(l.Links, link)
		off += linkLen
	}

	nprefixes := int(binary.BigEndian.Uint16(p[off : off+2]))
	off += 2

	if len(p) != off+prefixLen*nprefixes {
		return nil, fmt.Errorf("%w: lsa length mismatch for %d prefixes", ErrBadPayload, nprefixes)
	}

	if nprefixes > 0 {
		l.Prefixes = make([]romam.Prefix, 0, nprefixes)
	}
	for i := 0; i < nprefixes; i++ {
		var pfx romam.Prefix
		copy(pfx.Network[:], p[off:off+4])
		pfx.PrefixLen = p[off+4]
		if pfx.PrefixLen > 32 {
			return nil, fmt.Errorf("%w: prefix length %d out of range", ErrBadPayload, pfx.PrefixLen)
		}
		l.Prefixes = append(l.Prefixes, pfx)
		off += prefixLen
	}

	return &l, nil
}
