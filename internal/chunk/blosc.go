package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrCorrupt is returned when a chunk cannot be decompressed or does not
	// hold a whole number of grids.
	ErrCorrupt = errors.New("corrupt chunk")

	// ErrUnsupported is returned for frames using a codec or filter this
	// package cannot decode. It wraps ErrCorrupt so callers only need one check.
	ErrUnsupported = fmt.Errorf("%w: unsupported blosc feature", ErrCorrupt)
)

const (
	headerSize = 16

	flagShuffle    = 0x01
	flagMemcpy     = 0x02
	flagBitShuffle = 0x04
	flagDelta      = 0x08
	flagDontSplit  = 0x10

	maxSplits     = 16
	minBufferSize = 128

	// maxFrameBytes caps the allocation a header can request.
	maxFrameBytes = 1 << 30
)

// header is the fixed 16-byte prefix of a Blosc v1 frame.
type header struct {
	version   uint8
	versionLZ uint8
	flags     uint8
	typesize  int
	nbytes    int
	blocksize int
	ctbytes   int
}

func (h header) codec() Codec { return Codec(h.flags >> 5) }

func (h header) nblocks() int {
	if h.blocksize == 0 {
		return 0
	}
	n := h.nbytes / h.blocksize
	if h.nbytes%h.blocksize != 0 {
		n++
	}
	return n
}

func parseHeader(src []byte) (header, error) {
	if len(src) < headerSize {
		return header{}, fmt.Errorf("%w: frame shorter than header (%d bytes)", ErrCorrupt, len(src))
	}
	h := header{
		version:   src[0],
		versionLZ: src[1],
		flags:     src[2],
		typesize:  int(src[3]),
		nbytes:    int(binary.LittleEndian.Uint32(src[4:8])),
		blocksize: int(binary.LittleEndian.Uint32(src[8:12])),
		ctbytes:   int(binary.LittleEndian.Uint32(src[12:16])),
	}
	if h.version == 0 || h.version > 2 {
		return header{}, fmt.Errorf("%w: blosc version %d", ErrUnsupported, h.version)
	}
	if h.typesize == 0 {
		return header{}, fmt.Errorf("%w: zero typesize", ErrCorrupt)
	}
	if h.ctbytes > len(src) {
		return header{}, fmt.Errorf("%w: truncated frame (%d of %d bytes)", ErrCorrupt, len(src), h.ctbytes)
	}
	if h.nbytes > maxFrameBytes {
		return header{}, fmt.Errorf("%w: frame claims %d bytes", ErrCorrupt, h.nbytes)
	}
	if h.nbytes > 0 && h.flags&flagMemcpy == 0 && (h.blocksize <= 0 || h.blocksize > h.nbytes) {
		return header{}, fmt.Errorf("%w: blocksize %d for %d bytes", ErrCorrupt, h.blocksize, h.nbytes)
	}
	return h, nil
}

// Decompress expands a Blosc v1 frame into its original bytes.
func Decompress(src []byte) ([]byte, error) {
	h, err := parseHeader(src)
	if err != nil {
		return nil, err
	}
	if h.nbytes == 0 {
		return []byte{}, nil
	}

	if h.flags&flagMemcpy != 0 {
		end := headerSize + h.nbytes
		if end > len(src) {
			return nil, fmt.Errorf("%w: stored frame truncated", ErrCorrupt)
		}
		out := make([]byte, h.nbytes)
		copy(out, src[headerSize:end])
		return out, nil
	}

	if h.flags&(flagBitShuffle|flagDelta) != 0 {
		return nil, fmt.Errorf("%w: filter flags %#x", ErrUnsupported, h.flags)
	}
	dec, err := decoderFor(h.codec())
	if err != nil {
		return nil, err
	}

	nblocks := h.nblocks()
	starts := headerSize + 4*nblocks
	if starts > len(src) {
		return nil, fmt.Errorf("%w: block table truncated", ErrCorrupt)
	}

	out := make([]byte, h.nbytes)
	tmp := make([]byte, h.blocksize)
	for i := 0; i < nblocks; i++ {
		offset := int(binary.LittleEndian.Uint32(src[headerSize+4*i:]))
		if offset < starts || offset >= len(src) {
			return nil, fmt.Errorf("%w: block %d offset %d out of range", ErrCorrupt, i, offset)
		}
		bsize := h.blocksize
		leftover := false
		if i == nblocks-1 && h.nbytes%h.blocksize != 0 {
			bsize = h.nbytes % h.blocksize
			leftover = true
		}
		dst := out[i*h.blocksize : i*h.blocksize+bsize]
		if err := decodeBlock(h, dec, src[offset:], dst, tmp[:bsize], leftover); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return out, nil
}

func splitCount(h header, bsize int, leftover bool) int {
	if h.flags&flagDontSplit == 0 && h.typesize <= maxSplits && bsize/h.typesize >= minBufferSize && !leftover {
		return h.typesize
	}
	return 1
}

func decodeBlock(h header, dec decodeFunc, src, dst, tmp []byte, leftover bool) error {
	shuffled := h.flags&flagShuffle != 0 && h.typesize > 1
	target := dst
	if shuffled {
		target = tmp
	}

	nsplits := splitCount(h, len(dst), leftover)
	neblock := len(dst) / nsplits
	pos := 0
	for j := 0; j < nsplits; j++ {
		if pos+4 > len(src) {
			return fmt.Errorf("%w: stream header truncated", ErrCorrupt)
		}
		cbytes := int(binary.LittleEndian.Uint32(src[pos:]))
		pos += 4
		if cbytes < 0 || pos+cbytes > len(src) {
			return fmt.Errorf("%w: stream of %d bytes truncated", ErrCorrupt, cbytes)
		}
		part := target[j*neblock : (j+1)*neblock]
		if cbytes == neblock {
			copy(part, src[pos:pos+cbytes])
		} else {
			n, err := dec(src[pos:pos+cbytes], part)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			if n != neblock {
				return fmt.Errorf("%w: stream expanded to %d bytes, want %d", ErrCorrupt, n, neblock)
			}
		}
		pos += cbytes
	}

	if shuffled {
		unshuffle(h.typesize, tmp, dst)
	}
	return nil
}

// unshuffle reverses the byte-shuffle filter: byte j of element i was stored
// at j*nelem+i. Trailing bytes that do not form a whole element are verbatim.
func unshuffle(typesize int, src, dst []byte) {
	nelem := len(src) / typesize
	for i := 0; i < nelem; i++ {
		for j := 0; j < typesize; j++ {
			dst[i*typesize+j] = src[j*nelem+i]
		}
	}
	rem := nelem * typesize
	copy(dst[rem:], src[rem:])
}

func shuffle(typesize int, src, dst []byte) {
	nelem := len(src) / typesize
	for i := 0; i < nelem; i++ {
		for j := 0; j < typesize; j++ {
			dst[j*nelem+i] = src[i*typesize+j]
		}
	}
	rem := nelem * typesize
	copy(dst[rem:], src[rem:])
}
