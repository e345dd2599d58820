package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compressor stored in the top three bits of the
// Blosc flags byte.
type Codec uint8

const (
	CodecBloscLZ Codec = 0
	CodecLZ4     Codec = 1
	CodecSnappy  Codec = 2
	CodecZlib    Codec = 3
	CodecZstd    Codec = 4
)

// splits reports whether c-blosc cuts blocks into per-byte streams for c.
// Its zlib and zstd frames are always written unsplit.
func (c Codec) splits() bool {
	return c == CodecBloscLZ || c == CodecLZ4 || c == CodecSnappy
}

func (c Codec) String() string {
	switch c {
	case CodecBloscLZ:
		return "blosclz"
	case CodecLZ4:
		return "lz4"
	case CodecSnappy:
		return "snappy"
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// decodeFunc expands src into dst and reports how many bytes it produced.
type decodeFunc func(src, dst []byte) (int, error)

type encodeFunc func(src []byte) ([]byte, error)

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Decoder, *zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if zstdErr != nil {
			return
		}
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
	})
	return zstdDecoder, zstdEncoder, zstdErr
}

func decoderFor(c Codec) (decodeFunc, error) {
	switch c {
	case CodecLZ4:
		return lz4.UncompressBlock, nil
	case CodecSnappy:
		return func(src, dst []byte) (int, error) {
			out, err := snappy.Decode(dst, src)
			if err != nil {
				return 0, err
			}
			return copyInto(dst, out), nil
		}, nil
	case CodecZlib:
		return func(src, dst []byte) (int, error) {
			r, err := zlib.NewReader(bytes.NewReader(src))
			if err != nil {
				return 0, err
			}
			defer r.Close()
			n, err := io.ReadFull(r, dst)
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}, nil
	case CodecZstd:
		dec, _, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		return func(src, dst []byte) (int, error) {
			out, err := dec.DecodeAll(src, dst[:0])
			if err != nil {
				return 0, err
			}
			return copyInto(dst, out), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: codec %s", ErrUnsupported, c)
	}
}

func encoderFor(c Codec) (encodeFunc, error) {
	switch c {
	case CodecLZ4:
		return func(src []byte) ([]byte, error) {
			dst := make([]byte, lz4.CompressBlockBound(len(src)))
			n, err := lz4.CompressBlock(src, dst, nil)
			if err != nil {
				return nil, err
			}
			return dst[:n], nil
		}, nil
	case CodecSnappy:
		return func(src []byte) ([]byte, error) {
			return snappy.Encode(nil, src), nil
		}, nil
	case CodecZlib:
		return func(src []byte) ([]byte, error) {
			var buf bytes.Buffer
			w := zlib.NewWriter(&buf)
			if _, err := w.Write(src); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}, nil
	case CodecZstd:
		_, enc, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		return func(src []byte) ([]byte, error) {
			return enc.EncodeAll(src, nil), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: codec %s", ErrUnsupported, c)
	}
}

// copyInto makes sure out ends up in dst when a decoder had to grow its
// buffer, and returns the decoded length.
func copyInto(dst, out []byte) int {
	if len(out) > 0 && len(dst) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
	return len(out)
}

// Options controls how Compress lays out a frame.
type Options struct {
	Codec     Codec
	TypeSize  int
	BlockSize int
	Shuffle   bool
	// NoSplit keeps each block in one stream. It is implied for zlib and
	// zstd, for typesizes above 16 and for blocks under 128 elements.
	NoSplit bool
	// Stored writes the payload uncompressed behind the header.
	Stored bool
}

// DefaultOptions matches the zarr default compressor for float32 data.
func DefaultOptions() Options {
	return Options{Codec: CodecLZ4, TypeSize: 4, BlockSize: 1 << 16, Shuffle: true}
}

// Compress writes data as a Blosc v1 frame. It produces the same layout
// Decompress reads and is used to build chunk fixtures.
func Compress(data []byte, opts Options) ([]byte, error) {
	if opts.TypeSize <= 0 || opts.TypeSize > 255 {
		return nil, fmt.Errorf("invalid typesize %d", opts.TypeSize)
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	if opts.BlockSize > len(data) {
		opts.BlockSize = len(data)
	}

	h := header{
		version:   2,
		versionLZ: 1,
		flags:     uint8(opts.Codec) << 5,
		typesize:  opts.TypeSize,
		nbytes:    len(data),
		blocksize: opts.BlockSize,
	}
	if opts.Shuffle {
		h.flags |= flagShuffle
	}
	if opts.NoSplit || !opts.Codec.splits() || opts.TypeSize > maxSplits || opts.BlockSize/opts.TypeSize < minBufferSize {
		h.flags |= flagDontSplit
	}

	if opts.Stored || len(data) == 0 {
		h.flags |= flagMemcpy
		out := make([]byte, headerSize, headerSize+len(data))
		out = append(out, data...)
		h.ctbytes = len(out)
		putHeader(out, h)
		return out, nil
	}

	enc, err := encoderFor(opts.Codec)
	if err != nil {
		return nil, err
	}

	nblocks := h.nblocks()
	out := make([]byte, headerSize+4*nblocks)
	tmp := make([]byte, h.blocksize)
	for i := 0; i < nblocks; i++ {
		binary.LittleEndian.PutUint32(out[headerSize+4*i:], uint32(len(out)))
		start := i * h.blocksize
		end := start + h.blocksize
		leftover := false
		if end > len(data) {
			end = len(data)
			leftover = true
		}
		block := data[start:end]
		if opts.Shuffle && opts.TypeSize > 1 {
			shuffle(opts.TypeSize, block, tmp[:len(block)])
			block = tmp[:len(block)]
		}

		nsplits := splitCount(h, len(block), leftover)
		neblock := len(block) / nsplits
		for j := 0; j < nsplits; j++ {
			part := block[j*neblock : (j+1)*neblock]
			packed, err := enc(part)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}
			if len(packed) == 0 || len(packed) >= neblock {
				packed = part
			}
			out = binary.LittleEndian.AppendUint32(out, uint32(len(packed)))
			out = append(out, packed...)
		}
	}
	h.ctbytes = len(out)
	putHeader(out, h)
	return out, nil
}

func putHeader(dst []byte, h header) {
	dst[0] = h.version
	dst[1] = h.versionLZ
	dst[2] = h.flags
	dst[3] = uint8(h.typesize)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(h.nbytes))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.blocksize))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(h.ctbytes))
}
