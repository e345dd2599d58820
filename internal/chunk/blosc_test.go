package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestCompressDecompressCodecs(t *testing.T) {
	payload := Encode(ramp(GridSize))

	tests := []struct {
		name string
		opts Options
	}{
		{name: "lz4 shuffle", opts: Options{Codec: CodecLZ4, TypeSize: 4, BlockSize: 32768, Shuffle: true}},
		{name: "lz4 no split", opts: Options{Codec: CodecLZ4, TypeSize: 4, BlockSize: 32768, Shuffle: true, NoSplit: true}},
		{name: "zstd", opts: Options{Codec: CodecZstd, TypeSize: 4, BlockSize: 65536, Shuffle: true}},
		{name: "zlib no shuffle", opts: Options{Codec: CodecZlib, TypeSize: 4, BlockSize: 40000}},
		{name: "snappy", opts: Options{Codec: CodecSnappy, TypeSize: 4, BlockSize: 8192, Shuffle: true}},
		{name: "stored", opts: Options{Codec: CodecLZ4, TypeSize: 4, Stored: true}},
		{name: "single block", opts: Options{Codec: CodecLZ4, TypeSize: 4, BlockSize: len(payload) * 2, Shuffle: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Compress(payload, tt.opts)
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if got := int(binary.LittleEndian.Uint32(frame[12:16])); got != len(frame) {
				t.Errorf("ctbytes = %d, want %d", got, len(frame))
			}

			out, err := Decompress(frame)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatal("Decompress() output differs from input")
			}
		})
	}
}

func TestShuffleRoundTrip(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	shuffled := make([]byte, len(src))
	shuffle(4, src, shuffled)

	want := []byte{1, 5, 2, 6, 3, 7, 4, 8, 9, 10, 11}
	if !bytes.Equal(shuffled, want) {
		t.Fatalf("shuffle() = %v, want %v", shuffled, want)
	}

	back := make([]byte, len(src))
	unshuffle(4, shuffled, back)
	if !bytes.Equal(back, src) {
		t.Fatalf("unshuffle() = %v, want %v", back, src)
	}
}

func TestDecompressCorruptFrames(t *testing.T) {
	good, err := Compress(Encode(ramp(GridSize)), DefaultOptions())
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	badOffset := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badOffset[headerSize:], uint32(len(badOffset)+10))

	badStream := append([]byte(nil), good...)
	first := int(binary.LittleEndian.Uint32(badStream[headerSize:]))
	for i := first + 4; i < first+64 && i < len(badStream); i++ {
		badStream[i] = 0xff
	}

	blosclz := append([]byte(nil), good...)
	blosclz[2] = blosclz[2] &^ 0xe0

	bitshuffle := append([]byte(nil), good...)
	bitshuffle[2] |= flagBitShuffle

	huge := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(huge[4:], 1<<31)

	bigBlock := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(bigBlock[8:], uint32(len(Encode(ramp(GridSize)))+1))

	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "oversized nbytes", frame: huge},
		{name: "blocksize beyond nbytes", frame: bigBlock},
		{name: "short header", frame: good[:10]},
		{name: "truncated body", frame: good[:len(good)-20]},
		{name: "block offset past end", frame: badOffset},
		{name: "garbage stream", frame: badStream},
		{name: "blosclz codec", frame: blosclz},
		{name: "bitshuffle filter", frame: bitshuffle},
		{name: "bad version", frame: append([]byte{9}, good[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decompress(tt.frame); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Decompress() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestUnsupportedWrapsCorrupt(t *testing.T) {
	if !errors.Is(ErrUnsupported, ErrCorrupt) {
		t.Fatal("ErrUnsupported should wrap ErrCorrupt")
	}
}
