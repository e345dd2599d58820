package chunk

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"testing"
)

// Frames laid out byte for byte the way c-blosc 1.x writes them, with each
// stream encoded independently of Compress.
var goldenFrames = []struct {
	name  string
	frame string
	codec Codec
	bits  func(i int) uint32
	n     int
}{
	{
		// lz4, byte shuffle, one 2048-byte block split into four streams
		name:  "lz4 shuffle split",
		frame: "02012104000800000008000057010000140000000b010000fff1000102030405060708090a0b0c0d0e0f101112131415" +
			"161718191a1b1c1d1e1f202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f404142434445" +
			"464748494a4b4c4d4e4f505152535455565758595a5b5c5d5e5f606162636465666768696a6b6c6d6e6f707172737475" +
			"767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f909192939495969798999a9b9c9d9e9fa0a1a2a3a4a5" +
			"a6a7a8a9aaabacadaeafb0b1b2b3b4b5b6b7b8b9babbbcbdbebfc0c1c2c3c4c5c6c7c8c9cacbcccdcecfd0d1d2d3d4d5" +
			"d6d7d8d9dadbdcdddedfe0e1e2e3e4e5e6e7e8e9eaebecedeeeff0f1f2f3f4f5f6f7f8f9fafbfcfdfeff0001e850fbfc" +
			"fdfeff100000001f000100ec1f010100e75001010101010c0000001f800100ffe85080808080800c0000001f3f0100ff" +
			"e8503f3f3f3f3f",
		codec: CodecLZ4,
		bits:  func(i int) uint32 { return 0x3F800000 | uint32(i) },
		n:     512,
	},
	{
		// zlib, unshuffled, unsplit, 512-byte blocks with a 176-byte tail
		name:  "zlib unsplit",
		frame: "02017004b004000000020000c60000001c000000550000008e00000035000000785eedcb410a00100045c19f24499224" +
			"4972ff633899770d6531cb91f6911626063a1a2a0a321222023c1c2c0cfe7ff95f7c27698135000000785eedcb410a00" +
			"100045c19f244992244972ff633899770d6531cb91f6911626063a1a2a0a321222023c1c2c0cfe7ff95f7c2769813400" +
			"0000785ebdcb510a00101445c19b24492f499224fb5f869539abf0319f239d2b6d2c4c0c7434541418321222023c1cfe" +
			"fe0775a42475",
		codec: CodecZlib,
		bits:  func(i int) uint32 { return math.Float32bits(-40 + float32(i%16)*0.5) },
		n:     300,
	},
	{
		// snappy, byte shuffle; the split block keeps one stream uncompressed
		// and the tail block is a single stream
		name:  "snappy split with stored stream",
		frame: "02014104b0040000000400009a010000180000005801000000010000000102030405060708090a0b0c0d0e0f10111213" +
			"1415161718191a1b1c1d1e1f202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f40414243" +
			"4445464748494a4b4c4d4e4f505152535455565758595a5b5c5d5e5f606162636465666768696a6b6c6d6e6f70717273" +
			"7475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f909192939495969798999a9b9c9d9e9fa0a1a2a3" +
			"a4a5a6a7a8a9aaabacadaeafb0b1b2b3b4b5b6b7b8b9babbbcbdbebfc0c1c2c3c4c5c6c7c8c9cacbcccdcecfd0d1d2d3" +
			"d4d5d6d7d8d9dadbdcdddedfe0e1e2e3e4e5e6e7e8e9eaebecedeeeff0f1f2f3f4f5f6f7f8f9fafbfcfdfeff10000000" +
			"80020000fe0100fe0100fe0100fa01001000000080020020fe0100fe0100fe0100fa01001000000080020041fe0100fe" +
			"0100fe0100fa01003e000000b001ac000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20" +
			"2122232425262728292a2b0001aa01000020aa01000041aa0100",
		codec: CodecSnappy,
		bits:  func(i int) uint32 { return 0x41200000 + uint32(i) },
		n:     300,
	},
	{
		// zstd, byte shuffle, unsplit; one frame of RLE blocks
		name:  "zstd shuffle rle",
		frame: "0201910440060000400600002b000000140000001300000028b52ffd60400502190000820c00a0830c00bf",
		codec: CodecZstd,
		bits:  func(i int) uint32 { return math.Float32bits(-1.25) },
		n:     400,
	},
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

func TestDecompressGoldenFrames(t *testing.T) {
	for _, tt := range goldenFrames {
		t.Run(tt.name, func(t *testing.T) {
			frame := mustHex(t, tt.frame)
			h, err := parseHeader(frame)
			if err != nil {
				t.Fatalf("parseHeader() error = %v", err)
			}
			if h.codec() != tt.codec {
				t.Errorf("codec = %s, want %s", h.codec(), tt.codec)
			}

			out, err := Decompress(frame)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if len(out) != 4*tt.n {
				t.Fatalf("len = %d, want %d", len(out), 4*tt.n)
			}
			for i := 0; i < tt.n; i++ {
				if got, want := binary.LittleEndian.Uint32(out[4*i:]), tt.bits(i); got != want {
					t.Fatalf("element %d = %#08x, want %#08x", i, got, want)
				}
			}
		})
	}
}

func TestCompressMarksUnsplitCodecs(t *testing.T) {
	payload := Encode(ramp(1024))
	tests := []struct {
		codec     Codec
		dontSplit bool
	}{
		{CodecLZ4, false},
		{CodecSnappy, false},
		{CodecZlib, true},
		{CodecZstd, true},
	}
	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			frame, err := Compress(payload, Options{Codec: tt.codec, TypeSize: 4, BlockSize: 2048, Shuffle: true})
			if err != nil {
				t.Fatalf("Compress() error = %v", err)
			}
			if got := frame[2]&flagDontSplit != 0; got != tt.dontSplit {
				t.Errorf("dont-split flag = %v, want %v", got, tt.dontSplit)
			}
			if _, err := Decompress(frame); err != nil {
				t.Errorf("Decompress() error = %v", err)
			}
		})
	}
}
