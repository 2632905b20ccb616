package utils

import (
	"bytes"
	"compress/gzip"
	"io"
)

// gzipMagic is the two-byte header every gzip stream starts with.
var gzipMagic = []byte{0x1f, 0x8b}

// CompressBytes gzips input with BestCompression.
func CompressBytes(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err = gzipWriter.Write(input); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressBytes reverses CompressBytes.
func DecompressBytes(input []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()
	return io.ReadAll(gzipReader)
}

// IsCompressed reports whether data looks like a gzip stream.
// Stores use it so compressed and plain records can live side by side
// after the compression flag is toggled.
func IsCompressed(data []byte) bool {
	return len(data) >= 2 && bytes.Equal(data[:2], gzipMagic)
}

// MaybeDecompress returns data unchanged unless it is gzip-compressed.
func MaybeDecompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	return DecompressBytes(data)
}
