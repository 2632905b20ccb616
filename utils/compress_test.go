package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressAndDecompressBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "Short payload",
			data: []byte("Hello, world!"),
		},
		{
			name: "Song record",
			data: []byte(`{"id":1,"title":"Sunset Dreams","artist":"The Waves","album":"Summer"}`),
		},
		{
			name: "Empty payload",
			data: []byte{},
		},
		{
			name: "Repetitive payload",
			data: []byte(strings.Repeat("la ", 1000)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := CompressBytes(tt.data)
			if err != nil {
				t.Fatalf("CompressBytes() error = %v", err)
			}
			if !IsCompressed(compressed) {
				t.Error("Expected compressed output to carry gzip header")
			}

			decompressed, err := DecompressBytes(compressed)
			if err != nil {
				t.Fatalf("DecompressBytes() error = %v", err)
			}
			if !bytes.Equal(decompressed, tt.data) {
				t.Errorf("Round trip mismatch: got %q, want %q", decompressed, tt.data)
			}
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := []byte(strings.Repeat(`{"title":"Sunset Dreams"}`, 200))
	compressed, err := CompressBytes(data)
	if err != nil {
		t.Fatalf("CompressBytes() error = %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("Expected compressed size < %d, got %d", len(data), len(compressed))
	}
}

func TestDecompressBytesInvalidInput(t *testing.T) {
	if _, err := DecompressBytes([]byte("not gzip")); err == nil {
		t.Error("Expected error for non-gzip input")
	}
}

func TestMaybeDecompress(t *testing.T) {
	plain := []byte(`{"id":7}`)

	got, err := MaybeDecompress(plain)
	if err != nil {
		t.Fatalf("MaybeDecompress(plain) error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Expected plain data unchanged, got %q", got)
	}

	compressed, _ := CompressBytes(plain)
	got, err = MaybeDecompress(compressed)
	if err != nil {
		t.Fatalf("MaybeDecompress(compressed) error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Expected %q, got %q", plain, got)
	}
}
