package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	for _, codec := range []string{CodecNone, CodecSnappy, CodecGzip, CodecLZ4, CodecZstd} {
		t.Run(codec, func(t *testing.T) {
			compressed, err := Compress(codec, payload)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			got, err := Decompress(codec, compressed)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if string(got) != string(payload) {
				t.Errorf("got %q want %q", got, payload)
			}
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.grzy")
	payload := []byte("serialized database contents")

	if err := SaveToFile(path, CodecZstd, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("got %q want %q", got, payload)
	}
}

func TestSaveToFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.grzy")
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := SaveToFile(path, CodecNone, []byte("x")); err == nil {
		t.Fatalf("expected error saving over existing artifact")
	}
}
