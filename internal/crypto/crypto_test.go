package icrypto

import (
	"bytes"
	"testing"
)

func TestAADKeyFile(t *testing.T) {
	salt := []byte("0123456789abcdef")

	aad1 := AADKeyFile("ironseal-sealed-key", 1, 3, 65536, 4, salt)
	aad2 := AADKeyFile("ironseal-sealed-key", 1, 3, 65536, 4, salt)
	if !bytes.Equal(aad1, aad2) {
		t.Error("AADKeyFile should be deterministic")
	}

	variants := map[string][]byte{
		"format":      AADKeyFile("other", 1, 3, 65536, 4, salt),
		"version":     AADKeyFile("ironseal-sealed-key", 2, 3, 65536, 4, salt),
		"time":        AADKeyFile("ironseal-sealed-key", 1, 4, 65536, 4, salt),
		"memory":      AADKeyFile("ironseal-sealed-key", 1, 3, 65537, 4, salt),
		"parallelism": AADKeyFile("ironseal-sealed-key", 1, 3, 65536, 1, salt),
		"salt":        AADKeyFile("ironseal-sealed-key", 1, 3, 65536, 4, []byte("fedcba9876543210")),
	}
	for name, aad := range variants {
		if bytes.Equal(aad1, aad) {
			t.Errorf("AADKeyFile should differ when %s changes", name)
		}
	}
}

func TestBuildAAD_LengthPrefix(t *testing.T) {
	// Without length prefixes these two would concatenate to the same bytes.
	a := buildAAD("ab", "c")
	b := buildAAD("a", "bc")
	if bytes.Equal(a, b) {
		t.Error("buildAAD must length-prefix variable fields")
	}

	got := buildAAD("x", uint8(7), uint32(1), 2)
	want := []byte{0, 0, 0, 1, 'x', 7, 0, 0, 0, 1, 0, 0, 0, 2}
	if !bytes.Equal(got, want) {
		t.Errorf("buildAAD = %v, want %v", got, want)
	}
}
