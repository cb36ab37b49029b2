package encryption

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestCBC_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "exact block", input: bytes.Repeat([]byte("x"), 16)},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewCBC(testKey())
			if err != nil {
				t.Fatalf("NewCBC() error = %v", err)
			}

			iv, ct, err := c.Encrypt(tt.input)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(iv) != 16 {
				t.Errorf("len(iv) = %d, want 16", len(iv))
			}
			if len(ct)%16 != 0 || len(ct) <= len(tt.input) {
				t.Errorf("len(ciphertext) = %d for %d bytes of input", len(ct), len(tt.input))
			}

			got, err := c.Decrypt(iv, ct)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", len(got), len(tt.input))
			}
		})
	}
}

func TestCBC_FreshIVPerCall(t *testing.T) {
	t.Parallel()
	c, err := NewCBC(testKey())
	if err != nil {
		t.Fatalf("NewCBC() error = %v", err)
	}

	iv1, ct1, _ := c.Encrypt([]byte("same input"))
	iv2, ct2, _ := c.Encrypt([]byte("same input"))
	if bytes.Equal(iv1, iv2) {
		t.Error("two encryptions reused the same iv")
	}
	if bytes.Equal(ct1, ct2) {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestCBC_WrongKey(t *testing.T) {
	t.Parallel()
	c, _ := NewCBC(testKey())
	iv, ct, err := c.Encrypt([]byte("some secret content here"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	other, _ := NewCBC(bytes.Repeat([]byte{0x17}, 32))
	got, err := other.Decrypt(iv, ct)
	// A wrong key almost always breaks the padding. When it happens not to,
	// the output still must not equal the plaintext.
	if err == nil && bytes.Equal(got, []byte("some secret content here")) {
		t.Error("wrong key recovered the plaintext")
	}
	if err != nil && !errors.Is(err, ErrCorruptPadding) {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrCorruptPadding)
	}
}

func TestCBC_Truncated(t *testing.T) {
	t.Parallel()
	c, _ := NewCBC(testKey())
	iv, ct, _ := c.Encrypt([]byte("0123456789"))

	if _, err := c.Decrypt(iv, ct[:len(ct)-1]); !errors.Is(err, ErrCorruptPadding) {
		t.Errorf("Decrypt(truncated) error = %v, want %v", err, ErrCorruptPadding)
	}
	if _, err := c.Decrypt(iv, nil); !errors.Is(err, ErrCorruptPadding) {
		t.Errorf("Decrypt(empty) error = %v, want %v", err, ErrCorruptPadding)
	}
}

func TestNewCBC_KeySize(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 16, 24, 31, 33} {
		if _, err := NewCBC(make([]byte, n)); !errors.Is(err, ErrKeySize) {
			t.Errorf("NewCBC(%d bytes) error = %v, want %v", n, err, ErrKeySize)
		}
	}
}

func TestPad(t *testing.T) {
	for n := 0; n <= 16; n++ {
		want := 16 - n%16
		got := Pad(bytes.Repeat([]byte("a"), n), 16)
		if len(got)-n != want {
			t.Errorf("Pad(%d bytes) added %d, want %d", n, len(got)-n, want)
		}
		if int(got[len(got)-1]) != want {
			t.Errorf("Pad(%d bytes) last byte = %d, want %d", n, got[len(got)-1], want)
		}
	}
}

func TestUnpad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "unaligned", input: make([]byte, 15)},
		{name: "zero pad byte", input: make([]byte, 16)},
		{name: "pad byte too large", input: append(make([]byte, 15), 17)},
		{name: "inconsistent pad", input: append(bytes.Repeat([]byte{0x01}, 13), 0x02, 0x03, 0x03)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unpad(tt.input, 16); !errors.Is(err, ErrCorruptPadding) {
				t.Errorf("Unpad() error = %v, want %v", err, ErrCorruptPadding)
			}
		})
	}
}
