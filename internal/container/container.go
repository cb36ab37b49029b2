// Package container encodes and decodes the on-disk layout of an encrypted
// file:
//
//	offset  length    field
//	0       16        initialization vector
//	16      118       argon2id verification hash (ASCII)
//	134     n*16      AES-CBC ciphertext, PKCS7 padded
package container

import (
	"errors"
	"fmt"
)

const (
	IVSize     = 16
	HashSize   = 118
	HeaderSize = IVSize + HashSize
	BlockSize  = 16

	// Extension is appended to the original file name of an encrypted file.
	Extension = ".lockbyte"
)

var (
	// ErrTooShort means the input is smaller than the fixed header.
	ErrTooShort = errors.New("container too short")

	// ErrMisaligned means the ciphertext is not a whole number of blocks.
	ErrMisaligned = errors.New("ciphertext not block aligned")

	// ErrInvalidField means a field passed to Encode has the wrong size.
	ErrInvalidField = errors.New("invalid container field")
)

// Container is a decoded encrypted file. The slices alias the buffer passed
// to Decode.
type Container struct {
	IV         []byte
	Hash       string
	Ciphertext []byte
}

// Encode concatenates iv, hash and ciphertext at their fixed offsets.
func Encode(iv []byte, hash string, ciphertext []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrInvalidField, len(iv), IVSize)
	}
	if len(hash) != HashSize {
		return nil, fmt.Errorf("%w: hash is %d bytes, want %d", ErrInvalidField, len(hash), HashSize)
	}
	for i := 0; i < len(hash); i++ {
		if hash[i] > 0x7f {
			return nil, fmt.Errorf("%w: hash is not ASCII", ErrInvalidField)
		}
	}
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrInvalidField, len(ciphertext))
	}

	out := make([]byte, 0, HeaderSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, hash...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decode splits b into its fields. It only checks the shape; the hash is
// validated later by the key derivation chain.
func Decode(b []byte) (*Container, error) {
	if err := CheckShape(len(b)); err != nil {
		return nil, err
	}
	return &Container{
		IV:         b[:IVSize],
		Hash:       string(b[IVSize:HeaderSize]),
		Ciphertext: b[HeaderSize:],
	}, nil
}

// CheckShape reports whether a file of size n can be a container.
func CheckShape(n int) error {
	if n < HeaderSize {
		return fmt.Errorf("%w: %d bytes, want at least %d", ErrTooShort, n, HeaderSize)
	}
	if (n-HeaderSize)%BlockSize != 0 {
		return fmt.Errorf("%w: %d bytes after header", ErrMisaligned, n-HeaderSize)
	}
	return nil
}

// EncodedSize returns the container size for a plaintext of n bytes.
func EncodedSize(n int) int {
	return HeaderSize + n + BlockSize - n%BlockSize
}
