package encryption

import "fmt"

// Pad returns a copy of b with PKCS7 padding. Between 1 and blockSize bytes
// are always added.
func Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// Unpad strips PKCS7 padding from b.
func Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrCorruptPadding, len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: pad byte %d", ErrCorruptPadding, n)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrCorruptPadding
		}
	}
	return b[:len(b)-n], nil
}
