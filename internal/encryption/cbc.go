package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

var (
	// ErrCorruptPadding means decrypted data does not end in valid PKCS7
	// padding: the key is wrong or the ciphertext was altered or truncated.
	ErrCorruptPadding = errors.New("corrupt padding")

	// ErrKeySize means the key is not a valid AES-256 key.
	ErrKeySize = errors.New("key must be 32 bytes")
)

// CBC encrypts whole buffers with AES-256 in CBC mode using PKCS7 padding.
type CBC struct {
	block cipher.Block
}

// NewCBC creates a CBC cipher for a 32-byte key.
func NewCBC(key []byte) (*CBC, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating aes cipher: %w", err)
	}
	return &CBC{block: block}, nil
}

// Encrypt pads plaintext and encrypts it under a freshly generated IV.
func (c *CBC) Encrypt(plaintext []byte) (iv, ciphertext []byte, err error) {
	iv = make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("generating iv: %w", err)
	}

	ciphertext = Pad(plaintext, aes.BlockSize)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, ciphertext)
	return iv, ciphertext, nil
}

// Decrypt decrypts ciphertext with iv and strips the padding.
func (c *CBC) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv is %d bytes, want %d", len(iv), aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrCorruptPadding, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)
	return Unpad(plaintext, aes.BlockSize)
}
