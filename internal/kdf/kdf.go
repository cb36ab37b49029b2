// Package kdf turns a password into the two secrets a container needs: a
// self-describing argon2id verification hash that embeds the salt, and a
// 32-byte AES key stretched from the password with scrypt.
package kdf

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

var (
	// ErrInvalidHashFormat means the encoded hash could not be parsed. For a
	// container this indicates corruption or a file that is not a container.
	ErrInvalidHashFormat = errors.New("invalid hash format")

	// ErrPasswordMismatch means the hash is well formed but the password is wrong.
	ErrPasswordMismatch = errors.New("password does not match")

	// ErrResourceExhausted means the host cannot provide the memory a
	// memory-hard function needs.
	ErrResourceExhausted = errors.New("not enough memory available")

	// ErrInvalidParams means a Chain was built with unusable parameters.
	ErrInvalidParams = errors.New("invalid kdf parameters")
)

// HashParams configures the argon2id verification hash.
type HashParams struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// KeyParams configures scrypt key stretching.
type KeyParams struct {
	N      int
	R      int
	P      int
	KeyLen int
}

// DefaultHashParams are the argon2id parameters written into new containers.
// With a 32-byte salt and 32-byte output they encode to exactly 118 bytes.
func DefaultHashParams() HashParams {
	return HashParams{Memory: 64 * 1024, Time: 3, Parallelism: 4, SaltLen: 32, KeyLen: 32}
}

// DefaultKeyParams are the scrypt parameters used for every container. They
// are not recorded in the container, so changing them breaks decryption of
// existing files.
func DefaultKeyParams() KeyParams {
	return KeyParams{N: 1 << 20, R: 8, P: 1, KeyLen: 32}
}

// Required returns the approximate working memory scrypt needs, in bytes.
func (k KeyParams) Required() uint64 {
	return 128*uint64(k.R)*uint64(k.N) + 128*uint64(k.R)*uint64(k.P) + 256*uint64(k.R)
}

// Required returns the argon2 working memory in bytes.
func (h HashParams) Required() uint64 {
	return uint64(h.Memory) * 1024
}

// Chain derives verification hashes and encryption keys with fixed parameters.
// A Chain is safe for concurrent use. Concurrent derivations share one memory
// budget, so two workers never both start on the same free memory.
type Chain struct {
	hash  HashParams
	key   KeyParams
	probe MemoryProbe
	mem   memoryBudget
}

// Option customizes a Chain.
type Option func(*Chain)

// WithMemoryProbe replaces the probe used to detect memory exhaustion.
func WithMemoryProbe(p MemoryProbe) Option {
	return func(c *Chain) { c.probe = p }
}

// New returns a Chain using the default parameters.
func New(opts ...Option) *Chain {
	c, _ := NewWithParams(DefaultHashParams(), DefaultKeyParams(), opts...)
	return c
}

// NewWithParams returns a Chain with explicit parameters.
func NewWithParams(h HashParams, k KeyParams, opts ...Option) (*Chain, error) {
	if h.Time < 1 || h.Parallelism < 1 || h.Memory < 8*uint32(h.Parallelism) || h.SaltLen < minSaltLen || h.KeyLen < minHashLen {
		return nil, fmt.Errorf("%w: argon2 %+v", ErrInvalidParams, h)
	}
	if k.N <= 1 || k.N&(k.N-1) != 0 || k.R < 1 || k.P < 1 || k.KeyLen < 1 {
		return nil, fmt.Errorf("%w: scrypt %+v", ErrInvalidParams, k)
	}

	c := &Chain{hash: h, key: k, probe: SystemMemory}
	for _, opt := range opts {
		opt(c)
	}
	c.mem.init(c.probe)
	return c, nil
}

// HashParams returns the parameters new hashes are created with.
func (c *Chain) HashParams() HashParams { return c.hash }

// KeyParams returns the scrypt parameters.
func (c *Chain) KeyParams() KeyParams { return c.key }

// NewSalt returns a fresh random salt of the configured length.
func (c *Chain) NewSalt() ([]byte, error) {
	salt := make([]byte, c.hash.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// HashPassword computes the encoded argon2id hash of password with salt.
// The result is deterministic for identical inputs and parameters.
func (c *Chain) HashPassword(password string, salt []byte) (string, error) {
	release, err := c.mem.reserve(c.hash.Required())
	if err != nil {
		return "", err
	}
	defer release()
	sum := argon2.IDKey([]byte(password), salt, c.hash.Time, c.hash.Memory, c.hash.Parallelism, c.hash.KeyLen)
	return encodePHC(c.hash, salt, sum), nil
}

// VerifyPassword checks password against an encoded hash. It returns nil on
// a match, ErrInvalidHashFormat if the hash cannot be parsed, and
// ErrPasswordMismatch otherwise. The digest comparison is constant time.
func (c *Chain) VerifyPassword(encoded, password string) error {
	h, err := decodePHC(encoded)
	if err != nil {
		return err
	}
	release, err := c.mem.reserve(h.params.Required())
	if err != nil {
		return err
	}
	defer release()

	sum := argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLen)
	if subtle.ConstantTimeCompare(sum, h.sum) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the Chain's. An unparsable hash always needs rehashing.
func (c *Chain) NeedsRehash(encoded string) bool {
	h, err := decodePHC(encoded)
	if err != nil {
		return true
	}
	return h.params != c.hash
}

// Rehash recomputes encoded with the Chain's current parameters, keeping its
// salt. The caller must already have verified password against encoded.
func (c *Chain) Rehash(encoded, password string) (string, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return "", err
	}
	return c.HashPassword(password, h.salt)
}

// KeySalt returns the salt used for key stretching: the salt segment of the
// encoded hash, exactly as written.
func KeySalt(encoded string) ([]byte, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return nil, err
	}
	return []byte(h.rawSalt), nil
}

// DerivedKey is an encryption key owned by a single operation.
type DerivedKey struct {
	b []byte
}

// Bytes returns the key material. The slice is invalid after Wipe.
func (k *DerivedKey) Bytes() []byte { return k.b }

// Wipe zeroes the key material.
func (k *DerivedKey) Wipe() {
	for i := range k.b {
		k.b[i] = 0
	}
	k.b = nil
}

// DeriveKey stretches password with salt using scrypt.
func (c *Chain) DeriveKey(password string, salt []byte) (*DerivedKey, error) {
	release, err := c.mem.reserve(c.key.Required())
	if err != nil {
		return nil, err
	}
	defer release()
	b, err := scrypt.Key([]byte(password), salt, c.key.N, c.key.R, c.key.P, c.key.KeyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return &DerivedKey{b: b}, nil
}
