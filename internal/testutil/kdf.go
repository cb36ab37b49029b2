package testutil

import (
	"testing"

	"lockbyte/internal/kdf"
)

// FastHashParams keep the 118-byte encoded hash width of the defaults while
// hashing quickly.
var FastHashParams = kdf.HashParams{Memory: 16 * 1024, Time: 1, Parallelism: 4, SaltLen: 32, KeyLen: 32}

// FastKeyParams stretch keys with a small scrypt cost.
var FastKeyParams = kdf.KeyParams{N: 1024, R: 8, P: 1, KeyLen: 32}

// PlentyOfMemory is a probe that always reports 64 GiB available.
func PlentyOfMemory() (uint64, error) {
	return 64 << 30, nil
}

// FastChain returns a kdf.Chain suitable for tests. Extra options are applied
// after the default test probe, so a test can swap in its own.
func FastChain(t testing.TB, opts ...kdf.Option) *kdf.Chain {
	t.Helper()
	all := append([]kdf.Option{kdf.WithMemoryProbe(PlentyOfMemory)}, opts...)
	c, err := kdf.NewWithParams(FastHashParams, FastKeyParams, all...)
	if err != nil {
		t.Fatalf("kdf.NewWithParams() error = %v", err)
	}
	return c
}
