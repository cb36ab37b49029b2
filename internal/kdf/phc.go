package kdf

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// b64 is the unpadded standard alphabet used by the PHC string format.
var b64 = base64.RawStdEncoding.Strict()

// Bounds applied to parameters read back from an encoded hash. A container
// is untrusted input, so a hash demanding absurd resources is treated as
// malformed rather than attempted.
const (
	maxMemoryKiB   = 4 * 1024 * 1024 // 4 GiB
	maxTimeCost    = 64
	minSaltLen     = 8
	maxSaltLen     = 64
	minHashLen     = 4
	maxHashLen     = 64
	phcAlgorithm   = "argon2id"
	phcFieldsCount = 6 // "", alg, version, params, salt, hash
)

// phcHash is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$hash" string.
type phcHash struct {
	params HashParams
	// rawSalt is the salt segment exactly as it appears in the string.
	rawSalt string
	salt    []byte
	sum     []byte
}

// encodePHC renders the argon2id output in the PHC string format.
func encodePHC(p HashParams, salt, sum []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version, p.Memory, p.Time, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(sum))
}

// decodePHC parses an encoded argon2id hash. Any structural problem is
// reported as ErrInvalidHashFormat.
func decodePHC(encoded string) (*phcHash, error) {
	for i := 0; i < len(encoded); i++ {
		if c := encoded[i]; c < 0x21 || c > 0x7e {
			return nil, fmt.Errorf("%w: non-printable byte at offset %d", ErrInvalidHashFormat, i)
		}
	}

	fields := strings.Split(encoded, "$")
	if len(fields) != phcFieldsCount || fields[0] != "" {
		return nil, fmt.Errorf("%w: expected %d fields", ErrInvalidHashFormat, phcFieldsCount-1)
	}
	if fields[1] != phcAlgorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHashFormat, fields[1])
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHashFormat, fields[2])
	}

	params, err := parseParams(fields[3])
	if err != nil {
		return nil, err
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidHashFormat, err)
	}
	if len(salt) < minSaltLen || len(salt) > maxSaltLen {
		return nil, fmt.Errorf("%w: salt length %d", ErrInvalidHashFormat, len(salt))
	}

	sum, err := b64.DecodeString(fields[5])
	if err != nil {
		return nil, fmt.Errorf("%w: hash: %v", ErrInvalidHashFormat, err)
	}
	if len(sum) < minHashLen || len(sum) > maxHashLen {
		return nil, fmt.Errorf("%w: hash length %d", ErrInvalidHashFormat, len(sum))
	}

	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(sum))

	return &phcHash{params: params, rawSalt: fields[4], salt: salt, sum: sum}, nil
}

// parseParams reads the "m=..,t=..,p=.." segment. The three keys must appear
// exactly once and in that order.
func parseParams(s string) (HashParams, error) {
	var p HashParams
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("%w: malformed parameters %q", ErrInvalidHashFormat, s)
	}

	values := make([]uint64, 3)
	for i, key := range []string{"m", "t", "p"} {
		k, v, ok := strings.Cut(parts[i], "=")
		if !ok || k != key || v == "" || (len(v) > 1 && v[0] == '0') {
			return p, fmt.Errorf("%w: malformed parameter %q", ErrInvalidHashFormat, parts[i])
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, fmt.Errorf("%w: parameter %s: %v", ErrInvalidHashFormat, key, err)
		}
		values[i] = n
	}

	p.Memory, p.Time = uint32(values[0]), uint32(values[1])
	if values[2] < 1 || values[2] > 255 {
		return p, fmt.Errorf("%w: parallelism %d out of range", ErrInvalidHashFormat, values[2])
	}
	p.Parallelism = uint8(values[2])

	if p.Time < 1 || p.Time > maxTimeCost {
		return p, fmt.Errorf("%w: time cost %d out of range", ErrInvalidHashFormat, p.Time)
	}
	if p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxMemoryKiB {
		return p, fmt.Errorf("%w: memory cost %d out of range", ErrInvalidHashFormat, p.Memory)
	}
	return p, nil
}
