package lockbyte

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"lockbyte/internal/container"
	"lockbyte/internal/encryption"
	"lockbyte/internal/kdf"
)

// maxCreateAttempts bounds retries when an output name is claimed between
// probing and creating it.
const maxCreateAttempts = 5

// Stage is a point in the life of a single file operation.
type Stage int

const (
	StageReading Stage = iota
	StageDeriving
	StageEncrypting
	StageDecrypting
	StageRollingBack
)

func (s Stage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageDeriving:
		return "deriving key"
	case StageEncrypting:
		return "encrypting"
	case StageDecrypting:
		return "decrypting"
	case StageRollingBack:
		return "rolling back"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Options tunes a single Encrypt or Decrypt call.
type Options struct {
	// KeepOriginal leaves the source of an encryption in place.
	KeepOriginal bool
	// Progress, if set, is called as the operation moves between stages.
	Progress func(Stage)
}

func (o Options) report(s Stage) {
	if o.Progress != nil {
		o.Progress(s)
	}
}

// FileCipher encrypts and decrypts single files. It is safe for concurrent
// use; every call owns its own key material.
type FileCipher struct {
	chain  *kdf.Chain
	fsmgr  FilesystemManager
	logger Logger
}

// NewFileCipher creates a FileCipher with the provided dependencies.
func NewFileCipher(chain *kdf.Chain, fsmgr FilesystemManager, logger Logger) *FileCipher {
	return &FileCipher{
		chain:  chain,
		fsmgr:  fsmgr,
		logger: logger,
	}
}

// Encrypt writes source's contents into a new container next to it and
// returns the container path. ctx is checked once, after key derivation and
// before the file is read; from there the file is always finished.
func (s *FileCipher) Encrypt(ctx context.Context, password, source string, opts Options) (string, error) {
	exists, err := s.fsmgr.Exists(source)
	if err != nil {
		return "", NewError(KindIOFailure, source, err)
	}
	if !exists {
		return "", NewError(KindIOFailure, source, fs.ErrNotExist)
	}

	opts.report(StageDeriving)
	salt, err := s.chain.NewSalt()
	if err != nil {
		return "", Classify(source, err)
	}
	hash, err := s.chain.HashPassword(password, salt)
	if err != nil {
		return "", Classify(source, err)
	}
	key, err := s.deriveKey(password, hash)
	if err != nil {
		return "", Classify(source, err)
	}
	defer key.Wipe()

	if err := ctx.Err(); err != nil {
		return "", NewError(KindCancelled, source, err)
	}

	opts.report(StageReading)
	plaintext, err := s.fsmgr.ReadFile(source)
	if err != nil {
		return "", NewError(KindIOFailure, source, err)
	}

	opts.report(StageEncrypting)
	cbc, err := encryption.NewCBC(key.Bytes())
	if err != nil {
		return "", NewError(KindUnexpected, source, err)
	}
	iv, ciphertext, err := cbc.Encrypt(plaintext)
	if err != nil {
		return "", NewError(KindUnexpected, source, err)
	}
	blob, err := container.Encode(iv, hash, ciphertext)
	if err != nil {
		return "", NewError(KindUnexpected, source, err)
	}

	out, err := s.createUnique(EncryptedName(source), blob, CounterAtEnd)
	if err != nil {
		return "", NewError(KindIOFailure, source, err)
	}
	s.logger.Info("file encrypted", "path", source, "output", out, "size", len(plaintext))

	if !opts.KeepOriginal {
		if err := s.fsmgr.Remove(source); err != nil {
			return out, NewError(KindIOFailure, source, fmt.Errorf("removing original: %w", err))
		}
		s.logger.Debug("original removed", "path", source)
	}
	return out, nil
}

// Decrypt restores the plaintext of the container at source into a new file
// and returns its path. Nothing is written unless the password verifies. If
// ctx is cancelled while the call runs, the written file is removed and a
// KindCancelled error is returned.
func (s *FileCipher) Decrypt(ctx context.Context, password, source string, opts Options) (string, error) {
	opts.report(StageReading)
	data, err := s.fsmgr.ReadFile(source)
	if err != nil {
		return "", NewError(KindIOFailure, source, err)
	}
	c, err := container.Decode(data)
	if err != nil {
		return "", NewError(KindNotAContainer, source, err)
	}

	opts.report(StageDeriving)
	if err := s.chain.VerifyPassword(c.Hash, password); err != nil {
		return "", Classify(source, err)
	}

	// A rehashed value only lives for this call; containers are never rewritten.
	hash := c.Hash
	if s.chain.NeedsRehash(hash) {
		s.logger.Debug("verification hash uses outdated parameters", "path", source)
		if hash, err = s.chain.Rehash(hash, password); err != nil {
			return "", Classify(source, err)
		}
	}

	key, err := s.deriveKey(password, hash)
	if err != nil {
		return "", Classify(source, err)
	}
	defer key.Wipe()

	opts.report(StageDecrypting)
	cbc, err := encryption.NewCBC(key.Bytes())
	if err != nil {
		return "", NewError(KindUnexpected, source, err)
	}
	plaintext, err := cbc.Decrypt(c.IV, c.Ciphertext)
	if err != nil {
		return "", Classify(source, err)
	}

	// Avoids a write that would only be rolled back; the check after the
	// write remains the one that guarantees no output survives.
	if err := ctx.Err(); err != nil {
		return "", NewError(KindCancelled, source, err)
	}

	out, err := s.createUnique(DecryptedName(source), plaintext, CounterBeforeExt)
	if err != nil {
		return "", NewError(KindIOFailure, source, err)
	}

	if err := ctx.Err(); err != nil {
		opts.report(StageRollingBack)
		if rmErr := s.fsmgr.Remove(out); rmErr != nil {
			s.logger.Error("rollback failed", "path", out, "error", rmErr)
			return "", NewError(KindIOFailure, source, fmt.Errorf("rolling back %s: %w", out, rmErr))
		}
		s.logger.Info("decryption rolled back", "path", source, "output", out)
		return "", NewError(KindCancelled, source, err)
	}

	s.logger.Info("file decrypted", "path", source, "output", out, "size", len(plaintext))
	return out, nil
}

// deriveKey stretches password with the salt embedded in hash.
func (s *FileCipher) deriveKey(password, hash string) (*kdf.DerivedKey, error) {
	salt, err := kdf.KeySalt(hash)
	if err != nil {
		return nil, err
	}
	return s.chain.DeriveKey(password, salt)
}

// createUnique writes data under the first free variant of name.
func (s *FileCipher) createUnique(name string, data []byte, style NameStyle) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		candidate, err := UniqueName(s.fsmgr, name, style)
		if err != nil {
			return "", err
		}
		err = s.fsmgr.CreateFile(candidate, data)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("writing %s: %w", candidate, err)
		}
		s.logger.Warn("output name taken during write, probing again", "path", candidate)
		lastErr = err
	}
	return "", fmt.Errorf("creating output for %s: %w", name, lastErr)
}
