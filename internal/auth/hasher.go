// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// PBKDF2 parameters. The iteration count is configurable; the default matches
// credentials issued before argon2id became the primary algorithm.
const (
	PBKDF2DefaultIterations = 1000
	pbkdf2SaltLen           = 16
	pbkdf2KeyLen            = 64
)

// Algorithm names accepted by NewPasswordHasher.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmPBKDF2   = "pbkdf2"
)

const argon2Prefix = "$argon2id$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing credential string for the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the credential.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the credential should be re-hashed.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if the password matches the argon2id hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}
	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, argon2Prefix)
}

// PBKDF2Hasher implements PasswordHasher with PBKDF2-HMAC-SHA512.
// Credentials are stored as hex(salt):hex(derived key).
type PBKDF2Hasher struct {
	iterations int
}

// NewPBKDF2Hasher creates a PBKDF2Hasher. A non-positive iteration count
// selects PBKDF2DefaultIterations.
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	if iterations <= 0 {
		iterations = PBKDF2DefaultIterations
	}
	return &PBKDF2Hasher{iterations: iterations}
}

// Hash derives a credential using a fresh random salt.
func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := pbkdf2.Key([]byte(password), salt, h.iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// Verify re-derives the key with the stored salt. Malformed credentials
// never match and never error.
func (h *PBKDF2Hasher) Verify(password, credential string) (bool, error) {
	salt, expected, ok := parsePBKDF2(credential)
	if !ok {
		return false, nil
	}
	computed := pbkdf2.Key([]byte(password), salt, h.iterations, len(expected), sha512.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade reports whether the credential is not in salt:hash form.
func (h *PBKDF2Hasher) NeedsUpgrade(credential string) bool {
	_, _, ok := parsePBKDF2(credential)
	return !ok
}

func parsePBKDF2(credential string) (salt, key []byte, ok bool) {
	saltHex, keyHex, found := strings.Cut(credential, ":")
	if !found || saltHex == "" || keyHex == "" || strings.Contains(keyHex, ":") {
		return nil, nil, false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) < pbkdf2SaltLen {
		return nil, nil, false
	}
	key, err = hex.DecodeString(keyHex)
	if err != nil || len(key) == 0 {
		return nil, nil, false
	}
	return salt, key, true
}

// CompositeHasher hashes with a primary algorithm and verifies credentials
// produced by any supported algorithm.
type CompositeHasher struct {
	primary  string
	argon2id *Argon2idHasher
	pbkdf2   *PBKDF2Hasher
	active   PasswordHasher
}

// NewPasswordHasher returns a CompositeHasher whose new credentials use
// the named algorithm.
func NewPasswordHasher(algorithm string, pbkdf2Iterations int) (*CompositeHasher, error) {
	h := &CompositeHasher{
		primary:  algorithm,
		argon2id: NewArgon2idHasher(),
		pbkdf2:   NewPBKDF2Hasher(pbkdf2Iterations),
	}
	switch algorithm {
	case AlgorithmArgon2id, "":
		h.primary = AlgorithmArgon2id
		h.active = h.argon2id
	case AlgorithmPBKDF2:
		h.active = h.pbkdf2
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", algorithm).
			Errorf("unsupported password hashing algorithm %q", algorithm)
	}
	return h, nil
}

// Hash produces a credential with the primary algorithm.
func (h *CompositeHasher) Hash(password string) (string, error) {
	return h.active.Hash(password) //nolint:wrapcheck // codes set by the delegate
}

// Verify dispatches on the credential format. Unrecognized formats do not match.
func (h *CompositeHasher) Verify(password, credential string) (bool, error) {
	if strings.HasPrefix(credential, argon2Prefix) {
		return h.argon2id.Verify(password, credential)
	}
	return h.pbkdf2.Verify(password, credential)
}

// NeedsUpgrade reports whether the credential was produced by a non-primary algorithm.
func (h *CompositeHasher) NeedsUpgrade(credential string) bool {
	isArgon := strings.HasPrefix(credential, argon2Prefix)
	if h.primary == AlgorithmArgon2id {
		return !isArgon
	}
	return isArgon
}

var (
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*PBKDF2Hasher)(nil)
	_ PasswordHasher = (*CompositeHasher)(nil)
)
