package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP recommendation).
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length

	phcParts = 6
)

// ErrMalformedHash is returned for a password hash that is not a usable
// Argon2id PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// phcHash is a decoded Argon2id PHC string.
type phcHash struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

// HashPassword hashes a plaintext password using Argon2id and returns it
// in PHC string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
//
// The output is what operators paste into security.operators[].password_hash.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	h := phcHash{
		time:    argonTime,
		memory:  argonMemory,
		threads: argonThreads,
		salt:    salt,
		key:     argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen),
	}
	return h.String(), nil
}

// VerifyPassword checks a plaintext password against an Argon2id PHC hash string.
// A malformed hash is an error; a wrong password is (false, nil).
func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

// decodePHC parses an Argon2id PHC string.
func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	parts := strings.Split(encoded, "$")
	if len(parts) != phcParts {
		return h, fmt.Errorf("%w: expected %d $-delimited parts", ErrMalformedHash, phcParts)
	}
	if parts[1] != "argon2id" {
		return h, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("%w: parsing version: %w", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return h, fmt.Errorf("%w: parsing parameters: %w", ErrMalformedHash, err)
	}
	// argon2.IDKey panics on zero parallelism.
	if h.time == 0 || h.memory == 0 || h.threads == 0 {
		return h, fmt.Errorf("%w: zero cost parameter", ErrMalformedHash)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, fmt.Errorf("%w: decoding salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return h, fmt.Errorf("%w: decoding hash: %w", ErrMalformedHash, err)
	}
	if len(h.key) == 0 {
		return h, fmt.Errorf("%w: empty hash", ErrMalformedHash)
	}

	return h, nil
}
