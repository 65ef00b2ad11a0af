// Package cryptox implements one-way hashing of passwords and app secrets
// and generation of human-typable random secrets.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

const saltLength = 16

// Argon2Hasher hashes secrets with argon2id and encodes the result in the
// PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// The salt is random per call and embedded in the output, so the same
// secret never hashes to the same digest twice.
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// NewArgon2Hasher returns a hasher with the default production parameters.
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}
}

// Hash returns the encoded argon2id digest of secret.
func (h *Argon2Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether secret matches digest. The parameters stored in the
// digest are used, not the hasher's, so digests survive parameter changes.
// A malformed or empty digest never verifies.
func (h *Argon2Hasher) Verify(secret, digest string) bool {
	p, salt, key, err := decodeHash(digest)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	defer common.WipeByteArray(candidate)

	return subtle.ConstantTimeCompare(key, candidate) == 1
}

func decodeHash(digest string) (*Argon2Hasher, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, nil, ErrMalformedHash
	}

	p := &Argon2Hasher{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, nil, nil, ErrMalformedHash
	}
	if p.Time == 0 || p.Threads == 0 {
		return nil, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, nil, ErrMalformedHash
	}

	return p, salt, key, nil
}

// GenerateSecret returns a 16 character alphanumeric string drawn from
// crypto/rand. Characters that are not alphanumeric in base64 are removed
// before truncation; the buffer is refilled from fresh random bytes until
// it is long enough.
func GenerateSecret() (string, error) {
	var sb strings.Builder

	for sb.Len() < common.SecretLength {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}

		encoded := base64.StdEncoding.EncodeToString(raw)
		for _, c := range encoded {
			if c == '/' || c == '+' || c == '=' {
				continue
			}
			sb.WriteRune(c)
		}
	}

	return sb.String()[:common.SecretLength], nil
}
