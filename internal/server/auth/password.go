// Package auth holds the credential primitives of the server: argon2id
// password hashing and strength rules, HS256 session tokens and bearer
// header handling.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/cerberus/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128

	passwordSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Strength rule identifiers reported by WeakPasswordError.
const (
	RuleTooShort    = "too_short"
	RuleTooLong     = "too_long"
	RuleNoLowercase = "no_lowercase"
	RuleNoUppercase = "no_uppercase"
	RuleNoDigit     = "no_digit"
	RuleNoSymbol    = "no_symbol"
)

var (
	ErrPasswordTooLong = errors.New("password: exceeds maximum length")
	ErrMalformedHash   = errors.New("password: malformed argon2id hash")
)

// WeakPasswordError names the first strength rule a password failed.
type WeakPasswordError struct {
	Rule    string
	Message string
}

func (e *WeakPasswordError) Error() string { return e.Message }

// ValidatePasswordStrength checks the rules in a fixed order and reports the
// first one violated. Length is counted in characters, not bytes.
func ValidatePasswordStrength(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < MinPasswordLength:
		return &WeakPasswordError{RuleTooShort, fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)}
	case n > MaxPasswordLength:
		return &WeakPasswordError{RuleTooLong, fmt.Sprintf("Password must be less than %d characters long", MaxPasswordLength)}
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !lower:
		return &WeakPasswordError{RuleNoLowercase, "Password must contain at least one lowercase letter"}
	case !upper:
		return &WeakPasswordError{RuleNoUppercase, "Password must contain at least one uppercase letter"}
	case !digit:
		return &WeakPasswordError{RuleNoDigit, "Password must contain at least one digit"}
	case !symbol:
		return &WeakPasswordError{RuleNoSymbol, "Password must contain at least one special character"}
	}
	return nil
}

// HasherConfig carries the argon2id cost parameters used for new hashes.
type HasherConfig struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultHasherConfig returns the OWASP argon2id minimum: 19 MiB, 2 passes,
// one lane.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{Memory: 19 * 1024, Time: 2, Threads: 1}
}

// Hasher produces and verifies PHC-encoded argon2id hashes:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
//
// Verification reads the parameters from the encoded string, so hashes made
// with older settings keep verifying after the config changes.
type Hasher struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

func NewHasher(cfg HasherConfig) *Hasher {
	def := DefaultHasherConfig()
	if cfg.Memory == 0 {
		cfg.Memory = def.Memory
	}
	if cfg.Time == 0 {
		cfg.Time = def.Time
	}
	if cfg.Threads == 0 {
		cfg.Threads = def.Threads
	}
	return &Hasher{
		memory:  cfg.Memory,
		time:    cfg.Time,
		threads: cfg.Threads,
		keyLen:  32,
		saltLen: 16,
	}
}

// Hash derives a fresh salted hash. Passwords over MaxPasswordLength
// characters are refused.
func (h *Hasher) Hash(password string) (string, error) {
	if utf8.RuneCountInString(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	salt := common.GenerateRandByteArray(h.saltLen)
	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, h.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// an unparseable hash is ErrMalformedHash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	p, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decodeHash(encoded string) (HasherConfig, []byte, []byte, error) {
	var p HasherConfig

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrMalformedHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	return p, salt, key, nil
}
