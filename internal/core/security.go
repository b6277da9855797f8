// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10

	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

// CredentialStore hashes and verifies passwords with a fixed bcrypt
// work factor.
type CredentialStore struct {
	cost      int
	dummyHash string
}

func NewCredentialStore(cost int) (*CredentialStore, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf(
			"bcrypt cost %d outside [%d,%d]: %w",
			cost,
			bcrypt.MinCost,
			bcrypt.MaxCost,
			ErrInvalidInput,
		)
	}

	dummy, err := bcrypt.GenerateFromPassword(
		[]byte("dummy_password_for_timing_attack_prevention"),
		cost,
	)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &CredentialStore{cost: cost, dummyHash: string(dummy)}, nil
}

func (c *CredentialStore) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("hash password: %w", ErrInvalidInput)
	}
	if len(password) > MaxPasswordBytes {
		return "", InvalidInput("password must be at most 72 bytes")
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", InvalidInput("password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(h), nil
}

// Verify never fails loudly: a mismatch and a malformed digest both
// report false.
func (c *CredentialStore) Verify(password, digest string) bool {
	if digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}

// VerifyTimingSafe spends the same work whether or not an account
// exists for the presented email.
func (c *CredentialStore) VerifyTimingSafe(password string, digest *string) bool {
	if digest == nil || *digest == "" {
		//nolint:errcheck // result discarded on purpose
		_ = bcrypt.CompareHashAndPassword([]byte(c.dummyHash), []byte(password))
		return false
	}
	return c.Verify(password, *digest)
}

func (c *CredentialStore) Cost() int {
	return c.cost
}

func GenerateHexToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateNumericCode returns a zero-padded random code of the given
// number of digits.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", errors.New("numeric code length out of range")
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CompareTokenHash(token, hash string) bool {
	tokenHash := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(tokenHash), []byte(hash)) == 1
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
