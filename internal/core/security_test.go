// AngelaMos | 2026
// security_test.go

package core

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	store, err := NewCredentialStore(bcrypt.MinCost)
	require.NoError(t, err)

	for _, password := range []string{"secret123", "pässwörd", "a b c d e f"} {
		digest, err := store.Hash(password)
		require.NoError(t, err)
		assert.NotEqual(t, password, digest)
		assert.True(t, store.Verify(password, digest))
		assert.False(t, store.Verify(password+"x", digest))
	}
}

func TestCredentialStoreRejectsAlteredDigest(t *testing.T) {
	store, err := NewCredentialStore(bcrypt.MinCost)
	require.NoError(t, err)

	digest, err := store.Hash("secret123")
	require.NoError(t, err)

	// the last 31 characters carry the hash; the final one has padding bits
	for i := len(digest) - 31; i < len(digest)-1; i++ {
		altered := []byte(digest)
		altered[i] ^= 0x01
		assert.False(t, store.Verify("secret123", string(altered)), "position %d", i)
	}
}

func TestCredentialStoreMalformedDigest(t *testing.T) {
	store, err := NewCredentialStore(bcrypt.MinCost)
	require.NoError(t, err)

	assert.False(t, store.Verify("secret123", ""))
	assert.False(t, store.Verify("secret123", "not-a-bcrypt-digest"))
	assert.False(t, store.VerifyTimingSafe("secret123", nil))

	_, err = store.Hash("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCredentialStorePasswordByteLimit(t *testing.T) {
	store, err := NewCredentialStore(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = store.Hash(strings.Repeat("p", MaxPasswordBytes))
	require.NoError(t, err)

	for _, tooLong := range []string{
		strings.Repeat("p", MaxPasswordBytes+1),
		strings.Repeat("é", 37),
	} {
		_, err = store.Hash(tooLong)
		require.ErrorIs(t, err, ErrInvalidInput)

		rec := httptest.NewRecorder()
		WriteError(rec, err, http.StatusBadRequest)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
		assert.Contains(t, rec.Body.String(), "72 bytes")
	}
}

func TestNewCredentialStoreCostBounds(t *testing.T) {
	_, err := NewCredentialStore(bcrypt.MinCost - 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewCredentialStore(bcrypt.MaxCost + 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateTokens(t *testing.T) {
	hexToken, err := GenerateHexToken(32)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), hexToken)

	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)

	_, err = GenerateNumericCode(0)
	assert.Error(t, err)
}

func TestTokenHash(t *testing.T) {
	hash := HashToken("abc")
	assert.Len(t, hash, 64)
	assert.True(t, CompareTokenHash("abc", hash))
	assert.False(t, CompareTokenHash("abd", hash))
	assert.True(t, ConstantTimeEqual("123456", "123456"))
	assert.False(t, ConstantTimeEqual("123456", "123457"))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	in := time.Date(2026, 3, 12, 23, 59, 59, 999, loc)

	got := StartOfDay(in)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}
