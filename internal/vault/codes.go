package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Alphabet excludes 0/O and 1/I so codes survive being read aloud or
// copied from paper.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the canonical backup code length in characters.
const CodeLength = 8

// Code pairs a generated plaintext with its opaque id. The plaintext is
// shown to the user exactly once and never persisted.
type Code struct {
	ID        string
	Plaintext string
}

// Generate produces count independent codes from a cryptographically
// strong source. Codes are not deduplicated across identities; the
// 32^8 space makes per-batch collisions a non-concern.
func Generate(count int) ([]Code, error) {
	if count <= 0 {
		count = 10
	}
	codes := make([]Code, 0, count)
	for i := 0; i < count; i++ {
		plaintext, err := randomCode(CodeLength)
		if err != nil {
			return nil, err
		}
		codes = append(codes, Code{
			ID:        uuid.NewString(),
			Plaintext: plaintext,
		})
	}
	return codes, nil
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Canonicalize upper-cases a user-entered code and strips separators.
func Canonicalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// HashCode returns the identity-salted hash persisted for a code. Salting
// with the identity keeps equal codes from producing equal hashes across
// identities.
func HashCode(identityID, canonicalCode string) string {
	sum := sha256.Sum256([]byte(identityID + ":" + canonicalCode))
	return hex.EncodeToString(sum[:])
}
