package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used outside tests (~250ms per hash).
const defaultCost = 12

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// PasswordService hashes and verifies passwords with bcrypt.
// The cost is a field so tests can drop it to bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService using the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest returns a PasswordService with the given cost.
// Other packages' tests pass bcrypt.MinCost (4). Never use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// prehash maps a password of any length to 44 ASCII bytes, under bcrypt's
// 72-byte input limit, so multi-byte passwords are never truncated.
func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// Hash returns the bcrypt hash of the prehashed plaintext, salt and cost included:
//
//	$2a$12$<22-char salt><31-char hash>
func (p *PasswordService) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(prehash(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify compares plaintext against a stored hash in constant time.
// A wrong password returns ErrPasswordMismatch; a corrupt hash returns
// some other error.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// HashUnusable hashes 32 random bytes nobody knows. Accounts created through
// GitHub get this so password login is impossible until the user sets one.
func (p *PasswordService) HashUnusable() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return p.Hash(hex.EncodeToString(buf))
}
