// password.go wraps bcrypt for credential storage and verification. Verification is
// constant-time; callers must never compare password strings directly.
package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost is the work factor for new password hashes.
const bcryptCost = 12

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
