package security

import "golang.org/x/crypto/bcrypt"

// adminBcryptCost is the work factor for operator passwords. Logins are rare
// (one dashboard session per operator), so the cost leans high.
const adminBcryptCost = 12

// HashPassword hashes an operator password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), adminBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a plaintext password matches a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
