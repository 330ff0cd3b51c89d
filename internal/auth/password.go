package auth

import "golang.org/x/crypto/bcrypt"

// dummyHash is a fixed cost-10 bcrypt hash. Login compares against it when no
// account matches the email, so a lookup miss costs the same as a password
// mismatch and response timing does not reveal which emails are registered.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword hashes a plaintext password with the configured bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its stored hash.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// CompareDummy burns one bcrypt comparison against the fixed hash and
// discards the result. It exists only to equalize timing on the
// unknown-email path; callers reject the login regardless.
func CompareDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
