package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
)

const (
	envOperatorUser = "SHELTERCORE_OPERATOR_USER"
	envOperatorPass = "SHELTERCORE_OPERATOR_PASS_SHA256"

	defaultOperatorUser = "admin"
)

// defaultOperatorDigest is the hex SHA-256 of the out-of-the-box operator
// password "1234". Deployments override it through the environment.
var defaultOperatorDigest = HashPassword("1234")

// HashPassword returns the lowercase hex SHA-256 digest of a password.
// Equal passwords always yield equal digests; plaintext is never stored.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// OperatorCredential is the single out-of-band staff credential. It lives in
// configuration, not in the identity store.
type OperatorCredential struct {
	Username   string
	PassSHA256 string
}

// Validate reports whether the supplied login matches the credential. It is a
// pure comparison with no store access.
func (c OperatorCredential) Validate(username, password string) bool {
	if c.Username == "" || c.PassSHA256 == "" {
		return false
	}
	digest := HashPassword(password)
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.PassSHA256), []byte(digest)) == 1
	return userOK && passOK
}

// OperatorFromEnv builds the operator credential from the environment,
// falling back to the built-in default login.
func OperatorFromEnv() OperatorCredential {
	cred := OperatorCredential{
		Username:   defaultOperatorUser,
		PassSHA256: defaultOperatorDigest,
	}
	if v := os.Getenv(envOperatorUser); v != "" {
		cred.Username = v
	}
	if v := os.Getenv(envOperatorPass); v != "" {
		cred.PassSHA256 = v
	}
	return cred
}
