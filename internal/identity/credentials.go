package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// tokenScheme prefixes every issued credential so leaked tokens are easy
	// to recognise in scanners and logs.
	tokenScheme = "cs"
	// prefixLen is the length of the non-secret lookup prefix.
	prefixLen = 8
	// secretBytes is the entropy of the secret part.
	secretBytes = 32
)

// TokenPrefix is the leading marker of every issued credential token.
const TokenPrefix = tokenScheme + "_"

// MintedCredential is the one-time result of issuing a credential. Token is
// the full secret value handed to the holder; it is never recoverable later.
type MintedCredential struct {
	Token  string
	Prefix string
	// SecretHash is the bcrypt hash persisted in place of the secret.
	SecretHash string
}

// Mint generates a fresh credential token of the form "cs_<prefix>_<secret>"
// and its storable hash.
func Mint() (MintedCredential, error) {
	prefix, err := randomToken(prefixLen)
	if err != nil {
		return MintedCredential{}, err
	}
	secret, err := randomToken(secretBytes * 4 / 3)
	if err != nil {
		return MintedCredential{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return MintedCredential{}, err
	}
	return MintedCredential{
		Token:      tokenScheme + "_" + prefix + "_" + secret,
		Prefix:     prefix,
		SecretHash: string(hash),
	}, nil
}

// SplitToken parses a raw credential into its lookup prefix and secret.
func SplitToken(raw string) (prefix, secret string, err error) {
	raw = strings.TrimSpace(raw)
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 || parts[0] != tokenScheme || parts[1] == "" || parts[2] == "" {
		return "", "", errors.New("identity: malformed credential token")
	}
	return parts[1], parts[2], nil
}

// VerifySecret compares a candidate secret against a stored hash. bcrypt's
// comparison is constant time with respect to the secret.
func VerifySecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(buf)
	// Underscores delimit token parts, so strip them from the alphabet.
	s = strings.ReplaceAll(s, "_", "x")
	s = strings.ReplaceAll(s, "-", "y")
	if len(s) > n {
		s = s[:n]
	}
	return s, nil
}
