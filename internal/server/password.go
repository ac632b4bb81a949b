package server

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"hash"
	"strings"
)

// Password scheme prefixes as used by common LDAP servers (RFC 3112 style).
const (
	SchemeSHA256    = "{SHA256}"
	SchemeSSHA256   = "{SSHA256}"
	SchemeSHA512    = "{SHA512}"
	SchemeSSHA512   = "{SSHA512}"
	SchemeCleartext = "{CLEARTEXT}"
)

// saltSize is the salt length generated for salted schemes.
const saltSize = 16

// Password verification errors.
var (
	ErrInvalidPasswordFormat = errors.New("auth: invalid password format")
	ErrUnsupportedScheme     = errors.New("auth: unsupported password scheme")
	ErrPasswordMismatch      = errors.New("auth: password mismatch")
)

type digestScheme struct {
	newHash func() hash.Hash
	size    int
	salted  bool
}

var digestSchemes = map[string]digestScheme{
	SchemeSHA256:  {sha256.New, sha256.Size, false},
	SchemeSSHA256: {sha256.New, sha256.Size, true},
	SchemeSHA512:  {sha512.New, sha512.Size, false},
	SchemeSSHA512: {sha512.New, sha512.Size, true},
}

// VerifyPassword verifies a plaintext password against a stored value of
// the form {SCHEME}base64. A value without a scheme prefix is compared as
// cleartext. Returns nil if the password matches.
func VerifyPassword(plaintext, stored string) error {
	if stored == "" {
		return ErrInvalidPasswordFormat
	}

	schemeEnd := strings.Index(stored, "}")
	if schemeEnd == -1 || !strings.HasPrefix(stored, "{") {
		return compareCleartext(plaintext, stored)
	}

	scheme := strings.ToUpper(stored[:schemeEnd+1])
	encoded := stored[schemeEnd+1:]

	if scheme == SchemeCleartext {
		return compareCleartext(plaintext, encoded)
	}

	ds, ok := digestSchemes[scheme]
	if !ok {
		return ErrUnsupportedScheme
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidPasswordFormat
	}
	// salted values carry the salt after the digest
	if ds.salted && len(data) <= ds.size || !ds.salted && len(data) != ds.size {
		return ErrInvalidPasswordFormat
	}

	computed := ds.digest(plaintext, data[ds.size:])
	if subtle.ConstantTimeCompare(computed, data[:ds.size]) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// HashPassword hashes plaintext with scheme. Salted schemes draw a fresh
// random salt.
func HashPassword(plaintext, scheme string) (string, error) {
	scheme = strings.ToUpper(scheme)
	if scheme == SchemeCleartext {
		return SchemeCleartext + plaintext, nil
	}

	ds, ok := digestSchemes[scheme]
	if !ok {
		return "", ErrUnsupportedScheme
	}

	var salt []byte
	if ds.salted {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return "", err
		}
	}

	data := append(ds.digest(plaintext, salt), salt...)
	return scheme + base64.StdEncoding.EncodeToString(data), nil
}

func (ds digestScheme) digest(plaintext string, salt []byte) []byte {
	h := ds.newHash()
	h.Write([]byte(plaintext))
	h.Write(salt)
	return h.Sum(nil)
}

func compareCleartext(plaintext, stored string) error {
	if subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}
