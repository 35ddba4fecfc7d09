package utils // package utils provides helper functions for token creation and hashing

import (
	"encoding/base64" // compact text form of the fingerprint
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"golang.org/x/crypto/blake2b"  // keyed hash used for password fingerprints
)

// Token types carried in the typ claim.  A token of one type is never
// accepted where the other is expected.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrTokenType is returned when a token of the wrong type is presented.
var ErrTokenType = errors.New("unexpected token type")

// Claims is the payload of both access and refresh tokens.  Subject holds
// the account id; Fingerprint is derived from the password hash that was
// current when the token was issued.
type Claims struct {
	jwt.RegisteredClaims
	Fingerprint string `json:"pfp"`
	Type        string `json:"typ"`
}

// SignedToken represents a serialized JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// PasswordFingerprint derives a one-way tag from a password hash.  The
// tag changes whenever the hash changes, and without the key it cannot be
// linked back to the hash.
func PasswordFingerprint(key []byte, passwordHash string) string {
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// only reachable with an oversized key, which is reduced above
		panic(err)
	}
	h.Write([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:16])
}

// SignToken builds and signs an HS256 JWT of the given type.  The token
// is valid from now until now+ttl.
func SignToken(secret []byte, issuer, tokenType, subject, fingerprint string, now time.Time, ttl time.Duration) (SignedToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Fingerprint: fingerprint,
		Type:        tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken checks the signature, algorithm, issuer and expiry of raw at
// the instant now, and that its typ claim equals tokenType.
func ParseToken(secret []byte, issuer, tokenType, raw string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, ErrTokenType
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return claims, nil
}
