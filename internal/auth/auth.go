// Package auth verifies the auth_token carried on UNREGISTER and the
// room operations, and hashes tokens at rest, mirroring the bcrypt/JWT
// split used by the chat app this broker borrows its user-auth shape
// from: a stored bcrypt hash is the default path, with an optional
// JWT-format token verified against a shared secret instead of the
// hash. REGISTER does not verify a token; it stores the bcrypt hash of
// the token it carries.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Verifier hashes tokens for storage and verifies them on subsequent
// UNREGISTER, ROOM_CREATE, ROOM_JOIN and ROOM_LEAVE calls.
type Verifier struct {
	jwtSecret string
}

// NewVerifier builds a Verifier; jwtSecret may be empty, in which case
// the JWT reattachment path is disabled and only bcrypt comparison is
// attempted.
func NewVerifier(jwtSecret string) *Verifier {
	return &Verifier{jwtSecret: jwtSecret}
}

// Hash returns the bcrypt digest of token for ClientRepository to
// persist as Client.AuthTokenHash.
func Hash(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// reattachClaims is the claim set for a broker-issued reattachment
// token; it never appears on the wire except as the opaque auth_token
// string supplied by a client that received one out of band.
type reattachClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// Verify checks token against storedHash for clientID. A token that
// parses as a three-segment JWT is verified against the configured
// secret instead of the hash, and must carry a matching client_id
// claim; any other token is compared via bcrypt.CompareHashAndPassword,
// which runs in time independent of where the token and hash first
// differ.
func (v *Verifier) Verify(clientID, storedHash, token string) bool {
	if v.jwtSecret != "" && looksLikeJWT(token) {
		claims := &reattachClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return []byte(v.jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			return false
		}
		return claims.ClientID == clientID
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(token)) == nil
}

// IssueReattachToken mints a JWT that Verify accepts for clientID in
// place of the stored bcrypt hash. No broker handler calls it.
func (v *Verifier) IssueReattachToken(clientID string, ttl time.Duration) (string, error) {
	claims := reattachClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "signalbroker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(v.jwtSecret))
}

func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}
