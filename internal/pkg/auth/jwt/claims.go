package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a Listen Together session token. A session token proves
// ownership of a user ID: presenting it in HELLO after a reconnect resumes that user's
// room membership, and it authorizes the block-list API.
type Payload struct {
	jwt.StandardClaims

	// ID is the stable user (device) identifier the session is bound to.
	ID string `json:"uid"`
}
