package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// SessionExpiration defines the lifetime of a session token. Connected clients
	// receive a fresh token before it lapses.
	SessionExpiration = 15 * time.Minute

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "ListenTogether-Server"
)

var (
	ErrSessionExpired = errors.New("session token expired")
	ErrSessionInvalid = errors.New("session token invalid")
)

// IssueSession signs a session token binding userID for ttl and returns it with its expiry.
func IssueSession(userID, secretKey string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("issue session: empty user id")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	payload := &Payload{
		ID: userID,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifySession checks a session token's signature, issuer and expiry.
// The returned error is ErrSessionExpired or ErrSessionInvalid.
func VerifySession(tokenString, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	if !token.Valid || claims.ID == "" || !claims.VerifyIssuer(TokenIssuer, true) {
		return nil, ErrSessionInvalid
	}

	return claims, nil
}

// Owns reports whether tokenString is a live session for userID.
func Owns(tokenString, secretKey, userID string) bool {
	if tokenString == "" {
		return false
	}
	payload, err := VerifySession(tokenString, secretKey)
	return err == nil && payload.ID == userID
}
