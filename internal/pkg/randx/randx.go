/*
Package randx provides functions for generating cryptographically secure random numbers and unique identifiers.

It is primarily used to generate fixed-length uppercase alphanumeric room codes and
standard UUID user, suggestion and message IDs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// RoomCodeChars defines the character set used for room codes (A-Z, 0-9).
	RoomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// RoomCodeCharsLen is the total number of characters in the room code character set (36).
	RoomCodeCharsLen = int64(len(RoomCodeChars))

	// RoomCodeLength is the fixed length required for the generated room code.
	RoomCodeLength = 8

	// MaxUserIDLength caps client-supplied user (device) IDs.
	MaxUserIDLength = 64
)

// RoomCode generates a room code using a cryptographically secure random number generator (crypto/rand).
// It returns a string of length RoomCodeLength and any error encountered.
func RoomCode() (string, error) {
	result := make([]byte, RoomCodeLength)

	for i := range RoomCodeLength {
		num, err := rand.Int(rand.Reader, big.NewInt(RoomCodeCharsLen))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room code: %v", err)
		}

		result[i] = RoomCodeChars[num.Int64()]
	}

	return string(result), nil
}

// NormalizeRoomCode applies the room-code input contract: surrounding whitespace is
// dropped, letters are upper-cased and input beyond RoomCodeLength characters is cut off.
func NormalizeRoomCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) > RoomCodeLength {
		code = code[:RoomCodeLength]
	}
	return code
}

// IsValidRoomCode checks if the given string is a canonical room code:
// exactly RoomCodeLength characters, all from RoomCodeChars.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(RoomCodeChars, char) {
			return false
		}
	}

	return true
}

// UserID generates a UUID v4 string used as a session user ID when the client did not supply one.
func UserID() string {
	return uuid.New().String()
}

// IsValidUserID checks a client-supplied user ID: non-empty, bounded, no whitespace.
func IsValidUserID(id string) bool {
	if id == "" || len(id) > MaxUserIDLength {
		return false
	}
	return !strings.ContainsAny(id, " \t\r\n")
}

// SuggestionID generates a UUID v4 string identifying a track suggestion.
func SuggestionID() string {
	return uuid.New().String()
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}
