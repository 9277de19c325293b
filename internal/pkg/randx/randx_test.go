package randx

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// Property: every generated room code is exactly 8 characters of [A-Z0-9].
func TestProperty_RoomCodeShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)

	properties.Property("generated room codes match [A-Z0-9]{8}", prop.ForAll(
		func(_ int) bool {
			code, err := RoomCode()
			if err != nil {
				return false
			}
			return roomCodePattern.MatchString(code) && IsValidRoomCode(code)
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Property: normalizing any input never yields more than RoomCodeLength characters,
// and normalizing twice is the same as normalizing once.
func TestProperty_NormalizeRoomCode(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)

	properties.Property("normalize is bounded and idempotent", prop.ForAll(
		func(s string) bool {
			n := NormalizeRoomCode(s)
			return len(n) <= RoomCodeLength && NormalizeRoomCode(n) == n
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab3de9f1", "AB3DE9F1"},
		{"  ab3de9f1  ", "AB3DE9F1"},
		{"AB3DE9F1XYZ", "AB3DE9F1"},
		{"abc", "ABC"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeRoomCode(tt.in); got != tt.want {
			t.Errorf("NormalizeRoomCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidRoomCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"AB3DE9F1", true},
		{"ZZZZZZZZ", true},
		{"ab3de9f1", false},
		{"AB3DE9F", false},
		{"AB3DE9F12", false},
		{"AB3DE-F1", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidRoomCode(tt.code); got != tt.valid {
			t.Errorf("IsValidRoomCode(%q) = %v, want %v", tt.code, got, tt.valid)
		}
	}
}

func TestIsValidUserID(t *testing.T) {
	if !IsValidUserID("alice-id") {
		t.Error("alice-id should be valid")
	}
	if !IsValidUserID(UserID()) {
		t.Error("generated user id should be valid")
	}
	if IsValidUserID("") || IsValidUserID("has space") {
		t.Error("empty and whitespace ids should be invalid")
	}
}
