package gate

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength is the upper bound on a single turn's message.
const MaxMessageLength = 1000

var (
	// ErrMessageEmpty is returned for zero-length messages.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrMessageTooLong is returned for messages over MaxMessageLength characters.
	ErrMessageTooLong = errors.New("message exceeds maximum length")

	// ErrInvalidEncoding is returned for messages that are not valid UTF-8.
	ErrInvalidEncoding = errors.New("message is not valid UTF-8")

	// ErrControlCharacters is returned for messages containing disallowed
	// control characters (anything other than tab, newline, carriage return).
	ErrControlCharacters = errors.New("message contains control characters")
)

// ValidateMessage enforces length bounds, encoding, and character policy on a
// raw user message.
func ValidateMessage(text string) error {
	if text == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(text) {
		return ErrInvalidEncoding
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageLength {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLong, n, MaxMessageLength)
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return ErrControlCharacters
		}
	}
	return nil
}
