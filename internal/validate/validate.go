// Package validate checks English name input before it is sent to the
// recommendation service.
//
// [Name] is pure and deterministic so it can run on every keystroke as well as
// on form submission.
package validate

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLen is the maximum number of characters accepted in a name.
const MaxLen = 30

var (
	// ErrEmptyInput is returned for empty or whitespace-only input.
	ErrEmptyInput = errors.New("name is empty")

	// ErrTooLong is returned when the input exceeds [MaxLen] characters.
	ErrTooLong = errors.New("name is too long")

	// ErrInvalidCharacters is returned when the input contains anything other
	// than ASCII letters and spaces.
	ErrInvalidCharacters = errors.New("name contains invalid characters")
)

// Name validates raw input text. Rules are checked in order and the first
// failure wins: emptiness, length, then character set. Returns nil when the
// input is acceptable.
func Name(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(raw) > MaxLen {
		return ErrTooLong
	}
	for _, r := range raw {
		if !allowed(r) {
			return ErrInvalidCharacters
		}
	}
	return nil
}

func allowed(r rune) bool {
	return r == ' ' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// Message returns the user-facing text for a validation error. Errors that
// did not originate in this package are rendered with their own message; nil
// renders as the empty string.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Please enter a name."
	case errors.Is(err, ErrTooLong):
		return "Please keep the name within 30 characters."
	case errors.Is(err, ErrInvalidCharacters):
		return "Only English letters and spaces are allowed."
	default:
		return err.Error()
	}
}
