package types

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidSession rejects session ids that cannot name a log directory
// or state file.
var ErrInvalidSession = errors.New("invalid session id")

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidateSessionID accepts ids made of letters, digits, '_', '.' and '-'
// that start with a letter or digit, so they never leave their directory.
func ValidateSessionID(id string) error {
	if !sessionPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return nil
}
