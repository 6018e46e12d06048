// Package validate holds the form checks applied before talking to the API.
package validate

import (
	"errors"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10,15}$`)
)

const minPasswordLen = 6

// Email reports whether s is a plausible email address (whole-string match).
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Phone reports whether s consists of 10 to 15 digits.
func Phone(s string) bool {
	return phoneRe.MatchString(s)
}

// Password checks the minimum length accepted at registration.
func Password(s string) error {
	if len(s) < minPasswordLen {
		return errors.New("password must be at least 6 characters long")
	}
	return nil
}
