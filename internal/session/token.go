// Package session decides locally whether a stored bearer token is still
// usable and routes application start-up accordingly.
//
// Tokens are never verified: the client holds no key material. Only the
// payload's exp claim is read, and anything that cannot be read is treated
// as expired.
package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

var (
	ErrMalformed       = errors.New("token is not three dot-separated segments")
	ErrPayloadEncoding = errors.New("token payload is not valid base64")
	ErrPayloadJSON     = errors.New("token payload is not a JSON object")
	ErrMissingExp      = errors.New("token payload has no numeric exp claim")
)

// TokenError describes why a token payload could not be read.
// errors.Is matches the Reason sentinel.
type TokenError struct {
	Reason error
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Err)
	}
	return e.Reason.Error()
}

func (e *TokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Checker evaluates token expiry against a Clock.
type Checker struct {
	Clock Clock
}

// NewChecker returns a Checker using clock, or the system clock when nil.
func NewChecker(clock Clock) Checker {
	if clock == nil {
		clock = SystemClock{}
	}
	return Checker{Clock: clock}
}

// IsExpired reports whether token must be treated as expired: either its exp
// claim is at or before now, or the token cannot be decoded at all.
func (c Checker) IsExpired(token string) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !c.now().Before(exp)
}

func (c Checker) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// IsExpired checks token against the system clock.
func IsExpired(token string) bool {
	return NewChecker(nil).IsExpired(token)
}

// maxExpSeconds keeps absurd exp values inside time.Time's comfortable range.
const maxExpSeconds = 1 << 40

// ExpiresAt decodes the exp claim of a compact three-segment token.
func ExpiresAt(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, &TokenError{Reason: ErrMalformed, Err: fmt.Errorf("got %d segments", len(parts))}
	}

	raw, err := decodeSegment(parts[1])
	if err != nil {
		return time.Time{}, &TokenError{Reason: ErrPayloadEncoding, Err: err}
	}

	claims, err := decodeClaims(raw)
	if err != nil {
		return time.Time{}, &TokenError{Reason: ErrPayloadJSON, Err: err}
	}

	num, ok := claims["exp"].(json.Number)
	if !ok {
		return time.Time{}, &TokenError{Reason: ErrMissingExp}
	}
	secs, err := wholeSeconds(num)
	if err != nil {
		return time.Time{}, &TokenError{Reason: ErrMissingExp, Err: err}
	}
	return time.Unix(secs, 0), nil
}

// decodeSegment accepts the URL-safe alphabet, pads the segment with '=' to a
// multiple of four and decodes it as standard base64.
func decodeSegment(seg string) ([]byte, error) {
	s := strings.NewReplacer("-", "+", "_", "/").Replace(seg)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(s)
}

func decodeClaims(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, errors.New("payload is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after payload")
	}
	return claims, nil
}

func wholeSeconds(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return clampSeconds(float64(i)), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return clampSeconds(math.Trunc(f)), nil
}

func clampSeconds(f float64) int64 {
	switch {
	case f > maxExpSeconds:
		return maxExpSeconds
	case f < -maxExpSeconds:
		return -maxExpSeconds
	default:
		return int64(f)
	}
}
