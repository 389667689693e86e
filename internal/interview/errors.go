package interview

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound signals an operation against a session id the
// conversation store does not know; callers should have started the
// session first.
var ErrSessionNotFound = errors.New("unknown session id")

// ValidationError reports required session fields still missing after the
// form/slot merge.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("need: %s", strings.Join(e.Missing, ", "))
}
