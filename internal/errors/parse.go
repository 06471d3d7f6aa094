package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
)

// maxFragmentLen bounds how much raw HTML is echoed in an error message.
const maxFragmentLen = 300

// ParseError reports that a page or item fragment did not have the expected shape.
type ParseError struct {
	URL      string
	Fragment string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("unable to parse")
	if e.URL != "" {
		b.WriteString(" ")
		b.WriteString(e.URL)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Fragment != "" {
		frag := strings.Join(strings.Fields(e.Fragment), " ")
		if len(frag) > maxFragmentLen {
			frag = frag[:maxFragmentLen] + "..."
		}
		fmt.Fprintf(&b, " (fragment: %s)", frag)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError without an underlying cause.
func NewParseError(url, reason string) *ParseError {
	return &ParseError{URL: url, Reason: reason}
}

// IsParseError reports whether err is a ParseError (even when wrapped).
func IsParseError(err error) bool {
	var parseErr *ParseError
	return stdErrors.As(err, &parseErr)
}
