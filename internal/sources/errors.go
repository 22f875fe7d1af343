package sources

import "fmt"

// FetchError reports that a feed could not be retrieved after every attempt
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RedirectLoopError reports a redirect chain longer than the configured hop limit
type RedirectLoopError struct {
	URL  string
	Hops int
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("redirect chain from %s exceeded %d hops", e.URL, e.Hops)
}

// ParseError reports a payload that is not well-formed XML or lacks the entries path
type ParseError struct {
	Source string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse"
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
