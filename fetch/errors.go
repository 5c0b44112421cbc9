package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindBlocked          Kind = "blocked"   // HTTP 403 or 429
	KindNotFound         Kind = "not_found" // HTTP 404
	KindNetwork          Kind = "network"   // transport failures and other non-2xx statuses
	KindTooManyRedirects Kind = "too_many_redirects"
)

// Error is returned by Fetch for every failure
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // Set when the server answered
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a fetch error, or "" if err is not one
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// kindForStatus maps a non-2xx HTTP status to an error kind
func kindForStatus(status int) Kind {
	switch status {
	case 403, 429:
		return KindBlocked
	case 404:
		return KindNotFound
	default:
		return KindNetwork
	}
}
