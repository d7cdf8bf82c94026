// SPDX-License-Identifier: AGPL-3.0-only
package feed

import (
	"errors"
	"fmt"

	"github.com/ordinary-app/app-sub001/internal/protocol"
)

var (
	ErrFetchInFlight   = errors.New("feed: fetch already in flight")
	ErrNoMorePages     = errors.New("feed: no more pages")
	ErrSessionClosed   = errors.New("feed: session closed")
	ErrItemNotFound    = errors.New("feed: item not found")
	ErrToggleInFlight  = errors.New("feed: toggle already in flight")
	ErrUnauthenticated = protocol.ErrUnauthenticated
)

// TransientFetchError is a failed page fetch. The cursor is the one the
// fetch started from, so retrying resumes at the same point.
type TransientFetchError struct {
	Subject protocol.Subject
	Cursor  string
	Err     error
}

func (e *TransientFetchError) Error() string {
	cursor := e.Cursor
	if cursor == "" {
		cursor = "<first>"
	}
	return fmt.Sprintf("fetch %s at %s: %v", e.Subject.Key(), cursor, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// WriteRejectedError is a write the protocol refused outright.
type WriteRejectedError struct {
	Kind protocol.WriteKind
	Err  error
}

func (e *WriteRejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Kind, e.Err)
}

func (e *WriteRejectedError) Unwrap() error { return e.Err }
