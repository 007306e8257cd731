/*
Package imapresp decodes IMAP4 server responses from a byte stream.

Decode recognizes one response unit at the start of a buffer: a tagged
command completion, or an untagged condition, capability, mailbox-state,
expunge or fetch response. The decoder holds no state between calls and does
no I/O. A connection layer reads bytes from the server, calls Decode, and on
an incomplete-input result reads more bytes and calls Decode again with the
grown buffer, always from the start of the same unit. Decode validates
syntax only; whether a response is expected at this point in the session is
for the connection layer to judge.
*/
package imapresp

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means the buffer holds a valid prefix of a response but
	// not yet a whole one. Retry with more bytes. Errors returned by Decode
	// match it through errors.Is; use errors.As with IncompleteError for the
	// byte-count hint.
	ErrIncomplete = errors.New("incomplete response")

	// ErrSyntax means no valid response can start with the buffer. Not
	// recoverable: the connection is broken at the protocol level.
	ErrSyntax = errors.New("malformed response")
)

// IncompleteError is the error returned by Decode when more input is needed.
type IncompleteError struct {
	// Minimum number of additional bytes needed, 0 if unknown. Known only
	// when the buffer ends inside a literal of announced length.
	Need int
}

func (e IncompleteError) Error() string {
	if e.Need > 0 {
		return fmt.Sprintf("incomplete response: need at least %d more bytes", e.Need)
	}
	return "incomplete response: need more data"
}

func (e IncompleteError) Unwrap() error {
	return ErrIncomplete
}

// Decode decodes the single response unit at the start of buf.
//
// On success it returns the response and the number of bytes consumed,
// which is exactly the unit including its terminating CRLF; remaining bytes
// belong to the next unit. Otherwise it returns a zero count and either an
// IncompleteError or an error matching ErrSyntax.
//
// Decoded values copy out of buf, the caller may reuse the buffer
// immediately. Decode is pure: concurrent calls need no locking.
func Decode(buf []byte) (resp Response, n int, rerr error) {
	p := &parser{buf: buf}
	defer func() {
		x := recover()
		if x == nil {
			return
		}
		switch e := x.(type) {
		case incompleteErr:
			resp, n, rerr = nil, 0, IncompleteError{Need: e.need}
		case syntaxErr:
			resp, n, rerr = nil, 0, e.err
		default:
			panic(x)
		}
	}()
	r := p.xresponse()
	return r, p.o, nil
}
