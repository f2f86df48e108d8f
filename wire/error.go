// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"

	"github.com/pkg/errors"
)

// MessageError describes an issue with a message.
// An example of some potential issues are messages from the wrong mvc
// network, invalid commands, mismatched checksums, and exceeding max payloads.
//
// This provides a mechanism for the caller to type assert the error to
// differentiate between general io errors such as io.EOF and issues that
// resulted from malformed messages.
type MessageError struct {
	Func        string // Function name
	Description string // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%v: %v", e.Func, e.Description)
	}
	return e.Description
}

// messageError creates an error for the given function and description.
func messageError(f string, desc string) *MessageError {
	return &MessageError{Func: f, Description: desc}
}

// These errors classify the framing violations that are fatal to a
// connection. The assembler and the message readers wrap them with detail, so
// callers identify the class with errors.Is and drop the connection instead
// of retrying. None of them is ever recoverable by resynchronizing the
// stream.
var (
	// ErrMalformedHeader is returned when an inbound header carries the wrong
	// network magic, an ill-formed command, or an extended header whose basic
	// fields do not pair the extmsg command with the extended length
	// sentinel.
	ErrMalformedHeader = errors.New("malformed message header")

	// ErrOversizedMessage is returned when a header declares a payload larger
	// than the ceiling for its command. It is raised before any payload byte
	// is buffered.
	ErrOversizedMessage = errors.New("oversized message payload")

	// ErrChecksumMismatch is returned when the double SHA256 of a buffered
	// payload disagrees with the checksum carried in its basic header.
	ErrChecksumMismatch = errors.New("message checksum mismatch")

	// ErrInvalidProtoconf is returned when a protoconf message declares zero
	// fields or carries a stream policy string beyond the protocol bounds.
	ErrInvalidProtoconf = errors.New("invalid protoconf message")
)
