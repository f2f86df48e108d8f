// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgVerAck implements the Message interface and represents an mvc verack
// message which is used for a peer to acknowledge a version message
// (MsgVersion) after it has used the information to negotiate parameters. It
// implies that the verack sender can begin to receive other messages,
// protoconf first among them.
//
// This message has no payload.
type MsgVerAck struct{}

// MvcDecode decodes r using the mvc protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgVerAck) MvcDecode(r io.Reader, pver uint32) error {
	return nil
}

// MvcEncode encodes the receiver to w using the mvc protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgVerAck) MvcEncode(w io.Writer, pver uint32) error {
	return nil
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgVerAck) Command() string {
	return CmdVerAck
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgVerAck) MaxPayloadLength(pver uint32) uint64 {
	return 0
}

// NewMsgVerAck returns a new mvc verack message that conforms to the Message
// interface. See MsgVerAck for details.
func NewMsgVerAck() *MsgVerAck {
	return &MsgVerAck{}
}
