// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgGetAddr implements the Message interface and represents an mvc getaddr
// message. It is used to request a list of known active peers on the network
// from a peer to help identify potential nodes. The list is returned via one
// or more addr messages (MsgAddr).
//
// This message has no payload.
type MsgGetAddr struct{}

// MvcDecode decodes r using the mvc protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgGetAddr) MvcDecode(r io.Reader, pver uint32) error {
	return nil
}

// MvcEncode encodes the receiver to w using the mvc protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgGetAddr) MvcEncode(w io.Writer, pver uint32) error {
	return nil
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgGetAddr) Command() string {
	return CmdGetAddr
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgGetAddr) MaxPayloadLength(pver uint32) uint64 {
	return 0
}

// NewMsgGetAddr returns a new mvc getaddr message that conforms to the
// Message interface. See MsgGetAddr for details.
func NewMsgGetAddr() *MsgGetAddr {
	return &MsgGetAddr{}
}
