// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	// MaxNumStreamPolicies is the maximum number of named stream policies a
	// protoconf message may carry.
	MaxNumStreamPolicies = 10

	// MaxStreamPolicyNameLength is the maximum length of a single stream
	// policy name.
	MaxStreamPolicyNameLength = 20

	// maxStreamPoliciesLength bounds the serialized comma separated stream
	// policy list: every name at its maximum length plus a separator. An
	// encoded string beyond this bound implies more policies than
	// MaxNumStreamPolicies allows and is rejected.
	maxStreamPoliciesLength = (MaxStreamPolicyNameLength + 1) * MaxNumStreamPolicies

	// DefaultStreamPolicies is the stream policy list this node advertises,
	// in order of preference.
	DefaultStreamPolicies = "BlockPriority,Default"

	// protoconfFields is the number of fields this version of the protocol
	// serializes into an outbound protoconf message. Increment it when new
	// fields are added.
	protoconfFields = 2
)

// MsgProtoconf implements the Message interface and represents an mvc
// protoconf message. It is sent once, right after verack, to declare the
// sender's receive capabilities: the largest payload it accepts and the
// stream policies it supports. Peers that never send one are assumed to
// accept no more than LegacyMaxProtocolPayloadLength.
//
// The message is forward compatible. NumberOfFields announces how many
// fields the sender serialized; receivers read the fields they know and
// ignore the rest of the payload. A protoconf declaring zero fields is
// invalid and fatal to the connection.
type MsgProtoconf struct {
	NumberOfFields       uint64
	MaxRecvPayloadLength uint32
	StreamPolicies       string
}

// MvcDecode decodes r using the mvc protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgProtoconf) MvcDecode(r io.Reader, pver uint32) error {
	numberOfFields, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if numberOfFields == 0 {
		return errors.Wrap(ErrInvalidProtoconf, "number of fields is 0")
	}
	msg.NumberOfFields = numberOfFields

	err = ReadElement(r, &msg.MaxRecvPayloadLength)
	if err != nil {
		return err
	}

	if numberOfFields > 1 {
		count, err := ReadVarInt(r, pver)
		if err != nil {
			return err
		}
		if count > maxStreamPoliciesLength {
			return errors.Wrapf(ErrInvalidProtoconf,
				"stream policies length %d exceeds max %d", count, maxStreamPoliciesLength)
		}
		streamPolicies := make([]byte, count)
		_, err = io.ReadFull(r, streamPolicies)
		if err != nil {
			return err
		}
		msg.StreamPolicies = string(streamPolicies)
	}

	// Fields beyond the ones this version knows are left unread on
	// purpose; the declared count only promises how much the sender
	// serialized, not that the receiver understands it.
	return nil
}

// MvcEncode encodes the receiver to w using the mvc protocol encoding.
// This is part of the Message interface implementation. The full known field
// set is always serialized, whatever NumberOfFields a decoded message
// carried.
func (msg *MsgProtoconf) MvcEncode(w io.Writer, pver uint32) error {
	if len(msg.StreamPolicies) > maxStreamPoliciesLength {
		str := fmt.Sprintf("stream policies too long [len %d, max %d]",
			len(msg.StreamPolicies), maxStreamPoliciesLength)
		return messageError("MsgProtoconf.MvcEncode", str)
	}

	err := WriteVarInt(w, pver, protoconfFields)
	if err != nil {
		return err
	}

	err = WriteElement(w, msg.MaxRecvPayloadLength)
	if err != nil {
		return err
	}

	return WriteVarString(w, pver, msg.StreamPolicies)
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgProtoconf) Command() string {
	return CmdProtoconf
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgProtoconf) MaxPayloadLength(pver uint32) uint64 {
	// Num fields (varInt) + payload length 4 bytes + length of stream
	// policies (varInt) + max stream policies length.
	return MaxVarIntPayload + 4 + MaxVarIntPayload + maxStreamPoliciesLength
}

// NewMsgProtoconf returns a new mvc protoconf message that conforms to the
// Message interface, declaring the given receive ceiling and stream
// policies. See MsgProtoconf for details.
func NewMsgProtoconf(maxRecvPayloadLength uint32, streamPolicies string) *MsgProtoconf {
	return &MsgProtoconf{
		NumberOfFields:       protoconfFields,
		MaxRecvPayloadLength: maxRecvPayloadLength,
		StreamPolicies:       streamPolicies,
	}
}

// MaxSendPayloadLength returns the ceiling for payloads sent to a peer that
// declared peerMaxRecvPayloadLength in its protoconf. localMax is this
// node's configured outbound ceiling. sendFactor scales the peer's
// declaration since peers commonly enforce their declared limit loosely;
// the result never exceeds localMax. Until a peer's protoconf arrives,
// callers size against LegacyMaxProtocolPayloadLength instead.
func MaxSendPayloadLength(peerMaxRecvPayloadLength uint32, localMax uint64, sendFactor uint64) uint64 {
	scaled := sendFactor * uint64(peerMaxRecvPayloadLength)
	if localMax < scaled {
		return localMax
	}
	return scaled
}
