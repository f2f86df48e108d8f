// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"time"

	"github.com/mvc-labs/mvcd/util/chainhash"
	"github.com/pkg/errors"
)

// NetMessage assembles one inbound message from a stream of byte chunks. It
// drives a MessageHeader through its states, judges the header as soon as it
// completes, and then accumulates exactly the declared payload. One instance
// assembles one message; a connection creates a fresh instance per message
// and feeds leftover bytes from the previous chunk into the next instance.
//
// A NetMessage is owned by the single goroutine reading its connection and
// performs no locking.
type NetMessage struct {
	hdr     MessageHeader
	payload bytes.Buffer

	// hasher is fed every payload byte as it arrives so the payload hash
	// can be finalized without a second pass. messageHash memoizes the
	// finalized value.
	hasher      *chainhash.DoubleHashWriter
	messageHash *chainhash.Hash

	receivedAt time.Time

	// err records a fatal header judgment. Once set, the assembler refuses
	// further input; the connection is expected to be dropped.
	err error
}

// NewNetMessage returns an empty assembler ready to consume the next message
// from a connection.
func NewNetMessage() *NetMessage {
	return &NetMessage{
		hasher: chainhash.NewDoubleHashWriter(),
	}
}

// Read consumes bytes from buf and returns how many were used. Bytes may
// arrive in any chunk sizes; Read first completes the header and then
// buffers payload bytes, never consuming more than the declared payload
// length so the caller can hand leftover bytes to the next assembler.
//
// The header is judged the moment it completes and before a single payload
// byte is buffered: a header that fails IsValid returns a fatal error
// wrapping ErrMalformedHeader, and one whose declared length exceeds the
// ceiling for its command returns one wrapping ErrOversizedMessage. No
// payload storage is reserved in either case, so a hostile length field
// cannot force an allocation. Both errors are sticky; subsequent calls
// return the same error without consuming anything.
func (nm *NetMessage) Read(cfg *ReceiveConfig, buf []byte) (int, error) {
	if nm.err != nil {
		return 0, nm.err
	}

	totalRead := 0
	if !nm.hdr.Complete() {
		n, err := nm.hdr.Read(buf)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		if !nm.hdr.Complete() {
			return totalRead, nil
		}

		if !nm.hdr.IsValid(cfg) {
			nm.err = errors.Wrapf(ErrMalformedHeader,
				"magic %v, command %q, payload length %d",
				nm.hdr.Magic, nm.hdr.GetCommand(), nm.hdr.GetPayloadLength())
			return totalRead, nm.err
		}
		if nm.hdr.IsOversized(cfg) {
			nm.err = errors.Wrapf(ErrOversizedMessage,
				"command %s declares %d bytes, ceiling %d",
				nm.hdr.GetCommand(), nm.hdr.GetPayloadLength(),
				GetMaxMessageLength(nm.hdr.GetCommand(), uint64(cfg.MaxRecvPayloadLength), cfg.ExcessiveBlockSize))
			return totalRead, nm.err
		}
		buf = buf[n:]
	}

	remaining := nm.hdr.GetPayloadLength() - uint64(nm.payload.Len())
	n := uint64(len(buf))
	if n > remaining {
		n = remaining
	}
	if n > 0 {
		nm.payload.Write(buf[:n])
		nm.hasher.Write(buf[:n])
		totalRead += int(n)
	}
	return totalRead, nil
}

// Complete returns whether the header and exactly the declared payload have
// been consumed. A complete assembler is read-only; the next message on the
// connection needs a fresh instance.
func (nm *NetMessage) Complete() bool {
	if !nm.hdr.Complete() {
		return false
	}
	return nm.hdr.GetPayloadLength() == uint64(nm.payload.Len())
}

// Header returns the assembled message header.
func (nm *NetMessage) Header() *MessageHeader {
	return &nm.hdr
}

// Payload returns the payload bytes buffered so far. The slice aliases the
// assembler's buffer and is only whole once Complete reports true.
func (nm *NetMessage) Payload() []byte {
	return nm.payload.Bytes()
}

// TotalLength returns the full framed size of the message, header included.
func (nm *NetMessage) TotalLength() uint64 {
	return nm.hdr.GetHeaderSize() + nm.hdr.GetPayloadLength()
}

// MessageHash returns the double SHA256 of the payload, used for connection
// level de-duplication and logging independent of checksum verification. The
// hash is computed on first access and memoized for the life of the
// assembler.
func (nm *NetMessage) MessageHash() *chainhash.Hash {
	if nm.messageHash == nil {
		hash := nm.hasher.Finalize()
		nm.messageHash = &hash
	}
	return nm.messageHash
}

// CheckChecksum verifies the payload against the checksum carried in the
// header. Only basic frames carry an enforceable checksum; extended frames
// are framed without one, their checksum field is written as zeros and
// ignored here, so the call succeeds for them unconditionally.
func (nm *NetMessage) CheckChecksum() error {
	if nm.hdr.IsExtended() {
		return nil
	}
	var checksum [ChecksumSize]byte
	copy(checksum[:], nm.MessageHash()[0:ChecksumSize])
	if checksum != nm.hdr.Checksum {
		return errors.Wrapf(ErrChecksumMismatch,
			"command %s [expected %x, actual %x]",
			nm.hdr.GetCommand(), nm.hdr.Checksum, checksum)
	}
	return nil
}

// ReceivedAt returns the receipt timestamp stamped by the connection.
func (nm *NetMessage) ReceivedAt() time.Time {
	return nm.receivedAt
}

// SetReceivedAt stamps the time the message finished arriving.
func (nm *NetMessage) SetReceivedAt(t time.Time) {
	nm.receivedAt = t
}
