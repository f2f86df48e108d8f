// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"math"

	"github.com/pkg/errors"
)

const (
	// MessageStartSize is the number of bytes in the network magic that
	// starts every message header.
	MessageStartSize = 4

	// CommandSize is the fixed size of all commands in the common mvc message
	// header. Shorter commands must be zero padded.
	CommandSize = 12

	// ChecksumSize is the number of bytes in a message header checksum.
	ChecksumSize = 4

	// BasicHeaderSize is the number of bytes in an mvc basic message header.
	// 4 byte magic number + 12 byte command + 4 byte payload length + 4 byte
	// checksum.
	BasicHeaderSize = MessageStartSize + CommandSize + 4 + ChecksumSize

	// ExtendedHeaderSize is the number of bytes in an mvc extended message
	// header. The basic header followed by the 12 byte real command and the
	// 8 byte payload length.
	ExtendedHeaderSize = BasicHeaderSize + CommandSize + 8

	// ExtendedLengthSentinel is the value of the basic header length field
	// that announces an extended header. The real payload length follows in
	// the extension, so no basic message may declare this length itself.
	ExtendedLengthSentinel uint32 = math.MaxUint32
)

// ExtendedHeader holds the extension fields of a message too large for the
// 32-bit length field of the basic header: the real command and a 64-bit
// payload length.
type ExtendedHeader struct {
	Command       string
	PayloadLength uint64
}

// MessageHeader defines the header prefixing every mvc message. A header is
// either basic, 24 bytes, or extended, 44 bytes. The extended form is
// announced by a basic header pairing the "extmsg" command with the
// ExtendedLengthSentinel in its length field; the Extended fields then carry
// the real command and payload length. The two forms are kept as a tagged
// variant, Extended is nil for a basic header, so completeness and validity
// are judged per variant.
//
// Headers are decoded incrementally. Read accepts bytes in whatever chunk
// sizes the transport delivers and Complete reports when the header, with
// its extension when one is announced, has been fully consumed.
type MessageHeader struct {
	Magic         MessageMagic
	Command       string
	PayloadLength uint32
	Checksum      [ChecksumSize]byte
	Extended      *ExtendedHeader

	// raw accumulates undecoded header bytes across Read calls. cmdOK and
	// extCmdOK record whether the fixed width command fields were well
	// formed when they were unpacked.
	raw      [ExtendedHeaderSize]byte
	rawRead  int
	cmdOK    bool
	extCmdOK bool
}

// bytesNeeded returns how many more raw bytes the header requires before it
// is complete. The answer changes once the basic fields are parsed: a length
// field carrying the sentinel extends the header by the extension size.
func (h *MessageHeader) bytesNeeded() int {
	if h.rawRead < BasicHeaderSize {
		return BasicHeaderSize - h.rawRead
	}
	if h.PayloadLength == ExtendedLengthSentinel {
		return ExtendedHeaderSize - h.rawRead
	}
	return 0
}

// Read consumes header bytes from buf and returns how many were used. It
// never consumes more than the header still needs, so the remainder of buf
// belongs to the payload or to the next message. A buf shorter than the
// remaining header is not an error; the header simply stays incomplete until
// more bytes arrive.
func (h *MessageHeader) Read(buf []byte) (int, error) {
	totalRead := 0
	for {
		needed := h.bytesNeeded()
		if needed == 0 || len(buf) == 0 {
			return totalRead, nil
		}
		n := needed
		if n > len(buf) {
			n = len(buf)
		}
		copy(h.raw[h.rawRead:], buf[:n])
		h.rawRead += n
		buf = buf[n:]
		totalRead += n

		switch h.rawRead {
		case BasicHeaderSize:
			h.unpackBasicFields()
		case ExtendedHeaderSize:
			h.unpackExtendedFields()
		}
	}
}

// unpackBasicFields decodes the fixed basic header fields out of the raw
// buffer once the first BasicHeaderSize bytes have arrived.
func (h *MessageHeader) unpackBasicFields() {
	copy(h.Magic[:], h.raw[0:MessageStartSize])
	h.Command, h.cmdOK = unpackCommand(h.raw[MessageStartSize : MessageStartSize+CommandSize])
	h.PayloadLength = littleEndian.Uint32(h.raw[MessageStartSize+CommandSize : BasicHeaderSize-ChecksumSize])
	copy(h.Checksum[:], h.raw[BasicHeaderSize-ChecksumSize:BasicHeaderSize])
}

// unpackExtendedFields decodes the extension fields once all
// ExtendedHeaderSize bytes have arrived.
func (h *MessageHeader) unpackExtendedFields() {
	command, ok := unpackCommand(h.raw[BasicHeaderSize : BasicHeaderSize+CommandSize])
	h.Extended = &ExtendedHeader{
		Command:       command,
		PayloadLength: littleEndian.Uint64(h.raw[BasicHeaderSize+CommandSize : ExtendedHeaderSize]),
	}
	h.extCmdOK = ok
}

// unpackCommand extracts the human-readable command from its fixed width NUL
// padded wire form. ok is false when a non-zero byte follows the first NUL
// or when the command contains a byte outside printable ASCII.
func unpackCommand(cmd []byte) (string, bool) {
	nulIdx := len(cmd)
	for i, b := range cmd {
		if b == 0 {
			nulIdx = i
			break
		}
	}
	for _, b := range cmd[nulIdx:] {
		if b != 0 {
			return string(cmd[:nulIdx]), false
		}
	}
	for _, b := range cmd[:nulIdx] {
		if b < 0x20 || b > 0x7e {
			return string(cmd[:nulIdx]), false
		}
	}
	return string(cmd[:nulIdx]), true
}

// Complete returns whether the whole header has been consumed, including the
// extension when the basic length field announced one.
func (h *MessageHeader) Complete() bool {
	if h.rawRead == ExtendedHeaderSize {
		return true
	}
	return h.rawRead == BasicHeaderSize && h.PayloadLength != ExtendedLengthSentinel
}

// IsExtended returns whether this header carries the extension fields.
func (h *MessageHeader) IsExtended() bool {
	return h.Extended != nil
}

// GetCommand returns the command the header frames. For an extended header
// that is the real command from the extension, not the "extmsg" marker.
func (h *MessageHeader) GetCommand() string {
	if h.Extended != nil {
		return h.Extended.Command
	}
	return h.Command
}

// GetPayloadLength returns the declared payload length, widened to 64 bits
// for basic headers and taken from the extension for extended ones. It is
// the single source of truth for how many payload bytes follow the header.
func (h *MessageHeader) GetPayloadLength() uint64 {
	if h.Extended != nil {
		return h.Extended.PayloadLength
	}
	return uint64(h.PayloadLength)
}

// GetHeaderSize returns the serialized size of this header.
func (h *MessageHeader) GetHeaderSize() uint64 {
	if h.Extended != nil {
		return ExtendedHeaderSize
	}
	return BasicHeaderSize
}

// IsValid returns whether a decoded header is acceptable for the configured
// network. The magic must match, the command fields must be well formed, and
// for the extended variant the basic fields must pair the extmsg marker with
// the length sentinel. An unknown but well formed command is acceptable here;
// dispatch decides what to do with it.
func (h *MessageHeader) IsValid(cfg *ReceiveConfig) bool {
	if h.Magic != cfg.Net {
		return false
	}
	if !h.cmdOK {
		return false
	}
	if h.Extended != nil {
		if h.Command != CmdExtmsg || h.PayloadLength != ExtendedLengthSentinel {
			return false
		}
		if !h.extCmdOK {
			return false
		}
	} else if h.Command == CmdExtmsg {
		return false
	}
	return true
}

// IsOversized returns whether the declared payload length exceeds the ceiling
// for the framed command. Callers must reject the message before buffering
// any payload when this reports true.
func (h *MessageHeader) IsOversized(cfg *ReceiveConfig) bool {
	maxLength := GetMaxMessageLength(h.GetCommand(), uint64(cfg.MaxRecvPayloadLength), cfg.ExcessiveBlockSize)
	return h.GetPayloadLength() > maxLength
}

// Serialize writes the header out in its wire form and returns the number of
// bytes written.
func (h *MessageHeader) Serialize(w io.Writer) (int, error) {
	hw := bytes.NewBuffer(make([]byte, 0, ExtendedHeaderSize))
	var command [CommandSize]byte
	copy(command[:], h.Command)
	writeElements(hw, h.Magic, command, h.PayloadLength, h.Checksum)
	if h.Extended != nil {
		var extCommand [CommandSize]byte
		copy(extCommand[:], h.Extended.Command)
		writeElements(hw, extCommand, h.Extended.PayloadLength)
	}

	n, err := w.Write(hw.Bytes())
	return n, errors.WithStack(err)
}

// IsExtendedPayloadSize returns whether a payload of the given length can
// only be framed by an extended header. The boundary is the sentinel itself:
// one byte less still fits the basic length field.
func IsExtendedPayloadSize(payloadLength uint64) bool {
	return payloadLength >= uint64(ExtendedLengthSentinel)
}

// GetHeaderSizeForPayload returns the size of the header needed to frame a
// payload of the given length.
func GetHeaderSizeForPayload(payloadLength uint64) uint64 {
	if IsExtendedPayloadSize(payloadLength) {
		return ExtendedHeaderSize
	}
	return BasicHeaderSize
}

// maxPayloadLengthForVersion returns the largest payload that may be sent to
// a peer speaking the given protocol version. Peers that predate the
// extended header cannot be sent any payload needing one.
func maxPayloadLengthForVersion(pver uint32) uint64 {
	if pver >= ExtendedPayloadVersion {
		return math.MaxUint64
	}
	return uint64(ExtendedLengthSentinel) - 1
}
