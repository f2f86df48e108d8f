// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mvc-labs/mvcd/util/chainhash"
	"github.com/pkg/errors"
)

// Commands used in mvc message headers which describe the type of message.
// These are the exact byte values carried in the fixed width command field;
// they are a protocol contract and must never change.
const (
	CmdVersion      = "version"
	CmdVerAck       = "verack"
	CmdAddr         = "addr"
	CmdInv          = "inv"
	CmdGetData      = "getdata"
	CmdMerkleBlock  = "merkleblock"
	CmdGetBlocks    = "getblocks"
	CmdGetHeaders   = "getheaders"
	CmdTx           = "tx"
	CmdHeaders      = "headers"
	CmdBlock        = "block"
	CmdGetAddr      = "getaddr"
	CmdMemPool      = "mempool"
	CmdPing         = "ping"
	CmdPong         = "pong"
	CmdNotFound     = "notfound"
	CmdFilterLoad   = "filterload"
	CmdFilterAdd    = "filteradd"
	CmdFilterClear  = "filterclear"
	CmdReject       = "reject"
	CmdSendHeaders  = "sendheaders"
	CmdFeeFilter    = "feefilter"
	CmdSendCmpct    = "sendcmpct"
	CmdCmpctBlock   = "cmpctblock"
	CmdGetBlockTxn  = "getblocktxn"
	CmdBlockTxn     = "blocktxn"
	CmdProtoconf    = "protoconf"
	CmdCreateStream = "createstream"
	CmdStreamAck    = "streamack"
	CmdDsDetected   = "dsdetected"
	CmdExtmsg       = "extmsg"
)

// allMessageCommands lists every command known to the protocol in a stable
// order. The catalog is fixed at startup and shared read-only by all
// connections; nothing registers into it at runtime.
var allMessageCommands = []string{
	CmdVersion,
	CmdVerAck,
	CmdAddr,
	CmdInv,
	CmdGetData,
	CmdMerkleBlock,
	CmdGetBlocks,
	CmdGetHeaders,
	CmdTx,
	CmdHeaders,
	CmdBlock,
	CmdGetAddr,
	CmdMemPool,
	CmdPing,
	CmdPong,
	CmdNotFound,
	CmdFilterLoad,
	CmdFilterAdd,
	CmdFilterClear,
	CmdReject,
	CmdSendHeaders,
	CmdFeeFilter,
	CmdSendCmpct,
	CmdCmpctBlock,
	CmdGetBlockTxn,
	CmdBlockTxn,
	CmdProtoconf,
	CmdCreateStream,
	CmdStreamAck,
	CmdDsDetected,
	CmdExtmsg,
}

var knownMessageCommands = make(map[string]struct{}, len(allMessageCommands))

func init() {
	for _, command := range allMessageCommands {
		knownMessageCommands[command] = struct{}{}
	}
}

// IsKnownCommand returns whether command names a message type in the
// protocol catalog.
func IsKnownCommand(command string) bool {
	_, ok := knownMessageCommands[command]
	return ok
}

// MessageCommands returns the catalog of known message commands in its
// stable order.
func MessageCommands() []string {
	commands := make([]string, len(allMessageCommands))
	copy(commands, allMessageCommands)
	return commands
}

// IsBlockLike returns whether command transmits the content of a block.
// These messages can be significantly larger than usual messages and are
// therefore bounded by the excessive block size instead of the negotiated
// payload ceiling.
func IsBlockLike(command string) bool {
	switch command {
	case CmdBlock, CmdCmpctBlock, CmdBlockTxn:
		return true
	}
	return false
}

// GetMaxMessageLength returns the maximum payload length permitted for the
// given command. Block carrying commands scale with the consensus configured
// excessive block size; every other command is capped by the configured
// receive ceiling, itself clamped to MaxProtocolRecvPayloadLength no matter
// what the configuration says.
func GetMaxMessageLength(command string, maxRecvPayloadLength uint64, excessiveBlockSize uint64) uint64 {
	if IsBlockLike(command) {
		return excessiveBlockSize
	}
	if maxRecvPayloadLength > uint64(MaxProtocolRecvPayloadLength) {
		return uint64(MaxProtocolRecvPayloadLength)
	}
	return maxRecvPayloadLength
}

// Message is an interface that describes an mvc message. A type that
// implements Message has complete control over the representation of its
// data and may therefore contain additional or fewer fields than those which
// are used directly in the protocol encoded message.
type Message interface {
	MvcDecode(io.Reader, uint32) error
	MvcEncode(io.Writer, uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint64
}

// MakeEmptyMessage creates a message of the appropriate concrete type based
// on the command. Commands that carry no typed representation in this
// package, block content and stream control among them, return a
// *MessageError; their payloads are handed to consumers raw.
func MakeEmptyMessage(command string) (Message, error) {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}

	case CmdVerAck:
		msg = &MsgVerAck{}

	case CmdGetAddr:
		msg = &MsgGetAddr{}

	case CmdAddr:
		msg = &MsgAddr{}

	case CmdInv:
		msg = &MsgInv{}

	case CmdGetData:
		msg = &MsgGetData{}

	case CmdNotFound:
		msg = &MsgNotFound{}

	case CmdPing:
		msg = &MsgPing{}

	case CmdPong:
		msg = &MsgPong{}

	case CmdReject:
		msg = &MsgReject{}

	case CmdSendHeaders:
		msg = &MsgSendHeaders{}

	case CmdFeeFilter:
		msg = &MsgFeeFilter{}

	case CmdProtoconf:
		msg = &MsgProtoconf{}

	default:
		return nil, messageError("MakeEmptyMessage", fmt.Sprintf("unhandled command [%s]", command))
	}
	return msg, nil
}

// discardInput reads n bytes from reader r in chunks and discards the read
// bytes. This is used to skip payloads when various errors occur and helps
// prevent rogue nodes from causing massive memory allocation through forging
// header length.
func discardInput(r io.Reader, n uint64) {
	maxSize := uint64(10 * 1024) // 10k at a time
	numReads := n / maxSize
	bytesRemaining := n % maxSize
	if n > 0 {
		buf := make([]byte, maxSize)
		for i := uint64(0); i < numReads; i++ {
			io.ReadFull(r, buf)
		}
	}
	if bytesRemaining > 0 {
		buf := make([]byte, bytesRemaining)
		io.ReadFull(r, buf)
	}
}

// ReadMessageN reads, validates, and parses the next mvc Message from r for
// the provided protocol version and receive configuration. It returns the
// number of bytes read in addition to the parsed Message and raw payload
// bytes so the caller can track transferred byte counts.
func ReadMessageN(r io.Reader, pver uint32, cfg *ReceiveConfig) (int, Message, []byte, error) {
	totalBytes := 0
	var hdr MessageHeader

	headerBytes := make([]byte, BasicHeaderSize)
	n, err := io.ReadFull(r, headerBytes)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, errors.WithStack(err)
	}
	hdr.Read(headerBytes)

	if !hdr.Complete() {
		// The basic length field carried the extension sentinel, so the
		// remaining header bytes follow on the stream.
		extensionBytes := make([]byte, ExtendedHeaderSize-BasicHeaderSize)
		n, err = io.ReadFull(r, extensionBytes)
		totalBytes += n
		if err != nil {
			return totalBytes, nil, nil, errors.WithStack(err)
		}
		hdr.Read(extensionBytes)
	}

	if !hdr.IsValid(cfg) {
		return totalBytes, nil, nil, errors.Wrapf(ErrMalformedHeader,
			"magic %v, command %q", hdr.Magic, hdr.GetCommand())
	}
	if hdr.IsOversized(cfg) {
		return totalBytes, nil, nil, errors.Wrapf(ErrOversizedMessage,
			"command %s declares %d bytes, ceiling %d", hdr.GetCommand(), hdr.GetPayloadLength(),
			GetMaxMessageLength(hdr.GetCommand(), uint64(cfg.MaxRecvPayloadLength), cfg.ExcessiveBlockSize))
	}

	command := hdr.GetCommand()
	payloadLength := hdr.GetPayloadLength()

	// Create struct of appropriate message type based on the command.
	msg, err := MakeEmptyMessage(command)
	if err != nil {
		discardInput(r, payloadLength)
		return totalBytes, nil, nil, messageError("ReadMessage",
			fmt.Sprintf("unhandled command [%s]", command))
	}

	// Check for maximum length based on the message type as a malicious
	// client could otherwise create a well-formed header and set the length
	// to max numbers in order to exhaust the machine's memory.
	mpl := msg.MaxPayloadLength(pver)
	if payloadLength > mpl {
		discardInput(r, payloadLength)
		return totalBytes, nil, nil, messageError("ReadMessage",
			fmt.Sprintf("payload exceeds max length - header indicates %d bytes, "+
				"but max payload size for messages of type [%s] is %d", payloadLength, command, mpl))
	}

	// Read payload.
	payload := make([]byte, payloadLength)
	n, err = io.ReadFull(r, payload)
	totalBytes += n
	if err != nil {
		return totalBytes, nil, nil, errors.WithStack(err)
	}

	// Test checksum. Extended frames are framed without an enforceable
	// checksum, so only basic frames are verified.
	if !hdr.IsExtended() {
		checksum := chainhash.DoubleHashB(payload)[0:ChecksumSize]
		if !bytes.Equal(checksum, hdr.Checksum[:]) {
			return totalBytes, nil, nil, errors.Wrapf(ErrChecksumMismatch,
				"command %s [expected %x, actual %x]", command, hdr.Checksum, checksum)
		}
	}

	// Unmarshal message. NOTE: This must be a *bytes.Buffer since the
	// MsgVersion MvcDecode function requires it.
	pr := bytes.NewBuffer(payload)
	err = msg.MvcDecode(pr, pver)
	if err != nil {
		return totalBytes, nil, nil, err
	}

	return totalBytes, msg, payload, nil
}

// ReadMessage reads, validates, and parses the next mvc Message from r for
// the provided protocol version and receive configuration. It returns the
// parsed Message and raw payload bytes. This function only differs from
// ReadMessageN in that it doesn't return the number of bytes read. This
// function is mainly provided for backwards compatibility with the original
// API, but it's also useful for callers that don't care about byte counts.
func ReadMessage(r io.Reader, pver uint32, cfg *ReceiveConfig) (Message, []byte, error) {
	_, msg, buf, err := ReadMessageN(r, pver, cfg)
	return msg, buf, err
}

// WriteMessageN writes an mvc Message to w including the necessary header
// information and returns the number of bytes written. Payloads that do not
// fit the 32-bit length field of the basic header are framed with an
// extended header; those frames carry a zeroed checksum since none is
// defined for them.
func WriteMessageN(w io.Writer, msg Message, pver uint32, net MessageMagic) (int, error) {
	totalBytes := 0

	// Enforce max command size.
	command := msg.Command()
	if len(command) > CommandSize {
		return totalBytes, messageError("WriteMessage",
			fmt.Sprintf("command [%s] is too long [max %d]", command, CommandSize))
	}

	// Encode the message payload.
	var bw bytes.Buffer
	err := msg.MvcEncode(&bw, pver)
	if err != nil {
		return totalBytes, err
	}
	payload := bw.Bytes()
	payloadLength := uint64(len(payload))

	// Enforce maximum overall message payload for the peer's protocol
	// version. Peers that predate the extended header cannot be framed a
	// payload that needs one.
	if payloadLength > maxPayloadLengthForVersion(pver) {
		return totalBytes, messageError("WriteMessage",
			fmt.Sprintf("message payload is too large - encoded %d bytes, "+
				"but maximum message payload for protocol version %d is %d",
				payloadLength, pver, maxPayloadLengthForVersion(pver)))
	}

	// Enforce maximum message payload based on the message type.
	mpl := msg.MaxPayloadLength(pver)
	if payloadLength > mpl {
		return totalBytes, messageError("WriteMessage",
			fmt.Sprintf("message payload is too large - encoded %d bytes, "+
				"but maximum message payload size for messages of type [%s] is %d",
				payloadLength, command, mpl))
	}

	// Frame the payload with a basic or extended header depending on its
	// size.
	hdr := MessageHeader{Magic: net}
	if GetHeaderSizeForPayload(payloadLength) == ExtendedHeaderSize {
		hdr.Command = CmdExtmsg
		hdr.PayloadLength = ExtendedLengthSentinel
		hdr.Extended = &ExtendedHeader{
			Command:       command,
			PayloadLength: payloadLength,
		}
	} else {
		hdr.Command = command
		hdr.PayloadLength = uint32(payloadLength)
		copy(hdr.Checksum[:], chainhash.DoubleHashB(payload)[0:ChecksumSize])
	}

	n, err := hdr.Serialize(w)
	totalBytes += n
	if err != nil {
		return totalBytes, err
	}

	// Only write the payload if there is one, e.g., verack messages don't
	// have one.
	if len(payload) > 0 {
		n, err = w.Write(payload)
		totalBytes += n
		if err != nil {
			return totalBytes, errors.WithStack(err)
		}
	}

	return totalBytes, nil
}

// WriteMessage writes an mvc Message to w including the necessary header
// information. This function only differs from WriteMessageN in that it
// doesn't return the number of bytes written. This function is mainly
// provided for backwards compatibility with the original API, but it's also
// useful for callers that don't care about byte counts.
func WriteMessage(w io.Writer, msg Message, pver uint32, net MessageMagic) error {
	_, err := WriteMessageN(w, msg, pver, net)
	return err
}
