// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion uint32 = 70016

	// InitProtoVersion is the protocol version used by the very first network
	// clients.
	InitProtoVersion uint32 = 209

	// GetHeadersVersion is the protocol version which added the getheaders
	// message.
	GetHeadersVersion uint32 = 31800

	// MinPeerProtoVersion is the lowest protocol version a connected peer may
	// speak before it is disconnected.
	MinPeerProtoVersion uint32 = GetHeadersVersion

	// NetAddressTimeVersion is the protocol version which added the timestamp
	// field to NetAddress (pver >= NetAddressTimeVersion).
	NetAddressTimeVersion uint32 = 31402

	// BIP0031Version is the protocol version AFTER which a pong message and
	// nonce field in ping were added (pver > BIP0031Version).
	BIP0031Version uint32 = 60000

	// BIP0037Version is the protocol version which added new connection bloom
	// filtering related messages and extended the version message with a
	// relay flag (pver >= BIP0037Version).
	BIP0037Version uint32 = 70001

	// RejectVersion is the protocol version which added a new reject message.
	RejectVersion uint32 = 70002

	// NoBloomVersion is the protocol version after which peers have to
	// announce SFNodeBloom before bloom filtered connections are accepted
	// (pver >= NoBloomVersion).
	NoBloomVersion uint32 = 70011

	// SendHeadersVersion is the protocol version which added a new
	// sendheaders message.
	SendHeadersVersion uint32 = 70012

	// FeeFilterVersion is the protocol version which added a new feefilter
	// message.
	FeeFilterVersion uint32 = 70013

	// ShortIDsBlocksVersion is the protocol version which added the compact
	// block messages.
	ShortIDsBlocksVersion uint32 = 70014

	// InvalidCBNoBanVersion is the protocol version after which peers are no
	// longer disconnected for relaying invalid compact blocks.
	InvalidCBNoBanVersion uint32 = 70015

	// ExtendedPayloadVersion is the protocol version which added the extended
	// message header for payloads that do not fit the 32-bit length field of
	// the basic header.
	ExtendedPayloadVersion uint32 = 70016
)

const (
	// DefaultMaxProtocolRecvPayloadLength is the default maximum payload
	// length this node accepts for messages that do not carry block content.
	// It is used when no maxprotocolrecvpayloadlength configuration is
	// provided and may be raised up to MaxProtocolRecvPayloadLength.
	DefaultMaxProtocolRecvPayloadLength uint32 = 2 * 1024 * 1024

	// LegacyMaxProtocolPayloadLength is the fixed payload ceiling of clients
	// that predate protoconf negotiation. It governs outbound sizing toward a
	// peer until that peer declares its own receive ceiling.
	LegacyMaxProtocolPayloadLength uint32 = 1024 * 1024

	// MaxProtocolRecvPayloadLength is the hard upper bound for the receive
	// payload ceiling. Configuration may not raise the ceiling beyond this
	// value no matter what a peer negotiates.
	MaxProtocolRecvPayloadLength uint32 = 1024 * 1024 * 1024

	// MaxProtocolSendPayloadFactor scales a peer's declared receive ceiling
	// when computing how large a payload this node is willing to send it.
	MaxProtocolSendPayloadFactor uint64 = 4

	// DefaultRecvInvQueueFactor is the default number of full size inventory
	// messages that may be queued from a peer at once.
	DefaultRecvInvQueueFactor uint32 = 3

	// MinRecvInvQueueFactor and MaxRecvInvQueueFactor bound the configurable
	// inventory queue factor.
	MinRecvInvQueueFactor uint32 = 1
	MaxRecvInvQueueFactor uint32 = 10
)

// ServiceFlag identifies services supported by an mvc peer.
type ServiceFlag uint64

const (
	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << 0

	// SFNodeGetUTXO is a flag used to indicate a peer supports the getutxos
	// and utxos commands (BIP0064).
	SFNodeGetUTXO ServiceFlag = 1 << 1

	// SFNodeBloom is a flag used to indicate a peer supports bloom filtering.
	SFNodeBloom ServiceFlag = 1 << 2

	// SFNodeXthin is a flag used to indicate a peer supports xtreme
	// thinblocks.
	SFNodeXthin ServiceFlag = 1 << 4

	// SFNodeMvcCash is a flag used to indicate a peer follows the mvc chain
	// and its consensus rule changes.
	SFNodeMvcCash ServiceFlag = 1 << 5
)

// Map of service flags back to their constant names for pretty printing.
var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork: "SFNodeNetwork",
	SFNodeGetUTXO: "SFNodeGetUTXO",
	SFNodeBloom:   "SFNodeBloom",
	SFNodeXthin:   "SFNodeXthin",
	SFNodeMvcCash: "SFNodeMvcCash",
}

// orderedSFStrings is an ordered list of service flags from highest to
// lowest.
var orderedSFStrings = []ServiceFlag{
	SFNodeNetwork,
	SFNodeGetUTXO,
	SFNodeBloom,
	SFNodeXthin,
	SFNodeMvcCash,
}

// String returns the ServiceFlag in human-readable form.
func (f ServiceFlag) String() string {
	// No flags are set.
	if f == 0 {
		return "0x0"
	}

	// Add individual bit flags.
	s := ""
	for _, flag := range orderedSFStrings {
		if f&flag == flag {
			s += sfStrings[flag] + "|"
			f -= flag
		}
	}

	// Add any remaining flags which aren't accounted for as hex.
	s = strings.TrimRight(s, "|")
	if f != 0 {
		s += "|0x" + strconv.FormatUint(uint64(f), 16)
	}
	s = strings.TrimRight(s, "|")
	return s
}

// MessageMagic is the 4-byte network identifier prefixed to every message.
// A node only accepts messages whose magic matches the network it runs on.
type MessageMagic [4]byte

// Constants used to indicate the message mvc network. They can also be used
// to seek to the next message when a stream's state is unknown, but this
// package does not provide that functionality since it is typically a better
// idea to simply disconnect clients that are misbehaving over TCP.
var (
	// MainNet represents the main mvc network.
	MainNet = MessageMagic{0xe3, 0xe1, 0xf3, 0xe8}

	// TestNet represents the test network.
	TestNet = MessageMagic{0xf4, 0xe5, 0xf3, 0xf4}

	// RegTestNet represents the regression test network.
	RegTestNet = MessageMagic{0xda, 0xb5, 0xbf, 0xfa}

	// STNet represents the scaling test network.
	STNet = MessageMagic{0xfb, 0xce, 0xc4, 0xf9}
)

// mmStrings is a map of mvc networks back to their constant names for
// pretty printing.
var mmStrings = map[MessageMagic]string{
	MainNet:    "MainNet",
	TestNet:    "TestNet",
	RegTestNet: "RegTestNet",
	STNet:      "STNet",
}

// String returns the MessageMagic in human-readable form.
func (m MessageMagic) String() string {
	if s, ok := mmStrings[m]; ok {
		return s
	}
	return fmt.Sprintf("Unknown MessageMagic (%x)", m[:])
}

// ReceiveConfig is the view of the node configuration the wire layer needs
// to judge inbound frames: the network it serves and the payload ceilings
// applied by MessageHeader.IsOversized.
//
// The configuration is read-mostly. A single instance is shared by every
// connection of a node and must outlive them all.
type ReceiveConfig struct {
	// Net is the network magic inbound headers must carry.
	Net MessageMagic

	// MaxRecvPayloadLength is the receive ceiling for messages that do not
	// carry block content. It is the locally configured value, clamped at
	// MaxProtocolRecvPayloadLength when judging headers.
	MaxRecvPayloadLength uint32

	// ExcessiveBlockSize is the consensus-supplied maximum block size. It
	// bounds the block carrying commands in place of MaxRecvPayloadLength.
	ExcessiveBlockSize uint64
}
