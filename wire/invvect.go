// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/mvc-labs/mvcd/util/chainhash"
)

const (
	// MaxInvPerMsg is the maximum number of inventory vectors that can be in
	// a single mvc inv message.
	MaxInvPerMsg = 50000

	// maxInvVectPayload is the maximum payload size for an inventory vector.
	// 4 bytes type + 32 bytes hash.
	maxInvVectPayload = 4 + chainhash.HashSize

	// MsgTypeMask masks the type field of an inventory vector down to the
	// bits that name the kind of data it describes.
	MsgTypeMask = 0xffffffff >> 3
)

// InvType represents the allowed types of inventory vectors. See InvVect.
type InvType uint32

// These constants define the various supported inventory vector types.
const (
	InvTypeError         InvType = 0
	InvTypeTx            InvType = 1
	InvTypeBlock         InvType = 2
	InvTypeFilteredBlock InvType = 3
	InvTypeCmpctBlock    InvType = 4
)

// Map of inventory vector types back to their constant names for pretty
// printing.
var ivStrings = map[InvType]string{
	InvTypeError:         "ERROR",
	InvTypeTx:            "MSG_TX",
	InvTypeBlock:         "MSG_BLOCK",
	InvTypeFilteredBlock: "MSG_FILTERED_BLOCK",
	InvTypeCmpctBlock:    "MSG_CMPCT_BLOCK",
}

// String returns the InvType in human-readable form.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines an mvc inventory vector which is used to describe data,
// as specified by the Type field, that a peer wants, has, or does not have
// to another peer.
type InvVect struct {
	Type InvType         // Type of data
	Hash *chainhash.Hash // Hash of the data
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{
		Type: typ,
		Hash: hash,
	}
}

// Kind returns the type field masked down to the bits naming the kind of
// data, stripping any flag bits a peer may have set.
func (iv *InvVect) Kind() InvType {
	return iv.Type & MsgTypeMask
}

// IsTx returns whether the vector describes a transaction.
func (iv *InvVect) IsTx() bool {
	return iv.Kind() == InvTypeTx
}

// IsSomeBlock returns whether the vector describes block content in any of
// its forms.
func (iv *InvVect) IsSomeBlock() bool {
	switch iv.Kind() {
	case InvTypeBlock, InvTypeFilteredBlock, InvTypeCmpctBlock:
		return true
	}
	return false
}

// Less returns whether iv sorts before other, ordering first by type and
// then by raw hash bytes. The ordering is deterministic so inventory sets
// can be deduplicated and diffed consistently across peers.
func (iv *InvVect) Less(other *InvVect) bool {
	if iv.Type != other.Type {
		return iv.Type < other.Type
	}
	return chainhash.Less(iv.Hash, other.Hash)
}

// EstimateMaxInvElements returns the maximum number of inventory vectors
// that fit in a payload of maxPayloadLength bytes. The estimate is
// pessimistic: it reserves the full 8 bytes for the count prefix even though
// the compact encoding uses fewer for small counts. Callers use it to size
// outbound batches, never to validate inbound ones.
func EstimateMaxInvElements(maxPayloadLength uint64) uint64 {
	return (maxPayloadLength - 8) / maxInvVectPayload
}

// readInvVect reads an encoded InvVect from r depending on the protocol
// version.
func readInvVect(r io.Reader, pver uint32, iv *InvVect) error {
	iv.Hash = &chainhash.Hash{}
	return readElements(r, &iv.Type, iv.Hash)
}

// writeInvVect serializes an InvVect to w depending on the protocol version.
func writeInvVect(w io.Writer, pver uint32, iv *InvVect) error {
	return writeElements(w, iv.Type, iv.Hash)
}
