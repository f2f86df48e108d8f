// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/mvc-labs/mvcd/util/chainhash"
	"github.com/pkg/errors"
)

// TestInvTypeStringer tests the stringized output for inventory vector types.
func TestInvTypeStringer(t *testing.T) {
	tests := []struct {
		in   InvType
		want string
	}{
		{InvTypeError, "ERROR"},
		{InvTypeTx, "MSG_TX"},
		{InvTypeBlock, "MSG_BLOCK"},
		{InvTypeFilteredBlock, "MSG_FILTERED_BLOCK"},
		{InvTypeCmpctBlock, "MSG_CMPCT_BLOCK"},
		{0xffffffff, "Unknown InvType (4294967295)"},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}
}

// TestInvVect tests the InvVect API.
func TestInvVect(t *testing.T) {
	ivType := InvTypeBlock
	hash := chainhash.Hash{}

	// Ensure we get the same payload and signature back out.
	iv := NewInvVect(ivType, &hash)
	if iv.Type != ivType {
		t.Errorf("NewInvVect: wrong type - got %v, want %v",
			iv.Type, ivType)
	}
	if !iv.Hash.IsEqual(&hash) {
		t.Errorf("NewInvVect: wrong hash - got %v, want %v",
			spew.Sdump(iv.Hash), spew.Sdump(hash))
	}
}

// TestInvVectKind tests that flag bits peers may set in the type field are
// stripped when classifying an inventory vector.
func TestInvVectKind(t *testing.T) {
	tests := []struct {
		in          InvType
		kind        InvType
		isTx        bool
		isSomeBlock bool
	}{
		{InvTypeError, InvTypeError, false, false},
		{InvTypeTx, InvTypeTx, true, false},
		{InvTypeBlock, InvTypeBlock, false, true},
		{InvTypeFilteredBlock, InvTypeFilteredBlock, false, true},
		{InvTypeCmpctBlock, InvTypeCmpctBlock, false, true},

		// The three high bits are reserved for per-message flags and do
		// not change the kind.
		{InvType(uint32(InvTypeTx) | ^uint32(MsgTypeMask)), InvTypeTx,
			true, false},
		{InvType(uint32(InvTypeBlock) | 0xe0000000), InvTypeBlock,
			false, true},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		iv := NewInvVect(test.in, &chainhash.Hash{})
		if kind := iv.Kind(); kind != test.kind {
			t.Errorf("Kind #%d: got %v, want %v", i, kind, test.kind)
		}
		if isTx := iv.IsTx(); isTx != test.isTx {
			t.Errorf("IsTx #%d: got %v, want %v", i, isTx, test.isTx)
		}
		if isSomeBlock := iv.IsSomeBlock(); isSomeBlock != test.isSomeBlock {
			t.Errorf("IsSomeBlock #%d: got %v, want %v", i, isSomeBlock,
				test.isSomeBlock)
		}
	}
}

// TestInvVectLess tests the deterministic ordering of inventory vectors.
func TestInvVectLess(t *testing.T) {
	hashA := &chainhash.Hash{0x01}
	hashB := &chainhash.Hash{0x02}

	tests := []struct {
		a    *InvVect
		b    *InvVect
		want bool
	}{
		// Type dominates the ordering.
		{NewInvVect(InvTypeTx, hashB), NewInvVect(InvTypeBlock, hashA), true},
		{NewInvVect(InvTypeBlock, hashA), NewInvVect(InvTypeTx, hashB), false},

		// Equal types fall back to raw hash bytes.
		{NewInvVect(InvTypeTx, hashA), NewInvVect(InvTypeTx, hashB), true},
		{NewInvVect(InvTypeTx, hashB), NewInvVect(InvTypeTx, hashA), false},

		// Equal vectors are not less than each other.
		{NewInvVect(InvTypeTx, hashA), NewInvVect(InvTypeTx, hashA), false},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		if got := test.a.Less(test.b); got != test.want {
			t.Errorf("Less #%d: got %v, want %v", i, got, test.want)
		}
	}
}

// TestInvVectWire tests the InvVect wire encode and decode for various
// protocol versions and supported inventory vector types.
func TestInvVectWire(t *testing.T) {
	// Block 203707 hash.
	hashStr := "3264bc2ac36a60840790ba1d475d01367e7c723da941069e9dc"
	baseHash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		t.Errorf("NewHashFromStr: %v", err)
	}

	// errInvVect is an inventory vector with an error type and zero hash.
	errInvVect := InvVect{
		Type: InvTypeError,
		Hash: &chainhash.Hash{},
	}

	// errInvVectEncoded is the wire encoded bytes of errInvVect.
	errInvVectEncoded := []byte{
		0x00, 0x00, 0x00, 0x00, // InvTypeError
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // No hash
	}

	// txInvVect is an inventory vector representing a transaction.
	txInvVect := InvVect{
		Type: InvTypeTx,
		Hash: baseHash,
	}

	// txInvVectEncoded is the wire encoded bytes of txInvVect.
	txInvVectEncoded := []byte{
		0x01, 0x00, 0x00, 0x00, // InvTypeTx
		0xdc, 0xe9, 0x69, 0x10, 0x94, 0xda, 0x23, 0xc7,
		0xe7, 0x67, 0x13, 0xd0, 0x75, 0xd4, 0xa1, 0x0b,
		0x79, 0x40, 0x08, 0xa6, 0x36, 0xac, 0xc2, 0x4b,
		0x26, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // Block 203707 hash
	}

	// blockInvVect is an inventory vector representing a block.
	blockInvVect := InvVect{
		Type: InvTypeBlock,
		Hash: baseHash,
	}

	// blockInvVectEncoded is the wire encoded bytes of blockInvVect.
	blockInvVectEncoded := []byte{
		0x02, 0x00, 0x00, 0x00, // InvTypeBlock
		0xdc, 0xe9, 0x69, 0x10, 0x94, 0xda, 0x23, 0xc7,
		0xe7, 0x67, 0x13, 0xd0, 0x75, 0xd4, 0xa1, 0x0b,
		0x79, 0x40, 0x08, 0xa6, 0x36, 0xac, 0xc2, 0x4b,
		0x26, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // Block 203707 hash
	}

	tests := []struct {
		in   InvVect // InvVect to encode
		out  InvVect // Expected decoded InvVect
		buf  []byte  // Wire encoding
		pver uint32  // Protocol version for wire encoding
	}{
		// Latest protocol version error inventory vector.
		{errInvVect, errInvVect, errInvVectEncoded, ProtocolVersion},

		// Latest protocol version tx inventory vector.
		{txInvVect, txInvVect, txInvVectEncoded, ProtocolVersion},

		// Latest protocol version block inventory vector.
		{blockInvVect, blockInvVect, blockInvVectEncoded, ProtocolVersion},

		// Oldest supported protocol version error inventory vector.
		{errInvVect, errInvVect, errInvVectEncoded, GetHeadersVersion},

		// Oldest supported protocol version tx inventory vector.
		{txInvVect, txInvVect, txInvVectEncoded, GetHeadersVersion},

		// Oldest supported protocol version block inventory vector.
		{blockInvVect, blockInvVect, blockInvVectEncoded, GetHeadersVersion},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		// Encode to wire format.
		var buf bytes.Buffer
		err := writeInvVect(&buf, test.pver, &test.in)
		if err != nil {
			t.Errorf("writeInvVect #%d error %v", i, err)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.buf) {
			t.Errorf("writeInvVect #%d\n got: %s want: %s", i,
				spew.Sdump(buf.Bytes()), spew.Sdump(test.buf))
			continue
		}

		// Decode the message from wire format.
		var iv InvVect
		rbuf := bytes.NewReader(test.buf)
		err = readInvVect(rbuf, test.pver, &iv)
		if err != nil {
			t.Errorf("readInvVect #%d error %v", i, err)
			continue
		}
		if !reflect.DeepEqual(iv, test.out) {
			t.Errorf("readInvVect #%d\n got: %s want: %s", i,
				spew.Sdump(iv), spew.Sdump(test.out))
			continue
		}
	}
}

// TestInvVectWireErrors performs negative tests against wire encode and
// decode of inventory vectors to confirm error paths work correctly.
func TestInvVectWireErrors(t *testing.T) {
	pver := ProtocolVersion

	iv := NewInvVect(InvTypeTx, &chainhash.Hash{0x01})

	tests := []struct {
		in       *InvVect // Value to encode
		max      int      // Max size of fixed buffer to induce errors
		writeErr error    // Expected write error
		readErr  error    // Expected read error
	}{
		// Force error in type.
		{iv, 0, io.ErrShortWrite, io.EOF},
		// Force error in hash.
		{iv, 4, io.ErrShortWrite, io.ErrUnexpectedEOF},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		// Encode to wire format.
		w := newFixedWriter(test.max)
		err := writeInvVect(w, pver, test.in)
		if !errors.Is(err, test.writeErr) {
			t.Errorf("writeInvVect #%d wrong error got: %v, want: %v",
				i, err, test.writeErr)
			continue
		}

		// Decode from wire format.
		var ivOut InvVect
		var buf bytes.Buffer
		if err := writeInvVect(&buf, pver, test.in); err != nil {
			t.Fatalf("writeInvVect: %v", err)
		}
		r := newFixedReader(test.max, buf.Bytes())
		err = readInvVect(r, pver, &ivOut)
		if !errors.Is(err, test.readErr) {
			t.Errorf("readInvVect #%d wrong error got: %v, want: %v",
				i, err, test.readErr)
			continue
		}
	}
}

// TestEstimateMaxInvElements tests the inventory batch sizing helper against
// the wire encoding overhead of an inv message.
func TestEstimateMaxInvElements(t *testing.T) {
	tests := []struct {
		maxPayloadLength uint64
		want             uint64
	}{
		// A single vector plus the reserved count prefix.
		{44, 1},

		// One byte short of the next vector.
		{367, 9},
		{368, 10},

		// The pre-protoconf and default ceilings.
		{uint64(LegacyMaxProtocolPayloadLength), 29126},
		{uint64(DefaultMaxProtocolRecvPayloadLength), 58254},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		got := EstimateMaxInvElements(test.maxPayloadLength)
		if got != test.want {
			t.Errorf("EstimateMaxInvElements #%d: got %d, want %d",
				i, got, test.want)
			continue
		}

		// The estimate must fit and must be maximal.
		if 8+got*maxInvVectPayload > test.maxPayloadLength {
			t.Errorf("EstimateMaxInvElements #%d: %d vectors overflow "+
				"%d bytes", i, got, test.maxPayloadLength)
		}
		if 8+(got+1)*maxInvVectPayload <= test.maxPayloadLength {
			t.Errorf("EstimateMaxInvElements #%d: %d vectors is not "+
				"maximal for %d bytes", i, got, test.maxPayloadLength)
		}
	}
}
