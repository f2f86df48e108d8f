// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the mvc wire protocol.

This package is one of the core packages in mvcd. It turns the untrusted byte
stream arriving from a network peer into discrete, validated, length bounded
protocol messages and negotiates per peer size limits before large payloads
are exchanged.

Message Framing

Every message starts with a 24 byte basic header: the 4 byte network magic,
the NUL padded 12 byte command, a 32-bit payload length, and a 4 byte
checksum over the payload. Payloads too large for a 32-bit length field are
framed with an extended header: the basic header carries the "extmsg"
command and the length sentinel 0xffffffff, and 20 extension bytes follow
with the real command and a 64-bit payload length. Extended frames carry no
enforceable checksum.

Message Assembly

Bytes arrive from a transport in arbitrary chunk sizes. The NetMessage type
assembles exactly one message from such chunks: it completes the header,
judges it against the configured network magic and size ceilings before a
single payload byte is buffered, and then accumulates exactly the declared
payload. Leftover bytes in a chunk belong to the next message and are fed to
a fresh NetMessage. For blocking readers the ReadMessage and ReadMessageN
functions drive the same codec over an io.Reader and additionally decode the
payload into a typed Message.

Size Limits

Every command has a payload ceiling. Commands that transmit block content,
see IsBlockLike, are bounded by the consensus configured excessive block
size; every other command is bounded by the configured receive ceiling,
which is clamped to MaxProtocolRecvPayloadLength. The receive ceiling a peer
accepts is learned from its protoconf message (MsgProtoconf), sent once
after verack; until one arrives, LegacyMaxProtocolPayloadLength governs how
much may be sent to that peer.

Errors

Errors returned by this package are either a *MessageError for malformed
message contents or wrap one of the framing sentinels ErrMalformedHeader,
ErrOversizedMessage, ErrChecksumMismatch and ErrInvalidProtoconf, which are
identified with errors.Is and are fatal to the connection that produced
them. Plain io errors are passed through for stream failures.
*/
package wire
