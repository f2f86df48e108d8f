// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"strings"

	"github.com/mvc-labs/mvcd/logger"
	"github.com/mvc-labs/mvcd/util/panics"
	"github.com/mvc-labs/mvcd/wire"
)

var log = logger.RegisterSubSystem("PEER")
var spawn = panics.GoroutineWrapperFunc(log)
var spawnAfter = panics.AfterFuncWrapperFunc(log)

// maxRejectReasonLen is the maximum length of a sanitized reject reason
// that will be logged.
const maxRejectReasonLen = 250

// messageLogLevel returns the level inbound and outbound messages are logged
// at. Ping, pong and addr chatter arrives constantly, so it only shows up in
// trace output.
func messageLogLevel(msg wire.Message) logger.Level {
	switch msg.(type) {
	case *wire.MsgPing, *wire.MsgPong, *wire.MsgAddr:
		return logger.LevelTrace
	}
	return logger.LevelDebug
}

// invSummary returns an inventory message as a human-readable string.
func invSummary(invList []*wire.InvVect) string {
	// No inventory.
	invLen := len(invList)
	if invLen == 0 {
		return "empty"
	}

	// One inventory item.
	if invLen == 1 {
		iv := invList[0]
		switch iv.Type {
		case wire.InvTypeError:
			return fmt.Sprintf("error %s", iv.Hash)
		case wire.InvTypeBlock:
			return fmt.Sprintf("block %s", iv.Hash)
		case wire.InvTypeTx:
			return fmt.Sprintf("tx %s", iv.Hash)
		}

		return fmt.Sprintf("unknown (%d) %v", uint32(iv.Type), iv.Hash)
	}

	// More than one inv item.
	return fmt.Sprintf("size %d", invLen)
}

// sanitizeString strips any characters which are even remotely dangerous,
// such as html control characters, from the passed string. It also limits it
// to the passed maximum size, which can be 0 for unlimited. When the string
// is limited, it will also add "..." to the string to indicate it was
// truncated.
func sanitizeString(str string, maxLength uint) string {
	const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ01" +
		"234567890 .,;_/:?@"

	// Strip any characters not in the safeChars string removed.
	str = strings.Map(func(r rune) rune {
		if strings.ContainsRune(safeChars, r) {
			return r
		}
		return -1
	}, str)

	// Limit the string to the max allowed length.
	if maxLength > 0 && uint(len(str)) > maxLength {
		str = str[:maxLength]
		str = str + "..."
	}
	return str
}

// messageSummary returns a human-readable string which summarizes a message.
// Not all messages have or need a summary. This is used for debug logging.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, block %d",
			msg.UserAgent, msg.ProtocolVersion, msg.LastBlock)

	case *wire.MsgVerAck:
		// No summary.

	case *wire.MsgGetAddr:
		// No summary.

	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))

	case *wire.MsgPing:
		// No summary - perhaps add nonce.

	case *wire.MsgPong:
		// No summary - perhaps add nonce.

	case *wire.MsgInv:
		return invSummary(msg.InvList)

	case *wire.MsgGetData:
		return invSummary(msg.InvList)

	case *wire.MsgNotFound:
		return invSummary(msg.InvList)

	case *wire.MsgSendHeaders:
		// No summary.

	case *wire.MsgFeeFilter:
		return fmt.Sprintf("feerate %d", msg.MinFee)

	case *wire.MsgProtoconf:
		return fmt.Sprintf("max recv payload %d, policies %s",
			msg.MaxRecvPayloadLength, msg.StreamPolicies)

	case *wire.MsgReject:
		// Ensure the variable length strings don't contain any
		// characters which are even remotely dangerous such as HTML
		// control characters, etc. Also limit them to sane length for
		// logging.
		rejCommand := sanitizeString(msg.Cmd, wire.CommandSize)
		rejReason := sanitizeString(msg.Reason, maxRejectReasonLen)
		summary := fmt.Sprintf("cmd %s, code %s, reason %s", rejCommand,
			msg.Code, rejReason)

		// The hash is only used when the rejected command references
		// transaction or block data.
		if rejCommand == wire.CmdBlock || rejCommand == wire.CmdTx {
			summary += fmt.Sprintf(", hash %s", msg.Hash)
		}
		return summary
	}

	// No summary for other messages.
	return ""
}
