// Package lirc implements the client side of the lircd control socket
// protocol.
//
// The daemon multiplexes two grammars on one stream. Key notifications are
// single lines:
//
//	<code> <repeat-index> <key-name> <remote-name>\n
//
// Replies to commands are blocks:
//
//	BEGIN\n<command>\n{SUCCESS|ERROR}\n[DATA\n<n>\n<n lines>]END\n
//
// A FrameParser splits raw bytes into lines. Lines starting with BEGIN, and
// every line after it until the block ends, belong to a CommandParser; any
// other line is handed to ParseKeyEvent.
package lirc
