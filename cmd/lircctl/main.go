// Command lircctl talks to lircd: it lists remotes, sends IR commands,
// prints key presses and can republish them over WebSocket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
