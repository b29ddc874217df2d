// Command voiceagent runs the spoken-dialogue agent behind a browser
// websocket and offers a few helpers around it.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
