// Command bootcamp runs the study service and its voice tools.
//
// Usage:
//
//	bootcamp serve                      - HTTP API, voice websocket and metrics
//	bootcamp voice -i in.wav -o out.wav - one live voice session from a WAV file
//	bootcamp ask "question"             - one consultant (or --sidekick) answer
//	bootcamp calc "12*15+20"            - evaluate a calculator expression
//	bootcamp probe                      - replay audio against a running server
//
// Configuration comes from the environment (GEMINI_API_KEY, APP_BIND_ADDR, ...).
package main

import (
	"fmt"
	"os"

	"github.com/antoniostano/bootcamp/cmd/bootcamp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
