// Command codecoder is the entry point for the agent-orchestration runtime.
package main

import (
	"os"

	"github.com/codecoder/codecoder/cmd/codecoder/commands"
)

func main() {
	os.Exit(commands.Execute())
}
