// main is the entrypoint of the gitpulse CLI.
package main

import (
	"github.com/huangsam/gitpulse/cmd"
	"github.com/huangsam/gitpulse/internal/contract"
)

func main() {
	err := cmd.Execute()
	if stopErr := cmd.Shutdown(); stopErr != nil {
		contract.LogWarn("Failed to stop profiling", stopErr)
	}
	if err != nil {
		contract.LogFatal("gitpulse failed", err)
	}
}
